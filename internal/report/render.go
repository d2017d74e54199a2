package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"pulse/internal/analysis"
	"pulse/internal/analysis/cycle"
	"pulse/internal/analysis/indicator"
)

// Render 把一份分析结果渲染为终端可读的多段表格。
func Render(r *analysis.Report) string {
	if r == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString(renderSummary(r))
	b.WriteString("\n")
	b.WriteString(renderDimensions(r))
	if r.Cycle != nil {
		if section := renderCycle(r.Cycle); section != "" {
			b.WriteString("\n")
			b.WriteString(section)
		}
	}
	if r.ExitPlan != nil {
		b.WriteString("\n")
		b.WriteString(renderExitPlan(r))
	}
	return b.String()
}

func renderSummary(r *analysis.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s %s", r.Symbol, r.Interval)
	t.AppendRow(table.Row{"score", fmt.Sprintf("%d", r.Score.Total)})
	t.AppendRow(table.Row{"action", r.Score.Recommendation})
	t.AppendRow(table.Row{"risk", fmt.Sprintf("%s (%d)", r.Risk.Level, r.Risk.Score)})
	if r.Indicators != nil {
		if price, ok := indicator.Float(r.Indicators.Price); ok {
			t.AppendRow(table.Row{"price", fmt.Sprintf("%.4f", price)})
		}
		if chg, ok := indicator.Float(r.Indicators.ChangePct); ok {
			t.AppendRow(table.Row{"change", fmt.Sprintf("%+.2f%%", chg)})
		}
	}
	t.AppendRow(table.Row{"candles", fmt.Sprintf("%d", r.Candles)})
	t.AppendRow(table.Row{"generated", r.GeneratedAt.Format("2006-01-02 15:04:05")})
	return t.Render() + "\n"
}

func renderDimensions(r *analysis.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("dimensions")
	t.AppendHeader(table.Row{"dimension", "score", "weight"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	d, w := r.Score.Dimensions, r.Score.Weights
	rows := []struct {
		name   string
		score  float64
		weight float64
	}{
		{"trend", d.Trend, w.Trend},
		{"momentum", d.Momentum, w.Momentum},
		{"volume", d.Volume, w.Volume},
		{"volatility", d.Volatility, w.Volatility},
		{"support/resistance", d.SupportResistance, w.SupportResistance},
		{"advanced", d.Advanced, w.Advanced},
	}
	for _, row := range rows {
		t.AppendRow(table.Row{row.name, fmt.Sprintf("%+.1f", row.score), fmt.Sprintf("%.0f%%", row.weight*100)})
	}
	t.AppendFooter(table.Row{"base", fmt.Sprintf("%+.1f", r.Score.BaseScore), fmt.Sprintf("x%.2f", r.Score.RiskFactor)})
	return t.Render() + "\n"
}

func renderCycle(c *cycle.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("cycle")
	appended := false
	if c.DominantCycle != nil {
		strength := 0.0
		if c.CycleStrength != nil {
			strength = *c.CycleStrength
		}
		t.AppendRow(table.Row{"dominant", fmt.Sprintf("%d bars (corr %.2f)", *c.DominantCycle, strength)})
		appended = true
	}
	if c.FFTCycle != nil {
		t.AppendRow(table.Row{"fft", fmt.Sprintf("%d bars", *c.FFTCycle)})
		appended = true
	}
	if c.Quality != "" {
		t.AppendRow(table.Row{"quality", c.Quality})
		appended = true
	}
	if c.Phase != nil {
		t.AppendRow(table.Row{"phase", c.Phase.Tag})
		if c.Phase.Suggestion != "" {
			t.AppendRow(table.Row{"suggestion", c.Phase.Suggestion})
		}
		appended = true
	}
	if c.Sideways != nil {
		t.AppendRow(table.Row{"sideways", fmt.Sprintf("%v (strength %.2f, %d/5)",
			c.Sideways.IsSideways, c.Sideways.Strength, c.Sideways.ConditionsMet)})
		appended = true
	}
	if n := len(c.Periods); n > 0 {
		last := c.Periods[n-1]
		t.AppendRow(table.Row{"current period", fmt.Sprintf("%s, %d bars, %.1f%%", last.Type, last.Duration, last.AmplitudePct)})
		appended = true
	}
	if !appended {
		return ""
	}
	return t.Render() + "\n"
}

func renderExitPlan(r *analysis.Report) string {
	p := r.ExitPlan
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("exit plan (%s)", p.Basis)
	t.AppendRow(table.Row{"stop loss", fmt.Sprintf("%.4f", p.StopLoss)})
	t.AppendRow(table.Row{"take profit", fmt.Sprintf("%.4f", p.TakeProfit)})
	t.AppendRow(table.Row{"risk/reward", fmt.Sprintf("%.2f", p.RiskRewardRatio)})
	t.AppendRow(table.Row{"position size", fmt.Sprintf("%d", p.PositionSize)})
	return t.Render() + "\n"
}

// RenderBatch 渲染批量结果的排行表，按综合分从高到低。
func RenderBatch(reports map[string]*analysis.Report) string {
	if len(reports) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("ranking")
	t.AppendHeader(table.Row{"symbol", "score", "action", "risk"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.SortBy([]table.SortBy{{Number: 2, Mode: table.DscNumeric}})
	for sym, r := range reports {
		t.AppendRow(table.Row{sym, r.Score.Total, r.Score.ActionCode, r.Risk.Level})
	}
	return t.Render() + "\n"
}
