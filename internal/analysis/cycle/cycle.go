package cycle

import (
	"fmt"
	"math"
)

// 周期分析的硬性下限与窗口上限。756 根约等于三个交易年，
// 同时把自相关的 O(n²) 成本限制在可控范围。
const (
	minSamples   = 30
	maxWindow    = 756
	minPeakDist  = 10
	minCycleLag  = 5
	maxCycleLag  = 100
	minCorr      = 0.3
	minBandCorr  = 0.2
	minBandDist  = 5
	maxBandPeaks = 2
)

type PointKind string

const (
	Peak   PointKind = "peak"
	Trough PointKind = "trough"
)

// TurningPoint 滤噪后的局部极值。相邻两点不保证峰谷交替，
// 下游遇到无法构成有效区段的组合时直接跳过即可。
type TurningPoint struct {
	Index int       `json:"index"`
	Kind  PointKind `json:"kind"`
	Price float64   `json:"price"`
}

type PeriodType string

const (
	Rise     PeriodType = "rise"
	Decline  PeriodType = "decline"
	Sideways PeriodType = "sideways"
)

// Period 一段上涨/下跌/横盘区间。
type Period struct {
	PeriodIndex  int        `json:"period_index"`
	Type         PeriodType `json:"cycle_type"`
	StartIndex   int        `json:"start_index"`
	EndIndex     int        `json:"end_index"`
	Duration     int        `json:"duration"`
	LowPrice     float64    `json:"low_price"`
	HighPrice    float64    `json:"high_price"`
	AmplitudePct float64    `json:"amplitude_pct"`
	IsCurrent    bool       `json:"is_current"`
	Description  string     `json:"description,omitempty"`
	StartDate    string     `json:"start_date,omitempty"`
	EndDate      string     `json:"end_date,omitempty"`
}

// BandPeak 自相关曲线某个频带内的局部峰。
type BandPeak struct {
	Lag      int     `json:"lag"`
	Strength float64 `json:"strength"`
}

// Phase 当前所处周期阶段与推算的下一个拐点。
type Phase struct {
	Tag            string   `json:"tag"`
	Suggestion     string   `json:"suggestion"`
	CyclePosition  *float64 `json:"cycle_position,omitempty"`
	DaysToNextTurn *int     `json:"days_to_next_turn,omitempty"`
	NextTurn       string   `json:"next_turn,omitempty"`
}

// SidewaysVerdict 横盘投票结果。
type SidewaysVerdict struct {
	IsSideways    bool     `json:"is_sideways"`
	Strength      float64  `json:"strength"`
	ConditionsMet int      `json:"conditions_met"`
	Reasons       []string `json:"reasons,omitempty"`
}

// Report 周期分析聚合输出。样本不足的子项一律缺席（nil），不会补零。
type Report struct {
	Note          string           `json:"note,omitempty"`
	TurningPoints []TurningPoint   `json:"turning_points,omitempty"`
	Periods       []Period         `json:"cycle_periods,omitempty"`
	DominantCycle *int             `json:"dominant_cycle,omitempty"`
	CycleStrength *float64         `json:"cycle_strength,omitempty"`
	ShortCycles   []BandPeak       `json:"short_cycles,omitempty"`
	MediumCycles  []BandPeak       `json:"medium_cycles,omitempty"`
	LongCycles    []BandPeak       `json:"long_cycles,omitempty"`
	FFTCycle      *int             `json:"fft_cycle,omitempty"`
	FFTStrength   *float64         `json:"fft_strength,omitempty"`
	Quality       string           `json:"cycle_quality,omitempty"`
	Phase         *Phase           `json:"phase,omitempty"`
	Sideways      *SidewaysVerdict `json:"sideways_market,omitempty"`
}

// Analyze 对价格序列做拐点/周期分解。长度不一致或含非法值属于调用方错误；
// 样本少于 30 根返回空报告（周期信息是补充性的，短历史不算失败）。
func Analyze(closes, highs, lows []float64, timestamps []string) (Report, error) {
	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return Report{}, fmt.Errorf("series length mismatch: closes=%d highs=%d lows=%d", n, len(highs), len(lows))
	}
	if timestamps != nil && len(timestamps) != n {
		return Report{}, fmt.Errorf("timestamps length mismatch: %d vs %d", len(timestamps), n)
	}
	for _, v := range closes {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Report{}, fmt.Errorf("invalid close value %v", v)
		}
	}
	if n < minSamples {
		return Report{Note: fmt.Sprintf("need at least %d samples for cycle analysis, got %d", minSamples, n)}, nil
	}

	rep := Report{}
	if n > maxWindow {
		closes = closes[n-maxWindow:]
		highs = highs[n-maxWindow:]
		lows = lows[n-maxWindow:]
		if timestamps != nil {
			timestamps = timestamps[n-maxWindow:]
		}
		rep.Note = fmt.Sprintf("analysis window limited to last %d of %d samples", maxWindow, n)
		n = maxWindow
	}

	points := detectTurningPoints(closes)
	rep.TurningPoints = points
	rep.Periods = buildPeriods(points, closes, highs, lows, timestamps)

	estimatePeriodicity(&rep, closes)
	estimateFFT(&rep, closes)
	gradeQuality(&rep)
	classifyPhase(&rep)
	voteSideways(&rep, closes, highs, lows)

	return rep, nil
}

// detectTurningPoints 在收盘价上找带突出度约束的局部极值。
// 突出度下限取 max(0.08·stdev, 0.02·mean)：相对项压制低波动期的碎峰，
// 绝对项避免高价标的上纯比例阈值过松。
func detectTurningPoints(closes []float64) []TurningPoint {
	m := seriesMean(closes)
	sd := seriesStddev(closes)
	minProminence := math.Max(0.08*sd, 0.02*m)

	peaks := findPeaks(closes, minPeakDist, minProminence)
	neg := make([]float64, len(closes))
	for i, v := range closes {
		neg[i] = -v
	}
	troughs := findPeaks(neg, minPeakDist, minProminence)

	points := make([]TurningPoint, 0, len(peaks)+len(troughs))
	for _, i := range peaks {
		points = append(points, TurningPoint{Index: i, Kind: Peak, Price: closes[i]})
	}
	for _, i := range troughs {
		points = append(points, TurningPoint{Index: i, Kind: Trough, Price: closes[i]})
	}
	sortPointsByIndex(points)
	return points
}

// buildPeriods 把相邻拐点对转成区段。谷→峰为上涨，峰→谷为下跌；
// 同类相邻的拐点对不构成有效区段，跳过。末尾补一段 is_current 区间。
func buildPeriods(points []TurningPoint, closes, highs, lows []float64, timestamps []string) []Period {
	n := len(closes)
	periods := make([]Period, 0, len(points))

	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if a.Kind == b.Kind {
			continue
		}
		p, ok := makePeriod(a.Index, b.Index, a.Kind == Trough, false, closes, highs, lows)
		if !ok {
			continue
		}
		attachDates(&p, timestamps)
		p.PeriodIndex = len(periods)
		periods = append(periods, p)
	}

	if len(points) > 0 {
		last := points[len(points)-1]
		if last.Index < n-1 {
			p, ok := makePeriod(last.Index, n-1, last.Kind == Trough, true, closes, highs, lows)
			if ok {
				attachDates(&p, timestamps)
				p.PeriodIndex = len(periods)
				periods = append(periods, p)
			}
		}
	}
	return periods
}

// makePeriod 以实际区间内的最高高点/最低低点修正边界价格：
// 拐点基于收盘价检出，区间内的真实极值可能略偏离拐点自身。
func makePeriod(start, end int, fromTrough, current bool, closes, highs, lows []float64) (Period, bool) {
	if end <= start {
		return Period{}, false
	}
	hi, lo := highs[start], lows[start]
	for i := start + 1; i <= end; i++ {
		if highs[i] > hi {
			hi = highs[i]
		}
		if lows[i] < lo {
			lo = lows[i]
		}
	}

	var amp float64
	if fromTrough {
		if lo <= 0 {
			return Period{}, false
		}
		amp = (hi - lo) / lo * 100
	} else {
		if hi <= 0 {
			return Period{}, false
		}
		amp = (lo - hi) / hi * 100
	}

	p := Period{
		StartIndex:   start,
		EndIndex:     end,
		Duration:     end - start,
		LowPrice:     round4(lo),
		HighPrice:    round4(hi),
		AmplitudePct: round4(amp),
		IsCurrent:    current,
	}
	p.Type, p.Description = classifyPeriod(amp, p.Duration)
	if current {
		// 开放区间的终点是“今天”，振幅按已定类型重新锚定起点
		if p.Type == Rise {
			amp = (closes[end] - lo) / lo * 100
		} else if p.Type == Decline {
			amp = (closes[end] - hi) / hi * 100
		}
		p.AmplitudePct = round4(amp)
		p.Description += " (in progress)"
	}
	return p, true
}

// classifyPeriod 三档规则：小振幅直接算横盘；中振幅看持续时间，
// 长时间的小幅波动在经济意义上等于原地踏步；大振幅按符号定方向。
func classifyPeriod(amp float64, duration int) (PeriodType, string) {
	abs := math.Abs(amp)
	switch {
	case abs < 5:
		return Sideways, "sideways (narrow)"
	case abs < 15:
		if duration > 30 {
			return Sideways, "sideways (extended)"
		}
		if amp > 0 {
			return Rise, "rise"
		}
		return Decline, "decline"
	default:
		if amp > 0 {
			return Rise, "rise"
		}
		return Decline, "decline"
	}
}

func attachDates(p *Period, timestamps []string) {
	if timestamps == nil {
		return
	}
	if p.StartIndex < len(timestamps) {
		p.StartDate = timestamps[p.StartIndex]
	}
	if p.EndIndex < len(timestamps) {
		p.EndDate = timestamps[p.EndIndex]
	}
}

// classifyPhase 依据当前开放区段给出阶段标签与建议文本，
// 已知主导周期时按半周期对称假设外推下一个拐点（数量级参考，非预测承诺）。
func classifyPhase(rep *Report) {
	var cur *Period
	for i := range rep.Periods {
		if rep.Periods[i].IsCurrent {
			cur = &rep.Periods[i]
		}
	}
	if cur == nil {
		return
	}

	ph := &Phase{}
	switch cur.Type {
	case Sideways:
		ph.Tag = "ranging"
		ph.Suggestion = "ranging market, await breakout"
	case Rise:
		switch {
		case cur.Duration <= 5:
			ph.Tag = "early_rise"
			ph.Suggestion = "early stage of a rise, trend may extend"
		case cur.Duration <= 15:
			ph.Tag = "mid_rise"
			ph.Suggestion = "mid stage of a rise, hold with trailing stops"
		default:
			ph.Tag = "late_rise"
			ph.Suggestion = "late stage of a rise, watch for a top"
		}
		ph.NextTurn = "peak"
	case Decline:
		ph.Tag = "decline"
		ph.Suggestion = "declining phase, wait for a bottoming signal"
		ph.NextTurn = "trough"
	}

	if rep.DominantCycle != nil {
		half := float64(*rep.DominantCycle) / 2
		if half > 0 {
			pos := math.Min(float64(cur.Duration)/half, 1)
			ph.CyclePosition = &pos
			days := int(math.Max(math.Round(half-float64(cur.Duration)), 0))
			ph.DaysToNextTurn = &days
		}
	}
	rep.Phase = ph
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func seriesMean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func seriesStddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := seriesMean(vs)
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}

func sortPointsByIndex(points []TurningPoint) {
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Index < points[j-1].Index; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}
