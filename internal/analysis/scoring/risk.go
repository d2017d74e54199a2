package scoring

import (
	"fmt"
	"math"
	"strings"

	"pulse/internal/analysis/indicator"
)

// RiskAssessment is an additive point system: each stress factor adds points,
// the sum maps onto five tiers.
type RiskAssessment struct {
	Level   string   `json:"level"`
	Score   int      `json:"score"`
	Factors []string `json:"factors,omitempty"`
}

// ExitPlan packages stop-loss, take-profit and position sizing. It rides
// alongside the composite score but is not part of it.
type ExitPlan struct {
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	PositionSize    int     `json:"position_size"`
	Basis           string  `json:"basis"` // atr / support_resistance / fixed_pct
}

// AssessRisk sums stress points across volatility, momentum extremes, streaks,
// range proximity and trend quality. When no input is available at all the
// level defaults to medium: with nothing to judge, neither calm nor stress can
// be claimed.
func (s *Scorer) AssessRisk(snap *indicator.Snapshot) RiskAssessment {
	if snap == nil {
		snap = &indicator.Snapshot{}
	}
	points := 0
	evaluated := 0
	factors := make([]string, 0, 8)
	add := func(p int, reason string) {
		points += p
		factors = append(factors, reason)
	}

	if vol, ok := indicator.Float(snap.Volatility20); ok {
		evaluated++
		switch {
		case vol >= 5:
			add(30, fmt.Sprintf("volatility %.1f%% above 5%%", vol))
		case vol >= 3:
			add(20, fmt.Sprintf("volatility %.1f%% above 3%%", vol))
		case vol >= 2:
			add(10, fmt.Sprintf("volatility %.1f%% above 2%%", vol))
		}
	}

	if rsi, ok := indicator.Float(snap.RSI); ok {
		evaluated++
		if rsi < 15 || rsi > 85 {
			add(20, fmt.Sprintf("RSI %.0f at an extreme", rsi))
		}
	}

	if snap.ConsecutiveUp != nil {
		evaluated++
		if d := *snap.ConsecutiveUp; d >= 7 {
			add(25, fmt.Sprintf("%d consecutive up days", d))
		} else if d >= 5 {
			add(15, fmt.Sprintf("%d consecutive up days", d))
		}
	}
	if snap.ConsecutiveDown != nil {
		evaluated++
		if d := *snap.ConsecutiveDown; d >= 7 {
			add(25, fmt.Sprintf("%d consecutive down days", d))
		} else if d >= 5 {
			add(15, fmt.Sprintf("%d consecutive down days", d))
		}
	}

	price, hasPrice := indicator.Float(snap.Price)
	if low20, ok := indicator.Float(snap.Low20); ok && hasPrice && low20 > 0 {
		evaluated++
		if math.Abs(price-low20)/low20 < 0.02 {
			add(15, "price within 2% of 20d support")
		}
	}
	if high20, ok := indicator.Float(snap.High20); ok && hasPrice && high20 > 0 {
		evaluated++
		if math.Abs(high20-price)/high20 < 0.02 {
			add(15, "price within 2% of 20d resistance")
		}
	}

	if strength, ok := indicator.Float(snap.TrendStrength); ok {
		evaluated++
		if strength < 15 {
			add(10, "trend strength very low")
		}
	}

	if tag, ok := indicator.Str(snap.PriceVolume); ok {
		evaluated++
		if tag == "divergence" {
			add(15, "volume/price divergence")
		}
	}

	if adx, ok := indicator.Float(snap.ADX); ok {
		evaluated++
		if adx > 60 {
			add(15, fmt.Sprintf("ADX %.0f overheated", adx))
		} else if adx < 20 {
			add(10, fmt.Sprintf("ADX %.0f trendless", adx))
		}
	}

	if evaluated == 0 {
		return RiskAssessment{Level: "medium", Score: 0}
	}

	level := "very_low"
	switch {
	case points >= 70:
		level = "very_high"
	case points >= 50:
		level = "high"
	case points >= 30:
		level = "medium"
	case points >= 15:
		level = "low"
	}
	return RiskAssessment{Level: level, Score: points, Factors: factors}
}

func riskFactor(level string) float64 {
	switch level {
	case "very_low":
		return 1.15
	case "low":
		return 1.08
	case "high":
		return 0.85
	case "very_high":
		return 0.70
	default:
		return 1.0
	}
}

func positionMultiplier(level string) float64 {
	switch level {
	case "very_low":
		return 1.5
	case "low":
		return 1.25
	case "high":
		return 0.75
	case "very_high":
		return 0.5
	default:
		return 1.0
	}
}

// StopLossTakeProfit derives exit levels for the given action. ATR bounds are
// preferred, 20d support/resistance is the fallback, flat percentages the last
// resort. Sizing risks accountValue*riskPct between entry and stop, then
// scales by the risk tier.
func (s *Scorer) StopLossTakeProfit(snap *indicator.Snapshot, action string, accountValue, riskPct float64) (ExitPlan, error) {
	if snap == nil {
		return ExitPlan{}, fmt.Errorf("nil snapshot")
	}
	entry, ok := indicator.Float(snap.Price)
	if !ok || entry <= 0 {
		return ExitPlan{}, fmt.Errorf("no entry price available")
	}
	short := strings.Contains(action, "sell")

	stopMult, targetMult := 2.0, 3.5
	if vol, okVol := indicator.Float(snap.Volatility20); okVol {
		switch {
		case vol >= 3:
			stopMult, targetMult = 2.5, 4.0
		case vol < 1.5:
			stopMult, targetMult = 1.5, 3.0
		}
	}

	var stop, target float64
	basis := ""
	atr, hasATR := indicator.Float(snap.ATR)
	low20, hasLow := indicator.Float(snap.Low20)
	high20, hasHigh := indicator.Float(snap.High20)
	switch {
	case hasATR && atr > 0:
		basis = "atr"
		if short {
			stop = entry + stopMult*atr
			target = entry - targetMult*atr
		} else {
			stop = entry - stopMult*atr
			target = entry + targetMult*atr
		}
	case hasLow && hasHigh && low20 > 0 && high20 > low20:
		basis = "support_resistance"
		if short {
			stop = high20 * 1.01
			target = low20 * 0.99
		} else {
			stop = low20 * 0.99
			target = high20 * 1.01
		}
	default:
		basis = "fixed_pct"
		if short {
			stop = entry * 1.05
			target = entry * 0.90
		} else {
			stop = entry * 0.95
			target = entry * 1.10
		}
	}

	riskPerUnit := math.Abs(entry - stop)
	plan := ExitPlan{
		StopLoss:   round2(stop),
		TakeProfit: round2(target),
		Basis:      basis,
	}
	if riskPerUnit > 0 {
		plan.RiskRewardRatio = round2(math.Abs(target-entry) / riskPerUnit)
		if accountValue > 0 && riskPct > 0 {
			size := math.Floor(accountValue * riskPct / riskPerUnit)
			size = math.Floor(size * positionMultiplier(s.AssessRisk(snap).Level))
			plan.PositionSize = int(size)
		}
	}
	return plan, nil
}
