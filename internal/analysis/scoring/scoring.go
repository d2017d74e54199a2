package scoring

import (
	"math"

	"pulse/internal/analysis/indicator"
)

// Scorer is stateless: all configuration lives in the base weights passed at
// construction, so two scorers never share hidden state.
type Scorer struct {
	base Weights
}

func New() *Scorer {
	return &Scorer{base: DefaultWeights()}
}

func NewWithWeights(w Weights) *Scorer {
	return &Scorer{base: w.normalize()}
}

// Dimensions are the six sub-scores, each bounded to [-100, 100].
type Dimensions struct {
	Trend             float64 `json:"trend"`
	Momentum          float64 `json:"momentum"`
	Volume            float64 `json:"volume"`
	Volatility        float64 `json:"volatility"`
	SupportResistance float64 `json:"support_resistance"`
	Advanced          float64 `json:"advanced"`
}

// Breakdown is the full composite score output. Recomputed on every call,
// nothing is cached between invocations.
type Breakdown struct {
	Total          int        `json:"total"`
	BaseScore      float64    `json:"base_score"`
	RiskFactor     float64    `json:"risk_adjustment_factor"`
	RiskLevel      string     `json:"risk_level"`
	Dimensions     Dimensions `json:"dimensions"`
	Weights        Weights    `json:"weights"`
	Recommendation string     `json:"recommendation"`
	ActionCode     string     `json:"action_code"`
}

// Score combines the six weighted dimensions into a bounded composite.
// A nil or empty snapshot yields a valid zero breakdown, not an error:
// every missing indicator simply contributes nothing.
func (s *Scorer) Score(snap *indicator.Snapshot) Breakdown {
	if snap == nil {
		snap = &indicator.Snapshot{}
	}
	weights := s.base.adapt(snap)

	dims := Dimensions{
		Trend:             clamp100(scoreTrend(snap)),
		Momentum:          clamp100(scoreMomentum(snap)),
		Volume:            clamp100(scoreVolume(snap)),
		Volatility:        clamp100(scoreVolatility(snap)),
		SupportResistance: clamp100(scoreSupportResistance(snap)),
		Advanced:          clamp100(scoreAdvanced(snap)),
	}

	base := dims.Trend*weights.Trend +
		dims.Momentum*weights.Momentum +
		dims.Volume*weights.Volume +
		dims.Volatility*weights.Volatility +
		dims.SupportResistance*weights.SupportResistance +
		dims.Advanced*weights.Advanced

	risk := s.AssessRisk(snap)
	factor := riskFactor(risk.Level)
	total := int(clamp100(math.Round(base * factor)))
	label, action := Recommend(total)

	return Breakdown{
		Total:          total,
		BaseScore:      round2(base),
		RiskFactor:     factor,
		RiskLevel:      risk.Level,
		Dimensions:     dims,
		Weights:        weights,
		Recommendation: label,
		ActionCode:     action,
	}
}

// Recommend maps a composite score onto the seven-tier ladder.
// The mapping is non-decreasing in the score.
func Recommend(total int) (label, action string) {
	switch {
	case total >= 45:
		return "strong buy", "strong_buy"
	case total >= 25:
		return "buy", "buy"
	case total >= 5:
		return "light buy", "buy_light"
	case total >= -5:
		return "hold", "hold"
	case total >= -25:
		return "light sell", "sell_light"
	case total >= -45:
		return "sell", "sell"
	default:
		return "strong sell", "strong_sell"
	}
}

// scoreTrend: 30 MA alignment + 30 ADX direction + 20 SuperTrend + 20 Ichimoku.
func scoreTrend(snap *indicator.Snapshot) float64 {
	var score float64

	price, hasPrice := indicator.Float(snap.Price)
	ma5, hasMA5 := indicator.Float(snap.MA5)
	ma20, hasMA20 := indicator.Float(snap.MA20)
	ma50, hasMA50 := indicator.Float(snap.MA50)
	if hasPrice && hasMA5 && hasMA20 {
		switch {
		case hasMA50 && price > ma5 && ma5 > ma20 && ma20 > ma50:
			score += 30
		case hasMA50 && price < ma5 && ma5 < ma20 && ma20 < ma50:
			score -= 30
		case price > ma5 && ma5 > ma20:
			score += 15
		case price < ma5 && ma5 < ma20:
			score -= 15
		}
	}

	adx, hasADX := indicator.Float(snap.ADX)
	plus, hasPlus := indicator.Float(snap.PlusDI)
	minus, hasMinus := indicator.Float(snap.MinusDI)
	if hasADX && hasPlus && hasMinus {
		mag := math.Min(adx/50, 1) * 30
		if plus >= minus {
			score += mag
		} else {
			score -= mag
		}
	}

	if sig, ok := indicator.Str(snap.SuperTrendSignal); ok {
		if sig == "up" {
			score += 20
		} else {
			score -= 20
		}
	}

	if cloud, ok := indicator.Str(snap.IchimokuCloud); ok {
		switch cloud {
		case "above":
			score += 20
		case "below":
			score -= 20
		}
	}
	return score
}

// scoreMomentum: 25 RSI + 25 MACD + 20 KDJ + 15 CCI + 15 StochRSI.
// The RSI ramp only contributes inside the extreme zones; 30-70 carries no
// information in this model.
func scoreMomentum(snap *indicator.Snapshot) float64 {
	var score float64

	if rsi, ok := indicator.Float(snap.RSI); ok {
		switch {
		case rsi < 30:
			score += 25 * (30 - rsi) / 30
		case rsi > 70:
			score -= 25 * (rsi - 70) / 30
		}
	}

	hist, hasHist := indicator.Float(snap.MACDHist)
	macd, hasMACD := indicator.Float(snap.MACD)
	sig, hasSig := indicator.Float(snap.MACDSignal)
	if hasHist {
		if hist > 0 {
			score += 15
		} else if hist < 0 {
			score -= 15
		}
	}
	if hasMACD && hasSig {
		if macd > sig {
			score += 10
		} else if macd < sig {
			score -= 10
		}
	}

	k, hasK := indicator.Float(snap.KDJK)
	d, hasD := indicator.Float(snap.KDJD)
	if hasK && hasD {
		switch {
		case k < 20 && d < 20:
			score += 20
		case k > 80 && d > 80:
			score -= 20
		case k > d:
			score += 10
		case k < d:
			score -= 10
		}
	}

	if cci, ok := indicator.Float(snap.CCI); ok {
		if cci < -100 {
			score += 15
		} else if cci > 100 {
			score -= 15
		}
	}

	if sk, ok := indicator.Float(snap.StochRSIK); ok {
		if sk < 20 {
			score += 15
		} else if sk > 80 {
			score -= 15
		}
	}
	return score
}

// scoreVolume: 40 price-volume confirmation + 30 OBV agreement +
// 20 volume-profile position + 10 volume ratio on a directional day.
func scoreVolume(snap *indicator.Snapshot) float64 {
	var score float64

	if tag, ok := indicator.Str(snap.PriceVolume); ok {
		switch tag {
		case "bullish_confirm":
			score += 40
		case "bearish_confirm":
			score -= 40
		case "divergence":
			score -= 15
		}
	}

	obvTrend, hasOBV := indicator.Str(snap.OBVTrend)
	dir, hasDir := indicator.Str(snap.TrendDirection)
	if hasOBV && hasDir {
		switch {
		case obvTrend == "up" && dir == "up":
			score += 30
		case obvTrend == "down" && dir == "down":
			score -= 30
		case obvTrend == "up" && dir == "down":
			score += 15 // accumulation against price
		case obvTrend == "down" && dir == "up":
			score -= 15 // distribution under the rally
		}
	}

	price, hasPrice := indicator.Float(snap.Price)
	vah, hasVAH := indicator.Float(snap.ValueAreaHigh)
	val, hasVAL := indicator.Float(snap.ValueAreaLow)
	if hasPrice && hasVAH && hasVAL {
		if price > vah {
			score += 20
		} else if price < val {
			score -= 20
		}
	}

	ratio, hasRatio := indicator.Float(snap.VolumeRatio)
	change, hasChange := indicator.Float(snap.ChangePct)
	if hasRatio && hasChange && ratio > 1.5 {
		if change > 0 {
			score += 10
		} else if change < 0 {
			score -= 10
		}
	}
	return score
}

// scoreVolatility: 50 Bollinger position + 30 ideal-range reward + 20 ATR
// penalty. The ideal-range term is deliberately non-monotonic: both a dead
// market and a wild one score below the 2-3% sweet spot.
func scoreVolatility(snap *indicator.Snapshot) float64 {
	var score float64

	price, hasPrice := indicator.Float(snap.Price)
	upper, hasUpper := indicator.Float(snap.BollUpper)
	lower, hasLower := indicator.Float(snap.BollLower)
	if hasPrice && hasUpper && hasLower && upper > lower {
		pos := (price - lower) / (upper - lower)
		switch {
		case pos <= 0:
			score += 50
		case pos < 0.1:
			score += 50 * (0.1 - pos) / 0.1
		case pos >= 1:
			score -= 50
		case pos > 0.9:
			score -= 50 * (pos - 0.9) / 0.1
		}
	}

	if vol, ok := indicator.Float(snap.Volatility20); ok {
		switch {
		case vol < 1:
			score -= 15
		case vol < 2:
			score += 30 * (vol - 1)
		case vol <= 3:
			score += 30
		case vol <= 5:
			score += 30 * (5 - vol) / 2
		default:
			score -= 30
		}
	}

	if atrPct, ok := indicator.Float(snap.ATRPct); ok {
		if atrPct > 5 {
			score -= 20 * math.Min((atrPct-5)/5, 1)
		}
	}
	return score
}

// scoreSupportResistance: 40 proximity to the 20d low + 30 proximity to the
// 20d high + 30 SAR state. A fresh SAR flip is worth more than a persisting
// signal: the transition is the information.
func scoreSupportResistance(snap *indicator.Snapshot) float64 {
	var score float64

	price, hasPrice := indicator.Float(snap.Price)
	low20, hasLow := indicator.Float(snap.Low20)
	high20, hasHigh := indicator.Float(snap.High20)

	if hasPrice && hasLow && low20 > 0 {
		dist := (price - low20) / low20
		switch {
		case dist < 0:
			score -= 40 // support broken
		case dist < 0.02:
			score += 40 * (0.02 - dist) / 0.02
		}
	}

	if hasPrice && hasHigh && high20 > 0 {
		dist := (high20 - price) / high20
		switch {
		case dist < 0:
			score += 30 // resistance broken
		case dist < 0.02:
			score -= 30 * (0.02 - dist) / 0.02
		}
	}

	if sig, ok := indicator.Str(snap.SARSignal); ok {
		fresh := snap.SARFlipped != nil && *snap.SARFlipped
		mag := 25.0
		if fresh {
			mag = 30.0
		}
		if sig == "buy" {
			score += mag
		} else {
			score -= mag
		}
	}
	return score
}

// scoreAdvanced: 20 model prediction (confidence gated) + 35 trend strength x
// direction + 25 contrarian streak + 10 Williams %R. The streak term scores
// against the run direction, anticipating reversion after long streaks.
func scoreAdvanced(snap *indicator.Snapshot) float64 {
	var score float64

	pred, hasPred := indicator.Float(snap.PredictedChange)
	conf, hasConf := indicator.Float(snap.PredictionConfidence)
	if hasPred && hasConf {
		gate := 0.0
		if conf > 70 {
			gate = 1.0
		} else if conf > 50 {
			gate = 0.5
		}
		if gate > 0 {
			mag := 20 * gate * math.Min(math.Abs(pred)/2, 1)
			if pred > 0 {
				score += mag
			} else if pred < 0 {
				score -= mag
			}
		}
	}

	strength, hasStrength := indicator.Float(snap.TrendStrength)
	dir, hasDir := indicator.Str(snap.TrendDirection)
	if hasStrength && hasDir {
		mag := 35 * strength / 100
		switch dir {
		case "up":
			score += mag
		case "down":
			score -= mag
		}
	}

	if snap.ConsecutiveUp != nil && *snap.ConsecutiveUp > 0 {
		score -= 25 * math.Min(float64(*snap.ConsecutiveUp)/10, 1)
	}
	if snap.ConsecutiveDown != nil && *snap.ConsecutiveDown > 0 {
		score += 25 * math.Min(float64(*snap.ConsecutiveDown)/10, 1)
	}

	if wr, ok := indicator.Float(snap.WilliamsR); ok {
		if wr < -80 {
			score += 10
		} else if wr > -20 {
			score -= 10
		}
	}
	return score
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
