package scoring

import "pulse/internal/analysis/indicator"

// Weights holds the relative weight of each scoring dimension.
// The base set sums to 1.0 and is renormalized after every regime adjustment.
type Weights struct {
	Trend             float64 `json:"trend"`
	Momentum          float64 `json:"momentum"`
	Volume            float64 `json:"volume"`
	Volatility        float64 `json:"volatility"`
	SupportResistance float64 `json:"support_resistance"`
	Advanced          float64 `json:"advanced"`
}

// DefaultWeights returns the base allocation.
func DefaultWeights() Weights {
	return Weights{
		Trend:             0.25,
		Momentum:          0.20,
		Volume:            0.15,
		Volatility:        0.10,
		SupportResistance: 0.15,
		Advanced:          0.15,
	}
}

// adapt applies multiplicative regime adjustments and renormalizes:
// high volatility de-emphasizes trend following, strong trends de-emphasize
// mean-reversion style S/R, unusual volume amplifies the volume dimension.
func (w Weights) adapt(snap *indicator.Snapshot) Weights {
	out := w

	if vol, ok := indicator.Float(snap.Volatility20); ok {
		if vol > 4 {
			out.Volatility *= 1.5
			out.Trend *= 0.8
			out.Momentum *= 0.9
		} else if vol < 1.5 {
			out.Momentum *= 1.3
			out.Volatility *= 0.7
		}
	}

	strength, hasStrength := indicator.Float(snap.TrendStrength)
	adx, hasADX := indicator.Float(snap.ADX)
	switch {
	case (hasStrength && strength > 70) || (hasADX && adx > 40):
		out.Trend *= 1.3
		out.Momentum *= 1.2
		out.SupportResistance *= 0.8
	case (hasStrength && strength < 30) || (hasADX && adx < 20):
		out.SupportResistance *= 1.4
		out.Trend *= 0.7
	}

	if ratio, ok := indicator.Float(snap.VolumeRatio); ok {
		if ratio > 2.0 {
			out.Volume *= 1.5
		} else if ratio < 0.5 {
			out.Volume *= 0.6
		}
	}

	return out.normalize()
}

func (w Weights) normalize() Weights {
	sum := w.Trend + w.Momentum + w.Volume + w.Volatility + w.SupportResistance + w.Advanced
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Trend:             w.Trend / sum,
		Momentum:          w.Momentum / sum,
		Volume:            w.Volume / sum,
		Volatility:        w.Volatility / sum,
		SupportResistance: w.SupportResistance / sum,
		Advanced:          w.Advanced / sum,
	}
}

// Sum is used by tests to assert normalization.
func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.Volume + w.Volatility + w.SupportResistance + w.Advanced
}
