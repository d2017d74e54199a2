package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// computeSuperTrend 经典 SuperTrend：ATR 通道 + 方向翻转保持。
func computeSuperTrend(snap *Snapshot, highs, lows, closes []float64, period int, mult float64) {
	n := len(closes)
	atr := talib.Atr(highs, lows, closes, period)

	upper := make([]float64, n)
	lower := make([]float64, n)
	trend := make([]int, n) // 1 多头, -1 空头
	st := make([]float64, n)

	for i := period; i < n; i++ {
		mid := (highs[i] + lows[i]) / 2
		bu := mid + mult*atr[i]
		bl := mid - mult*atr[i]

		if i == period {
			upper[i], lower[i] = bu, bl
			trend[i] = 1
			st[i] = bl
			continue
		}
		// 通道只收不放，除非价格突破
		if bu < upper[i-1] || closes[i-1] > upper[i-1] {
			upper[i] = bu
		} else {
			upper[i] = upper[i-1]
		}
		if bl > lower[i-1] || closes[i-1] < lower[i-1] {
			lower[i] = bl
		} else {
			lower[i] = lower[i-1]
		}

		switch {
		case trend[i-1] == 1 && closes[i] < lower[i-1]:
			trend[i] = -1
		case trend[i-1] == -1 && closes[i] > upper[i-1]:
			trend[i] = 1
		default:
			trend[i] = trend[i-1]
		}
		if trend[i] == 1 {
			st[i] = lower[i]
		} else {
			st[i] = upper[i]
		}
	}

	last := st[n-1]
	if math.IsNaN(last) || last == 0 {
		return
	}
	snap.SuperTrend = ptr(round4(last))
	if trend[n-1] == 1 {
		snap.SuperTrendSignal = strPtr("up")
	} else {
		snap.SuperTrendSignal = strPtr("down")
	}
}

// computeIchimoku 一目均衡表。云层采用 26 根前的先行带投影到当前位置。
func computeIchimoku(snap *Snapshot, highs, lows, closes []float64) {
	n := len(closes)
	mid := func(end, window int) float64 {
		hh, ll := highs[end-window+1], lows[end-window+1]
		for i := end - window + 2; i <= end; i++ {
			if highs[i] > hh {
				hh = highs[i]
			}
			if lows[i] < ll {
				ll = lows[i]
			}
		}
		return (hh + ll) / 2
	}

	tenkan := mid(n-1, 9)
	kijun := mid(n-1, 26)
	snap.IchimokuTenkan = ptr(round4(tenkan))
	snap.IchimokuKijun = ptr(round4(kijun))

	// 当前价格对应的云层由 26 根前的先行带决定
	anchor := n - 1 - 26
	spanA := (mid(anchor, 9) + mid(anchor, 26)) / 2
	spanB := mid(anchor, 52-26)
	if anchor >= 51 {
		spanB = mid(anchor, 52)
	}
	snap.IchimokuSpanA = ptr(round4(spanA))
	snap.IchimokuSpanB = ptr(round4(spanB))

	top, bottom := spanA, spanB
	if top < bottom {
		top, bottom = bottom, top
	}
	last := closes[n-1]
	switch {
	case last > top:
		snap.IchimokuCloud = strPtr("above")
	case last < bottom:
		snap.IchimokuCloud = strPtr("below")
	default:
		snap.IchimokuCloud = strPtr("inside")
	}
}

// computeVolumeProfile 把近 window 根的成交量按收盘价分箱，
// 输出 POC 与覆盖约 70% 成交量的价值区间。
func computeVolumeProfile(snap *Snapshot, closes, volumes []float64, window int) {
	n := len(closes)
	cs := closes[n-window:]
	vs := volumes[n-window:]

	lo, hi := cs[0], cs[0]
	var total float64
	for i, c := range cs {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
		total += vs[i]
	}
	if hi <= lo || total <= 0 {
		return
	}

	const bins = 10
	binVol := make([]float64, bins)
	width := (hi - lo) / bins
	for i, c := range cs {
		b := int((c - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		binVol[b] += vs[i]
	}

	poc := 0
	for b := range binVol {
		if binVol[b] > binVol[poc] {
			poc = b
		}
	}
	center := func(b int) float64 { return lo + (float64(b)+0.5)*width }
	snap.POC = ptr(round4(center(poc)))

	// 自 POC 向两侧扩张直至覆盖 70% 成交量
	covered := binVol[poc]
	loB, hiB := poc, poc
	for covered < total*0.7 && (loB > 0 || hiB < bins-1) {
		var left, right float64
		if loB > 0 {
			left = binVol[loB-1]
		}
		if hiB < bins-1 {
			right = binVol[hiB+1]
		}
		if right >= left && hiB < bins-1 {
			hiB++
			covered += right
		} else if loB > 0 {
			loB--
			covered += left
		}
	}
	snap.ValueAreaLow = ptr(round4(center(loB)))
	snap.ValueAreaHigh = ptr(round4(center(hiB)))
}

// computePrediction 在近 20 根收盘价上做一元回归，外推一根，
// R² 作为置信度（0-100）。只是一个弱模型，供打分里的 advanced 维度消费。
func computePrediction(snap *Snapshot, closes []float64) {
	n := len(closes)
	window := closes[n-minPrediction:]
	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, window, nil, false)
	r2 := stat.RSquared(xs, window, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return
	}
	last := window[len(window)-1]
	if last == 0 {
		return
	}
	next := alpha + beta*float64(len(window))
	snap.PredictedChange = ptr(round4((next - last) / last * 100))
	snap.PredictionConfidence = ptr(round4(math.Max(0, math.Min(r2, 1)) * 100))
}
