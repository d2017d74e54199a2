package cycle

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// estimatePeriodicity 用自相关找主导周期。弱相关（<0.3）的极大值
// 视为拟合噪声直接丢弃；另在短/中/长三个频带内各报告至多两个局部峰。
func estimatePeriodicity(rep *Report, closes []float64) {
	n := len(closes)
	maxLag := n / 2
	if maxLag > maxCycleLag {
		maxLag = maxCycleLag
	}
	if maxLag < minCycleLag {
		return
	}

	m := seriesMean(closes)
	x := make([]float64, n)
	for i, v := range closes {
		x[i] = v - m
	}

	corr := make([]float64, maxLag+1) // corr[L] = 自相关系数，corr[0] 未用
	for lag := 1; lag <= maxLag; lag++ {
		a := x[:n-lag]
		b := x[lag:]
		c := stat.Correlation(a, b, nil)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			c = 0
		}
		corr[lag] = c
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minCycleLag; lag <= maxLag; lag++ {
		if corr[lag] > bestCorr {
			bestLag, bestCorr = lag, corr[lag]
		}
	}
	if bestLag > 0 && bestCorr >= minCorr {
		rep.DominantCycle = &bestLag
		strength := round4(bestCorr)
		rep.CycleStrength = &strength
	}

	rep.ShortCycles = bandPeaks(corr, 5, 15)
	rep.MediumCycles = bandPeaks(corr, 15, 30)
	rep.LongCycles = bandPeaks(corr, 30, maxCycleLag)
}

// bandPeaks 在自相关曲线 [lo,hi] 频带内找局部峰（高度≥0.2、间距≥5），
// 按强度取前两个，输出按滞后升序。
func bandPeaks(corr []float64, lo, hi int) []BandPeak {
	if hi >= len(corr) {
		hi = len(corr) - 1
	}
	if hi <= lo {
		return nil
	}
	found := make([]BandPeak, 0)
	for lag := lo; lag <= hi; lag++ {
		if lag <= 1 || lag >= len(corr)-1 {
			continue
		}
		if corr[lag] < minBandCorr {
			continue
		}
		if corr[lag] > corr[lag-1] && corr[lag] >= corr[lag+1] {
			found = append(found, BandPeak{Lag: lag, Strength: round4(corr[lag])})
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(a, b int) bool { return found[a].Strength > found[b].Strength })
	kept := make([]BandPeak, 0, maxBandPeaks)
	for _, p := range found {
		ok := true
		for _, k := range kept {
			if abs(p.Lag-k.Lag) < minBandDist {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, p)
			if len(kept) == maxBandPeaks {
				break
			}
		}
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].Lag < kept[b].Lag })
	return kept
}

// estimateFFT 在一阶差分（去趋势）上取功率谱主频并换算为周期。
// 与自相关互为独立佐证，不做合并。
func estimateFFT(rep *Report, closes []float64) {
	n := len(closes)
	if n < minSamples {
		return
	}
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = closes[i] - closes[i-1]
	}
	fft := fourier.NewFFT(len(diff))
	coeffs := fft.Coefficients(nil, diff)

	var total float64
	bestK, bestPower := 0, 0.0
	for k := 1; k < len(coeffs); k++ {
		p := real(coeffs[k])*real(coeffs[k]) + imag(coeffs[k])*imag(coeffs[k])
		total += p
		if p > bestPower {
			bestK, bestPower = k, p
		}
	}
	if bestK == 0 || total <= 0 {
		return
	}
	period := int(math.Round(float64(len(diff)) / float64(bestK)))
	if period < minCycleLag || period > maxCycleLag {
		return
	}
	frac := round4(bestPower / total)
	rep.FFTCycle = &period
	rep.FFTStrength = &frac
}

// gradeQuality 对可用的强度信号求均值并分档。
func gradeQuality(rep *Report) {
	var sum float64
	var cnt int
	if rep.CycleStrength != nil {
		sum += *rep.CycleStrength
		cnt++
	}
	if rep.FFTStrength != nil {
		sum += *rep.FFTStrength
		cnt++
	}
	if cnt == 0 {
		rep.Quality = "none"
		return
	}
	avg := sum / float64(cnt)
	switch {
	case avg >= 0.6:
		rep.Quality = "strong"
	case avg >= 0.4:
		rep.Quality = "moderate"
	case avg >= 0.2:
		rep.Quality = "weak"
	default:
		rep.Quality = "none"
	}
}
