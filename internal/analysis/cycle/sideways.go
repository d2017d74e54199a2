package cycle

import (
	"fmt"
	"math"
)

// voteSideways 五条件投票判定横盘。a+c 同时成立时即便均线尚未粘合
// 也直接判横盘：区间震荡初期的常见形态。
func voteSideways(rep *Report, closes, highs, lows []float64) {
	n := len(closes)
	if n < 20 {
		return
	}

	hh, ll := highs[n-20], lows[n-20]
	for i := n - 19; i < n; i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	if ll <= 0 {
		return
	}
	rangePct := (hh - ll) / ll * 100

	reasons := make([]string, 0, 5)
	met := 0

	condA := rangePct < 15
	if condA {
		met++
		reasons = append(reasons, fmt.Sprintf("20-bar amplitude %.1f%% below 15%%", rangePct))
	}

	if maConverged(closes) {
		met++
		reasons = append(reasons, "short and long moving averages converged")
	}

	netPct := math.Abs(closes[n-1]-closes[n-20]) / closes[n-20] * 100
	condC := netPct < 5
	if condC {
		met++
		reasons = append(reasons, fmt.Sprintf("20-bar net change %.1f%% below 5%%", netPct))
	}

	if rangePct >= 3 && rangePct <= 25 {
		met++
		reasons = append(reasons, "20-bar high-low range in the 3%-25% band")
	}

	similarity, hasSim := crossPeriodSimilarity(rep.Periods)
	if !hasSim && countCompleted(rep.Periods) == 0 {
		// 完全无拐点的序列没有任何反向证据，对称性记满分
		similarity = 1
	}
	if hasSim && similarity >= 0.7 {
		met++
		reasons = append(reasons, "rise and decline amplitudes are symmetric")
	}

	verdict := &SidewaysVerdict{
		IsSideways:    met >= 3 || (condA && condC),
		ConditionsMet: met,
		Strength:      round4(0.7*float64(met)/5 + 0.3*similarity),
	}
	if verdict.IsSideways {
		verdict.Reasons = reasons
	}
	rep.Sideways = verdict
}

// maConverged 检查 MA5/MA10/MA20/MA60 是否在容差带内互相贴合
// （2%/3%/5%，由短到长逐级放宽）。
func maConverged(closes []float64) bool {
	if len(closes) < 60 {
		return false
	}
	ma := func(w int) float64 {
		var sum float64
		for i := len(closes) - w; i < len(closes); i++ {
			sum += closes[i]
		}
		return sum / float64(w)
	}
	ma5, ma10, ma20, ma60 := ma(5), ma(10), ma(20), ma(60)
	if ma10 == 0 || ma20 == 0 || ma60 == 0 {
		return false
	}
	return math.Abs(ma5-ma10)/ma10 < 0.02 &&
		math.Abs(ma10-ma20)/ma20 < 0.03 &&
		math.Abs(ma20-ma60)/ma60 < 0.05
}

func countCompleted(periods []Period) int {
	n := 0
	for _, p := range periods {
		if !p.IsCurrent {
			n++
		}
	}
	return n
}

// crossPeriodSimilarity 比较已完成区段中涨跌两侧的平均振幅，
// 差异 30% 以内视为对称。至少需要 4 个已完成区段。
func crossPeriodSimilarity(periods []Period) (float64, bool) {
	var riseSum, declineSum float64
	var riseCnt, declineCnt, completed int
	for _, p := range periods {
		if p.IsCurrent {
			continue
		}
		completed++
		switch p.Type {
		case Rise:
			riseSum += math.Abs(p.AmplitudePct)
			riseCnt++
		case Decline:
			declineSum += math.Abs(p.AmplitudePct)
			declineCnt++
		}
	}
	if completed < 4 || riseCnt == 0 || declineCnt == 0 {
		return 0, false
	}
	riseAvg := riseSum / float64(riseCnt)
	declineAvg := declineSum / float64(declineCnt)
	top := math.Max(riseAvg, declineAvg)
	if top == 0 {
		return 0, false
	}
	diff := math.Abs(riseAvg-declineAvg) / top
	return round4(math.Max(0, 1-diff)), true
}
