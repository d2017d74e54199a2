package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"pulse/internal/market"
)

// Settings 控制各指标的窗口参数，零值使用默认。
type Settings struct {
	Symbol   string
	Interval string
	RSI      RSISettings
	KDJ      KDJSettings
	BollN    int
	ATRN     int
	ADXN     int
	CCIN     int
}

type RSISettings struct {
	Period     int     `json:"period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty"`
}

type KDJSettings struct {
	Period  int `json:"period,omitempty"`
	SmoothK int `json:"smooth_k,omitempty"`
	SmoothD int `json:"smooth_d,omitempty"`
}

// 各指标的最小样本量。低于阈值时对应字段保持 nil，绝不回填零值。
const (
	minRSI        = 14
	minBoll       = 20
	minMACD       = 35
	minKDJ        = 9
	minATR        = 14
	minOBVTrend   = 20
	minADX        = 28
	minSAR        = 10
	minSuperTrend = 11
	minStochRSI   = 28
	minVolProfile = 20
	minIchimoku   = 52
	minPrediction = 20
	minCCI        = 14
)

func (s Settings) withDefaults() Settings {
	out := s
	if out.RSI.Period <= 0 {
		out.RSI.Period = 14
	}
	if out.RSI.Overbought == 0 {
		out.RSI.Overbought = 70
	}
	if out.RSI.Oversold == 0 {
		out.RSI.Oversold = 30
	}
	if out.KDJ.Period <= 0 {
		out.KDJ.Period = 9
	}
	if out.KDJ.SmoothK <= 0 {
		out.KDJ.SmoothK = 3
	}
	if out.KDJ.SmoothD <= 0 {
		out.KDJ.SmoothD = 3
	}
	if out.BollN <= 0 {
		out.BollN = 20
	}
	if out.ATRN <= 0 {
		out.ATRN = 14
	}
	if out.ADXN <= 0 {
		out.ADXN = 14
	}
	if out.CCIN <= 0 {
		out.CCIN = 14
	}
	return out
}

// ComputeAll 对一段 K 线计算全量指标快照。只有空输入或非法序列才返回错误；
// 样本不足只会让对应字段缺席。
func ComputeAll(candles []market.Candle, cfg Settings) (*Snapshot, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles")
	}
	if !market.Validate(candles) {
		return nil, fmt.Errorf("invalid candle series")
	}
	cfg = cfg.withDefaults()
	ser := market.ExtractSeries(candles)
	closes, highs, lows, volumes := ser.Closes, ser.Highs, ser.Lows, ser.Volumes
	n := len(closes)

	snap := &Snapshot{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Count:    n,
		Series:   make(map[string][]float64),
	}
	lastClose := closes[n-1]
	snap.Price = ptr(lastClose)
	if n >= 2 && closes[n-2] != 0 {
		snap.ChangePct = ptr(round4((lastClose - closes[n-2]) / closes[n-2] * 100))
	}

	computeMAs(snap, closes)

	if n >= minRSI+1 {
		rsi := sanitizeSeries(talib.Rsi(closes, cfg.RSI.Period))
		snap.RSI = ptr(lastValid(rsi))
		snap.Series["rsi"] = rsi
	}

	if n >= minMACD {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		snap.MACD = ptr(lastValid(sanitizeSeries(macd)))
		snap.MACDSignal = ptr(lastValid(sanitizeSeries(signal)))
		histSeries := sanitizeSeries(hist)
		snap.MACDHist = ptr(lastValid(histSeries))
		snap.Series["macd_histogram"] = histSeries
	}

	if n >= minBoll {
		upper, middle, lower := talib.BBands(closes, cfg.BollN, 2.0, 2.0, talib.SMA)
		snap.BollUpper = ptr(lastValid(sanitizeSeries(upper)))
		snap.BollMiddle = ptr(lastValid(sanitizeSeries(middle)))
		snap.BollLower = ptr(lastValid(sanitizeSeries(lower)))
		snap.Series["boll_upper"] = sanitizeSeries(upper)
		snap.Series["boll_lower"] = sanitizeSeries(lower)
	}

	if n >= minKDJ {
		k, d := talib.Stoch(highs, lows, closes, cfg.KDJ.Period, cfg.KDJ.SmoothK, talib.SMA, cfg.KDJ.SmoothD, talib.SMA)
		kv := lastValid(sanitizeSeries(k))
		dv := lastValid(sanitizeSeries(d))
		snap.KDJK = ptr(round4(kv))
		snap.KDJD = ptr(round4(dv))
		snap.KDJJ = ptr(round4(3*kv - 2*dv))
	}

	if n >= minCCI+1 {
		snap.CCI = ptr(lastValid(sanitizeSeries(talib.Cci(highs, lows, closes, cfg.CCIN))))
	}

	if n >= minStochRSI {
		k, d := talib.StochRsi(closes, cfg.RSI.Period, 5, 3, talib.SMA)
		snap.StochRSIK = ptr(round4(lastValid(sanitizeSeries(k)) * 100))
		snap.StochRSID = ptr(round4(lastValid(sanitizeSeries(d)) * 100))
	}

	if n >= minATR+1 {
		atrSeries := sanitizeSeries(talib.Atr(highs, lows, closes, cfg.ATRN))
		atr := lastValid(atrSeries)
		snap.ATR = ptr(round4(atr))
		if lastClose > 0 {
			snap.ATRPct = ptr(round4(atr / lastClose * 100))
		}
		snap.Series["atr"] = atrSeries

		snap.WilliamsR = ptr(round4(computeWilliamsR(highs, lows, closes, cfg.ATRN)))
	}

	computeOBV(snap, closes, volumes)

	if n >= minADX {
		adx := lastValid(sanitizeSeries(talib.Adx(highs, lows, closes, cfg.ADXN)))
		plus := lastValid(sanitizeSeries(talib.PlusDI(highs, lows, closes, cfg.ADXN)))
		minus := lastValid(sanitizeSeries(talib.MinusDI(highs, lows, closes, cfg.ADXN)))
		snap.ADX = ptr(round4(adx))
		snap.PlusDI = ptr(round4(plus))
		snap.MinusDI = ptr(round4(minus))
	}

	if n >= minSAR {
		computeSAR(snap, highs, lows, closes)
	}

	if n >= minSuperTrend {
		computeSuperTrend(snap, highs, lows, closes, 10, 3.0)
	}

	if n >= minIchimoku {
		computeIchimoku(snap, highs, lows, closes)
	}

	computeVWAP(snap, highs, lows, closes, volumes)

	if n >= minVolProfile {
		computeVolumeProfile(snap, closes, volumes, minVolProfile)
	}

	if n >= 20 {
		h20, l20 := windowHighLow(highs, lows, 20)
		snap.High20 = ptr(round4(h20))
		snap.Low20 = ptr(round4(l20))
	}

	computeFibPivot(snap, highs, lows, closes)
	computeVolatility(snap, closes)
	computeVolumeContext(snap, closes, volumes)
	computeStreaks(snap, closes)
	computeTrend(snap, closes)
	if n >= minPrediction {
		computePrediction(snap, closes)
	}

	return snap, nil
}

func computeMAs(snap *Snapshot, closes []float64) {
	n := len(closes)
	set := func(dst **float64, w int) {
		if n < w {
			return
		}
		series := sanitizeSeries(talib.Sma(closes, w))
		*dst = ptr(lastValid(series))
		snap.Series[fmt.Sprintf("ma%d", w)] = series
	}
	set(&snap.MA5, 5)
	set(&snap.MA10, 10)
	set(&snap.MA20, 20)
	set(&snap.MA50, 50)
	set(&snap.MA60, 60)
}

// computeWilliamsR 自算最后一个值以便处理 high==low 的退化输入（返回 -50）。
func computeWilliamsR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	hh := highs[n-period]
	ll := lows[n-period]
	for i := n - period + 1; i < n; i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	if hh == ll {
		return -50
	}
	return (hh - closes[n-1]) / (hh - ll) * -100
}

func computeOBV(snap *Snapshot, closes, volumes []float64) {
	n := len(closes)
	if n < 2 || allZero(volumes) {
		return
	}
	obv := sanitizeSeries(talib.Obv(closes, volumes))
	if len(obv) == 0 {
		return
	}
	snap.OBV = ptr(obv[len(obv)-1])
	if n < minOBVTrend || len(obv) < minOBVTrend {
		return
	}
	recent := obv[len(obv)-minOBVTrend:]
	slope := linregSlope(recent)
	scale := math.Abs(recent[0])
	if scale == 0 {
		scale = 1
	}
	switch {
	case slope > scale*1e-4:
		snap.OBVTrend = strPtr("up")
	case slope < -scale*1e-4:
		snap.OBVTrend = strPtr("down")
	default:
		snap.OBVTrend = strPtr("flat")
	}
}

func computeSAR(snap *Snapshot, highs, lows, closes []float64) {
	sar := talib.Sar(highs, lows, 0.02, 0.2)
	n := len(closes)
	cur := sar[n-1]
	if math.IsNaN(cur) || cur == 0 {
		return
	}
	snap.SAR = ptr(round4(cur))
	signal := "sell"
	if closes[n-1] > cur {
		signal = "buy"
	}
	snap.SARSignal = strPtr(signal)
	if n >= 2 && !math.IsNaN(sar[n-2]) && sar[n-2] != 0 {
		prevBuy := closes[n-2] > sar[n-2]
		snap.SARFlipped = boolPtr(prevBuy != (signal == "buy"))
	}
}

func computeVWAP(snap *Snapshot, highs, lows, closes, volumes []float64) {
	var pv, vol float64
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		pv += typical * volumes[i]
		vol += volumes[i]
	}
	if vol > 0 {
		snap.VWAP = ptr(round4(pv / vol))
	}
}

func computeFibPivot(snap *Snapshot, highs, lows, closes []float64) {
	n := len(closes)
	window := 60
	if window > n {
		window = n
	}
	hh, ll := windowHighLow(highs, lows, window)
	if hh > ll {
		span := hh - ll
		snap.FibLevels = map[string]float64{
			"0.236": round4(hh - span*0.236),
			"0.382": round4(hh - span*0.382),
			"0.5":   round4(hh - span*0.5),
			"0.618": round4(hh - span*0.618),
			"0.786": round4(hh - span*0.786),
		}
	}
	p := (highs[n-1] + lows[n-1] + closes[n-1]) / 3
	snap.PivotPoint = ptr(round4(p))
	snap.PivotR1 = ptr(round4(2*p - lows[n-1]))
	snap.PivotS1 = ptr(round4(2*p - highs[n-1]))
}

// computeVolatility 写入近 20 根收益率标准差（百分比口径，未年化）。
func computeVolatility(snap *Snapshot, closes []float64) {
	n := len(closes)
	if n < 21 {
		return
	}
	rets := make([]float64, 0, 20)
	for i := n - 20; i < n; i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(rets) < 2 {
		return
	}
	snap.Volatility20 = ptr(round4(stddev(rets) * 100))
}

func computeVolumeContext(snap *Snapshot, closes, volumes []float64) {
	n := len(volumes)
	if n < 20 || allZero(volumes) {
		return
	}
	var sum float64
	for i := n - 20; i < n-1; i++ {
		sum += volumes[i]
	}
	avg := sum / 19
	if avg <= 0 {
		return
	}
	ratio := volumes[n-1] / avg
	snap.VolumeRatio = ptr(round4(ratio))

	priceUp := closes[n-1] > closes[n-2]
	tag := "neutral"
	switch {
	case priceUp && ratio > 1.2:
		tag = "bullish_confirm"
	case !priceUp && ratio > 1.2:
		tag = "bearish_confirm"
	case ratio < 0.8:
		tag = "divergence"
	}
	snap.PriceVolume = strPtr(tag)
}

func computeStreaks(snap *Snapshot, closes []float64) {
	n := len(closes)
	if n < 2 {
		return
	}
	up, down := 0, 0
	for i := n - 1; i > 0; i-- {
		if closes[i] > closes[i-1] {
			if down > 0 {
				break
			}
			up++
		} else if closes[i] < closes[i-1] {
			if up > 0 {
				break
			}
			down++
		} else {
			break
		}
	}
	snap.ConsecutiveUp = intPtr(up)
	snap.ConsecutiveDown = intPtr(down)
}

// computeTrend 汇总方向与强度：方向看价格与均线的相对位置，
// 强度优先采用 ADX，缺失时退化为 20 根净变动的放大值。
func computeTrend(snap *Snapshot, closes []float64) {
	n := len(closes)
	if n < 20 {
		return
	}
	last := closes[n-1]
	dir := "sideways"
	if ma20, ok := Float(snap.MA20); ok {
		ma5, hasMA5 := Float(snap.MA5)
		switch {
		case last > ma20 && hasMA5 && ma5 > ma20:
			dir = "up"
		case last < ma20 && hasMA5 && ma5 < ma20:
			dir = "down"
		}
	}
	snap.TrendDirection = strPtr(dir)

	var strength float64
	if adx, ok := Float(snap.ADX); ok {
		strength = math.Min(adx*2, 100)
	} else if closes[n-20] != 0 {
		net := math.Abs((last - closes[n-20]) / closes[n-20] * 100)
		strength = math.Min(net*5, 100)
	}
	snap.TrendStrength = ptr(round4(strength))
}
