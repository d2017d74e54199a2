package indicator

import (
	"math"
	"testing"

	"pulse/internal/market"
)

// syntheticCandles 生成带轻微波动的上行序列，足够触发大部分指标。
func syntheticCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + 0.4*float64(i) + 2*math.Sin(float64(i)/3)
		out[i] = market.Candle{
			OpenTime:  int64(i+1) * 86400000,
			CloseTime: int64(i+1)*86400000 + 86399999,
			Open:      base - 0.2,
			High:      base + 1,
			Low:       base - 1,
			Close:     base,
			Volume:    1000 + 10*float64(i),
		}
	}
	return out
}

func TestComputeAllInputErrors(t *testing.T) {
	if _, err := ComputeAll(nil, Settings{}); err == nil {
		t.Error("empty input accepted, want error")
	}

	bad := syntheticCandles(30)
	bad[5].Close = math.NaN()
	if _, err := ComputeAll(bad, Settings{}); err == nil {
		t.Error("NaN close accepted, want error")
	}
}

// 样本不足的指标必须缺席（nil），而不是带着垃圾值出现。
func TestComputeAllMinSampleGates(t *testing.T) {
	snap, err := ComputeAll(syntheticCandles(10), Settings{})
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if snap.Price == nil || snap.ChangePct == nil {
		t.Error("price and change must always be present")
	}
	if snap.MA5 == nil {
		t.Error("MA5 = nil with 10 candles, want value")
	}
	for name, p := range map[string]*float64{
		"RSI":      snap.RSI,
		"MACD":     snap.MACD,
		"Boll":     snap.BollUpper,
		"ATR":      snap.ATR,
		"ADX":      snap.ADX,
		"StochRSI": snap.StochRSIK,
		"MA20":     snap.MA20,
	} {
		if p != nil {
			t.Errorf("%s = %v with 10 candles, want nil", name, *p)
		}
	}
	if snap.IchimokuTenkan != nil || snap.IchimokuCloud != nil {
		t.Error("Ichimoku present with 10 candles, want nil")
	}
}

func TestComputeAllMidHistoryGates(t *testing.T) {
	// 40 根：MACD/ADX/StochRSI 过线，Ichimoku（52）仍缺席
	snap, err := ComputeAll(syntheticCandles(40), Settings{})
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if snap.MACD == nil || snap.ADX == nil || snap.StochRSIK == nil {
		t.Error("MACD/ADX/StochRSI missing with 40 candles")
	}
	if snap.IchimokuTenkan != nil {
		t.Error("Ichimoku present with 40 candles, want nil until 52")
	}
	if snap.MA50 != nil {
		t.Error("MA50 present with 40 candles, want nil")
	}
}

func TestComputeAllFullHistory(t *testing.T) {
	candles := syntheticCandles(120)
	snap, err := ComputeAll(candles, Settings{Symbol: "BTCUSDT", Interval: "1d"})
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if snap.Symbol != "BTCUSDT" || snap.Count != 120 {
		t.Errorf("snapshot identity wrong: %q %d", snap.Symbol, snap.Count)
	}

	for name, p := range map[string]*float64{
		"RSI": snap.RSI, "MACD": snap.MACD, "BollUpper": snap.BollUpper,
		"KDJK": snap.KDJK, "CCI": snap.CCI, "ATR": snap.ATR,
		"ADX": snap.ADX, "SAR": snap.SAR, "SuperTrend": snap.SuperTrend,
		"IchimokuTenkan": snap.IchimokuTenkan, "VWAP": snap.VWAP,
		"POC": snap.POC, "High20": snap.High20, "Low20": snap.Low20,
		"Volatility20": snap.Volatility20, "MA60": snap.MA60,
		"PredictedChange": snap.PredictedChange,
	} {
		if p == nil {
			t.Errorf("%s = nil with 120 candles, want value", name)
		}
	}

	if rsi, _ := Float(snap.RSI); rsi < 0 || rsi > 100 {
		t.Errorf("RSI = %v out of [0, 100]", rsi)
	}
	// 持续上行序列的均线应当多头排列
	ma5, _ := Float(snap.MA5)
	ma20, _ := Float(snap.MA20)
	ma60, _ := Float(snap.MA60)
	if !(ma5 > ma20 && ma20 > ma60) {
		t.Errorf("uptrend MAs not ordered: ma5=%v ma20=%v ma60=%v", ma5, ma20, ma60)
	}
	if dir, ok := Str(snap.TrendDirection); !ok || dir != "up" {
		t.Errorf("TrendDirection = %q, want up", dir)
	}
	if boll, _ := Float(snap.BollUpper); boll <= ma20 {
		t.Errorf("BollUpper %v should sit above the 20-bar mean %v", boll, ma20)
	}
	price, _ := Float(snap.Price)
	if hi, _ := Float(snap.High20); hi < price {
		t.Errorf("High20 = %v below the last close %v", hi, price)
	}
}

func TestComputeAllFlatSeriesStaysFinite(t *testing.T) {
	candles := make([]market.Candle, 60)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: int64(i+1) * 86400000,
			Open:     100, High: 100, Low: 100, Close: 100,
			Volume: 1000,
		}
	}
	snap, err := ComputeAll(candles, Settings{})
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	// 零振幅输入不得产生 NaN/Inf：Williams %R 退化为 -50
	if wr, ok := Float(snap.WilliamsR); !ok || wr != -50 {
		t.Errorf("WilliamsR = %v on a flat series, want -50", wr)
	}
	for name, p := range map[string]*float64{
		"Price": snap.Price, "ATR": snap.ATR, "RSI": snap.RSI,
		"Volatility20": snap.Volatility20,
	} {
		if p == nil {
			continue
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			t.Errorf("%s = %v on a flat series, want finite", name, *p)
		}
	}
	if vol, ok := Float(snap.Volatility20); ok && vol != 0 {
		t.Errorf("Volatility20 = %v on a flat series, want 0", vol)
	}
}

func TestComputeStreaks(t *testing.T) {
	candles := syntheticCandles(30)
	// 第 26 根明确收涨，末尾三根连跌
	candles[26].Close = candles[25].Close + 2
	candles[26].High = candles[26].Close + 1
	candles[26].Low = candles[26].Close - 1
	for i := 27; i < 30; i++ {
		candles[i].Close = candles[i-1].Close - 1
		candles[i].Low = candles[i].Close - 1
		candles[i].High = candles[i].Close + 1
	}
	snap, err := ComputeAll(candles, Settings{})
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if snap.ConsecutiveDown == nil || *snap.ConsecutiveDown != 3 {
		t.Errorf("ConsecutiveDown = %v, want 3", snap.ConsecutiveDown)
	}
}
