package indicator

// Snapshot 是一次指标计算的全量输出。标量一律用指针表达“可能缺失”：
// 样本不足时字段保持 nil，调用方据此把缺失视为中性贡献，而不是零值。
type Snapshot struct {
	Symbol   string `json:"symbol,omitempty"`
	Interval string `json:"interval,omitempty"`
	Count    int    `json:"count"`

	Price     *float64 `json:"price,omitempty"`
	ChangePct *float64 `json:"change_pct,omitempty"`

	MA5  *float64 `json:"ma5,omitempty"`
	MA10 *float64 `json:"ma10,omitempty"`
	MA20 *float64 `json:"ma20,omitempty"`
	MA50 *float64 `json:"ma50,omitempty"`
	MA60 *float64 `json:"ma60,omitempty"`

	RSI        *float64 `json:"rsi,omitempty"`
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_histogram,omitempty"`

	BollUpper  *float64 `json:"boll_upper,omitempty"`
	BollMiddle *float64 `json:"boll_middle,omitempty"`
	BollLower  *float64 `json:"boll_lower,omitempty"`

	KDJK *float64 `json:"kdj_k,omitempty"`
	KDJD *float64 `json:"kdj_d,omitempty"`
	KDJJ *float64 `json:"kdj_j,omitempty"`

	CCI       *float64 `json:"cci,omitempty"`
	StochRSIK *float64 `json:"stochrsi_k,omitempty"`
	StochRSID *float64 `json:"stochrsi_d,omitempty"`

	ATR    *float64 `json:"atr,omitempty"`
	ATRPct *float64 `json:"atr_pct,omitempty"`

	WilliamsR *float64 `json:"williams_r,omitempty"`

	OBV      *float64 `json:"obv,omitempty"`
	OBVTrend *string  `json:"obv_trend,omitempty"` // up/down/flat

	ADX     *float64 `json:"adx,omitempty"`
	PlusDI  *float64 `json:"plus_di,omitempty"`
	MinusDI *float64 `json:"minus_di,omitempty"`

	SAR        *float64 `json:"sar,omitempty"`
	SARSignal  *string  `json:"sar_signal,omitempty"` // buy/sell
	SARFlipped *bool    `json:"sar_flipped,omitempty"`

	SuperTrend       *float64 `json:"supertrend,omitempty"`
	SuperTrendSignal *string  `json:"supertrend_signal,omitempty"` // up/down

	IchimokuTenkan *float64 `json:"ichimoku_tenkan,omitempty"`
	IchimokuKijun  *float64 `json:"ichimoku_kijun,omitempty"`
	IchimokuSpanA  *float64 `json:"ichimoku_span_a,omitempty"`
	IchimokuSpanB  *float64 `json:"ichimoku_span_b,omitempty"`
	IchimokuCloud  *string  `json:"ichimoku_cloud,omitempty"` // above/inside/below

	VWAP *float64 `json:"vwap,omitempty"`

	POC           *float64 `json:"poc,omitempty"`
	ValueAreaHigh *float64 `json:"value_area_high,omitempty"`
	ValueAreaLow  *float64 `json:"value_area_low,omitempty"`

	High20 *float64 `json:"high_20d,omitempty"`
	Low20  *float64 `json:"low_20d,omitempty"`

	FibLevels  map[string]float64 `json:"fib_levels,omitempty"`
	PivotPoint *float64           `json:"pivot_point,omitempty"`
	PivotR1    *float64           `json:"pivot_r1,omitempty"`
	PivotS1    *float64           `json:"pivot_s1,omitempty"`

	Volatility20 *float64 `json:"volatility_20d,omitempty"` // 百分比
	VolumeRatio  *float64 `json:"volume_ratio,omitempty"`
	PriceVolume  *string  `json:"price_volume,omitempty"` // bullish_confirm/bearish_confirm/divergence/neutral

	ConsecutiveUp   *int `json:"consecutive_up,omitempty"`
	ConsecutiveDown *int `json:"consecutive_down,omitempty"`

	TrendDirection *string  `json:"trend_direction,omitempty"` // up/down/sideways
	TrendStrength  *float64 `json:"trend_strength,omitempty"`  // 0-100

	PredictedChange      *float64 `json:"predicted_change,omitempty"` // 百分比
	PredictionConfidence *float64 `json:"prediction_confidence,omitempty"`

	// Series 保存全量历史，供图表输出；键名与标量字段的 json 名一致。
	Series map[string][]float64 `json:"series,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Float 读取可缺失标量：第二返回值为 false 表示该指标未计算。
func Float(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Str 读取可缺失的状态标签。
func Str(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func ptr(v float64) *float64  { return &v }
func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
