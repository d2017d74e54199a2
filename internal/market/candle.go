package market

import (
	"math"
	"time"
)

// Candle 单根 K 线（时间戳为毫秒）。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades,omitempty"`
}

// Series 是一次分析所需的只读列视图，从 Candle 切片一次性抽取。
type Series struct {
	Closes     []float64
	Highs      []float64
	Lows       []float64
	Opens      []float64
	Volumes    []float64
	Timestamps []string
}

// ExtractSeries 把 K 线拆成按列的数组，供指标与周期计算使用。
func ExtractSeries(candles []Candle) Series {
	n := len(candles)
	s := Series{
		Closes:     make([]float64, n),
		Highs:      make([]float64, n),
		Lows:       make([]float64, n),
		Opens:      make([]float64, n),
		Volumes:    make([]float64, n),
		Timestamps: make([]string, n),
	}
	for i, c := range candles {
		s.Closes[i] = c.Close
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Opens[i] = c.Open
		s.Volumes[i] = c.Volume
		ts := c.CloseTime
		if ts <= 0 {
			ts = c.OpenTime
		}
		if ts > 0 {
			s.Timestamps[i] = time.UnixMilli(ts).UTC().Format("2006-01-02")
		}
	}
	return s
}

// Validate 检查序列是否可用于分析：时间升序、价格有限且非负。
func Validate(candles []Candle) bool {
	var prev int64
	for _, c := range candles {
		if c.OpenTime > 0 {
			if prev > 0 && c.OpenTime <= prev {
				return false
			}
			prev = c.OpenTime
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return false
			}
		}
	}
	return true
}
