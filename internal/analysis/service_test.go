package analysis

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"pulse/internal/market"
)

// fakeSource 以内存数据伪造行情源，并记录调用次数。
type fakeSource struct {
	candles map[string][]market.Candle
	calls   int
	stats   market.SourceStats
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol, _ string, _ int) ([]market.Candle, error) {
	f.calls++
	cs, ok := f.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return cs, nil
}

func (f *fakeSource) Stats() market.SourceStats { return f.stats }
func (f *fakeSource) Close() error              { return nil }

func trendingCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + 0.3*float64(i) + 3*math.Sin(float64(i)/6)
		out[i] = market.Candle{
			OpenTime:  int64(i+1) * 86400000,
			CloseTime: int64(i+1)*86400000 + 86399999,
			Open:      base - 0.1,
			High:      base + 1.2,
			Low:       base - 1.2,
			Close:     base,
			Volume:    1500 + 5*float64(i),
		}
	}
	return out
}

func newTestService(t *testing.T, src market.Source) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Source: src})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceAnalyze(t *testing.T) {
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": trendingCandles(120),
	}}
	svc := newTestService(t, src)

	// symbol 大小写和空白在入口处归一化
	rep, err := svc.Analyze(context.Background(), " btcusdt ", "1d")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Symbol != "BTCUSDT" || rep.Interval != "1d" {
		t.Errorf("report identity = %q %q", rep.Symbol, rep.Interval)
	}
	if rep.TraceID == "" {
		t.Error("TraceID is empty")
	}
	if rep.Indicators == nil || rep.Indicators.Price == nil {
		t.Fatal("indicators missing from report")
	}
	if rep.Cycle == nil {
		t.Error("cycle report missing")
	}
	if rep.Score.ActionCode == "" || rep.Risk.Level == "" {
		t.Errorf("score/risk incomplete: %+v %+v", rep.Score, rep.Risk)
	}
	if rep.Candles != 120 {
		t.Errorf("Candles = %d, want 120", rep.Candles)
	}
}

func TestServiceAnalyzeErrors(t *testing.T) {
	src := &fakeSource{candles: map[string][]market.Candle{}}
	svc := newTestService(t, src)

	if _, err := svc.Analyze(context.Background(), "", "1d"); err == nil {
		t.Error("empty symbol accepted, want error")
	}
	if _, err := svc.Analyze(context.Background(), "NOPE", "1d"); err == nil {
		t.Error("unknown symbol accepted, want error")
	}
}

// 批量分析：失败的标的被跳过，成功的照常返回。
func TestServiceAnalyzeBatchPartialFailure(t *testing.T) {
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": trendingCandles(120),
		"ETHUSDT": trendingCandles(90),
	}}
	svc := newTestService(t, src)

	reports, err := svc.AnalyzeBatch(context.Background(), []string{"BTCUSDT", "MISSING", "ethusdt", ""}, "1d")
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		if reports[sym] == nil {
			t.Errorf("report for %s missing", sym)
		}
	}
	if _, ok := reports["MISSING"]; ok {
		t.Error("failed symbol leaked into results")
	}
}

func TestServiceAnalyzeCandlesDirect(t *testing.T) {
	svc := newTestService(t, &fakeSource{})
	rep, err := svc.AnalyzeCandles("SOLUSDT", "4h", trendingCandles(80))
	if err != nil {
		t.Fatalf("AnalyzeCandles: %v", err)
	}
	if rep.Symbol != "SOLUSDT" || rep.Candles != 80 {
		t.Errorf("report = %q %d", rep.Symbol, rep.Candles)
	}
}

// 行情源失效后，近期成功拉取过的标的仍能用进程内缓存出报告。
func TestServiceFallsBackToCachedCandles(t *testing.T) {
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": trendingCandles(120),
	}}
	svc, err := NewService(ServiceParams{Source: src, HistoryLimit: 100, CacheTTL: time.Nanosecond})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Analyze(context.Background(), "BTCUSDT", "1d"); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	src.candles = nil // 行情源开始报错
	rep, err := svc.Analyze(context.Background(), "BTCUSDT", "1d")
	if err != nil {
		t.Fatalf("fallback analyze: %v", err)
	}
	if rep.Candles != 100 {
		t.Errorf("Candles = %d, want the 100 cached bars", rep.Candles)
	}

	// 没有任何缓存的标的依旧报错
	if _, err := svc.Analyze(context.Background(), "ETHUSDT", "1d"); err == nil {
		t.Error("uncached symbol with a dead source succeeded, want error")
	}
}

func TestNewServiceRequiresSource(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Error("NewService without a source succeeded, want error")
	}
}
