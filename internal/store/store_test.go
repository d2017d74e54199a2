package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pulse/internal/market"
)

func TestMemoryCandleStorePutGet(t *testing.T) {
	s := NewMemoryCandleStore()
	ctx := context.Background()

	batch := []market.Candle{
		{OpenTime: 1000, Close: 1},
		{OpenTime: 2000, Close: 2},
	}
	if err := s.Put(ctx, "BTCUSDT", "1h", batch, 10); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[1].Close != 2 {
		t.Errorf("Get = %+v, want the two stored candles", got)
	}

	// 同一根 K 线的更新覆盖末尾而不是重复追加
	if err := s.Put(ctx, "BTCUSDT", "1h", []market.Candle{{OpenTime: 2000, Close: 2.5}}, 10); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	got, _ = s.Get(ctx, "BTCUSDT", "1h")
	if len(got) != 2 || got[1].Close != 2.5 {
		t.Errorf("after update Get = %+v, want overwritten last candle", got)
	}

	if err := s.Put(ctx, "", "1h", batch, 10); err == nil {
		t.Error("empty symbol accepted, want error")
	}
}

func TestMemoryCandleStoreTrim(t *testing.T) {
	s := NewMemoryCandleStore()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		c := market.Candle{OpenTime: int64(i+1) * 1000, Close: float64(i)}
		if err := s.Put(ctx, "ETHUSDT", "1h", []market.Candle{c}, 5); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	got, _ := s.Get(ctx, "ETHUSDT", "1h")
	if len(got) != 5 {
		t.Fatalf("len = %d after trim, want 5", len(got))
	}
	if got[0].OpenTime != 4000 || got[4].OpenTime != 8000 {
		t.Errorf("trim kept wrong window: first %d last %d", got[0].OpenTime, got[4].OpenTime)
	}
}

func TestMemoryCandleStoreGetCopies(t *testing.T) {
	s := NewMemoryCandleStore()
	ctx := context.Background()
	_ = s.Put(ctx, "BTCUSDT", "1h", []market.Candle{{OpenTime: 1000, Close: 1}}, 10)

	got, _ := s.Get(ctx, "BTCUSDT", "1h")
	got[0].Close = 99
	again, _ := s.Get(ctx, "BTCUSDT", "1h")
	if again[0].Close != 1 {
		t.Error("Get exposed internal slice, mutation leaked back into the store")
	}
}

func openTempStore(t *testing.T) *AnalysisStore {
	t.Helper()
	s, err := OpenAnalysisStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenAnalysisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAnalysisCacheRoundTrip(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetCachedAnalysis(ctx, "BTCUSDT|1d", time.Minute); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v, want miss", ok, err)
	}

	if err := s.SaveAnalysis(ctx, "BTCUSDT|1d", `{"total":42}`); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	payload, ok, err := s.GetCachedAnalysis(ctx, "BTCUSDT|1d", time.Minute)
	if err != nil || !ok {
		t.Fatalf("cache hit failed: ok=%v err=%v", ok, err)
	}
	if payload != `{"total":42}` {
		t.Errorf("payload = %q", payload)
	}

	// 覆盖写入取代旧值
	if err := s.SaveAnalysis(ctx, "BTCUSDT|1d", `{"total":7}`); err != nil {
		t.Fatalf("SaveAnalysis overwrite: %v", err)
	}
	payload, _, _ = s.GetCachedAnalysis(ctx, "BTCUSDT|1d", time.Minute)
	if payload != `{"total":7}` {
		t.Errorf("after overwrite payload = %q", payload)
	}

	// TTL 为极小值时视为过期
	if _, ok, _ := s.GetCachedAnalysis(ctx, "BTCUSDT|1d", time.Nanosecond); ok {
		t.Error("nanosecond TTL still served the cached entry")
	}
}

func TestChatMessageLog(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	for i, msg := range []ChatMessage{
		{SessionID: "s1", Role: "user", Content: "hi"},
		{SessionID: "s1", Role: "assistant", Content: "hello", Thinking: "greet back"},
		{SessionID: "s2", Role: "user", Content: "other session"},
	} {
		if err := s.AppendChatMessage(ctx, msg); err != nil {
			t.Fatalf("AppendChatMessage %d: %v", i, err)
		}
	}

	msgs, err := s.RecentChatMessages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentChatMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("order wrong: %q then %q, want user then assistant", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Thinking != "greet back" {
		t.Errorf("thinking not persisted: %q", msgs[1].Thinking)
	}

	// limit 截断时保留最新的并按时间升序返回
	msgs, _ = s.RecentChatMessages(ctx, "s1", 1)
	if len(msgs) != 1 || msgs[0].Role != "assistant" {
		t.Errorf("limit=1 returned %+v, want only the latest message", msgs)
	}

	if err := s.AppendChatMessage(ctx, ChatMessage{Role: "user", Content: "no session"}); err == nil {
		t.Error("message without session accepted, want error")
	}
}
