package store

import (
	"context"
	"errors"
	"sync"

	"pulse/internal/market"
)

// CandleStore 抽象：读写 symbol+interval 的 K 线序列。
type CandleStore interface {
	Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error
	Get(ctx context.Context, symbol, interval string) ([]market.Candle, error)
}

// MemoryCandleStore 内存实现，进程内缓存最近拉取的行情。
type MemoryCandleStore struct {
	mu   sync.RWMutex
	data map[string][]market.Candle
}

func NewMemoryCandleStore() *MemoryCandleStore {
	return &MemoryCandleStore{data: make(map[string][]market.Candle)}
}

func key(symbol, interval string) string { return symbol + "@" + interval }

// Put 追加并裁剪；同一根 K 线的增量更新覆盖末尾而非重复追加。
func (s *MemoryCandleStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 756
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, interval)
	cur := s.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.data[k] = cur
	return nil
}

// Get 返回拷贝。
func (s *MemoryCandleStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, interval)]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out, nil
}
