package market

import "context"

// SourceStats 记录数据源运行期的一些指标。
type SourceStats struct {
	Requests  int
	Errors    int
	LastError string
}

// Source 统一对接外部行情供应商。核心引擎本身不做 I/O，
// 历史数据的获取全部经由该接口注入。
type Source interface {
	// FetchHistory 拉取最近 limit 根 K 线并按时间升序返回。
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	// Stats 返回当前运行状态（若 source 不支持则返回零值）。
	Stats() SourceStats
	// Close 释放底层资源。
	Close() error
}
