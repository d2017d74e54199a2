package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pulse/internal/analysis/cycle"
	"pulse/internal/analysis/indicator"
	"pulse/internal/analysis/scoring"
	"pulse/internal/logger"
	"pulse/internal/market"
	"pulse/internal/store"
)

// Report 单个标的的完整分析输出：指标快照、周期分解、综合评分与出场计划。
type Report struct {
	TraceID     string                 `json:"trace_id"`
	Symbol      string                 `json:"symbol"`
	Interval    string                 `json:"interval"`
	GeneratedAt time.Time              `json:"generated_at"`
	Candles     int                    `json:"candles"`
	Indicators  *indicator.Snapshot    `json:"indicators"`
	Cycle       *cycle.Report          `json:"cycle,omitempty"`
	Score       scoring.Breakdown      `json:"score"`
	Risk        scoring.RiskAssessment `json:"risk"`
	ExitPlan    *scoring.ExitPlan      `json:"exit_plan,omitempty"`
}

type Service struct {
	source  market.Source
	cache   *store.AnalysisStore
	candles store.CandleStore
	scorer  *scoring.Scorer

	limit        int
	cacheTTL     time.Duration
	accountValue float64
	riskPct      float64
	concurrency  int
}

type ServiceParams struct {
	Source  market.Source
	Cache   *store.AnalysisStore // 可为 nil，缓存是可选的
	Candles store.CandleStore    // 可为 nil，默认用内存缓存
	Scorer  *scoring.Scorer

	HistoryLimit int
	CacheTTL     time.Duration
	AccountValue float64
	RiskPct      float64
	Concurrency  int
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("market source 未注入")
	}
	scorer := p.Scorer
	if scorer == nil {
		scorer = scoring.New()
	}
	limit := p.HistoryLimit
	if limit <= 0 {
		limit = 500
	}
	ttl := p.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	conc := p.Concurrency
	if conc <= 0 {
		conc = 4
	}
	account := p.AccountValue
	if account <= 0 {
		account = 10000
	}
	riskPct := p.RiskPct
	if riskPct <= 0 || riskPct > 0.2 {
		riskPct = 0.02
	}
	candles := p.Candles
	if candles == nil {
		candles = store.NewMemoryCandleStore()
	}
	return &Service{
		source:       p.Source,
		cache:        p.Cache,
		candles:      candles,
		scorer:       scorer,
		limit:        limit,
		cacheTTL:     ttl,
		accountValue: account,
		riskPct:      riskPct,
		concurrency:  conc,
	}, nil
}

// Analyze 对单个标的跑全量分析。命中缓存时直接返回缓存结果。
func (s *Service) Analyze(ctx context.Context, symbol, interval string) (*Report, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if interval == "" {
		interval = "1d"
	}

	if cached, ok := s.fromCache(ctx, symbol, interval); ok {
		return cached, nil
	}

	candles, err := s.source.FetchHistory(ctx, symbol, interval, s.limit)
	if err != nil {
		// 行情源抖动时退回进程内最近一次成功的数据
		if stale, serr := s.candles.Get(ctx, symbol, interval); serr == nil && len(stale) >= s.limit/2 {
			logger.Warnf("%s %s 行情源不可用，改用 %d 根缓存数据: %v", symbol, interval, len(stale), err)
			candles = stale
		} else {
			return nil, fmt.Errorf("拉取 %s %s 历史失败: %w", symbol, interval, err)
		}
	} else if perr := s.candles.Put(ctx, symbol, interval, candles, s.limit); perr != nil {
		logger.Debugf("%s %s 行情缓存写入失败: %v", symbol, interval, perr)
	}

	report, err := s.analyzeCandles(symbol, interval, candles)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, symbol, interval, report)
	return report, nil
}

// AnalyzeCandles 跳过数据源，直接分析调用方给定的 K 线。不读写缓存。
func (s *Service) AnalyzeCandles(symbol, interval string, candles []market.Candle) (*Report, error) {
	return s.analyzeCandles(strings.ToUpper(strings.TrimSpace(symbol)), interval, candles)
}

func (s *Service) analyzeCandles(symbol, interval string, candles []market.Candle) (*Report, error) {
	snap, err := indicator.ComputeAll(candles, indicator.Settings{Symbol: symbol, Interval: interval})
	if err != nil {
		return nil, fmt.Errorf("计算 %s 指标失败: %w", symbol, err)
	}

	series := market.ExtractSeries(candles)
	report := &Report{
		TraceID:     uuid.NewString(),
		Symbol:      symbol,
		Interval:    interval,
		GeneratedAt: time.Now().UTC(),
		Candles:     len(candles),
		Indicators:  snap,
	}

	cyc, err := cycle.Analyze(series.Closes, series.Highs, series.Lows, series.Timestamps)
	if err != nil {
		// 周期分析的输入和指标共用同一份序列，失败意味着数据本身有问题
		return nil, fmt.Errorf("周期分析 %s 失败: %w", symbol, err)
	}
	report.Cycle = &cyc

	report.Score = s.scorer.Score(snap)
	report.Risk = s.scorer.AssessRisk(snap)

	if plan, err := s.scorer.StopLossTakeProfit(snap, report.Score.ActionCode, s.accountValue, s.riskPct); err == nil {
		report.ExitPlan = &plan
	} else {
		logger.Debugf("trace=%s %s 出场计划不可用: %v", report.TraceID, symbol, err)
	}

	logger.Infof("trace=%s %s %s 分析完成 score=%d action=%s risk=%s",
		report.TraceID, symbol, interval, report.Score.Total, report.Score.ActionCode, report.Risk.Level)
	return report, nil
}

// AnalyzeBatch 并发分析一组标的，单个失败不影响其余。
// 返回的 map 只包含成功的结果。
func (s *Service) AnalyzeBatch(ctx context.Context, symbols []string, interval string) (map[string]*Report, error) {
	results := make(map[string]*Report, len(symbols))
	type keyed struct {
		symbol string
		report *Report
	}
	ch := make(chan keyed, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sym := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		g.Go(func() error {
			r, err := s.Analyze(gctx, sym, interval)
			if err != nil {
				logger.Warnf("%s 批量分析失败: %v", sym, err)
				return nil
			}
			ch <- keyed{symbol: sym, report: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(ch)
	for kv := range ch {
		results[kv.symbol] = kv.report
	}
	return results, nil
}

func cacheKey(symbol, interval string) string {
	return symbol + "|" + interval
}

func (s *Service) fromCache(ctx context.Context, symbol, interval string) (*Report, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, ok, err := s.cache.GetCachedAnalysis(ctx, cacheKey(symbol, interval), s.cacheTTL)
	if err != nil {
		logger.Warnf("读缓存失败 %s %s: %v", symbol, interval, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var r Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		logger.Warnf("缓存内容损坏 %s %s: %v", symbol, interval, err)
		return nil, false
	}
	return &r, true
}

func (s *Service) toCache(ctx context.Context, symbol, interval string, r *Report) {
	if s.cache == nil || r == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.SaveAnalysis(ctx, cacheKey(symbol, interval), string(raw)); err != nil {
		logger.Warnf("写缓存失败 %s %s: %v", symbol, interval, err)
	}
}
