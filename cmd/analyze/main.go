package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pulse/internal/analysis"
	"pulse/internal/config"
	"pulse/internal/gateway/binance"
	"pulse/internal/logger"
	"pulse/internal/market"
	"pulse/internal/report"
)

func main() {
	cfgPath := flag.String("config", "config.toml", "配置文件路径")
	symbols := flag.String("symbols", "", "逗号分隔的交易对，缺省用配置里的列表")
	interval := flag.String("interval", "", "K 线周期，例如 1d / 4h / 1h")
	asJSON := flag.Bool("json", false, "输出原始 JSON 而非表格")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	iv := cfg.Analysis.Interval
	if *interval != "" {
		iv = *interval
	}

	source, err := binance.New(binance.Config{
		RESTBaseURL: cfg.Binance.RESTBaseURL,
		APIKey:      cfg.Binance.APIKey,
		APISecret:   cfg.Binance.APISecret,
		HTTPTimeout: cfg.BinanceTimeout(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化行情源失败: %v\n", err)
		os.Exit(1)
	}
	defer source.Close()

	svc, err := analysis.NewService(analysis.ServiceParams{
		Source:       source,
		HistoryLimit: cfg.Analysis.HistoryLimit,
		AccountValue: cfg.Analysis.AccountValue,
		RiskPct:      cfg.Analysis.RiskPct,
		Concurrency:  cfg.Analysis.Concurrency,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化分析服务失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var provider market.SymbolProvider
	switch {
	case strings.TrimSpace(*symbols) != "":
		provider = market.NewStaticSymbolProvider(strings.Split(*symbols, ","))
	case cfg.Analysis.SymbolsAPIURL != "":
		provider = market.NewHTTPSymbolProvider(cfg.Analysis.SymbolsAPIURL)
	default:
		provider = market.NewStaticSymbolProvider(cfg.Analysis.Symbols)
	}
	list, err := provider.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取标的列表失败 (%s): %v\n", provider.Name(), err)
		os.Exit(1)
	}

	reports, err := svc.AnalyzeBatch(ctx, list, iv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "分析失败: %v\n", err)
		os.Exit(1)
	}
	if len(reports) == 0 {
		fmt.Fprintln(os.Stderr, "没有任何标的分析成功")
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			fmt.Fprintf(os.Stderr, "序列化失败: %v\n", err)
			os.Exit(1)
		}
		return
	}

	for _, sym := range list {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if r, ok := reports[sym]; ok {
			fmt.Println(report.Render(r))
		}
	}
	if len(reports) > 1 {
		fmt.Println(report.RenderBatch(reports))
	}
}
