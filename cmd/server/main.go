package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pulse/internal/analysis"
	"pulse/internal/config"
	"pulse/internal/gateway/binance"
	"pulse/internal/gateway/provider"
	"pulse/internal/logger"
	"pulse/internal/store"
	"pulse/internal/transport/httpapi"
	"pulse/internal/transport/ws"
)

func main() {
	cfgPath := flag.String("config", "config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)
	logger.EnableLLMPayload(cfg.Log.LLMPayload)

	source, err := binance.New(binance.Config{
		RESTBaseURL: cfg.Binance.RESTBaseURL,
		APIKey:      cfg.Binance.APIKey,
		APISecret:   cfg.Binance.APISecret,
		HTTPTimeout: cfg.BinanceTimeout(),
	})
	if err != nil {
		logger.Errorf("初始化行情源失败: %v", err)
		os.Exit(1)
	}
	defer source.Close()

	db, err := store.OpenAnalysisStore(cfg.Store.Path)
	if err != nil {
		logger.Errorf("打开存储 %s 失败: %v", cfg.Store.Path, err)
		os.Exit(1)
	}
	defer db.Close()

	svc, err := analysis.NewService(analysis.ServiceParams{
		Source:       source,
		Cache:        db,
		HistoryLimit: cfg.Analysis.HistoryLimit,
		CacheTTL:     cfg.CacheTTL(),
		AccountValue: cfg.Analysis.AccountValue,
		RiskPct:      cfg.Analysis.RiskPct,
		Concurrency:  cfg.Analysis.Concurrency,
	})
	if err != nil {
		logger.Errorf("初始化分析服务失败: %v", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	httpapi.NewRouter(svc, source).Register(api)

	if cfg.Provider.APIKey != "" {
		chatHandler := ws.NewChatHandler(ws.ChatParams{
			Streamer: &provider.AnthropicClient{
				BaseURL:    cfg.Provider.BaseURL,
				APIKey:     cfg.Provider.APIKey,
				Model:      cfg.Provider.Model,
				Timeout:    cfg.ProviderTimeout(),
				MaxRetries: cfg.Provider.MaxRetries,
			},
			ChatStore: db,
			StartTags: cfg.Chat.ThinkingStartTags,
			EndTags:   cfg.Chat.ThinkingEndTags,
			MaxTokens: cfg.Chat.MaxTokens,
		})
		chatHandler.Register(router.Group("/ws"))
	} else {
		logger.Warnf("未配置 provider api key，对话接口不可用")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server: %v", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
