package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config 顶层配置，TOML 格式。所有字段都有可用的默认值，
// 空配置文件也能跑起来。
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Binance  BinanceConfig  `toml:"binance"`
	Provider ProviderConfig `toml:"provider"`
	Analysis AnalysisConfig `toml:"analysis"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
	Chat     ChatConfig     `toml:"chat"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type BinanceConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ProviderConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	MaxRetries     int    `toml:"max_retries"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AnalysisConfig struct {
	Symbols         []string `toml:"symbols"`
	SymbolsAPIURL   string   `toml:"symbols_api_url"`
	Interval        string   `toml:"interval"`
	HistoryLimit    int      `toml:"history_limit"`
	CacheTTLSeconds int      `toml:"cache_ttl_seconds"`
	AccountValue    float64  `toml:"account_value"`
	RiskPct         float64  `toml:"risk_pct"`
	Concurrency     int      `toml:"concurrency"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	LLMPayload bool   `toml:"llm_payload"`
}

// ChatConfig 控制对话流里思考段的标签对与历史长度。
type ChatConfig struct {
	ThinkingStartTags []string `toml:"thinking_start_tags"`
	ThinkingEndTags   []string `toml:"thinking_end_tags"`
	HistoryLimit      int      `toml:"history_limit"`
	MaxTokens         int      `toml:"max_tokens"`
}

// Load 读取 TOML 配置。文件不存在不算错误，返回纯默认配置。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置 %s 失败: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置 %s 失败: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Binance.TimeoutSeconds <= 0 {
		c.Binance.TimeoutSeconds = 15
	}
	if c.Provider.Model == "" {
		c.Provider.Model = "claude-sonnet-4-20250514"
	}
	if c.Provider.MaxRetries < 0 {
		c.Provider.MaxRetries = 0
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 300
	}
	if len(c.Analysis.Symbols) == 0 {
		c.Analysis.Symbols = []string{"BTCUSDT"}
	}
	if c.Analysis.Interval == "" {
		c.Analysis.Interval = "1d"
	}
	if c.Analysis.HistoryLimit <= 0 {
		c.Analysis.HistoryLimit = 500
	}
	if c.Analysis.CacheTTLSeconds <= 0 {
		c.Analysis.CacheTTLSeconds = 300
	}
	if c.Analysis.AccountValue <= 0 {
		c.Analysis.AccountValue = 10000
	}
	if c.Analysis.RiskPct <= 0 {
		c.Analysis.RiskPct = 0.02
	}
	if c.Analysis.Concurrency <= 0 {
		c.Analysis.Concurrency = 4
	}
	if c.Store.Path == "" {
		c.Store.Path = "pulse.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.Chat.ThinkingStartTags) == 0 {
		c.Chat.ThinkingStartTags = []string{"<thinking>"}
		c.Chat.ThinkingEndTags = []string{"</thinking>"}
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 20
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 4096
	}
}

// applyEnv 让密钥类字段可以由环境变量覆盖，避免写进配置文件。
func (c *Config) applyEnv() {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
}

func (c *Config) BinanceTimeout() time.Duration {
	return time.Duration(c.Binance.TimeoutSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Analysis.CacheTTLSeconds) * time.Second
}
