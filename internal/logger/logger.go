package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level 日志级别。
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu      sync.RWMutex
	current = LevelInfo
	std     = log.New(os.Stderr, "", log.LstdFlags)

	// llmPayloadEnabled 控制是否落盘模型请求体（体积大，默认关闭）。
	llmPayloadEnabled = false
)

// SetLevel 按名称设置全局级别，未知名称回退 info。
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		current = LevelDebug
	case "warn", "warning":
		current = LevelWarn
	case "error":
		current = LevelError
	default:
		current = LevelInfo
	}
}

// EnableLLMPayload 打开模型请求体日志。
func EnableLLMPayload(on bool) {
	mu.Lock()
	defer mu.Unlock()
	llmPayloadEnabled = on
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= current
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		std.Output(2, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		std.Output(2, "[INFO] "+fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		std.Output(2, "[WARN] "+fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		std.Output(2, "[ERROR] "+fmt.Sprintf(format, args...))
	}
}

// LogLLMPayload 记录发往模型的请求体，便于排查流式输出异常。
func LogLLMPayload(model, body string) {
	mu.RLock()
	on := llmPayloadEnabled
	mu.RUnlock()
	if !on {
		return
	}
	if len(body) > 4096 {
		body = body[:4096] + "...(truncated)"
	}
	std.Output(2, fmt.Sprintf("[LLM] model=%s payload=%s", model, body))
}
