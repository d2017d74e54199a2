package provider

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
)

// ChatPayload 一次对话请求的最小字段集。
type ChatPayload struct {
	System    string
	User      string
	MaxTokens int
}

// ChatStreamer 以流式方式产出模型输出。onChunk 按到达顺序收到
// 原始文本片段（含思考标签原文），由上层的切分器负责分路。
type ChatStreamer interface {
	Stream(ctx context.Context, payload ChatPayload, onChunk func(string) error) error
}

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

func shouldRetry(status int) bool {
	return status == 429 || status/100 == 5
}

func parseRetryAfter(header string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	// 指数退避，封顶 30s
	wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}

func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}
