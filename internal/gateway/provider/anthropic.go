package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pulse/internal/logger"
)

// AnthropicClient 流式对接 Anthropic Messages API。
type AnthropicClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

// Stream 发起流式请求，onChunk 按到达顺序收到文本增量。
// onChunk 返回错误会立即中断流（例如下游连接已断开）。
func (c *AnthropicClient) Stream(ctx context.Context, payload ChatPayload, onChunk func(string) error) error {
	ctx = ensureCtx(ctx)
	url := c.messagesURL()
	body := c.buildBody(payload)
	logger.LogLLMPayload(c.Model, string(body))

	httpc := &http.Client{Timeout: c.ensureTimeout()}
	maxRetries := normalizeRetries(c.MaxRetries)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[AI] POST %s headers=%v", url, redactHeaders(c.headers()))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		for k, v := range c.headers() {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode/100 == 2 {
			return c.consumeSSE(resp, onChunk)
		}

		msg := parseAPIError(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			time.Sleep(parseRetryAfter(resp.Header.Get("Retry-After"), attempt))
			continue
		}
		break
	}
	return lastErr
}

// consumeSSE 解析 Anthropic 的 SSE 流，只取 text_delta / thinking_delta
// 的文本增量。思考标签由上层切分器处理，这里原样透传。
func (c *AnthropicClient) consumeSSE(resp *http.Response, onChunk func(string) error) error {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var ev struct {
			Type  string `json:"type"`
			Delta struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				Thinking string `json:"thinking"`
			} `json:"delta"`
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			logger.Debugf("[AI] skip malformed SSE event: %v", err)
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			text := ev.Delta.Text
			if text == "" {
				text = ev.Delta.Thinking
			}
			if text != "" {
				if err := onChunk(text); err != nil {
					return err
				}
			}
		case "error":
			return fmt.Errorf("stream error: %s", ev.Error.Message)
		case "message_stop":
			return nil
		}
	}
	return scanner.Err()
}

func (c *AnthropicClient) buildBody(payload ChatPayload) []byte {
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model": c.Model,
		"messages": []map[string]any{
			{"role": "user", "content": payload.User},
		},
		"max_tokens": maxTokens,
		"stream":     true,
	}
	if strings.TrimSpace(payload.System) != "" {
		body["system"] = payload.System
	}
	b, _ := json.Marshal(body)
	return b
}

func (c *AnthropicClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		// 流式请求留足时间
		return 5 * time.Minute
	}
	return c.Timeout
}

func (c *AnthropicClient) messagesURL() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.anthropic.com/v1"
	}
	url = strings.TrimSuffix(url, "/messages")
	return url + "/messages"
}

func (c *AnthropicClient) headers() map[string]string {
	out := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/event-stream",
	}
	if c.APIKey != "" {
		out["x-api-key"] = c.APIKey
	}
	out["anthropic-version"] = "2023-06-01"
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}

func parseAPIError(resp *http.Response) string {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil && strings.TrimSpace(eresp.Error.Message) != "" {
		return eresp.Error.Message
	}
	return resp.Status
}
