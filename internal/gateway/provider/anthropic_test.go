package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseBody(chunks []string) string {
	var b strings.Builder
	b.WriteString("event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"delta": map[string]any{"type": "text_delta", "text": c},
		})
		fmt.Fprintf(&b, "event: content_block_delta\ndata: %s\n\n", payload)
	}
	b.WriteString("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	return b.String()
}

func TestAnthropicStreamDeliversChunksInOrder(t *testing.T) {
	chunks := []string{"hello ", "<thin", "king>secret</thinking>", " world"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header missing")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body: %v", err)
		}
		if body["stream"] != true {
			t.Error("stream flag not set")
		}
		if body["system"] != "be brief" {
			t.Errorf("system = %v", body["system"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(chunks))
	}))
	defer srv.Close()

	c := &AnthropicClient{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"}
	var got []string
	err := c.Stream(context.Background(), ChatPayload{System: "be brief", User: "hi"}, func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if strings.Join(got, "") != strings.Join(chunks, "") {
		t.Errorf("chunks = %q, want %q", strings.Join(got, ""), strings.Join(chunks, ""))
	}
}

func TestAnthropicStreamThinkingDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"thinking_delta\",\"thinking\":\"pondering\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	c := &AnthropicClient{BaseURL: srv.URL, APIKey: "k"}
	var got string
	if err := c.Stream(context.Background(), ChatPayload{User: "hi"}, func(chunk string) error {
		got += chunk
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "pondering" {
		t.Errorf("thinking delta = %q, want %q", got, "pondering")
	}
}

func TestAnthropicStreamRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		fmt.Fprint(w, sseBody([]string{"ok"}))
	}))
	defer srv.Close()

	c := &AnthropicClient{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2}
	var got string
	err := c.Stream(context.Background(), ChatPayload{User: "hi"}, func(chunk string) error {
		got += chunk
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
}

func TestAnthropicStreamSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found"}}`)
	}))
	defer srv.Close()

	c := &AnthropicClient{BaseURL: srv.URL, APIKey: "k"}
	err := c.Stream(context.Background(), ChatPayload{User: "hi"}, func(string) error { return nil })
	if err == nil {
		t.Fatal("bad request succeeded, want error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error %q does not carry the API message", err)
	}
}

// onChunk 报错时流必须立即终止，而不是继续读到结尾。
func TestAnthropicStreamStopsOnChunkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sseBody([]string{"one", "two", "three"}))
	}))
	defer srv.Close()

	c := &AnthropicClient{BaseURL: srv.URL, APIKey: "k"}
	calls := 0
	err := c.Stream(context.Background(), ChatPayload{User: "hi"}, func(string) error {
		calls++
		return fmt.Errorf("client gone")
	})
	if err == nil || !strings.Contains(err.Error(), "client gone") {
		t.Fatalf("err = %v, want chunk error", err)
	}
	if calls != 1 {
		t.Errorf("onChunk called %d times after failing, want 1", calls)
	}
}

func TestRetryHelpers(t *testing.T) {
	if !shouldRetry(429) || !shouldRetry(500) || !shouldRetry(503) {
		t.Error("retryable statuses rejected")
	}
	if shouldRetry(400) || shouldRetry(401) {
		t.Error("client errors marked retryable")
	}
	if d := parseRetryAfter("3", 0); d != 3*time.Second {
		t.Errorf("Retry-After 3 -> %v, want 3s", d)
	}
	if d := parseRetryAfter("", 10); d != 30*time.Second {
		t.Errorf("backoff cap = %v, want 30s", d)
	}
}

func TestMessagesURLNormalization(t *testing.T) {
	cases := map[string]string{
		"":                                 "https://api.anthropic.com/v1/messages",
		"https://api.example.com/v1":       "https://api.example.com/v1/messages",
		"https://api.example.com/v1/":      "https://api.example.com/v1/messages",
		"https://proxy.local/v1/messages":  "https://proxy.local/v1/messages",
		"https://proxy.local/v1/messages/": "https://proxy.local/v1/messages",
	}
	for base, want := range cases {
		c := &AnthropicClient{BaseURL: base}
		if got := c.messagesURL(); got != want {
			t.Errorf("messagesURL(%q) = %q, want %q", base, got, want)
		}
	}
}
