package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pulse/internal/gateway/provider"
)

// fakeStreamer 按给定片段顺序回放，模拟被任意切碎的模型输出。
type fakeStreamer struct {
	fragments []string
	err       error
}

func (f *fakeStreamer) Stream(_ context.Context, _ provider.ChatPayload, onChunk func(string) error) error {
	for _, frag := range f.fragments {
		if err := onChunk(frag); err != nil {
			return err
		}
	}
	return f.err
}

func dialChat(t *testing.T, streamer provider.ChatStreamer) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewChatHandler(ChatParams{Streamer: streamer}).Register(router.Group("/ws"))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntilDone(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frames []Frame
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read frame: %v (got %d frames)", err, len(frames))
		}
		frames = append(frames, f)
		if f.Type == "generation_completed" || f.Type == "error" {
			return frames
		}
	}
}

func TestChatSplitsThinkingFromTokens(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{
		"hello ", "<thin", "king>secret", "</thinking>", " world",
	}}
	conn := dialChat(t, streamer)

	if err := conn.WriteJSON(ChatRequest{Message: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readUntilDone(t, conn)

	var visible, thinking strings.Builder
	sawClosure := false
	for _, f := range frames {
		switch f.Type {
		case "token":
			visible.WriteString(f.Content)
		case "thinking":
			thinking.WriteString(f.Content)
			if f.Status == "success" && f.Content == "" {
				sawClosure = true
			}
		}
	}
	if visible.String() != "hello  world" {
		t.Errorf("visible = %q, want %q", visible.String(), "hello  world")
	}
	if thinking.String() != "secret" {
		t.Errorf("thinking = %q, want %q", thinking.String(), "secret")
	}
	if !sawClosure {
		t.Error("no success closure frame for the completed thought")
	}
	last := frames[len(frames)-1]
	if last.Type != "generation_completed" {
		t.Errorf("last frame = %q, want generation_completed", last.Type)
	}
	if last.SessionID == "" {
		t.Error("server did not assign a session id")
	}
}

func TestChatStreamErrorReported(t *testing.T) {
	streamer := &fakeStreamer{
		fragments: []string{"partial"},
		err:       context.DeadlineExceeded,
	}
	conn := dialChat(t, streamer)

	if err := conn.WriteJSON(ChatRequest{Message: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readUntilDone(t, conn)
	last := frames[len(frames)-1]
	if last.Type != "error" || last.Error == "" {
		t.Errorf("last frame = %+v, want an error frame", last)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	conn := dialChat(t, &fakeStreamer{})
	if err := conn.WriteJSON(ChatRequest{Message: "  "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != "error" {
		t.Errorf("frame type = %q, want error", f.Type)
	}
}
