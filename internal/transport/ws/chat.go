package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pulse/internal/gateway/provider"
	"pulse/internal/logger"
	"pulse/internal/store"
	"pulse/internal/stream"
)

// Frame 推给前端的单条消息。type 取 token / thinking / generation_completed / error。
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChatRequest 客户端发起的一轮对话。
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	System    string `json:"system,omitempty"`
}

// ChatHandler 把模型流式输出经切分器分路后推给 WebSocket 客户端。
type ChatHandler struct {
	streamer     provider.ChatStreamer
	chatStore    *store.AnalysisStore // 可为 nil，不落库
	startTags    []string
	endTags      []string
	maxTokens    int
	streamWindow time.Duration

	upgrader websocket.Upgrader
}

type ChatParams struct {
	Streamer  provider.ChatStreamer
	ChatStore *store.AnalysisStore
	StartTags []string
	EndTags   []string
	MaxTokens int
}

func NewChatHandler(p ChatParams) *ChatHandler {
	start := p.StartTags
	end := p.EndTags
	if len(start) == 0 {
		start = []string{"<thinking>"}
		end = []string{"</thinking>"}
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ChatHandler{
		streamer:     p.Streamer,
		chatStore:    p.ChatStore,
		startTags:    start,
		endTags:      end,
		maxTokens:    maxTokens,
		streamWindow: 10 * time.Minute,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 前端与 API 不同源部署，握手校验交给网关层
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register 挂载 /chat 路由。
func (h *ChatHandler) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/chat", h.handleChat)
}

func (h *ChatHandler) handleChat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("[ws] read failed: %v", err)
			}
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			_ = conn.WriteJSON(Frame{Type: "error", Error: "message 不能为空"})
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		h.serveTurn(c.Request.Context(), conn, req)
	}
}

// wsWriter 串行化并发写。gorilla 的连接不允许多 goroutine 同时写。
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(f)
}

func (h *ChatHandler) serveTurn(parent context.Context, conn *websocket.Conn, req ChatRequest) {
	ctx, cancel := context.WithTimeout(parent, h.streamWindow)
	defer cancel()

	splitter, err := stream.NewSplitter(h.startTags, h.endTags)
	if err != nil {
		// 标签配置在构造 handler 时就该校验过，到这里属于编程错误
		logger.Errorf("[ws] splitter config invalid: %v", err)
		return
	}
	w := &wsWriter{conn: conn}

	var visible, thinking strings.Builder
	emit := func(events []stream.Event) error {
		for _, ev := range events {
			switch e := ev.(type) {
			case stream.Token:
				visible.WriteString(e.Content)
				if err := w.send(Frame{Type: "token", Content: e.Content, SessionID: req.SessionID}); err != nil {
					return err
				}
			case stream.Thought:
				thinking.WriteString(e.Content)
				if err := w.send(Frame{Type: "thinking", Content: e.Content, Status: string(e.Status), SessionID: req.SessionID}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	h.persist(ctx, req.SessionID, "user", req.Message, "")

	streamErr := h.streamer.Stream(ctx, provider.ChatPayload{
		System:    req.System,
		User:      req.Message,
		MaxTokens: h.maxTokens,
	}, func(chunk string) error {
		return emit(splitter.Feed(chunk))
	})

	if flushErr := emit(splitter.Flush()); flushErr != nil && streamErr == nil {
		streamErr = flushErr
	}

	if streamErr != nil {
		logger.Errorf("[ws] session=%s stream failed: %v", req.SessionID, streamErr)
		_ = w.send(Frame{Type: "error", Error: streamErr.Error(), SessionID: req.SessionID})
		return
	}

	h.persist(ctx, req.SessionID, "assistant", visible.String(), thinking.String())
	_ = w.send(Frame{Type: "generation_completed", SessionID: req.SessionID})
}

func (h *ChatHandler) persist(ctx context.Context, sessionID, role, content, thinking string) {
	if h.chatStore == nil || content == "" {
		return
	}
	err := h.chatStore.AppendChatMessage(ctx, store.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Thinking:  thinking,
	})
	if err != nil {
		logger.Warnf("[ws] session=%s persist %s failed: %v", sessionID, role, err)
	}
}
