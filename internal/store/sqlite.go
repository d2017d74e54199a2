package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// AnalysisStore 持久化分析结果缓存与对话消息，SQLite 单文件。
type AnalysisStore struct {
	mu sync.Mutex
	db *sql.DB
}

// ChatMessage 一条对话记录。思考内容与可见回答分开存储。
type ChatMessage struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	Thinking  string
	CreatedAt int64
}

func OpenAnalysisStore(path string) (*AnalysisStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path 不能为空")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &AnalysisStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AnalysisStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
            cache_key  TEXT PRIMARY KEY,
            payload    TEXT NOT NULL,
            created_at INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id         INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id TEXT NOT NULL,
            role       TEXT NOT NULL,
            content    TEXT NOT NULL,
            thinking   TEXT NOT NULL DEFAULT '',
            created_at INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages(session_id, id)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(context.Background(), q); err != nil {
			return err
		}
	}
	return nil
}

// SaveAnalysis 按 key 覆盖写入一份 JSON 序列化的分析结果。
func (s *AnalysisStore) SaveAnalysis(ctx context.Context, cacheKey, payload string) error {
	if cacheKey == "" {
		return fmt.Errorf("cache key 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO analysis_cache (cache_key, payload, created_at) VALUES (?, ?, ?)
        ON CONFLICT(cache_key) DO UPDATE SET payload=excluded.payload, created_at=excluded.created_at`,
		cacheKey, payload, time.Now().UnixMilli())
	return err
}

// GetCachedAnalysis 取缓存；超过 ttl 或不存在返回 ("", false, nil)。
func (s *AnalysisStore) GetCachedAnalysis(ctx context.Context, cacheKey string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var payload string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM analysis_cache WHERE cache_key=?`, cacheKey).
		Scan(&payload, &createdAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if ttl > 0 && time.Since(time.UnixMilli(createdAt)) > ttl {
		return "", false, nil
	}
	return payload, true, nil
}

// AppendChatMessage 追加一条对话消息。
func (s *AnalysisStore) AppendChatMessage(ctx context.Context, msg ChatMessage) error {
	if msg.SessionID == "" || msg.Role == "" {
		return fmt.Errorf("session/role 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := msg.CreatedAt
	if created == 0 {
		created = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO chat_messages (session_id, role, content, thinking, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, msg.Thinking, created)
	return err
}

// RecentChatMessages 返回会话最近 limit 条消息，按时间升序。
func (s *AnalysisStore) RecentChatMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_id, role, content, thinking, created_at
        FROM (
            SELECT * FROM chat_messages WHERE session_id=? ORDER BY id DESC LIMIT ?
        ) ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ChatMessage, 0, limit)
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Thinking, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *AnalysisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
