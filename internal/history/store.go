// Package history keeps a local transcript of finished conversations so they
// can be listed and searched without the backend. The backend stays the
// source of truth; this is a convenience cache, never written while a
// message is still partial.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avlane/chatterm/internal/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    title TEXT,
    created_at TIMESTAMP,
    updated_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    model TEXT,
    stopped BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);

-- Full-text search over message content
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// Store is a SQLite-backed transcript store.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the transcript database location under the XDG data
// directory.
func DefaultPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "chatterm", "history.db"), nil
}

// Open creates or opens the transcript database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveThread upserts a thread's metadata.
func (s *Store) SaveThread(ctx context.Context, t chat.Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		t.ID, t.Title, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save thread: %w", err)
	}
	return nil
}

// RecordMessage appends a finalized message to the thread's transcript.
// Partial messages are a caller bug and are rejected.
func (s *Store) RecordMessage(ctx context.Context, threadID string, msg chat.Message) error {
	if msg.Partial {
		return fmt.Errorf("refusing to record partial message for thread %s", threadID)
	}

	// The thread row may not exist yet when recording outruns a cache
	// refresh; a placeholder keeps the foreign key satisfied.
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)`,
		threadID, msg.CreatedAt, msg.CreatedAt); err != nil {
		return fmt.Errorf("ensure thread row: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (thread_id, role, content, model, stopped, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, string(msg.Role), msg.Content, msg.Model, msg.Stopped, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// Messages returns up to limit messages for a thread in insertion order.
// limit <= 0 means no limit.
func (s *Store) Messages(ctx context.Context, threadID string, limit int) ([]chat.Message, error) {
	query := `SELECT role, content, model, stopped, created_at FROM messages WHERE thread_id = ? ORDER BY id`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			msg   chat.Message
			role  string
			model sql.NullString
		)
		if err := rows.Scan(&role, &msg.Content, &model, &msg.Stopped, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		msg.Model = model.String
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SearchResult is one full-text match.
type SearchResult struct {
	ThreadID  string
	Role      chat.Role
	Snippet   string
	CreatedAt time.Time
}

// Search runs a full-text query over recorded messages. A non-empty threadID
// scopes the search to that thread.
func (s *Store) Search(ctx context.Context, threadID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `
		SELECT m.thread_id, m.role, snippet(messages_fts, 0, '[', ']', '…', 10), m.created_at
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`
	args := []any{ftsQuote(query)}
	if threadID != "" {
		sqlQuery += ` AND m.thread_id = ?`
		args = append(args, threadID)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			role string
		)
		if err := rows.Scan(&r.ThreadID, &role, &r.Snippet, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Role = chat.Role(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearThread removes a thread's recorded transcript.
func (s *Store) ClearThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("clear thread transcript: %w", err)
	}
	return nil
}

// ftsQuote wraps the user's query as a quoted FTS5 string so punctuation in
// ordinary text cannot be misread as query syntax.
func ftsQuote(q string) string {
	quoted := `"`
	for _, r := range q {
		if r == '"' {
			quoted += `""`
			continue
		}
		quoted += string(r)
	}
	return quoted + `"`
}
