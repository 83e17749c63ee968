// Package sqlite implements chatstream.SessionStore on SQLite using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

var _ chatstream.SessionStore = (*Store)(nil)

// Timestamps are stored as Unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	last_message TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	last_active_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_active_at ON chat_sessions(last_active_at);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session_id ON chat_messages(session_id, created_at);
`

// Store is a SQLite-backed session store.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Option configures a [Store].
type Option func(*Store)

// WithClock sets the time source for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the generator for session and message IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open opens or creates the database at path and applies the schema. The
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range append(pragmas, schema) {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: init: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession creates a session with title.
func (s *Store) CreateSession(ctx context.Context, title string) (chatstream.Session, error) {
	if err := chatstream.ValidateTitle(title); err != nil {
		return chatstream.Session{}, err
	}
	now := s.now().UTC()
	sess := chatstream.Session{
		ID:           s.newID(),
		Title:        title,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, title, created_at, updated_at, last_active_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, now.UnixNano(), now.UnixNano(), now.UnixNano())
	if err != nil {
		return chatstream.Session{}, fmt.Errorf("sqlite: create session: %w", err)
	}
	return sess, nil
}

// GetSession returns session id.
func (s *Store) GetSession(ctx context.Context, id string) (chatstream.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, last_message, message_count, created_at, last_active_at
		FROM chat_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chatstream.Session{}, fmt.Errorf("sqlite: %q: %w", id, chatstream.ErrSessionNotFound)
	}
	if err != nil {
		return chatstream.Session{}, fmt.Errorf("sqlite: get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]chatstream.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_message, message_count, created_at, last_active_at
		FROM chat_sessions ORDER BY last_active_at DESC, created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []chatstream.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	return sessions, nil
}

// RenameSession sets the title of session id.
func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	if err := chatstream.ValidateTitle(title); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("sqlite: rename session: %w", err)
	}
	return requireRow(res, id)
}

// DeleteSession deletes session id and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	return nil
}

// ListMessages returns messages of a session oldest first. A limit <= 0
// means no limit.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]chatstream.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?`, sessionID, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []chatstream.Message
	for rows.Next() {
		var (
			m       chatstream.Message
			role    string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("sqlite: list messages: %w", err)
		}
		m.Role = chatstream.Role(role)
		m.CreatedAt = time.Unix(0, created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage stores msg and updates its session's last message, message
// count and activity time. Missing IDs and timestamps are filled in.
func (s *Store) AppendMessage(ctx context.Context, msg chatstream.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("content is required: %w", chatstream.ErrValidation)
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	created := msg.CreatedAt.UTC().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE chat_sessions
		SET last_message = ?, message_count = message_count + 1, last_active_at = ?, updated_at = ?
		WHERE id = ?`, msg.Content, created, created, msg.SessionID)
	if err != nil {
		return fmt.Errorf("sqlite: update session: %w", err)
	}
	if err := requireRow(res, msg.SessionID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`, msg.ID, msg.SessionID, string(msg.Role), msg.Content, created)
	if err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (chatstream.Session, error) {
	var (
		sess            chatstream.Session
		created, active int64
	)
	if err := row.Scan(&sess.ID, &sess.Title, &sess.LastMessage, &sess.MessageCount, &created, &active); err != nil {
		return chatstream.Session{}, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.LastActiveAt = time.Unix(0, active).UTC()
	return sess, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: %q: %w", id, chatstream.ErrSessionNotFound)
	}
	return nil
}
