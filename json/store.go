package json

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/google/uuid"
)

var _ chatstream.SessionStore = (*Store)(nil)

const ext = ".json"

// Store keeps each session in its own file under a directory. It is safe
// for concurrent use by one process.
type Store struct {
	dir   string
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a [Store].
type Option func(*Store)

// WithClock sets the time source for session and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the generator for session and message IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("json: create directory: %w", err)
	}
	s := &Store{dir: dir, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// CreateSession creates a session with title.
func (s *Store) CreateSession(_ context.Context, title string) (chatstream.Session, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Save(s.path(sess.ID), sess, nil); err != nil {
		return chatstream.Session{}, fmt.Errorf("json: create session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *Store) ListSessions(_ context.Context) ([]chatstream.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("json: list sessions: %w", err)
	}
	var sessions []chatstream.Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		sess, _, err := Load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("json: %s: %w", e.Name(), err)
		}
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].LastActiveAt.Equal(sessions[j].LastActiveAt) {
			return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// RenameSession sets the title of session id.
func (s *Store) RenameSession(_ context.Context, id, title string) error {
	if err := chatstream.ValidateTitle(title); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, msgs, err := s.load(id)
	if err != nil {
		return err
	}
	sess.Title = title
	if err := Save(s.path(id), sess, msgs); err != nil {
		return fmt.Errorf("json: rename session: %w", err)
	}
	return nil
}

// DeleteSession deletes session id and its messages.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("json: %q: %w", id, chatstream.ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("json: delete session: %w", err)
	}
	return nil
}

// ListMessages returns messages of a session oldest first. A limit <= 0
// means no limit.
func (s *Store) ListMessages(_ context.Context, sessionID string, limit, offset int) ([]chatstream.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, msgs, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	offset = min(max(offset, 0), len(msgs))
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// AppendMessage stores msg and updates its session's last message, message
// count and activity time. Missing IDs and timestamps are filled in.
func (s *Store) AppendMessage(_ context.Context, msg chatstream.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("content is required: %w", chatstream.ErrValidation)
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.Streaming = false

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, msgs, err := s.load(msg.SessionID)
	if err != nil {
		return err
	}
	sess.LastMessage = msg.Content
	sess.MessageCount++
	sess.LastActiveAt = msg.CreatedAt
	if err := Save(s.path(sess.ID), sess, append(msgs, msg)); err != nil {
		return fmt.Errorf("json: append message: %w", err)
	}
	return nil
}

func (s *Store) load(id string) (chatstream.Session, []chatstream.Message, error) {
	if err := validID(id); err != nil {
		return chatstream.Session{}, nil, err
	}
	sess, msgs, err := Load(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return chatstream.Session{}, nil, fmt.Errorf("json: %q: %w", id, chatstream.ErrSessionNotFound)
	}
	if err != nil {
		return chatstream.Session{}, nil, fmt.Errorf("json: %w", err)
	}
	return sess, msgs, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+ext)
}

// validID rejects IDs that would escape the store directory.
func validID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("json: %q: %w", id, chatstream.ErrSessionNotFound)
	}
	return nil
}
