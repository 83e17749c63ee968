package chatstream

import (
	"context"
	"time"
)

// Session is a conversation as known to the backend.
type Session struct {
	ID           string
	Title        string
	LastMessage  string
	MessageCount int
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// DefaultHistoryLimit is the number of prior messages sent to a generator
// as conversation context.
const DefaultHistoryLimit = 20

// DefaultSessionTitle returns the title given to a session that is created
// implicitly by the first send of a conversation.
func DefaultSessionTitle(t time.Time) string {
	return "New conversation " + t.Format("2006-01-02 15:04")
}

// SessionStore creates, lists, renames and deletes sessions and stores
// their messages. Implementations return an error wrapping
// ErrSessionNotFound for unknown session IDs.
type SessionStore interface {
	CreateSession(ctx context.Context, title string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	RenameSession(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	// ListMessages returns messages oldest first. A limit <= 0 means no limit.
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error)
	// AppendMessage stores msg under msg.SessionID and updates the session's
	// LastMessage, MessageCount and LastActiveAt.
	AppendMessage(ctx context.Context, msg Message) error
}
