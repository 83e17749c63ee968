// Package mock provides test doubles for chatstream interfaces using
// function fields.
package mock

import (
	"context"
	"io"

	"github.com/fwojciec/chatstream"
)

// Interface compliance checks.
var (
	_ chatstream.StreamTransport   = (*StreamTransport)(nil)
	_ chatstream.CompletionService = (*CompletionService)(nil)
	_ chatstream.SessionStore      = (*SessionStore)(nil)
	_ chatstream.Generator         = (*Generator)(nil)
	_ chatstream.Renderer          = (*Renderer)(nil)
	_ chatstream.Observer          = (*Observer)(nil)
)

// StreamTransport is a test double for chatstream.StreamTransport.
// Set OpenStreamFn before calling OpenStream.
type StreamTransport struct {
	OpenStreamFn func(ctx context.Context, req chatstream.StreamRequest) (io.ReadCloser, error)
}

// OpenStream delegates to OpenStreamFn.
func (t *StreamTransport) OpenStream(ctx context.Context, req chatstream.StreamRequest) (io.ReadCloser, error) {
	return t.OpenStreamFn(ctx, req)
}

// CompletionService is a test double for chatstream.CompletionService.
// Set SendOneShotFn before calling SendOneShot.
type CompletionService struct {
	SendOneShotFn func(ctx context.Context, sessionID, text string) (chatstream.Completion, error)
}

// SendOneShot delegates to SendOneShotFn.
func (c *CompletionService) SendOneShot(ctx context.Context, sessionID, text string) (chatstream.Completion, error) {
	return c.SendOneShotFn(ctx, sessionID, text)
}

// SessionStore is a test double for chatstream.SessionStore.
// Set the function fields for the methods you need; unset fields panic.
type SessionStore struct {
	CreateSessionFn func(ctx context.Context, title string) (chatstream.Session, error)
	ListSessionsFn  func(ctx context.Context) ([]chatstream.Session, error)
	RenameSessionFn func(ctx context.Context, id, title string) error
	DeleteSessionFn func(ctx context.Context, id string) error
	ListMessagesFn  func(ctx context.Context, sessionID string, limit, offset int) ([]chatstream.Message, error)
	AppendMessageFn func(ctx context.Context, msg chatstream.Message) error
}

// CreateSession delegates to CreateSessionFn.
func (s *SessionStore) CreateSession(ctx context.Context, title string) (chatstream.Session, error) {
	return s.CreateSessionFn(ctx, title)
}

// ListSessions delegates to ListSessionsFn.
func (s *SessionStore) ListSessions(ctx context.Context) ([]chatstream.Session, error) {
	return s.ListSessionsFn(ctx)
}

// RenameSession delegates to RenameSessionFn.
func (s *SessionStore) RenameSession(ctx context.Context, id, title string) error {
	return s.RenameSessionFn(ctx, id, title)
}

// DeleteSession delegates to DeleteSessionFn.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.DeleteSessionFn(ctx, id)
}

// ListMessages delegates to ListMessagesFn.
func (s *SessionStore) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]chatstream.Message, error) {
	return s.ListMessagesFn(ctx, sessionID, limit, offset)
}

// AppendMessage delegates to AppendMessageFn.
func (s *SessionStore) AppendMessage(ctx context.Context, msg chatstream.Message) error {
	return s.AppendMessageFn(ctx, msg)
}

// Generator is a test double for chatstream.Generator.
type Generator struct {
	GenerateFn func(ctx context.Context, history []chatstream.Message) (string, error)
	StreamFn   func(ctx context.Context, history []chatstream.Message, onDelta func(string)) (string, error)
}

// Generate delegates to GenerateFn.
func (g *Generator) Generate(ctx context.Context, history []chatstream.Message) (string, error) {
	return g.GenerateFn(ctx, history)
}

// Stream delegates to StreamFn.
func (g *Generator) Stream(ctx context.Context, history []chatstream.Message, onDelta func(string)) (string, error) {
	return g.StreamFn(ctx, history, onDelta)
}

// Renderer is a test double for chatstream.Renderer.
type Renderer struct {
	RenderFn func(content string, width int) (string, error)
}

// Render delegates to RenderFn.
func (r *Renderer) Render(content string, width int) (string, error) {
	return r.RenderFn(content, width)
}
