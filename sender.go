package chatstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Path names the route by which an exchange reached its terminal state.
type Path string

const (
	PathStream    Path = "stream"
	PathOneShot   Path = "oneshot"
	PathLocal     Path = "local"
	PathCancelled Path = "cancelled"
)

// Outcome describes how an exchange ended.
type Outcome struct {
	MessageID string
	State     State
	Path      Path
	// Class is set when the local reply was used.
	Class ErrorClass
	// Err is the last transport failure, if any. It is informational: the
	// exchange itself always ends with content.
	Err error
}

const readBufferSize = 4096

// Sender drives one exchange at a time through the streaming transport,
// demoting to a single one-shot call and then to a local reply.
type Sender struct {
	completions CompletionService
	transport   StreamTransport
	streaming   bool
	sessions    SessionStore
	rules       ReplyRules
	observer    Observer
	title       func(time.Time) string
	now         func() time.Time
}

// SenderOption configures a [Sender].
type SenderOption func(*Sender)

// WithStreamTransport sets the streaming transport and marks streaming as
// supported.
func WithStreamTransport(t StreamTransport) SenderOption {
	return func(s *Sender) {
		s.transport = t
		s.streaming = t != nil
	}
}

// WithStreamingSupport overrides whether the host supports the streaming
// transport. When false every send goes straight to the one-shot call.
func WithStreamingSupport(supported bool) SenderOption {
	return func(s *Sender) { s.streaming = supported }
}

// WithSessionStore sets the store used to create a session for an unbound
// conversation.
func WithSessionStore(store SessionStore) SenderOption {
	return func(s *Sender) { s.sessions = store }
}

// WithReplyRules sets the local reply table. Default is DefaultReplyRules.
func WithReplyRules(rules ReplyRules) SenderOption {
	return func(s *Sender) { s.rules = rules }
}

// WithSenderObserver sets the observer for exchange events.
func WithSenderObserver(o Observer) SenderOption {
	return func(s *Sender) { s.observer = o }
}

// WithSessionTitle sets the title function for implicitly created sessions.
func WithSessionTitle(fn func(time.Time) string) SenderOption {
	return func(s *Sender) { s.title = fn }
}

// NewSender creates a [Sender] that falls back to completions.
func NewSender(completions CompletionService, opts ...SenderOption) *Sender {
	s := &Sender{
		completions: completions,
		rules:       DefaultReplyRules(),
		observer:    NopObserver,
		title:       DefaultSessionTitle,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Send runs one exchange on conv. It returns an error only when the
// exchange could not start: another exchange is in flight, the text is
// blank, or no session could be created. Once started, the exchange always
// ends in exactly one terminal state, reported in the Outcome.
//
// Cancelling ctx aborts the exchange without falling back.
func (s *Sender) Send(ctx context.Context, conv *Conversation, text string) (Outcome, error) {
	if conv.IsStreaming() {
		return Outcome{}, ErrExchangeInFlight
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, fmt.Errorf("message is required: %w", ErrValidation)
	}
	if conv.SessionID() == "" {
		if err := s.createSession(ctx, conv); err != nil {
			return Outcome{}, err
		}
	}

	placeholder, err := conv.Begin(text)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{MessageID: placeholder.ID}
	sessionID := placeholder.SessionID

	var streamErr error
	if s.streaming && s.transport != nil {
		streamErr = s.stream(ctx, conv, StreamRequest{SessionID: sessionID, Message: text})
		if streamErr == nil {
			out.Path = PathStream
			out.State = conv.State()
			return out, nil
		}
	} else {
		streamErr = &TransportError{Kind: FailureTransportUnavailable, Err: ErrTransportUnavailable}
	}

	if ctx.Err() != nil {
		return s.cancel(conv, out, streamErr), nil
	}
	s.observer.Observe(LevelWarn, EventStreamFailed, Fields{
		"session_id": sessionID,
		"message_id": placeholder.ID,
		"kind":       string(FailureKindOf(streamErr)),
		"error":      streamErr.Error(),
	})

	comp, err := s.completions.SendOneShot(ctx, sessionID, text)
	if err == nil && comp.Content == "" {
		err = ErrEmptyCompletion
	}
	if err == nil {
		conv.Resolve(comp.Content)
		out.Path = PathOneShot
		out.State = conv.State()
		out.Err = streamErr
		return out, nil
	}
	if ctx.Err() != nil {
		return s.cancel(conv, out, err), nil
	}

	err = &TransportError{Kind: FailureUpstream, Err: err}
	class := Classify(err)
	s.observer.Observe(LevelError, EventOneShotFailed, Fields{
		"session_id": sessionID,
		"message_id": placeholder.ID,
		"class":      string(class),
		"error":      err.Error(),
	})
	s.observer.Observe(LevelWarn, EventFallbackLocal, Fields{
		"session_id": sessionID,
		"message_id": placeholder.ID,
		"rule":       s.rules.Rule(text),
	})
	conv.Substitute(s.rules.Reply(text), class)
	out.Path = PathLocal
	out.State = conv.State()
	out.Class = class
	out.Err = err
	return out, nil
}

func (s *Sender) createSession(ctx context.Context, conv *Conversation) error {
	if err := conv.AwaitSession(); err != nil {
		return err
	}
	if s.sessions == nil {
		conv.AbandonSession()
		return ErrNoSession
	}
	session, err := s.sessions.CreateSession(ctx, s.title(s.now()))
	if err != nil {
		conv.AbandonSession()
		s.observer.Observe(LevelError, EventSessionFailed, Fields{"error": err.Error()})
		return fmt.Errorf("create session: %w", err)
	}
	if err := conv.AttachSession(session.ID); err != nil {
		return err
	}
	s.observer.Observe(LevelInfo, EventSessionCreated, Fields{"session_id": session.ID, "title": session.Title})
	return nil
}

// stream reads the event stream into conv. It returns nil once the
// exchange reached a terminal state through a frame or the sentinel.
func (s *Sender) stream(ctx context.Context, conv *Conversation, req StreamRequest) error {
	body, err := s.transport.OpenStream(ctx, req)
	if err != nil {
		if FailureKindOf(err) != "" {
			return err
		}
		return &TransportError{Kind: FailureConnection, Err: err}
	}
	defer body.Close()

	conv.Accept()
	s.observer.Observe(LevelDebug, EventStreamOpened, Fields{"session_id": req.SessionID})

	parser := NewFrameParser()
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			frames, done := parser.Feed(buf[:n])
			for _, f := range frames {
				if conv.Apply(f) {
					return nil
				}
			}
			if done {
				conv.Complete()
				return nil
			}
		}
		if errors.Is(readErr, io.EOF) {
			return &TransportError{Kind: FailureConnection, Err: ErrUnexpectedEOF}
		}
		if readErr != nil {
			return &TransportError{Kind: FailureConnection, Err: readErr}
		}
	}
}

func (s *Sender) cancel(conv *Conversation, out Outcome, err error) Outcome {
	conv.Cancel()
	s.observer.Observe(LevelInfo, EventExchangeCancelled, Fields{
		"session_id": conv.SessionID(),
		"message_id": out.MessageID,
	})
	out.Path = PathCancelled
	out.State = conv.State()
	out.Err = err
	return out
}
