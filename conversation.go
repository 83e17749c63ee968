package chatstream

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a conversation's current exchange.
type State int

const (
	StateIdle            State = iota // No exchange yet.
	StateAwaitingSession              // Waiting for a session to be created.
	StateSending                      // Placeholder appended, transport not yet accepted.
	StateStreaming                    // Frames are being applied.
	StateCompleted                    // Exchange ended with a reply.
	StateFailed                       // Exchange ended with an error, local or cancelled reply.
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSession:
		return "awaiting-session"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// inFlight reports whether an exchange is between Begin and its terminal
// transition.
func (s State) inFlight() bool {
	return s == StateSending || s == StateStreaming
}

// CancelledNotice is installed in an empty placeholder when its exchange is
// cancelled.
const CancelledNotice = "Reply cancelled."

// Conversation owns the message list of one conversation and the state of
// its current exchange. It is safe for concurrent use: the exchange is
// driven from one goroutine while a presentation layer reads snapshots.
type Conversation struct {
	mu        sync.Mutex
	sessionID string
	messages  []Message
	state     State
	pending   int // index of the streaming placeholder, -1 when none
	class     ErrorClass

	observer Observer
	onUpdate func(Message)
	now      func() time.Time
	newID    func() string
}

// ConversationOption configures a [Conversation].
type ConversationOption func(*Conversation)

// WithObserver sets the observer for state transitions.
func WithObserver(o Observer) ConversationOption {
	return func(c *Conversation) { c.observer = o }
}

// WithUpdateHandler registers fn to receive a copy of a message every time
// it is appended or its content or streaming flag changes. fn is called
// without the conversation lock held.
func WithUpdateHandler(fn func(Message)) ConversationOption {
	return func(c *Conversation) { c.onUpdate = fn }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) ConversationOption {
	return func(c *Conversation) { c.now = now }
}

// WithIDGenerator sets the message ID generator. Generated IDs must be
// unique within the conversation.
func WithIDGenerator(fn func() string) ConversationOption {
	return func(c *Conversation) { c.newID = fn }
}

// WithHistory seeds the conversation with previously stored messages.
// Streaming flags are cleared.
func WithHistory(msgs []Message) ConversationOption {
	return func(c *Conversation) {
		c.messages = make([]Message, len(msgs))
		copy(c.messages, msgs)
		for i := range c.messages {
			c.messages[i].Streaming = false
		}
	}
}

// NewConversation creates a conversation bound to sessionID. An empty
// sessionID means a session must be created before the first send.
func NewConversation(sessionID string, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		sessionID: sessionID,
		state:     StateIdle,
		pending:   -1,
		observer:  NopObserver,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SessionID returns the bound session, or "" when none is bound yet.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// State returns the state of the current exchange.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsStreaming reports whether an exchange is in flight.
func (c *Conversation) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.inFlight()
}

// Class returns the error class recorded by the last Substitute, or "".
func (c *Conversation) Class() ErrorClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.class
}

// Messages returns a copy of the message list in append order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Exchange returns the placeholder message of the in-flight exchange.
func (c *Conversation) Exchange() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending < 0 {
		return Message{}, false
	}
	return c.messages[c.pending], true
}

// AwaitSession moves an unbound, idle conversation to awaiting-session.
func (c *Conversation) AwaitSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.inFlight() || c.state == StateAwaitingSession {
		return ErrExchangeInFlight
	}
	c.state = StateAwaitingSession
	return nil
}

// AttachSession binds the conversation to a session. It is valid while
// awaiting a session or between exchanges.
func (c *Conversation) AttachSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.inFlight() {
		return ErrExchangeInFlight
	}
	c.sessionID = id
	return nil
}

// AbandonSession returns an awaiting-session conversation to idle without
// appending anything.
func (c *Conversation) AbandonSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingSession {
		c.state = StateIdle
	}
}

// Begin starts an exchange: it appends the user message and an empty
// streaming assistant placeholder and returns the placeholder.
func (c *Conversation) Begin(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, fmt.Errorf("message is required: %w", ErrValidation)
	}

	c.mu.Lock()
	if c.state.inFlight() {
		c.mu.Unlock()
		return Message{}, ErrExchangeInFlight
	}
	if c.sessionID == "" {
		c.mu.Unlock()
		return Message{}, ErrNoSession
	}
	now := c.now()
	user := Message{
		ID:        c.newID(),
		SessionID: c.sessionID,
		Role:      RoleUser,
		Content:   text,
		CreatedAt: now,
	}
	placeholder := Message{
		ID:        c.newID(),
		SessionID: c.sessionID,
		Role:      RoleAssistant,
		CreatedAt: now,
		Streaming: true,
	}
	c.messages = append(c.messages, user, placeholder)
	c.pending = len(c.messages) - 1
	c.state = StateSending
	c.class = ""
	sessionID := c.sessionID
	c.mu.Unlock()

	c.observer.Observe(LevelInfo, EventExchangeStarted, Fields{
		"session_id": sessionID,
		"message_id": placeholder.ID,
	})
	c.notify(user)
	c.notify(placeholder)
	return placeholder, nil
}

// Accept records that the streaming transport accepted the request.
func (c *Conversation) Accept() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		c.state = StateStreaming
	}
}

// Apply applies one frame to the placeholder and reports whether the
// exchange has reached a terminal state. Frames are only applied while
// streaming; unknown event types are ignored.
func (c *Conversation) Apply(f Frame) bool {
	c.mu.Lock()
	if c.state != StateStreaming {
		terminal := !c.state.inFlight()
		c.mu.Unlock()
		return terminal
	}
	switch f.Event {
	case FrameMessage:
		m := &c.messages[c.pending]
		if f.Continuation {
			m.Content += "\n"
		}
		m.Content += f.Data
		snapshot := *m
		c.mu.Unlock()
		c.notify(snapshot)
		return false
	case FrameError:
		c.mu.Unlock()
		class := ClassifyMessage(f.Data)
		c.observer.Observe(LevelWarn, EventStreamFrame, Fields{"event": f.Event, "data": f.Data, "class": string(class)})
		c.Fail(class)
		return true
	case FrameDone:
		c.mu.Unlock()
		c.finish(StateCompleted, "", false, "")
		return true
	default:
		c.mu.Unlock()
		return false
	}
}

// Complete ends the exchange with the content streamed so far.
func (c *Conversation) Complete() {
	c.finish(StateCompleted, "", false, "")
}

// Resolve replaces the placeholder content with a one-shot reply and ends
// the exchange.
func (c *Conversation) Resolve(content string) {
	c.finish(StateCompleted, content, true, "")
}

// Substitute replaces the placeholder content with a locally produced reply
// and ends the exchange as failed with the given error class.
func (c *Conversation) Substitute(content string, class ErrorClass) {
	c.finish(StateFailed, content, true, class)
}

// Fail replaces the placeholder content with the class explanation and ends
// the exchange as failed.
func (c *Conversation) Fail(class ErrorClass) {
	c.finish(StateFailed, class.Explanation(), true, class)
}

// Cancel ends the exchange keeping any partial content. An empty
// placeholder receives CancelledNotice.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	empty := c.pending >= 0 && c.messages[c.pending].Content == ""
	c.mu.Unlock()
	c.finish(StateFailed, CancelledNotice, empty, "")
}

// finish performs the single terminal transition of the current exchange.
// Calls after the first are no-ops.
func (c *Conversation) finish(state State, content string, replace bool, class ErrorClass) {
	c.mu.Lock()
	if !c.state.inFlight() || c.pending < 0 {
		c.mu.Unlock()
		return
	}
	m := &c.messages[c.pending]
	if replace {
		m.Content = content
	}
	m.Streaming = false
	snapshot := *m
	c.state = state
	c.class = class
	c.pending = -1
	c.mu.Unlock()

	event, level := EventExchangeCompleted, LevelInfo
	if state == StateFailed {
		event, level = EventExchangeFailed, LevelWarn
	}
	fields := Fields{"session_id": snapshot.SessionID, "message_id": snapshot.ID, "state": state.String()}
	if class != "" {
		fields["class"] = string(class)
	}
	c.observer.Observe(level, event, fields)
	c.notify(snapshot)
}

func (c *Conversation) notify(m Message) {
	if c.onUpdate != nil {
		c.onUpdate(m)
	}
}
