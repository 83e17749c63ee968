package chatstream

import "time"

// Message is one entry in a conversation's message list.
//
// Streaming is true only for the assistant placeholder of the exchange that
// is currently in flight. A conversation holds at most one such message.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
	Streaming bool
}

// Completion is the result of a non-streaming completion request.
type Completion struct {
	Content string
}
