package chatstream

import (
	"context"
	"io"
)

// StreamRequest is the body of a streaming send. Its JSON form is the wire
// contract of the streaming endpoint.
type StreamRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// StreamTransport opens a text/event-stream response for a send.
//
// OpenStream returns a *StatusError for a non-success response. The caller
// owns the returned body and must close it. Cancelling ctx aborts the read.
type StreamTransport interface {
	OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// CompletionService performs a non-streaming send and returns the full reply.
type CompletionService interface {
	SendOneShot(ctx context.Context, sessionID, text string) (Completion, error)
}

// Generator produces assistant replies from a conversation history. It is
// the server-side counterpart of StreamTransport and CompletionService.
type Generator interface {
	// Generate returns the complete reply.
	Generate(ctx context.Context, history []Message) (string, error)
	// Stream calls onDelta for each fragment in order and returns the
	// assembled reply.
	Stream(ctx context.Context, history []Message, onDelta func(string)) (string, error)
}
