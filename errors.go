package chatstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrNoSession indicates a send was attempted without an active session
	// and no SessionStore was available to create one.
	ErrNoSession = errors.New("no active session")

	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrExchangeInFlight indicates a send was attempted while the
	// conversation already has a streaming reply.
	ErrExchangeInFlight = errors.New("exchange already in flight")

	// ErrTransportUnavailable indicates the streaming transport is not
	// configured or not supported by the host.
	ErrTransportUnavailable = errors.New("streaming transport unavailable")

	// ErrUnexpectedEOF indicates the stream body ended before a terminal
	// frame or the [DONE] sentinel.
	ErrUnexpectedEOF = errors.New("stream ended before completion")

	// ErrEmptyCompletion indicates a one-shot completion returned no content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// StatusError reports a non-success HTTP status from an upstream endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// FailureKind is the transport-level failure taxonomy of an exchange.
type FailureKind string

const (
	FailureTransportUnavailable FailureKind = "transport-unavailable"
	FailureConnection           FailureKind = "connection-error"
	FailureProtocol             FailureKind = "protocol-error"
	FailureUpstream             FailureKind = "upstream-error"
	FailureRender               FailureKind = "render-error"
)

// TransportError tags an exchange failure with its FailureKind.
type TransportError struct {
	Kind FailureKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FailureKindOf returns the kind of the first TransportError in err's chain,
// or the empty string when there is none.
func FailureKindOf(err error) FailureKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
