package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type streamState int

const (
	stateNew streamState = iota
	stateStreaming
	stateComplete
	stateError
	stateClosed
)

// stream reads text deltas from the SSE body of a Messages API response.
type stream struct {
	body       io.ReadCloser
	scanner    *bufio.Scanner
	ctx        context.Context
	state      streamState
	text       strings.Builder
	textBlocks map[int]bool
	err        error // terminal error, if any
}

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		body:       body,
		scanner:    bufio.NewScanner(body),
		ctx:        ctx,
		state:      stateNew,
		textBlocks: make(map[int]bool),
	}
}

// Next returns the next text delta. It returns io.EOF once message_stop has
// been received.
func (s *stream) Next() (string, error) {
	switch s.state {
	case stateComplete:
		return "", io.EOF
	case stateError:
		return "", s.err
	case stateClosed:
		return "", fmt.Errorf("anthropic: stream closed")
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			s.terminate(err)
			return "", s.err
		}
		s.state = stateStreaming

		delta, err := s.processEvent(eventType, data)
		if err != nil {
			s.terminate(err)
			return "", s.err
		}
		if s.state == stateComplete {
			return "", io.EOF
		}
		if delta != "" {
			return delta, nil
		}
		// Non-text event (ping, message_start, thinking, ...): keep reading.
	}
}

// Text returns the text received so far.
func (s *stream) Text() string {
	return s.text.String()
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != stateComplete && s.state != stateError {
		s.state = stateClosed
	}
	return s.body.Close()
}

// terminate records a terminal error.
func (s *stream) terminate(err error) {
	s.state = stateError
	switch {
	case s.ctx.Err() != nil:
		s.err = fmt.Errorf("anthropic: %w", s.ctx.Err())
	case err == io.EOF:
		s.err = fmt.Errorf("anthropic: unexpected end of stream")
	default:
		s.err = err
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Comments (lines starting with ':') and unknown fields are ignored.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w", err)
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent applies one SSE event and returns its text delta, if any.
func (s *stream) processEvent(eventType, data string) (string, error) {
	switch eventType {
	case "content_block_start":
		var evt sseContentBlockStart
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", fmt.Errorf("anthropic: failed to parse content_block_start: %w", err)
		}
		s.textBlocks[evt.Index] = evt.ContentBlock.Type == "text"
		return "", nil
	case "content_block_delta":
		var evt sseContentBlockDelta
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
		}
		isText, ok := s.textBlocks[evt.Index]
		if !ok {
			return "", fmt.Errorf("anthropic: delta for unknown block index %d", evt.Index)
		}
		if !isText || evt.Delta.Type != "text_delta" {
			return "", nil
		}
		s.text.WriteString(evt.Delta.Text)
		return evt.Delta.Text, nil
	case "message_stop":
		s.state = stateComplete
		return "", nil
	case "error":
		var evt sseError
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", fmt.Errorf("anthropic: failed to parse error event: %w", err)
		}
		return "", fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
	default:
		// message_start, message_delta, ping, content_block_stop and unknown
		// events.
		return "", nil
	}
}
