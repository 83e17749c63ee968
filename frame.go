package chatstream

import (
	"bytes"
	"strings"
)

// Frame event types understood by Conversation.Apply.
const (
	FrameMessage = "message"
	FrameError   = "error"
	FrameDone    = "done"
)

// DoneSentinel is the data payload that ends a stream.
const DoneSentinel = "[DONE]"

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Frame is a single data line of an event stream, tagged with the most
// recently seen event type.
type Frame struct {
	Event string
	Data  string
	// Continuation is set when the data line directly follows another data
	// line of the same frame.
	Continuation bool
}

// FrameParser turns arbitrarily split chunks of a text/event-stream body
// into frames. Each data line is dispatched on its own as soon as its line
// terminator arrives. The incomplete trailing line of a chunk is carried
// over to the next Feed and never dispatched on its own.
//
// A FrameParser is not safe for concurrent use.
type FrameParser struct {
	carry  []byte
	event  string
	inData bool
	done   bool
}

// NewFrameParser returns a parser with empty carry-over.
func NewFrameParser() *FrameParser {
	return &FrameParser{}
}

// Feed consumes chunk and returns the frames completed by it, in arrival
// order. The boolean reports whether the [DONE] sentinel has been seen.
// Once it has, Feed ignores all further input.
func (p *FrameParser) Feed(chunk []byte) ([]Frame, bool) {
	if p.done {
		return nil, true
	}
	p.carry = append(p.carry, chunk...)

	var frames []Frame
	start := 0
	for {
		i := bytes.IndexByte(p.carry[start:], '\n')
		if i < 0 {
			break
		}
		line := string(p.carry[start : start+i])
		start += i + 1

		frame, ok := p.line(line)
		if p.done {
			p.carry = nil
			return frames, true
		}
		if ok {
			frames = append(frames, frame)
		}
	}

	// Shift the incomplete line to the front so the buffer does not grow
	// with consumed input.
	n := copy(p.carry, p.carry[start:])
	p.carry = p.carry[:n]
	return frames, false
}

// Done reports whether the [DONE] sentinel has been seen.
func (p *FrameParser) Done() bool { return p.done }

// Buffered returns the number of carried-over bytes awaiting a line
// terminator.
func (p *FrameParser) Buffered() int { return len(p.carry) }

func (p *FrameParser) line(line string) (Frame, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		p.inData = false
		return Frame{}, false
	}
	switch {
	case strings.HasPrefix(line, eventPrefix):
		p.event = strings.TrimSpace(line[len(eventPrefix):])
		p.inData = false
		return Frame{}, false
	case strings.HasPrefix(line, dataPrefix):
		data := line[len(dataPrefix):]
		if data == DoneSentinel {
			p.done = true
			return Frame{}, false
		}
		f := Frame{Event: p.event, Data: data, Continuation: p.inData}
		p.inData = true
		return f, true
	default:
		// Comments, unknown fields and malformed lines.
		return Frame{}, false
	}
}
