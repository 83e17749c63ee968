package anthropic_test

import (
	"fmt"
	"net/http"
)

// sseEvent is one event of a scripted Messages API stream.
type sseEvent struct {
	name string
	data string
}

// replay answers a request with events as a text/event-stream body,
// flushing after each one.
func replay(events ...sseEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func blockStart(index int, kind string) sseEvent {
	return sseEvent{"content_block_start", fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":%q}}`, index, kind)}
}

func textDelta(index int, text string) sseEvent {
	return sseEvent{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":%q}}`, index, text)}
}

func thinkingDelta(index int, text string) sseEvent {
	return sseEvent{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"thinking_delta","thinking":%q}}`, index, text)}
}

func blockStop(index int) sseEvent {
	return sseEvent{"content_block_stop", fmt.Sprintf(`{"type":"content_block_stop","index":%d}`, index)}
}

var messageStop = sseEvent{"message_stop", `{"type":"message_stop"}`}

// helloStream is a complete reply streaming "Hello world" in two deltas.
func helloStream() []sseEvent {
	return []sseEvent{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","role":"assistant","content":[]}}`},
		blockStart(0, "text"),
		{"ping", `{"type":"ping"}`},
		textDelta(0, "Hello"),
		textDelta(0, " world"),
		blockStop(0),
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`},
		messageStop,
	}
}
