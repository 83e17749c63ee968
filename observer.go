package chatstream

// Level is the severity of an observed pipeline event.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Fields carries structured attributes of an observed event.
type Fields map[string]any

// Observer receives structured pipeline events. Event names are dotted,
// e.g. "stream.failed". Implementations must be safe for concurrent use.
type Observer interface {
	Observe(level Level, event string, fields Fields)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(level Level, event string, fields Fields)

// Observe calls f.
func (f ObserverFunc) Observe(level Level, event string, fields Fields) {
	f(level, event, fields)
}

// NopObserver discards all events.
var NopObserver Observer = ObserverFunc(func(Level, string, Fields) {})

// MultiObserver fans every event out to each non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(level Level, event string, fields Fields) {
		for _, o := range list {
			o.Observe(level, event, fields)
		}
	})
}

// Observer event names emitted by the pipeline.
const (
	EventExchangeStarted   = "exchange.started"
	EventExchangeCompleted = "exchange.completed"
	EventExchangeFailed    = "exchange.failed"
	EventExchangeCancelled = "exchange.cancelled"
	EventSessionCreated    = "session.created"
	EventSessionFailed     = "session.failed"
	EventStreamOpened      = "stream.opened"
	EventStreamFailed      = "stream.failed"
	EventStreamFrame       = "stream.frame"
	EventOneShotFailed     = "oneshot.failed"
	EventFallbackLocal     = "fallback.local"
	EventRenderFailed      = "render.failed"
	EventHTTPRequest       = "http.request"
	EventReplyGenerated    = "reply.generated"
	EventReplyFailed       = "reply.failed"
)
