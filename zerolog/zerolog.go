// Package zerolog implements chatstream.Observer on top of zerolog.
package zerolog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/rs/zerolog"
)

var _ chatstream.Observer = (*Observer)(nil)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output
	Output io.Writer
}

// NewLogger creates a structured logger. Output defaults to os.Stderr so
// log lines do not interfere with a terminal UI on stdout.
func NewLogger(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	return zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to
// info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Observer writes pipeline events as zerolog entries. The event name is
// logged under "event" and used as the message.
type Observer struct {
	logger zerolog.Logger
}

// NewObserver creates an Observer writing to logger.
func NewObserver(logger zerolog.Logger) *Observer {
	return &Observer{logger: logger.With().Str("component", "chatstream").Logger()}
}

// Observe logs the event at the matching zerolog level.
func (o *Observer) Observe(level chatstream.Level, event string, fields chatstream.Fields) {
	e := o.logger.WithLevel(zerologLevel(level))
	if e == nil {
		return
	}
	e.Str("event", event).Fields(map[string]any(fields)).Msg(event)
}

func zerologLevel(l chatstream.Level) zerolog.Level {
	switch l {
	case chatstream.LevelDebug:
		return zerolog.DebugLevel
	case chatstream.LevelWarn:
		return zerolog.WarnLevel
	case chatstream.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
