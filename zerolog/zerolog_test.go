package zerolog_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fwojciec/chatstream"
	czerolog "github.com/fwojciec/chatstream/zerolog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver(t *testing.T) {
	t.Parallel()

	t.Run("writes event with fields", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		o := czerolog.NewObserver(czerolog.NewLogger(czerolog.Config{Level: "debug", Output: &buf}))

		o.Observe(chatstream.LevelWarn, chatstream.EventStreamFailed, chatstream.Fields{
			"session_id": "s1",
			"kind":       "connection-error",
		})

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "stream.failed", entry["event"])
		assert.Equal(t, "stream.failed", entry["message"])
		assert.Equal(t, "s1", entry["session_id"])
		assert.Equal(t, "connection-error", entry["kind"])
		assert.Equal(t, "chatstream", entry["component"])
		assert.Contains(t, entry, "time")
	})

	t.Run("respects configured level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		o := czerolog.NewObserver(czerolog.NewLogger(czerolog.Config{Level: "warn", Output: &buf}))

		o.Observe(chatstream.LevelDebug, chatstream.EventStreamOpened, nil)
		o.Observe(chatstream.LevelInfo, chatstream.EventExchangeStarted, nil)
		assert.Empty(t, buf.String())

		o.Observe(chatstream.LevelError, chatstream.EventOneShotFailed, nil)
		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	})

	t.Run("pretty output is human readable", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		o := czerolog.NewObserver(czerolog.NewLogger(czerolog.Config{Pretty: true, Output: &buf}))

		o.Observe(chatstream.LevelInfo, chatstream.EventSessionCreated, chatstream.Fields{"session_id": "abc"})
		assert.Contains(t, buf.String(), "session.created")
		assert.Contains(t, buf.String(), "abc")
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for name, want := range tests {
		assert.Equal(t, want, czerolog.ParseLevel(name), name)
	}
}
