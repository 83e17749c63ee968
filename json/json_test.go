package json_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	chatjson "github.com/fwojciec/chatstream/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSession_RoundTrip(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	active := time.Date(2026, 2, 18, 12, 5, 0, 0, time.UTC)

	session := chatstream.Session{
		ID:           "sess-123",
		Title:        "Login bug",
		LastMessage:  "Look at auth.go",
		MessageCount: 2,
		CreatedAt:    created,
		LastActiveAt: active,
	}
	msgs := []chatstream.Message{
		{ID: "m1", SessionID: "sess-123", Role: chatstream.RoleUser, Content: "Fix the login bug", CreatedAt: created},
		{ID: "m2", Role: chatstream.RoleAssistant, Content: "Look at auth.go", CreatedAt: active, Streaming: true},
	}

	data, err := chatjson.MarshalSession(session, msgs)
	require.NoError(t, err)

	gotSession, gotMsgs, err := chatjson.UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, session.ID, gotSession.ID)
	assert.Equal(t, session.Title, gotSession.Title)
	assert.Equal(t, 2, gotSession.MessageCount)
	assert.True(t, active.Equal(gotSession.LastActiveAt))
	require.Len(t, gotMsgs, 2)
	assert.Equal(t, "sess-123", gotMsgs[1].SessionID)
	assert.Equal(t, chatstream.RoleAssistant, gotMsgs[1].Role)
	assert.False(t, gotMsgs[1].Streaming)
}

func TestMarshalSession_ForeignMessage(t *testing.T) {
	t.Parallel()
	_, err := chatjson.MarshalSession(chatstream.Session{ID: "a"}, []chatstream.Message{{SessionID: "b", Content: "x"}})
	assert.Error(t, err)
}

func TestUnmarshalSession_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{"invalid json", `{`, "unmarshal envelope"},
		{"unsupported version", `{"version":2,"session":{"id":"x"}}`, "unsupported envelope version: 2"},
		{"unknown role", `{"version":1,"session":{"id":"x"},"messages":[{"role":"system","content":"x"}]}`, `unknown role "system"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := chatjson.UnmarshalSession([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	session := chatstream.Session{ID: "s1", Title: "Hello"}
	msgs := []chatstream.Message{{ID: "m1", Role: chatstream.RoleUser, Content: "hi"}}

	require.NoError(t, chatjson.Save(path, session, msgs))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	gotSession, gotMsgs, err := chatjson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello", gotSession.Title)
	require.Len(t, gotMsgs, 1)
	assert.Equal(t, "hi", gotMsgs[0].Content)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	_, _, err := chatjson.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T) *chatjson.Store {
	t.Helper()
	s, err := chatjson.NewStore(t.TempDir(), chatjson.WithClock(tickingClock()))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create, rename and list", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		a, err := s.CreateSession(ctx, "Alpha")
		require.NoError(t, err)
		b, err := s.CreateSession(ctx, "Beta")
		require.NoError(t, err)
		require.NoError(t, s.RenameSession(ctx, a.ID, "Alpha 2"))

		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, b.ID, list[0].ID)
		assert.Equal(t, "Alpha 2", list[1].Title)

		require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: a.ID, Role: chatstream.RoleUser, Content: "hi"}))
		list, err = s.ListSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, a.ID, list[0].ID, "appending makes a session most recent")
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := newStore(t).CreateSession(ctx, "  ")
		assert.ErrorIs(t, err, chatstream.ErrValidation)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		assert.ErrorIs(t, s.RenameSession(ctx, "nope", "x"), chatstream.ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(ctx, "nope"), chatstream.ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(ctx, "../etc"), chatstream.ErrSessionNotFound)
		_, err := s.ListMessages(ctx, "nope", 0, 0)
		assert.ErrorIs(t, err, chatstream.ErrSessionNotFound)
		err = s.AppendMessage(ctx, chatstream.Message{SessionID: "nope", Role: chatstream.RoleUser, Content: "hi"})
		assert.ErrorIs(t, err, chatstream.ErrSessionNotFound)
	})

	t.Run("messages with limit and offset", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		sess, err := s.CreateSession(ctx, "Paging")
		require.NoError(t, err)
		for i := range 5 {
			require.NoError(t, s.AppendMessage(ctx, chatstream.Message{
				SessionID: sess.ID,
				Role:      chatstream.RoleUser,
				Content:   fmt.Sprintf("m%d", i),
			}))
		}

		all, err := s.ListMessages(ctx, sess.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.NotEmpty(t, all[0].ID)
		assert.Equal(t, "m0", all[0].Content)

		page, err := s.ListMessages(ctx, sess.ID, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "m1", page[0].Content)
		assert.Equal(t, "m2", page[1].Content)

		past, err := s.ListMessages(ctx, sess.ID, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, past)

		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, list[0].MessageCount)
		assert.Equal(t, "m4", list[0].LastMessage)
	})

	t.Run("blank content is rejected", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		sess, err := s.CreateSession(ctx, "x")
		require.NoError(t, err)
		err = s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: " "})
		assert.ErrorIs(t, err, chatstream.ErrValidation)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		sess, err := s.CreateSession(ctx, "Gone")
		require.NoError(t, err)
		require.NoError(t, s.DeleteSession(ctx, sess.ID))
		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
