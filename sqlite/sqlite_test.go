package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:", sqlite.WithClock(tickingClock()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Sessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create, rename and list", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)

		a, err := s.CreateSession(ctx, "Alpha")
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		b, err := s.CreateSession(ctx, "Beta")
		require.NoError(t, err)

		require.NoError(t, s.RenameSession(ctx, a.ID, "Alpha 2"))

		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, b.ID, list[0].ID)
		assert.Equal(t, "Alpha 2", list[1].Title)
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		_, err := s.CreateSession(ctx, " ")
		assert.ErrorIs(t, err, chatstream.ErrValidation)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		assert.ErrorIs(t, s.RenameSession(ctx, "nope", "x"), chatstream.ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(ctx, "nope"), chatstream.ErrSessionNotFound)
		_, err := s.ListMessages(ctx, "nope", 0, 0)
		assert.ErrorIs(t, err, chatstream.ErrSessionNotFound)
		err = s.AppendMessage(ctx, chatstream.Message{SessionID: "nope", Role: chatstream.RoleUser, Content: "hi"})
		assert.ErrorIs(t, err, chatstream.ErrSessionNotFound)
	})

	t.Run("delete removes messages", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "Gone")
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: "hi"}))

		require.NoError(t, s.DeleteSession(ctx, sess.ID))
		_, err = s.GetSession(ctx, sess.ID)
		assert.ErrorIs(t, err, chatstream.ErrSessionNotFound)
		list, err := s.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestStore_Messages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("append updates the session", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "Chat")
		require.NoError(t, err)

		require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: "hi"}))
		require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleAssistant, Content: "hello"}))

		got, err := s.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.MessageCount)
		assert.Equal(t, "hello", got.LastMessage)
		assert.True(t, got.LastActiveAt.After(got.CreatedAt))

		msgs, err := s.ListMessages(ctx, sess.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, chatstream.RoleUser, msgs[0].Role)
		assert.Equal(t, "hello", msgs[1].Content)
		assert.NotEmpty(t, msgs[0].ID)
		assert.False(t, msgs[0].Streaming)
	})

	t.Run("explicit fields are kept", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "Chat")
		require.NoError(t, err)
		at := time.Date(2025, 12, 24, 8, 0, 0, 123, time.UTC)

		require.NoError(t, s.AppendMessage(ctx, chatstream.Message{ID: "m1", SessionID: sess.ID, Role: chatstream.RoleUser, Content: "x", CreatedAt: at}))
		msgs, err := s.ListMessages(ctx, sess.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.True(t, at.Equal(msgs[0].CreatedAt))
	})

	t.Run("paging is oldest first", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "Chat")
		require.NoError(t, err)
		for i := range 5 {
			require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: fmt.Sprintf("m%d", i)}))
		}

		page, err := s.ListMessages(ctx, sess.ID, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "m1", page[0].Content)
		assert.Equal(t, "m2", page[1].Content)

		rest, err := s.ListMessages(ctx, sess.ID, 0, 3)
		require.NoError(t, err)
		require.Len(t, rest, 2)
		assert.Equal(t, "m4", rest[1].Content)
	})

	t.Run("blank content is rejected", func(t *testing.T) {
		t.Parallel()
		s := openStore(t)
		sess, err := s.CreateSession(ctx, "Chat")
		require.NoError(t, err)
		err = s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser})
		assert.ErrorIs(t, err, chatstream.ErrValidation)
	})
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	sess, err := s.CreateSession(ctx, "Kept")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: "hi"}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Title)
	assert.Equal(t, 1, got.MessageCount)
}
