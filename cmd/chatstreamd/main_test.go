package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/fwojciec/chatstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      generatorConfig
		wantName string
		wantKey  string
		wantErr  string
	}{
		{"explicit anthropic", generatorConfig{Provider: "anthropic", APIKey: "sk-test"}, "anthropic", "sk-test", ""},
		{"explicit gemini", generatorConfig{Provider: "gemini", GeminiKey: "gk-test"}, "gemini", "gk-test", ""},
		{"unknown provider", generatorConfig{Provider: "openai", APIKey: "key"}, "", "", "unknown provider"},
		{"no keys", generatorConfig{}, "", "", "no API key found"},
		{"both keys", generatorConfig{AnthropicKey: "sk", GeminiKey: "gk"}, "", "", "multiple API keys"},
		{"auto-detect anthropic", generatorConfig{AnthropicKey: "sk-ant"}, "anthropic", "sk-ant", ""},
		{"auto-detect gemini", generatorConfig{GeminiKey: "gk-gem"}, "gemini", "gk-gem", ""},
		{"generic key defaults to anthropic", generatorConfig{APIKey: "generic"}, "anthropic", "generic", ""},
		{"generic key overrides env", generatorConfig{Provider: "anthropic", APIKey: "sk-flag", AnthropicKey: "sk-env"}, "anthropic", "sk-flag", ""},
		{"explicit provider missing key", generatorConfig{Provider: "anthropic"}, "", "", "ANTHROPIC_API_KEY not set"},
		{"explicit gemini missing key", generatorConfig{Provider: "gemini"}, "", "", "GEMINI_API_KEY not set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, key, err := resolveProvider(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResolveGenerator(t *testing.T) {
	t.Parallel()

	gen, name, err := resolveGenerator(context.Background(), generatorConfig{AnthropicKey: "sk", Model: "claude-x", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
	assert.NotNil(t, gen)

	gen, name, err = resolveGenerator(context.Background(), generatorConfig{GeminiKey: "gk"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)
	assert.NotNil(t, gen)
}

func TestOpenStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, kind := range []string{"sqlite", "json"} {
		t.Run(kind, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "data")
			if kind == "sqlite" {
				path = filepath.Join(path, "chat.db")
			}
			store, closeStore, err := openStore(ctx, kind, path)
			require.NoError(t, err)
			defer closeStore()

			sess, err := store.CreateSession(ctx, "Hello")
			require.NoError(t, err)
			require.NoError(t, store.AppendMessage(ctx, chatstream.Message{SessionID: sess.ID, Role: chatstream.RoleUser, Content: "hi"}))
			msgs, err := store.ListMessages(ctx, sess.ID, 0, 0)
			require.NoError(t, err)
			assert.Len(t, msgs, 1)
		})
	}

	_, _, err := openStore(ctx, "redis", "x")
	assert.ErrorContains(t, err, "unknown store")
}

func TestPrintBanner(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printBanner(&buf, "127.0.0.1:8080", "anthropic", "sqlite", "data/chat.db")
	out := buf.String()
	assert.Contains(t, out, "chatstreamd")
	assert.Contains(t, out, "127.0.0.1:8080")
	assert.Contains(t, out, "anthropic")
	assert.Contains(t, out, "sqlite (data/chat.db)")
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
