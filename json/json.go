// Package json persists sessions as JSON files, one envelope per session.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/chatstream"
)

// envelope is the v1 on-disk format of a session and its messages.
type envelope struct {
	Version  int          `json:"version"`
	Session  sessionDTO   `json:"session"`
	Messages []messageDTO `json:"messages"`
}

type sessionDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalSession serializes a session and its messages in v1 envelope
// format.
func MarshalSession(s chatstream.Session, msgs []chatstream.Message) ([]byte, error) {
	env := envelope{
		Version: 1,
		Session: sessionDTO{
			ID:           s.ID,
			Title:        s.Title,
			LastMessage:  s.LastMessage,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
		},
		Messages: make([]messageDTO, len(msgs)),
	}
	for i, m := range msgs {
		if m.SessionID != "" && m.SessionID != s.ID {
			return nil, fmt.Errorf("message %d: belongs to session %q", i, m.SessionID)
		}
		env.Messages[i] = messageDTO{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalSession deserializes a session and its messages from v1 envelope
// format.
func UnmarshalSession(data []byte) (chatstream.Session, []chatstream.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return chatstream.Session{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return chatstream.Session{}, nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	s := chatstream.Session{
		ID:           env.Session.ID,
		Title:        env.Session.Title,
		LastMessage:  env.Session.LastMessage,
		MessageCount: env.Session.MessageCount,
		CreatedAt:    env.Session.CreatedAt,
		LastActiveAt: env.Session.LastActiveAt,
	}
	msgs := make([]chatstream.Message, len(env.Messages))
	for i, dto := range env.Messages {
		role := chatstream.Role(dto.Role)
		if role != chatstream.RoleUser && role != chatstream.RoleAssistant {
			return chatstream.Session{}, nil, fmt.Errorf("message %d: unknown role %q", i, dto.Role)
		}
		msgs[i] = chatstream.Message{
			ID:        dto.ID,
			SessionID: s.ID,
			Role:      role,
			Content:   dto.Content,
			CreatedAt: dto.CreatedAt,
		}
	}
	return s, msgs, nil
}

// Save writes a session to a JSON file, creating parent directories as
// needed. The file is replaced atomically.
func Save(path string, s chatstream.Session, msgs []chatstream.Message) error {
	data, err := MarshalSession(s, msgs)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a session from a JSON file.
func Load(path string) (chatstream.Session, []chatstream.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chatstream.Session{}, nil, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalSession(data)
}
