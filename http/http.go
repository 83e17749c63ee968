// Package http implements the chat wire contract over HTTP: a Client that
// satisfies chatstream.StreamTransport, chatstream.CompletionService and
// chatstream.SessionStore, and a Server that serves the same endpoints on
// top of a chatstream.SessionStore and chatstream.Generator.
package http

import (
	"time"

	"github.com/fwojciec/chatstream"
)

// Endpoint paths shared by Client and Server.
const (
	streamPath   = "/api/chat/stream"
	oneShotPath  = "/api/chat"
	sessionsPath = "/api/sessions"
	metricsPath  = "/metrics"
	healthPath   = "/healthz"
)

const eventStreamType = "text/event-stream"

type apiSession struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type apiMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type apiSessionList struct {
	Sessions []apiSession `json:"sessions"`
	Total    int          `json:"total"`
}

type apiMessageList struct {
	Messages []apiMessage `json:"messages"`
	Total    int          `json:"total"`
	HasMore  bool         `json:"has_more"`
}

type apiTitleRequest struct {
	Title string `json:"title"`
}

type apiChatResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

type apiError struct {
	Error string `json:"error"`
}

func toAPISession(s chatstream.Session) apiSession {
	return apiSession{
		ID:           s.ID,
		Title:        s.Title,
		LastMessage:  s.LastMessage,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

func fromAPISession(s apiSession) chatstream.Session {
	return chatstream.Session{
		ID:           s.ID,
		Title:        s.Title,
		LastMessage:  s.LastMessage,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

func toAPIMessage(m chatstream.Message) apiMessage {
	return apiMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func fromAPIMessage(m apiMessage) chatstream.Message {
	return chatstream.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      chatstream.Role(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
