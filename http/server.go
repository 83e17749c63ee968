package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/chatstream"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// MaxRequestBodySize bounds JSON request bodies.
const MaxRequestBodySize = 1 << 20

const maxTitleRunes = 50

// titlePrompt is appended to the history when asking the generator for a
// session title.
const titlePrompt = "Reply with a short title (at most eight words, no quotes) for the conversation above."

// Server serves the chat endpoints.
type Server struct {
	store        chatstream.SessionStore
	gen          chatstream.Generator
	observer     chatstream.Observer
	limiter      *rate.Limiter
	historyLimit int
	metrics      http.Handler
	now          func() time.Time
	newID        func() string

	handler http.Handler
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithObserver sets the observer for request and reply events.
func WithObserver(o chatstream.Observer) ServerOption {
	return func(s *Server) { s.observer = o }
}

// WithRateLimit limits requests to r per second with the given burst.
// Requests over the limit receive 429 Too Many Requests.
func WithRateLimit(r rate.Limit, burst int) ServerOption {
	return func(s *Server) { s.limiter = rate.NewLimiter(r, burst) }
}

// WithHistoryLimit sets how many prior messages are sent to the generator.
// Default is chatstream.DefaultHistoryLimit.
func WithHistoryLimit(n int) ServerOption {
	return func(s *Server) { s.historyLimit = n }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithServerClock sets the time source for message timestamps.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithServerIDGenerator sets the message ID generator.
func WithServerIDGenerator(fn func() string) ServerOption {
	return func(s *Server) { s.newID = fn }
}

// NewServer creates a Server storing messages in store and producing
// replies with gen.
func NewServer(store chatstream.SessionStore, gen chatstream.Generator, opts ...ServerOption) *Server {
	s := &Server{
		store:        store,
		gen:          gen,
		observer:     chatstream.NopObserver,
		historyLimit: chatstream.DefaultHistoryLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+streamPath, s.handleStream)
	mux.HandleFunc("POST "+oneShotPath, s.handleOneShot)
	mux.HandleFunc("GET "+sessionsPath, s.handleListSessions)
	mux.HandleFunc("POST "+sessionsPath, s.handleCreateSession)
	mux.HandleFunc("PATCH "+sessionsPath+"/{id}", s.handleRenameSession)
	mux.HandleFunc("DELETE "+sessionsPath+"/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET "+sessionsPath+"/{id}/messages", s.handleListMessages)
	mux.HandleFunc("POST "+sessionsPath+"/{id}/messages", s.handleAppendMessage)
	mux.HandleFunc("POST "+sessionsPath+"/{id}/title", s.handleGenerateTitle)
	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET "+metricsPath, s.metrics)
	}
	s.handler = s.instrument(s.rateLimit(mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleStream saves the user message, streams the generated reply as
// message frames and terminates with a done frame and the [DONE] sentinel.
// A generation failure ends the stream with an error frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	history, err := s.prepare(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", eventStreamType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	messageID := s.newID()
	_ = writeFrame(w, "start", messageID)
	flusher.Flush()

	content, err := s.gen.Stream(r.Context(), history, func(delta string) {
		if delta == "" {
			return
		}
		_ = writeFrame(w, chatstream.FrameMessage, delta)
		flusher.Flush()
	})
	if err != nil {
		s.observeReplyFailure("stream", req.SessionID, err)
		if r.Context().Err() != nil {
			return
		}
		_ = writeFrame(w, chatstream.FrameError, err.Error())
		flusher.Flush()
		return
	}
	s.finish(r.Context(), req.SessionID, messageID, content, "stream")

	_ = writeFrame(w, chatstream.FrameDone, "")
	_ = writeSentinel(w)
	flusher.Flush()
}

// handleOneShot saves the user message and returns the complete reply.
func (s *Server) handleOneShot(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	history, err := s.prepare(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	content, err := s.gen.Generate(r.Context(), history)
	if err == nil && content == "" {
		err = chatstream.ErrEmptyCompletion
	}
	if err != nil {
		s.observeReplyFailure("oneshot", req.SessionID, err)
		writeError(w, statusForClass(chatstream.Classify(err)), err.Error())
		return
	}
	messageID := s.newID()
	s.finish(r.Context(), req.SessionID, messageID, content, "oneshot")
	writeJSON(w, http.StatusOK, apiChatResponse{
		SessionID: req.SessionID,
		MessageID: messageID,
		Role:      string(chatstream.RoleAssistant),
		Content:   content,
	})
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatstream.StreamRequest, bool) {
	var req chatstream.StreamRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// prepare stores the user message and returns the generation history,
// which ends with that message.
func (s *Server) prepare(ctx context.Context, req chatstream.StreamRequest) ([]chatstream.Message, error) {
	user := chatstream.Message{
		ID:        s.newID(),
		SessionID: req.SessionID,
		Role:      chatstream.RoleUser,
		Content:   req.Message,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendMessage(ctx, user); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	msgs, err := s.store.ListMessages(ctx, req.SessionID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if s.historyLimit > 0 && len(msgs) > s.historyLimit {
		msgs = msgs[len(msgs)-s.historyLimit:]
	}
	return msgs, nil
}

// finish persists the assistant reply. Persistence failures are observed
// but do not fail the reply, which has already been produced.
func (s *Server) finish(ctx context.Context, sessionID, messageID, content, mode string) {
	msg := chatstream.Message{
		ID:        messageID,
		SessionID: sessionID,
		Role:      chatstream.RoleAssistant,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		s.observer.Observe(chatstream.LevelError, chatstream.EventReplyFailed, chatstream.Fields{
			"mode":       mode,
			"session_id": sessionID,
			"stage":      "persist",
			"error":      err.Error(),
		})
		return
	}
	s.observer.Observe(chatstream.LevelInfo, chatstream.EventReplyGenerated, chatstream.Fields{
		"mode":       mode,
		"session_id": sessionID,
		"message_id": messageID,
		"length":     len(content),
	})
}

func (s *Server) observeReplyFailure(mode, sessionID string, err error) {
	s.observer.Observe(chatstream.LevelError, chatstream.EventReplyFailed, chatstream.Fields{
		"mode":       mode,
		"session_id": sessionID,
		"class":      string(chatstream.Classify(err)),
		"error":      err.Error(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := apiSessionList{Sessions: make([]apiSession, len(sessions)), Total: len(sessions)}
	for i, sess := range sessions {
		out.Sessions[i] = toAPISession(sess)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req apiTitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = chatstream.DefaultSessionTitle(s.now())
	}
	sess, err := s.store.CreateSession(r.Context(), req.Title)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPISession(sess))
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req apiTitleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := chatstream.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.RenameSession(r.Context(), r.PathValue("id"), req.Title); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err1 := queryInt(r, "limit")
	offset, err2 := queryInt(r, "offset")
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := apiMessageList{
		Messages: make([]apiMessage, len(msgs)),
		Total:    offset + len(msgs),
		HasMore:  limit > 0 && len(msgs) == limit,
	}
	for i, m := range msgs {
		out.Messages[i] = toAPIMessage(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var in apiMessage
	if !decodeJSON(w, r, &in) {
		return
	}
	msg := fromAPIMessage(in)
	msg.SessionID = r.PathValue("id")
	if msg.Role != chatstream.RoleUser && msg.Role != chatstream.RoleAssistant {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid role %q", in.Role))
		return
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if err := s.store.AppendMessage(r.Context(), msg); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIMessage(msg))
}

// handleGenerateTitle asks the generator to title a session from its
// recent messages and renames the session.
func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.store.ListMessages(r.Context(), id, s.historyLimit, 0)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(msgs) == 0 {
		writeError(w, http.StatusBadRequest, "session has no messages")
		return
	}
	prompt := append(msgs, chatstream.Message{Role: chatstream.RoleUser, Content: titlePrompt})
	raw, err := s.gen.Generate(r.Context(), prompt)
	if err != nil {
		writeError(w, statusForClass(chatstream.Classify(err)), err.Error())
		return
	}
	title := cleanTitle(raw)
	if title == "" {
		title = chatstream.DefaultSessionTitle(s.now())
	}
	if err := s.store.RenameSession(r.Context(), id, title); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiSession{ID: id, Title: title})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cleanTitle keeps the first line of a generated title without quotes and
// caps its length.
func cleanTitle(raw string) string {
	title, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	title = strings.Trim(strings.TrimSpace(title), "\"'`*#")
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return title
}

// statusForClass maps an error class to the status returned to clients so
// that they classify the failure the same way.
func statusForClass(c chatstream.ErrorClass) int {
	switch c {
	case chatstream.ClassTimeout:
		return http.StatusGatewayTimeout
	case chatstream.ClassAuth:
		return http.StatusForbidden
	case chatstream.ClassQuota:
		return http.StatusTooManyRequests
	case chatstream.ClassModel:
		return http.StatusUnprocessableEntity
	case chatstream.ClassNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatstream.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatstream.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
