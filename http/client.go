package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fwojciec/chatstream"
)

// Interface compliance checks.
var (
	_ chatstream.StreamTransport   = (*Client)(nil)
	_ chatstream.CompletionService = (*Client)(nil)
	_ chatstream.SessionStore      = (*Client)(nil)
)

// Client talks to a chat server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OpenStream posts req to the streaming endpoint and returns the event
// stream body. A non-200 status returns a *chatstream.StatusError; a
// response that is not an event stream returns a protocol-error.
func (c *Client) OpenStream(ctx context.Context, req chatstream.StreamRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", eventStreamType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != eventStreamType {
		resp.Body.Close()
		return nil, &chatstream.TransportError{
			Kind: chatstream.FailureProtocol,
			Err:  fmt.Errorf("http: unexpected content type %q", resp.Header.Get("Content-Type")),
		}
	}
	return resp.Body, nil
}

// SendOneShot posts text to the one-shot endpoint and returns the reply.
func (c *Client) SendOneShot(ctx context.Context, sessionID, text string) (chatstream.Completion, error) {
	var out apiChatResponse
	err := c.do(ctx, http.MethodPost, oneShotPath, chatstream.StreamRequest{SessionID: sessionID, Message: text}, &out)
	if err != nil {
		return chatstream.Completion{}, err
	}
	return chatstream.Completion{Content: out.Content}, nil
}

// CreateSession creates a session with title.
func (c *Client) CreateSession(ctx context.Context, title string) (chatstream.Session, error) {
	var out apiSession
	if err := c.do(ctx, http.MethodPost, sessionsPath, apiTitleRequest{Title: title}, &out); err != nil {
		return chatstream.Session{}, err
	}
	return fromAPISession(out), nil
}

// ListSessions returns all sessions, most recently active first.
func (c *Client) ListSessions(ctx context.Context) ([]chatstream.Session, error) {
	var out apiSessionList
	if err := c.do(ctx, http.MethodGet, sessionsPath, nil, &out); err != nil {
		return nil, err
	}
	sessions := make([]chatstream.Session, len(out.Sessions))
	for i, s := range out.Sessions {
		sessions[i] = fromAPISession(s)
	}
	return sessions, nil
}

// RenameSession sets the title of session id.
func (c *Client) RenameSession(ctx context.Context, id, title string) error {
	return c.do(ctx, http.MethodPatch, sessionPath(id), apiTitleRequest{Title: title}, nil)
}

// DeleteSession deletes session id and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

// ListMessages returns a page of messages of a session, oldest first.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]chatstream.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := sessionPath(sessionID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out apiMessageList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]chatstream.Message, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = fromAPIMessage(m)
	}
	return msgs, nil
}

// AppendMessage stores msg on the server.
func (c *Client) AppendMessage(ctx context.Context, msg chatstream.Message) error {
	return c.do(ctx, http.MethodPost, sessionPath(msg.SessionID)+"/messages", toAPIMessage(msg), nil)
}

// GenerateTitle asks the server to title session id from its messages and
// returns the new title.
func (c *Client) GenerateTitle(ctx context.Context, id string) (string, error) {
	var out apiSession
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/title", nil, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

func sessionPath(id string) string {
	return sessionsPath + "/" + url.PathEscape(id)
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("http: decode response: %w", err)
	}
	return nil
}

// parseHTTPError builds a *chatstream.StatusError from a failed response.
// A 404 also wraps chatstream.ErrSessionNotFound.
func parseHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	statusErr := &chatstream.StatusError{StatusCode: resp.StatusCode, Message: msg}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("http: %w: %w", chatstream.ErrSessionNotFound, statusErr)
	}
	return fmt.Errorf("http: %w", statusErr)
}

// IsStatus reports whether err carries an HTTP status equal to code.
func IsStatus(err error, code int) bool {
	var se *chatstream.StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
