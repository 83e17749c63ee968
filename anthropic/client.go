package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/chatstream"
)

// Interface compliance check.
var _ chatstream.Generator = (*Client)(nil)

// Client implements [chatstream.Generator] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	system     string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens sets the reply token limit.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.system = prompt }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate sends a non-streaming request and returns the reply text.
func (c *Client) Generate(ctx context.Context, history []chatstream.Message) (string, error) {
	resp, err := c.post(ctx, history, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Stream sends a streaming request, calls onDelta for each text fragment and
// returns the assembled reply.
func (c *Client) Stream(ctx context.Context, history []chatstream.Message, onDelta func(string)) (string, error) {
	resp, err := c.post(ctx, history, true)
	if err != nil {
		return "", err
	}
	s := newStream(ctx, resp.Body)
	defer s.Close()

	for {
		delta, err := s.Next()
		if errors.Is(err, io.EOF) {
			return s.Text(), nil
		}
		if err != nil {
			return s.Text(), err
		}
		onDelta(delta)
	}
}

func (c *Client) post(ctx context.Context, history []chatstream.Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(c.buildRequest(history, stream))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return resp, nil
}

func (c *Client) buildRequest(history []chatstream.Message, stream bool) apiRequest {
	req := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    stream,
		Messages:  convertMessages(history),
	}
	if c.system != "" {
		req.System = []apiContentBlock{{Type: "text", Text: c.system}}
	}
	return req
}

// convertMessages maps history to API messages. Consecutive messages with
// the same role are merged, as the API requires alternating roles, and
// empty messages are dropped.
func convertMessages(msgs []chatstream.Message) []apiMessage {
	var result []apiMessage
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == chatstream.RoleAssistant {
			role = "assistant"
		}
		block := apiContentBlock{Type: "text", Text: m.Content}
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, block)
			continue
		}
		result = append(result, apiMessage{Role: role, Content: []apiContentBlock{block}})
	}
	return result
}

// parseHTTPError returns a *chatstream.StatusError carrying the API's error
// message.
func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: %w", &chatstream.StatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read body: %v", err),
		})
	}
	msg := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Type + ": " + apiErr.Error.Message
	}
	return fmt.Errorf("anthropic: %w", &chatstream.StatusError{StatusCode: resp.StatusCode, Message: msg})
}
