package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fwojciec/chatstream"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ chatstream.Generator = (*Client)(nil)

// Client implements [chatstream.Generator] for the Google Gemini API.
type Client struct {
	models    models
	model     string
	maxTokens int
	system    string
	baseURL   string
	http      *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens sets the output token limit. Default is 8192.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets the system instruction sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) { c.system = prompt }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := newClient(opts)
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.http,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

func newClient(opts []Option) *Client {
	c := &Client{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate returns the complete reply to history in one call.
func (c *Client) Generate(ctx context.Context, history []chatstream.Message) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, ConvertMessages(history), c.config())
	if err != nil {
		return "", wrapError(err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Stream generates the reply to history, calling onDelta with each text
// fragment as it arrives, and returns the full text.
func (c *Client) Stream(ctx context.Context, history []chatstream.Message, onDelta func(string)) (string, error) {
	seq := c.models.GenerateContentStream(ctx, c.model, ConvertMessages(history), c.config())
	return collect(ctx, seq, onDelta)
}

func (c *Client) config() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.maxTokens),
	}
	if c.system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.system}},
		}
	}
	return config
}

// ConvertMessages converts chatstream messages to genai Contents. Empty
// messages are dropped. Exported for testing.
func ConvertMessages(msgs []chatstream.Message) []*genai.Content {
	var result []*genai.Content
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == chatstream.RoleAssistant {
			role = "model"
		}
		result = append(result, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return result
}

// wrapError converts SDK API errors to [chatstream.StatusError] so callers
// can classify them by status code.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Status != "" {
			msg = apiErr.Status + ": " + msg
		}
		return fmt.Errorf("gemini: %w", &chatstream.StatusError{StatusCode: apiErr.Code, Message: msg})
	}
	return fmt.Errorf("gemini: %w", err)
}
