package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// FakeModels stands in for the SDK in tests.
type FakeModels struct {
	GenerateFn func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	StreamFn   func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

func (f *FakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f.GenerateFn(ctx, model, contents, config)
}

func (f *FakeModels) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return f.StreamFn(ctx, model, contents, config)
}

// NewWithModels returns a Client backed by m instead of the SDK.
func NewWithModels(m *FakeModels, opts ...Option) *Client {
	c := newClient(opts)
	c.models = m
	return c
}
