// Package gemini implements [chatstream.Generator] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between chatstream's
// messages and the Gemini API types. Streaming consumes the SDK's iter.Seq2
// iterator and forwards text parts as deltas.
package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192
)

// models is the subset of [genai.Models] used by the client.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}
