package gemini

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// collect drains a streaming iterator, forwarding text parts to onDelta.
// Thought parts are skipped.
func collect(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], onDelta func(string)) (string, error) {
	var text strings.Builder
	for resp, err := range seq {
		if err != nil {
			if ctx.Err() != nil {
				return text.String(), fmt.Errorf("gemini: %w", ctx.Err())
			}
			return text.String(), wrapError(err)
		}
		if err := blocked(resp); err != nil {
			return text.String(), err
		}
		for _, delta := range textParts(resp) {
			text.WriteString(delta)
			onDelta(delta)
		}
	}
	if ctx.Err() != nil {
		return text.String(), fmt.Errorf("gemini: %w", ctx.Err())
	}
	return text.String(), nil
}

// responseText returns the joined text of a complete response.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if err := blocked(resp); err != nil {
		return "", err
	}
	return strings.Join(textParts(resp), ""), nil
}

// textParts returns the non-thought text parts of the first candidate.
func textParts(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return nil
	}
	var out []string
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		out = append(out, p.Text)
	}
	return out
}

// blocked reports a prompt or candidate rejected by the safety filters.
func blocked(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return fmt.Errorf("gemini: prompt blocked by content filter: %s", pf.BlockReason)
	}
	if len(resp.Candidates) > 0 {
		switch r := resp.Candidates[0].FinishReason; r {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
			return fmt.Errorf("gemini: response blocked by content filter: %s", r)
		}
	}
	return nil
}
