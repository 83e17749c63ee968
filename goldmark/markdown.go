// Package goldmark renders markdown text to ANSI-styled terminal output
// using goldmark for parsing, chroma for code highlighting and lipgloss for
// styling.
package goldmark

import (
	"errors"
	"unicode/utf8"

	"github.com/fwojciec/chatstream"
)

var _ chatstream.Renderer = (*Renderer)(nil)

// ErrInvalidUTF8 is returned for content that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("goldmark: content is not valid UTF-8")

// Renderer formats markdown for the terminal. It implements
// chatstream.Renderer.
type Renderer struct {
	theme     chatstream.Theme
	codeStyle string
	highlight bool
}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithCodeStyle sets the chroma style used for fenced code. Default is
// "monokai".
func WithCodeStyle(name string) Option {
	return func(r *Renderer) { r.codeStyle = name }
}

// WithHighlighting enables or disables syntax highlighting of fenced code.
func WithHighlighting(enabled bool) Option {
	return func(r *Renderer) { r.highlight = enabled }
}

// New creates a Renderer using theme.
func New(theme chatstream.Theme, opts ...Option) *Renderer {
	r := &Renderer{theme: theme, codeStyle: "monokai", highlight: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render parses markdown content and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width. Code blocks are
// rendered at full width without reflow.
func (r *Renderer) Render(content string, width int) (string, error) {
	if content == "" {
		return "", nil
	}
	if !utf8.ValidString(content) {
		return "", ErrInvalidUTF8
	}
	if width <= 0 {
		width = 80
	}
	return newANSIRenderer(r).render([]byte(content), width), nil
}

// Render is a convenience wrapper around New(theme).Render that drops the
// error and returns content unchanged on failure.
func Render(source string, width int, theme chatstream.Theme) string {
	out, err := New(theme).Render(source, width)
	if err != nil {
		return source
	}
	return out
}
