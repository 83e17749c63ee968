package bubbletea

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
)

var _ MessageBlock = (*AssistantBlock)(nil)

// streamingIndicator stands in for a reply that has not produced text yet.
const streamingIndicator = "…"

// AssistantBlock renders an assistant reply as decided by the
// RenderController: literal text is wrapped to width, rich text is shown
// as the renderer produced it.
type AssistantBlock struct {
	rendered  chatstream.Rendered
	streaming bool
	styles    Styles
}

// NewAssistantBlock creates an AssistantBlock.
func NewAssistantBlock(rendered chatstream.Rendered, streaming bool, styles Styles) *AssistantBlock {
	return &AssistantBlock{rendered: rendered, streaming: streaming, styles: styles}
}

func (b *AssistantBlock) View(width int) string {
	var out string
	switch {
	case b.rendered.Text == "" && b.streaming:
		out = b.styles.Muted.Render(streamingIndicator)
	case b.rendered.Mode == chatstream.ModeRich:
		out = strings.TrimRight(b.rendered.Text, "\n")
	default:
		out = lipgloss.NewStyle().Width(width).Render(b.rendered.Text)
	}
	if b.rendered.Notice != "" {
		out += "\n" + b.styles.Notice.Render(b.rendered.Notice)
	}
	return out
}
