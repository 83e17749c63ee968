package bubbletea_test

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestUserMessageBlock_View(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(chatstream.DefaultTheme())

	t.Run("renders prompt prefix and text", func(t *testing.T) {
		t.Parallel()
		view := bt.NewUserMessageBlock("hello world", styles).View(80)
		assert.Contains(t, view, "> ")
		assert.Contains(t, view, "hello world")
	})

	t.Run("pads each line to full width", func(t *testing.T) {
		t.Parallel()
		view := bt.NewUserMessageBlock("test", styles).View(40)
		for _, line := range strings.Split(view, "\n") {
			assert.Equal(t, 40, lipgloss.Width(line))
		}
	})

	t.Run("wraps long text to width", func(t *testing.T) {
		t.Parallel()
		long := "short words that keep going and going beyond the viewport width easily"
		view := bt.NewUserMessageBlock(long, styles).View(30)
		assert.Contains(t, view, "easily")
		assert.Greater(t, len(strings.Split(view, "\n")), 1)
	})
}

func TestAssistantBlock_View(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(chatstream.DefaultTheme())

	t.Run("streaming without text shows indicator", func(t *testing.T) {
		t.Parallel()
		view := bt.NewAssistantBlock(chatstream.Rendered{}, true, styles).View(80)
		assert.Contains(t, view, "…")
	})

	t.Run("literal text wraps to width", func(t *testing.T) {
		t.Parallel()
		text := "**not bold** because literal text is shown exactly as received by the client"
		view := bt.NewAssistantBlock(chatstream.Rendered{Text: text, Mode: chatstream.ModeLiteral}, false, styles).View(30)
		assert.Contains(t, view, "**not bold**")
		for _, line := range strings.Split(view, "\n") {
			assert.LessOrEqual(t, lipgloss.Width(line), 30)
		}
	})

	t.Run("rich text is shown as rendered", func(t *testing.T) {
		t.Parallel()
		view := bt.NewAssistantBlock(chatstream.Rendered{Text: "RICH\n\n", Mode: chatstream.ModeRich}, false, styles).View(80)
		assert.Equal(t, "RICH", view)
	})

	t.Run("notice follows text", func(t *testing.T) {
		t.Parallel()
		r := chatstream.Rendered{Text: "# Title", Mode: chatstream.ModeLiteral, Notice: chatstream.DefaultFailureNotice}
		view := bt.NewAssistantBlock(r, false, styles).View(80)
		lines := strings.Split(view, "\n")
		assert.Contains(t, lines[0], "# Title")
		assert.Contains(t, lines[len(lines)-1], chatstream.DefaultFailureNotice)
	})
}

func TestErrorBlock_View(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(chatstream.DefaultTheme())
	view := bt.NewErrorBlock(chatstream.ClassQuota.Explanation(), styles).View(200)
	assert.Contains(t, view, "rate limit")
}

func TestBlockSeparator(t *testing.T) {
	t.Parallel()
	styles := bt.NewStyles(chatstream.DefaultTheme())
	user := bt.NewUserMessageBlock("hi", styles)
	reply := bt.NewAssistantBlock(chatstream.Rendered{Text: "hello"}, false, styles)
	errBlock := bt.NewErrorBlock("failed", styles)

	assert.Equal(t, "\n", bt.BlockSeparator(user, reply))
	assert.Equal(t, "\n\n", bt.BlockSeparator(reply, user))
	assert.Equal(t, "\n\n", bt.BlockSeparator(user, user))
	assert.Equal(t, "\n", bt.BlockSeparator(reply, errBlock))
}
