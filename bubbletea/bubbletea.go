// Package bubbletea provides a Bubble Tea TUI for chatstream conversations.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// UpdateMsg carries a message snapshot published by the conversation.
type UpdateMsg struct {
	Message chatstream.Message
}

// ExchangeDoneMsg signals that a send has returned.
type ExchangeDoneMsg struct {
	Outcome chatstream.Outcome
	Err     error
}

// transitionMsg fires when a pending switch to rich rendering may be due.
type transitionMsg struct{}
