package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// eventBuffer bounds the conversation updates queued ahead of the UI.
const eventBuffer = 256

// Model is the Bubble Tea model for a single conversation.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	sender *chatstream.Sender
	conv   *chatstream.Conversation
	render *chatstream.RenderController
	styles Styles
	title  string
	now    func() time.Time

	// events carries UpdateMsg values from the conversation followed by one
	// ExchangeDoneMsg per send.
	events chan tea.Msg

	running bool
	cancel  context.CancelFunc
	err     error
	ready   bool
}

type config struct {
	sessionID string
	title     string
	history   []chatstream.Message
	theme     chatstream.Theme
	observer  chatstream.Observer
	now       func() time.Time
	render    []chatstream.RenderOption
}

// Option configures a [Model].
type Option func(*config)

// WithSession binds the conversation to an existing session. Without it a
// session is created by the first send.
func WithSession(id, title string) Option {
	return func(c *config) {
		c.sessionID = id
		c.title = title
	}
}

// WithHistory seeds the conversation with stored messages.
func WithHistory(msgs []chatstream.Message) Option {
	return func(c *config) { c.history = msgs }
}

// WithTheme sets the color theme. Default is chatstream.DefaultTheme().
func WithTheme(t chatstream.Theme) Option {
	return func(c *config) { c.theme = t }
}

// WithObserver sets the observer for conversation and render events.
func WithObserver(o chatstream.Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithClock sets the time source used for message timestamps and render
// transitions.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithRenderOptions passes options to the RenderController.
func WithRenderOptions(opts ...chatstream.RenderOption) Option {
	return func(c *config) { c.render = append(c.render, opts...) }
}

// New creates a TUI Model that sends through sender and formats finished
// replies with renderer.
func New(sender *chatstream.Sender, renderer chatstream.Renderer, opts ...Option) Model {
	cfg := config{
		title:    "New conversation",
		theme:    chatstream.DefaultTheme(),
		observer: chatstream.NopObserver,
		now:      time.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	events := make(chan tea.Msg, eventBuffer)
	conv := chatstream.NewConversation(cfg.sessionID,
		chatstream.WithHistory(cfg.history),
		chatstream.WithObserver(cfg.observer),
		chatstream.WithClock(cfg.now),
		chatstream.WithUpdateHandler(func(msg chatstream.Message) {
			events <- UpdateMsg{Message: msg}
		}),
	)
	renderOpts := append([]chatstream.RenderOption{chatstream.WithRenderObserver(cfg.observer)}, cfg.render...)

	return Model{
		Input:  ti,
		sender: sender,
		conv:   conv,
		render: chatstream.NewRenderController(renderer, renderOpts...),
		styles: NewStyles(cfg.theme),
		title:  cfg.title,
		now:    cfg.now,
		events: events,
	}
}

// Running returns whether an exchange is in flight.
func (m Model) Running() bool { return m.running }

// Err returns the error of the last send that could not start, if any.
func (m Model) Err() error { return m.err }

// Conversation returns the conversation driven by the model.
func (m Model) Conversation() *chatstream.Conversation { return m.conv }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m.render.Observe(msg.Message, m.now())
		m = m.refresh()
		return m, tea.Batch(listen(m.events), m.scheduleTransition())

	case ExchangeDoneMsg:
		m.running = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		m = m.refresh()
		return m, tea.Batch(m.Input.Focus(), m.scheduleTransition())

	case transitionMsg:
		m = m.refresh()
		return m, m.scheduleTransition()
	}

	// Pass remaining messages to sub-components.
	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	// Output area.
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")

	// Status line.
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	// Input area.
	b.WriteString(m.Input.View())

	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) (Model, tea.Cmd) {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width

	m = m.refresh()
	return m, m.scheduleTransition()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.running && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)
	}

	// When idle, pass keys to both input (for typing) and viewport
	// (for scrolling). Only forward non-character keys to viewport to avoid
	// conflicts (e.g. 'j'/'k' are viewport scroll AND text characters).
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	// Scrolling stays available while a reply streams in.
	if msg.Type != tea.KeyRunes {
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	return m, tea.Batch(
		startExchange(ctx, m.sender, m.conv, text, m.events),
		listen(m.events),
	)
}

// refresh re-renders the conversation into the viewport, keeping it
// scrolled to the bottom when it already was.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	atBottom := m.Viewport.AtBottom()
	m.Viewport.SetContent(m.renderContent())
	if atBottom || m.running {
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) renderContent() string {
	blocks := m.blocks()
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString(blockSeparator(blocks[i-1], block))
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// blocks builds the blocks for the current conversation snapshot.
func (m Model) blocks() []MessageBlock {
	now := m.now()
	var (
		blocks []MessageBlock
		last   string
	)
	for _, msg := range m.conv.Messages() {
		switch msg.Role {
		case chatstream.RoleUser:
			blocks = append(blocks, NewUserMessageBlock(msg.Content, m.styles))
		case chatstream.RoleAssistant:
			rendered := m.render.View(msg, m.Viewport.Width, now)
			blocks = append(blocks, NewAssistantBlock(rendered, msg.Streaming, m.styles))
			last = msg.Content
		}
	}
	// A failed stream already shows the explanation as the reply.
	if class := m.conv.Class(); class != "" && !m.running && last != class.Explanation() {
		blocks = append(blocks, NewErrorBlock(class.Explanation(), m.styles))
	}
	return blocks
}

// scheduleTransition returns a tick for the earliest pending switch to rich
// rendering, or nil when none is pending.
func (m Model) scheduleTransition() tea.Cmd {
	wait, ok := m.render.NextTransition(m.now())
	if !ok {
		return nil
	}
	return tea.Tick(wait, func(time.Time) tea.Msg { return transitionMsg{} })
}

func (m Model) statusLine() string {
	var hint string
	switch {
	case m.err != nil:
		hint = m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.running:
		hint = m.styles.Muted.Render("Generating... Esc to cancel")
	default:
		hint = m.styles.Muted.Render("Enter to send, Ctrl+C to quit")
	}

	const sep = " · "
	avail := m.Viewport.Width - lipgloss.Width(hint) - runewidth.StringWidth(sep)
	if avail <= 0 {
		return hint
	}
	title := runewidth.Truncate(m.title, avail, "…")
	return m.styles.Accent.Render(title) + m.styles.Muted.Render(sep) + hint
}

// startExchange runs one send in the background and reports its result on
// events once every conversation update has been queued.
func startExchange(ctx context.Context, sender *chatstream.Sender, conv *chatstream.Conversation, text string, events chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		out, err := sender.Send(ctx, conv, text)
		events <- ExchangeDoneMsg{Outcome: out, Err: err}
		return nil
	}
}

// listen waits for the next conversation event.
func listen(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
