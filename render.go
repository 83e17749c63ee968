package chatstream

import (
	"fmt"
	"sync"
	"time"
)

// RenderMode selects how message content is presented.
type RenderMode int

const (
	ModeLiteral RenderMode = iota // Content shown as-is.
	ModeRich                      // Content formatted by a Renderer.
)

func (m RenderMode) String() string {
	if m == ModeRich {
		return "rich"
	}
	return "literal"
}

// DefaultSettleDelay is how long finished content must stay unchanged
// before it is switched to rich rendering.
const DefaultSettleDelay = 100 * time.Millisecond

// DefaultFailureNotice accompanies literal content shown because rich
// rendering failed.
const DefaultFailureNotice = "Formatting failed; showing plain text."

// Renderer formats message content for display at the given width.
type Renderer interface {
	Render(content string, width int) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(content string, width int) (string, error)

// Render calls f.
func (f RendererFunc) Render(content string, width int) (string, error) {
	return f(content, width)
}

// Rendered is the presentation of a message at one point in time.
type Rendered struct {
	Text   string
	Mode   RenderMode
	Notice string
}

// RenderController decides per message whether to show literal or rich
// content. Streaming content is always literal. Finished, non-empty content
// switches to rich once it has been stable for the settle delay. A renderer
// error or panic degrades that content to literal text plus a notice.
//
// Time is passed in explicitly so callers can drive transitions from their
// own tick source.
type RenderController struct {
	renderer Renderer
	delay    time.Duration
	notice   string
	observer Observer

	mu    sync.Mutex
	views map[string]*renderView
}

type renderView struct {
	content  string
	deadline time.Time // zero when disarmed
	failed   bool      // rich rendering failed for content
}

// RenderOption configures a [RenderController].
type RenderOption func(*RenderController)

// WithSettleDelay sets the settle delay. Default is DefaultSettleDelay.
func WithSettleDelay(d time.Duration) RenderOption {
	return func(rc *RenderController) { rc.delay = d }
}

// WithFailureNotice sets the notice shown when rich rendering fails.
func WithFailureNotice(notice string) RenderOption {
	return func(rc *RenderController) { rc.notice = notice }
}

// WithRenderObserver sets the observer notified of render failures.
func WithRenderObserver(o Observer) RenderOption {
	return func(rc *RenderController) { rc.observer = o }
}

// NewRenderController creates a controller that formats rich content with
// renderer.
func NewRenderController(renderer Renderer, opts ...RenderOption) *RenderController {
	rc := &RenderController{
		renderer: renderer,
		delay:    DefaultSettleDelay,
		notice:   DefaultFailureNotice,
		observer: NopObserver,
		views:    make(map[string]*renderView),
	}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Observe records the current state of msg and returns the mode it should
// be shown in at now.
func (rc *RenderController) Observe(msg Message, now time.Time) RenderMode {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.observe(msg, now)
}

func (rc *RenderController) observe(msg Message, now time.Time) RenderMode {
	v, ok := rc.views[msg.ID]
	if !ok {
		v = &renderView{}
		rc.views[msg.ID] = v
	}
	if msg.Content != v.content {
		v.content = msg.Content
		v.deadline = time.Time{}
		v.failed = false
	}
	if msg.Streaming || msg.Content == "" {
		v.deadline = time.Time{}
		return ModeLiteral
	}
	if v.deadline.IsZero() {
		v.deadline = now.Add(rc.delay)
	}
	if now.Before(v.deadline) || v.failed {
		return ModeLiteral
	}
	return ModeRich
}

// NextTransition returns the time until the earliest pending switch to
// rich rendering, relative to now. ok is false when nothing is pending.
func (rc *RenderController) NextTransition(now time.Time) (wait time.Duration, ok bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, v := range rc.views {
		if v.deadline.IsZero() || v.failed || !now.Before(v.deadline) {
			continue
		}
		d := v.deadline.Sub(now)
		if !ok || d < wait {
			wait, ok = d, true
		}
	}
	return wait, ok
}

// View returns the presentation of msg at now for the given width.
func (rc *RenderController) View(msg Message, width int, now time.Time) Rendered {
	rc.mu.Lock()
	mode := rc.observe(msg, now)
	v := rc.views[msg.ID]
	failed := v.failed && !msg.Streaming && msg.Content != ""
	rc.mu.Unlock()

	if failed {
		return Rendered{Text: msg.Content, Mode: ModeLiteral, Notice: rc.notice}
	}
	if mode == ModeLiteral {
		return Rendered{Text: msg.Content, Mode: ModeLiteral}
	}

	out, err := rc.render(msg.Content, width)
	if err != nil {
		rc.mu.Lock()
		if cur, ok := rc.views[msg.ID]; ok && cur.content == msg.Content {
			cur.failed = true
		}
		rc.mu.Unlock()
		rc.observer.Observe(LevelWarn, EventRenderFailed, Fields{
			"message_id": msg.ID,
			"kind":       string(FailureRender),
			"error":      err.Error(),
		})
		return Rendered{Text: msg.Content, Mode: ModeLiteral, Notice: rc.notice}
	}
	return Rendered{Text: out, Mode: ModeRich}
}

// Forget drops the state kept for a message.
func (rc *RenderController) Forget(id string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.views, id)
}

// render calls the renderer, converting a panic into an error.
func (rc *RenderController) render(content string, width int) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return rc.renderer.Render(content, width)
}
