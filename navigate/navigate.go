// Package navigate scrolls a prompt into view and flashes an outline on it.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/scanner"
)

// ErrClosed is returned by NavigateTo after Close.
var ErrClosed = errors.New("navigate: closed")

// Inline style properties the highlight touches. Their values are captured
// before the first write and written back unchanged.
var highlightProps = []string{"outline", "outline-offset", "transition"}

// Config configures a Navigator.
type Config struct {
	// Highlight is how long the outline stays. Default: 1500ms.
	Highlight time.Duration `yaml:"highlight"`
	// Fade is how long the fade-out transition stays enabled. Default: 300ms.
	Fade time.Duration `yaml:"fade"`
	// Outline is the highlight outline. Default: "3px solid #3b82f6".
	Outline string `yaml:"outline"`
	// OutlineOffset. Default: "2px".
	OutlineOffset string `yaml:"outline_offset"`
	// Transition is enabled while the outline fades. Default: "outline 0.3s ease".
	Transition string `yaml:"transition"`
	// RestoreTimeout bounds each timer-driven style write. Default: 2s.
	RestoreTimeout time.Duration `yaml:"restore_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Highlight <= 0 {
		c.Highlight = 1500 * time.Millisecond
	}
	if c.Fade <= 0 {
		c.Fade = 300 * time.Millisecond
	}
	if c.Outline == "" {
		c.Outline = "3px solid #3b82f6"
	}
	if c.OutlineOffset == "" {
		c.OutlineOffset = "2px"
	}
	if c.Transition == "" {
		c.Transition = "outline 0.3s ease"
	}
	if c.RestoreTimeout <= 0 {
		c.RestoreTimeout = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// highlight is one in-flight outline sequence.
type highlight struct {
	el    dom.Element
	saved map[string]string
	timer *time.Timer
}

// Navigator runs at most one highlight at a time.
type Navigator struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	active *highlight
	closed bool
}

// New creates a Navigator.
func New(cfg Config) *Navigator {
	cfg.defaults()
	return &Navigator{cfg: cfg, logger: cfg.Logger}
}

// NavigateTo scrolls the prompt's element to the viewport centre and
// outlines it. After Highlight the outline is removed with a transition
// enabled; after a further Fade the transition is reverted. Any highlight
// still in flight is restored first.
//
// A detached element yields dom.ErrDetached; the caller should rescan.
func (n *Navigator) NavigateTo(ctx context.Context, p scanner.Prompt) error {
	if p.Element == nil {
		return fmt.Errorf("navigate: prompt %d: %w", p.Index, dom.ErrDetached)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.restoreLocked()

	el := p.Element
	if err := el.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("navigate: scroll %s: %w", p.ID, err)
	}
	saved, err := el.Style(ctx, highlightProps...)
	if err != nil {
		return fmt.Errorf("navigate: read style %s: %w", p.ID, err)
	}
	err = el.SetStyle(ctx, map[string]string{
		"outline":        n.cfg.Outline,
		"outline-offset": n.cfg.OutlineOffset,
	})
	if err != nil {
		return fmt.Errorf("navigate: highlight %s: %w", p.ID, err)
	}

	h := &highlight{el: el, saved: saved}
	h.timer = time.AfterFunc(n.cfg.Highlight, func() { n.fade(h) })
	n.active = h

	n.logger.Debug("navigate: highlighted", "id", p.ID, "index", p.Index)
	return nil
}

// fade removes the outline with the transition enabled.
func (n *Navigator) fade(h *highlight) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active != h {
		return
	}
	n.apply(h, map[string]string{
		"outline":        h.saved["outline"],
		"outline-offset": h.saved["outline-offset"],
		"transition":     n.cfg.Transition,
	})
	h.timer = time.AfterFunc(n.cfg.Fade, func() { n.finish(h) })
}

// finish reverts the transition and ends the sequence.
func (n *Navigator) finish(h *highlight) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active != h {
		return
	}
	n.apply(h, map[string]string{"transition": h.saved["transition"]})
	n.active = nil
}

// restoreLocked writes back every captured value of the in-flight
// highlight at once. It must be called with n.mu held.
func (n *Navigator) restoreLocked() {
	h := n.active
	if h == nil {
		return
	}
	h.timer.Stop()
	n.apply(h, h.saved)
	n.active = nil
}

// apply writes styles with a bounded context. Failures are not fatal: the
// element may have left the page mid-sequence.
func (n *Navigator) apply(h *highlight, values map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RestoreTimeout)
	defer cancel()
	if err := h.el.SetStyle(ctx, values); err != nil {
		n.logger.Debug("navigate: restore style", "key", h.el.Key(), "error", err)
	}
}

// Active reports whether a highlight sequence is in flight.
func (n *Navigator) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active != nil
}

// Close restores any in-flight highlight and rejects further navigation.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.restoreLocked()
	n.closed = true
}
