// Package overlay wires one navigator session onto a page: the platform
// registry feeds the scanner, published scans are rendered into the
// floating panel, and UI events drive the panel geometry controller and the
// scroll navigator.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/idgen"
	"github.com/hazyhaar/promptnav/navigate"
	"github.com/hazyhaar/promptnav/panel"
	"github.com/hazyhaar/promptnav/platform"
	"github.com/hazyhaar/promptnav/scanner"
)

// RootID is the id of the marker element the session places on the page.
const RootID = "promptnav-root"

var (
	// ErrAlreadyAttached is returned by Attach when the page already
	// carries a root marker. Callers treat it as a no-op.
	ErrAlreadyAttached = errors.New("overlay: already attached")
	// ErrNoPrompt is returned for an index outside the published list.
	ErrNoPrompt = errors.New("overlay: no such prompt")
	// ErrBadEvent is returned by HandleEvent for an unknown event type.
	ErrBadEvent = errors.New("overlay: unknown event")
	// ErrBadRequest is returned by endpoints for malformed requests.
	ErrBadRequest = errors.New("overlay: bad request")
)

// View is everything the render layer needs to draw the panel.
type View struct {
	SessionID  string            `json:"session_id"`
	Platform   platform.Platform `json:"platform"`
	Prompts    []scanner.Prompt  `json:"prompts"`
	Scanning   bool              `json:"scanning"`
	Generation uint64            `json:"generation"`
	Panel      panel.State       `json:"panel"`
	// Footprint is the on-screen size of the panel in its current mode.
	Footprint panel.Size `json:"footprint"`
}

// Renderer draws a View.
type Renderer interface {
	Render(ctx context.Context, v View) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, v View) error

func (f RendererFunc) Render(ctx context.Context, v View) error { return f(ctx, v) }

// Options configures a Session.
type Options struct {
	// Scanner.Registry is required. Scanner.OnUpdate, if set, is called
	// after the session has rendered the update.
	Scanner  scanner.Config
	Panel    panel.Config
	Navigate navigate.Config
	// Viewport is the initial window size. Default: 1280x800.
	Viewport panel.Size
	// RenderTimeout bounds renders triggered by scans. Default: 2s.
	RenderTimeout time.Duration
	Logger        *slog.Logger
}

func (o *Options) defaults() {
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = panel.Size{Width: 1280, Height: 800}
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Scanner.Logger == nil {
		o.Scanner.Logger = o.Logger
	}
	if o.Panel.Logger == nil {
		o.Panel.Logger = o.Logger
	}
	if o.Navigate.Logger == nil {
		o.Navigate.Logger = o.Logger
	}
}

// Session is one attached navigator.
type Session struct {
	id     string
	doc    dom.Document
	r      Renderer
	logger *slog.Logger
	opts   Options

	scanner *scanner.Scanner
	panel   *panel.Controller
	nav     *navigate.Navigator

	renderMu  sync.Mutex
	closeOnce sync.Once
}

// Attach places the root marker on doc and starts scanning until ctx is
// cancelled or Close is called. A page that already carries the marker
// yields ErrAlreadyAttached and is left alone. r may be nil for headless use.
func Attach(ctx context.Context, doc dom.Document, r Renderer, opts Options) (*Session, error) {
	opts.defaults()

	existed, err := doc.Mark(ctx, RootID)
	if err != nil {
		return nil, fmt.Errorf("overlay: mark: %w", err)
	}
	if existed {
		return nil, ErrAlreadyAttached
	}

	s := &Session{
		id:     idgen.Prefixed("sess_", idgen.Default)(),
		doc:    doc,
		r:      r,
		logger: opts.Logger,
		opts:   opts,
		panel:  panel.New(opts.Panel, opts.Viewport),
		nav:    navigate.New(opts.Navigate),
	}

	scfg := opts.Scanner
	user := scfg.OnUpdate
	scfg.OnUpdate = func(st scanner.State) {
		ctx, cancel := context.WithTimeout(context.Background(), opts.RenderTimeout)
		s.render(ctx)
		cancel()
		if user != nil {
			user(st)
		}
	}
	s.scanner = scanner.New(doc, scfg)

	if err := s.scanner.Start(ctx); err != nil {
		s.nav.Close()
		if uerr := doc.Unmark(context.WithoutCancel(ctx), RootID); uerr != nil {
			s.logger.Warn("overlay: unmark after failed start", "error", uerr)
		}
		return nil, fmt.Errorf("overlay: attach: %w", err)
	}

	s.logger.Info("overlay: attached", "session", s.id, "platform", s.scanner.Platform())
	s.render(ctx)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Panel returns the geometry controller.
func (s *Session) Panel() *panel.Controller { return s.panel }

// View returns the current view.
func (s *Session) View() View {
	st := s.scanner.State()
	return View{
		SessionID:  s.id,
		Platform:   st.Platform,
		Prompts:    st.Prompts,
		Scanning:   st.Scanning,
		Generation: st.Generation,
		Panel:      s.panel.State(),
		Footprint:  s.panel.Footprint(),
	}
}

// Rescan runs an immediate full scan and returns the resulting view.
func (s *Session) Rescan(ctx context.Context) (View, error) {
	if _, err := s.scanner.Rescan(ctx); err != nil {
		return View{}, fmt.Errorf("overlay: rescan: %w", err)
	}
	return s.View(), nil
}

// Navigate scrolls to the prompt with the given 1-based index. When its
// element has left the page a rescan is triggered and dom.ErrDetached is
// returned.
func (s *Session) Navigate(ctx context.Context, index int) error {
	p, ok := s.scanner.Prompt(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoPrompt, index)
	}
	err := s.nav.NavigateTo(ctx, p)
	if errors.Is(err, dom.ErrDetached) {
		s.logger.Info("overlay: prompt detached, rescanning", "index", index, "id", p.ID)
		if _, rerr := s.scanner.Rescan(ctx); rerr != nil {
			s.logger.Warn("overlay: rescan after detach", "error", rerr)
		}
	}
	if err != nil {
		return fmt.Errorf("overlay: navigate %d: %w", index, err)
	}
	return nil
}

// HandleEvent applies one UI event and re-renders.
func (s *Session) HandleEvent(ctx context.Context, ev dom.UIEvent) error {
	pt := panel.Point{X: ev.X, Y: ev.Y}

	switch ev.Type {
	case dom.EventPointerDown:
		switch ev.Target {
		case dom.TargetHeader, dom.TargetIcon:
			s.panel.BeginDrag(pt)
		case dom.TargetHandle:
			if _, ok := s.panel.BeginResize(pt); !ok {
				return nil
			}
		default:
			return nil
		}
	case dom.EventPointerMove:
		g := s.panel.Live()
		if g == nil {
			return nil
		}
		g.Move(pt)
	case dom.EventPointerUp:
		if g := s.panel.Live(); g != nil {
			g.End()
		}
	case dom.EventClickIcon:
		if !s.panel.ClickIcon() {
			return nil
		}
	case dom.EventCollapse:
		if !s.panel.Collapse() {
			return nil
		}
	case dom.EventResize:
		s.panel.Reflow(panel.Size{Width: ev.Width, Height: ev.Height})
	case dom.EventRescan:
		_, err := s.Rescan(ctx)
		return err
	case dom.EventSelect:
		return s.Navigate(ctx, ev.Index)
	default:
		return fmt.Errorf("%w: %q", ErrBadEvent, ev.Type)
	}

	s.render(ctx)
	return nil
}

// Refresh re-renders the current view.
func (s *Session) Refresh(ctx context.Context) { s.render(ctx) }

func (s *Session) render(ctx context.Context) {
	if s.r == nil {
		return
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if err := s.r.Render(ctx, s.View()); err != nil {
		s.logger.Warn("overlay: render", "session", s.id, "error", err)
	}
}

// Close stops scanning, restores any highlight and removes the root
// marker. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.scanner.Stop()
		s.nav.Close()
		if uerr := s.doc.Unmark(ctx, RootID); uerr != nil {
			err = fmt.Errorf("overlay: unmark: %w", uerr)
		}
		s.logger.Info("overlay: closed", "session", s.id)
	})
	return err
}
