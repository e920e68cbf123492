// Package rodpage implements dom.Document over a live Chrome tab driven
// through the DevTools protocol with go-rod.
//
// A small runtime and the panel overlay are injected into the page (and
// re-installed on every new document). They report MutationObserver records
// and overlay UI events back to Go through a single Runtime.addBinding
// channel. URL changes are read
// from Page.navigatedWithinDocument events, with location polling as a
// fallback; the page's history entry points are never patched.
package rodpage

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/promptnav/dom"
)

//go:embed runtime.js
var runtimeJS string

//go:embed overlay.js
var overlayJS string

const bindingName = "__promptnavBinding"

// Options configures a Page.
type Options struct {
	// PollInterval is the location polling period. Default: 1s.
	PollInterval time.Duration
	// CallTimeout bounds calls made on behalf of subscriptions (re-install,
	// unsubscribe). Default: 5s.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type changeObserver struct {
	container string
	fn        func(dom.Change)
}

// Page is a dom.Document backed by a rod page.
type Page struct {
	page   *rod.Page
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	nextSub     int
	observers   map[int]changeObserver
	locWatchers map[int]func(dom.Location)
	uiHandlers  map[int]func(dom.UIEvent)
	marks       map[string]bool
	lastHref    string
}

// bindingMessage is what the injected runtime sends through the binding.
type bindingMessage struct {
	Type  string          `json:"type"`
	Sub   int             `json:"sub"`
	Kind  string          `json:"kind"`
	Event json.RawMessage `json:"event"`
}

// New installs the runtime on page and starts listening for page events.
// Close stops listening; it does not close the tab.
func New(ctx context.Context, page *rod.Page, opts Options) (*Page, error) {
	opts.defaults()

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		opts.Logger.Warn("rodpage: addBinding failed (may already exist)", "error", err)
	}
	// The overlay depends on the runtime: keep this order.
	for _, js := range []string{runtimeJS, overlayJS} {
		if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{Source: "(" + js + ")()"}).Call(page); err != nil {
			return nil, fmt.Errorf("rodpage: register script: %w", err)
		}
		if _, err := page.Context(ctx).Eval(js); err != nil {
			return nil, fmt.Errorf("rodpage: inject script: %w", err)
		}
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Page{
		page:        page,
		opts:        opts,
		logger:      opts.Logger,
		ctx:         pctx,
		cancel:      cancel,
		observers:   make(map[int]changeObserver),
		locWatchers: make(map[int]func(dom.Location)),
		uiHandlers:  make(map[int]func(dom.UIEvent)),
		marks:       make(map[string]bool),
	}
	if loc, err := p.Location(ctx); err == nil {
		p.lastHref = loc.Href
	}

	p.wg.Add(2)
	go p.listen()
	go p.poll()
	return p, nil
}

// Rod returns the underlying page.
func (p *Page) Rod() *rod.Page { return p.page }

// Close stops the event listener and the location poller.
func (p *Page) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

// Location implements dom.Document.
func (p *Page) Location(ctx context.Context) (dom.Location, error) {
	res, err := p.page.Context(ctx).Eval(`() => ({ href: location.href, hostname: location.hostname })`)
	if err != nil {
		return dom.Location{}, fmt.Errorf("rodpage: location: %w", err)
	}
	var loc dom.Location
	if err := res.Value.Unmarshal(&loc); err != nil {
		return dom.Location{}, fmt.Errorf("rodpage: location: %w", err)
	}
	return loc, nil
}

// QueryAll implements dom.Document.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("rodpage: selector %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		e, err := newElement(ctx, el)
		if err != nil {
			// The node went away between the query and the key lookup.
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Mark implements dom.Document. The marker is placed again after every
// full document load until Unmark.
func (p *Page) Mark(ctx context.Context, id string) (bool, error) {
	existed, err := p.mark(ctx, id)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	p.marks[id] = true
	p.mu.Unlock()
	return existed, nil
}

func (p *Page) mark(ctx context.Context, id string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(`(id) => window.__promptnav.mark(id)`, id)
	if err != nil {
		return false, fmt.Errorf("rodpage: mark: %w", err)
	}
	return res.Value.Bool(), nil
}

// Unmark implements dom.Document.
func (p *Page) Unmark(ctx context.Context, id string) error {
	p.mu.Lock()
	delete(p.marks, id)
	p.mu.Unlock()
	if _, err := p.page.Context(ctx).Eval(`(id) => window.__promptnav.unmark(id)`, id); err != nil {
		return fmt.Errorf("rodpage: unmark: %w", err)
	}
	return nil
}

// Viewport returns the window inner size.
func (p *Page) Viewport(ctx context.Context) (width, height float64, err error) {
	res, err := p.page.Context(ctx).Eval(`() => ({ w: window.innerWidth, h: window.innerHeight })`)
	if err != nil {
		return 0, 0, fmt.Errorf("rodpage: viewport: %w", err)
	}
	return res.Value.Get("w").Num(), res.Value.Get("h").Num(), nil
}

// Observe implements dom.Document with an injected MutationObserver. The
// observation is re-installed after a full document load.
func (p *Page) Observe(ctx context.Context, container string, fn func(dom.Change)) (dom.Subscription, error) {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.observers[id] = changeObserver{container: container, fn: fn}
	p.mu.Unlock()

	if err := p.installObserver(ctx, id, container); err != nil {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
		return nil, err
	}

	return &subscription{cancel: func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.opts.CallTimeout)
		defer cancel()
		if _, err := p.page.Context(ctx).Eval(`(id) => window.__promptnav && window.__promptnav.unobserve(id)`, id); err != nil {
			p.logger.Debug("rodpage: unobserve", "sub", id, "error", err)
		}
	}}, nil
}

func (p *Page) installObserver(ctx context.Context, id int, container string) error {
	res, err := p.page.Context(ctx).Eval(`(id, c) => window.__promptnav.observe(id, c)`, id, container)
	if err != nil {
		return fmt.Errorf("rodpage: observe %q: %w", container, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("rodpage: observe %q: no document body", container)
	}
	return nil
}

// WatchLocation implements dom.Document.
func (p *Page) WatchLocation(_ context.Context, fn func(dom.Location)) (dom.Subscription, error) {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.locWatchers[id] = fn
	p.mu.Unlock()

	return &subscription{cancel: func() {
		p.mu.Lock()
		delete(p.locWatchers, id)
		p.mu.Unlock()
	}}, nil
}

// OnUIEvent subscribes fn to events sent by the injected overlay.
func (p *Page) OnUIEvent(fn func(dom.UIEvent)) dom.Subscription {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.uiHandlers[id] = fn
	p.mu.Unlock()

	return &subscription{cancel: func() {
		p.mu.Lock()
		delete(p.uiHandlers, id)
		p.mu.Unlock()
	}}
}

// listen dispatches binding calls and navigation events until Close.
func (p *Page) listen() {
	defer p.wg.Done()
	p.page.Context(p.ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			var msg bindingMessage
			if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
				p.logger.Warn("rodpage: parse binding payload", "error", err)
				return
			}
			p.dispatch(msg)
		},
		func(e *proto.PageNavigatedWithinDocument) {
			p.locationChanged(e.URL)
		},
		func(e *proto.PageLoadEventFired) {
			p.wg.Add(1)
			go p.reinstall()
		},
	)()
}

func (p *Page) dispatch(msg bindingMessage) {
	switch msg.Type {
	case "change":
		p.mu.Lock()
		o, ok := p.observers[msg.Sub]
		p.mu.Unlock()
		if ok {
			o.fn(dom.Change{Kind: dom.ChangeKind(msg.Kind)})
		}
	case "ui":
		var ev dom.UIEvent
		if err := json.Unmarshal(msg.Event, &ev); err != nil {
			p.logger.Warn("rodpage: parse ui event", "error", err)
			return
		}
		p.mu.Lock()
		fns := make([]func(dom.UIEvent), 0, len(p.uiHandlers))
		for _, fn := range p.uiHandlers {
			fns = append(fns, fn)
		}
		p.mu.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
	default:
		p.logger.Debug("rodpage: unknown binding message", "type", msg.Type)
	}
}

// reinstall restores root markers and change observation after a full
// document load, then reports the new document as a change.
func (p *Page) reinstall() {
	defer p.wg.Done()
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.CallTimeout)
	defer cancel()

	p.mu.Lock()
	marks := make([]string, 0, len(p.marks))
	for id := range p.marks {
		marks = append(marks, id)
	}
	subs := make(map[int]changeObserver, len(p.observers))
	for id, o := range p.observers {
		subs[id] = o
	}
	p.mu.Unlock()

	for _, id := range marks {
		if _, err := p.mark(ctx, id); err != nil {
			p.logger.Warn("rodpage: reinstall marker", "id", id, "error", err)
		}
	}
	for id, o := range subs {
		if err := p.installObserver(ctx, id, o.container); err != nil {
			p.logger.Warn("rodpage: reinstall observer", "sub", id, "error", err)
			continue
		}
		o.fn(dom.Change{Kind: dom.ChangeChildList})
	}
	if loc, err := p.Location(ctx); err == nil {
		p.locationChanged(loc.Href)
	}
}

// poll catches URL changes no event reported.
func (p *Page) poll() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(p.ctx, p.opts.CallTimeout)
			loc, err := p.Location(ctx)
			cancel()
			if err != nil {
				if p.ctx.Err() == nil {
					p.logger.Debug("rodpage: poll location", "error", err)
				}
				continue
			}
			p.locationChanged(loc.Href)
		}
	}
}

// locationChanged notifies watchers once per distinct href.
func (p *Page) locationChanged(href string) {
	p.mu.Lock()
	if href == "" || href == p.lastHref {
		p.mu.Unlock()
		return
	}
	p.lastHref = href
	fns := make([]func(dom.Location), 0, len(p.locWatchers))
	for _, fn := range p.locWatchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	loc := dom.Location{Href: href, Hostname: hostname(href)}
	p.logger.Debug("rodpage: location changed", "href", href)
	for _, fn := range fns {
		fn(loc)
	}
}

func hostname(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
