// Package scanner keeps an ordered list of the user prompts visible on a
// chat page.
//
// A Scanner identifies the platform from the page hostname, queries the
// platform's selectors in order and extracts one Prompt per matched element.
// Page changes under the platform's container trigger a debounced rescan so
// a streaming reply produces one scan, not one per token. URL changes made
// without a document load (single-page-app navigation) trigger a full rescan
// once the new content has had time to settle.
//
// All work runs on one goroutine per Scanner: change notifications, timers,
// manual rescans and navigation are serialised there, so scans never
// interleave. The published State is replaced as a whole after every scan.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/extract"
	"github.com/hazyhaar/promptnav/platform"
)

var (
	// ErrStarted is returned by Start on a running scanner.
	ErrStarted = errors.New("scanner: already started")
	// ErrStopped is returned by Rescan when the scanner is not running.
	ErrStopped = errors.New("scanner: not running")
)

// Prompt is one user message found on the page.
//
// ID is derived from Index and the element position when it was first
// discovered. It identifies the prompt within the current scan generation
// only and must not be stored as a durable key: layout changes and manual
// rescans recompute it.
type Prompt struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
	// Element is a non-owning reference to the page node. Any access may
	// fail with dom.ErrDetached.
	Element      dom.Element `json:"-"`
	DiscoveredAt time.Time   `json:"discovered_at"`
}

// State is the published result of the last scan.
type State struct {
	Prompts    []Prompt          `json:"prompts"`
	Platform   platform.Platform `json:"platform"`
	Scanning   bool              `json:"scanning"`
	Generation uint64            `json:"generation"`
}

// Config configures a Scanner.
type Config struct {
	// Registry maps hostnames to selector configurations. Required.
	Registry *platform.Registry
	// Extractor summarises matched elements. Default: extract.New with
	// default options.
	Extractor *extract.Extractor
	// Debounce is the quiet window after a page change. Default: 300ms.
	Debounce time.Duration
	// Settle is the delay after a URL change before rescanning. Default: 500ms.
	Settle time.Duration
	// StartDelay is the delay before the first scan. Default: 500ms.
	StartDelay time.Duration
	// OnUpdate is called on the scanner goroutine after every published
	// scan. It must not block.
	OnUpdate func(State)
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Extractor == nil {
		c.Extractor = extract.New(extract.Options{})
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.Settle <= 0 {
		c.Settle = 500 * time.Millisecond
	}
	if c.StartDelay <= 0 {
		c.StartDelay = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// discovery is what the identity cache remembers about an element.
type discovery struct {
	top, left float64
	at        time.Time
}

type rescanRequest struct {
	reply chan State
}

// Scanner watches one document.
type Scanner struct {
	doc    dom.Document
	cfg    Config
	logger *slog.Logger

	state    atomic.Pointer[State]
	scanning atomic.Bool

	changes chan struct{}
	navs    chan dom.Location
	rescans chan rescanRequest

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Owned by the loop goroutine.
	changeSub  dom.Subscription
	locSub     dom.Subscription
	container  string
	cache      map[string]discovery
	generation uint64
}

// New creates a Scanner for doc. It does not touch the document until Start.
func New(doc dom.Document, cfg Config) *Scanner {
	cfg.defaults()
	s := &Scanner{
		doc:     doc,
		cfg:     cfg,
		logger:  cfg.Logger,
		changes: make(chan struct{}, 1),
		navs:    make(chan dom.Location, 1),
		rescans: make(chan rescanRequest),
		cache:   make(map[string]discovery),
	}
	s.state.Store(&State{Platform: platform.Unknown})
	return s
}

// Start subscribes to page changes and URL changes and runs the scanner
// loop until ctx is cancelled or Stop is called. The first scan happens
// after StartDelay.
func (s *Scanner) Start(ctx context.Context) error {
	if s.cfg.Registry == nil {
		return fmt.Errorf("scanner: start: nil registry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrStarted
	}

	loc, err := s.doc.Location(ctx)
	if err != nil {
		return fmt.Errorf("scanner: start: %w", err)
	}
	p := s.cfg.Registry.Identify(loc.Hostname)
	s.state.Store(&State{Platform: p})

	locSub, err := s.doc.WatchLocation(ctx, s.onLocation)
	if err != nil {
		return fmt.Errorf("scanner: watch location: %w", err)
	}
	if err := s.subscribe(ctx, loc.Hostname); err != nil {
		locSub.Close()
		return err
	}
	s.locSub = locSub

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("scanner: started", "href", loc.Href, "platform", p)
	go s.loop(loopCtx, s.done)
	return nil
}

// Stop cancels the loop, releases the page subscriptions and waits for the
// loop goroutine to exit. It is safe to call more than once.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Rescan runs a scan immediately, bypassing and cancelling any pending
// debounce, and clears the identity cache so every prompt ID is recomputed.
// It returns the published state.
func (s *Scanner) Rescan(ctx context.Context) (State, error) {
	s.mu.Lock()
	running, done := s.running, s.done
	s.mu.Unlock()
	if !running {
		return State{}, ErrStopped
	}

	req := rescanRequest{reply: make(chan State, 1)}
	select {
	case s.rescans <- req:
	case <-done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-req.reply:
		return st, nil
	case <-done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// State returns the last published state.
func (s *Scanner) State() State {
	st := *s.state.Load()
	st.Scanning = s.scanning.Load()
	return st
}

// Prompts returns the last published prompt list. The slice is shared and
// must not be modified.
func (s *Scanner) Prompts() []Prompt { return s.state.Load().Prompts }

// Platform returns the platform identified by the last scan.
func (s *Scanner) Platform() platform.Platform { return s.state.Load().Platform }

// Scanning reports whether a scan is in progress.
func (s *Scanner) Scanning() bool { return s.scanning.Load() }

// Prompt returns the prompt with the given 1-based index.
func (s *Scanner) Prompt(index int) (Prompt, bool) {
	prompts := s.Prompts()
	if index < 1 || index > len(prompts) {
		return Prompt{}, false
	}
	return prompts[index-1], true
}

func (s *Scanner) onChange(dom.Change) {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Scanner) onLocation(loc dom.Location) {
	// Keep the newest location: drain a stale one first.
	select {
	case <-s.navs:
	default:
	}
	select {
	case s.navs <- loc:
	default:
	}
}

// loop is the scanner event loop.
func (s *Scanner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	debounce := newDebouncer(s.cfg.Debounce)
	// The first scan waits StartDelay; later URL changes wait Settle.
	settle := newDebouncer(s.cfg.StartDelay)
	settle.reset()
	settle.window = s.cfg.Settle

	defer func() {
		debounce.stop()
		settle.stop()
		s.unsubscribe()
		if s.locSub != nil {
			s.locSub.Close()
			s.locSub = nil
		}
		s.mu.Lock()
		if s.done == done {
			s.running = false
		}
		s.mu.Unlock()
		s.logger.Info("scanner: stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.changes:
			debounce.reset()

		case <-debounce.timerC():
			debounce.stop()
			s.scan(ctx)

		case loc := <-s.navs:
			s.logger.Info("scanner: navigation detected", "href", loc.Href)
			settle.reset()

		case <-settle.timerC():
			settle.stop()
			debounce.stop()
			s.handleSettled(ctx)

		case req := <-s.rescans:
			debounce.stop()
			clear(s.cache)
			req.reply <- s.scan(ctx)
		}
	}
}

// scan runs one scan and publishes its result. Failures are logged and
// publish an empty list. Scanning is cleared before OnUpdate runs.
func (s *Scanner) scan(ctx context.Context) State {
	s.scanning.Store(true)

	start := time.Now()
	prompts, p, err := s.collect(ctx)
	if err != nil {
		s.logger.Warn("scanner: scan failed", "platform", p, "error", err)
		prompts = nil
		clear(s.cache)
	}

	s.generation++
	st := State{Prompts: prompts, Platform: p, Generation: s.generation}
	s.state.Store(&st)
	s.scanning.Store(false)

	s.logger.Debug("scanner: scan complete",
		"platform", p, "prompts", len(prompts), "generation", s.generation,
		"duration", time.Since(start))

	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(st)
	}
	return st
}

// collect evaluates the platform selectors and extracts prompts. A panic
// raised by the document backend is recovered as an error.
func (s *Scanner) collect(ctx context.Context) (prompts []Prompt, p platform.Platform, err error) {
	p = platform.Unknown
	defer func() {
		if r := recover(); r != nil {
			prompts = nil
			err = fmt.Errorf("scanner: panic: %v", r)
		}
	}()

	loc, err := s.doc.Location(ctx)
	if err != nil {
		return nil, p, fmt.Errorf("scanner: location: %w", err)
	}
	pc, ok := s.cfg.Registry.Match(loc.Hostname)
	if !ok {
		clear(s.cache)
		return nil, p, nil
	}
	p = pc.Name

	var els []dom.Element
	for _, sel := range pc.Selectors {
		els, err = s.doc.QueryAll(ctx, sel)
		if err != nil {
			return nil, p, fmt.Errorf("scanner: selector %q: %w", sel, err)
		}
		if len(els) > 0 {
			break
		}
	}

	seen := make(map[string]discovery, len(els))
	for _, el := range els {
		text, err := s.cfg.Extractor.Extract(ctx, el)
		if errors.Is(err, dom.ErrDetached) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("scanner: extract: %w", err)
		}
		if text == "" {
			continue
		}

		key := el.Key()
		d, ok := s.cache[key]
		if !ok {
			r, err := el.Rect(ctx)
			if errors.Is(err, dom.ErrDetached) {
				continue
			}
			if err != nil {
				return nil, p, fmt.Errorf("scanner: rect: %w", err)
			}
			d = discovery{top: r.Top, left: r.Left, at: time.Now()}
		}
		seen[key] = d

		index := len(prompts) + 1
		prompts = append(prompts, Prompt{
			ID:           promptID(index, d.top, d.left),
			Index:        index,
			Text:         text,
			Element:      el,
			DiscoveredAt: d.at,
		})
	}
	s.cache = seen
	return prompts, p, nil
}

func promptID(index int, top, left float64) string {
	return fmt.Sprintf("prompt-%d-%d-%d", index, int64(math.Round(top)), int64(math.Round(left)))
}
