package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/dom/htmldoc"
	"github.com/hazyhaar/promptnav/navigate"
	"github.com/hazyhaar/promptnav/panel"
	"github.com/hazyhaar/promptnav/platform"
	"github.com/hazyhaar/promptnav/scanner"
)

const page = `<!doctype html>
<html><body>
<main id="thread">
  <div class="q">first question</div>
  <div class="a">an answer</div>
  <div class="q">second <img src="chart.png"></div>
</main>
</body></html>`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Renderer that keeps every view.
type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) Render(_ context.Context, v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func (r *recorder) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}
	}
	return r.views[len(r.views)-1]
}

func testDoc(t *testing.T) *htmldoc.Document {
	t.Helper()
	doc, err := htmldoc.ParseString(page, "https://acme.test/chat/1")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func testOptions(t *testing.T, updates chan<- scanner.State) Options {
	t.Helper()
	reg, err := platform.NewRegistry(platform.Config{
		Name: "acme", HostnameMatch: "acme.test", Selectors: []string{".q"}, ContainerSelector: "#thread",
	})
	if err != nil {
		t.Fatal(err)
	}
	return Options{
		Scanner: scanner.Config{
			Registry:   reg,
			StartDelay: 10 * time.Millisecond,
			Debounce:   20 * time.Millisecond,
			Settle:     20 * time.Millisecond,
			OnUpdate: func(st scanner.State) {
				select {
				case updates <- st:
				default:
				}
			},
		},
		Navigate: navigate.Config{Highlight: time.Hour},
		Viewport: panel.Size{Width: 1000, Height: 800},
		Logger:   discard(),
	}
}

// attach starts a session on doc and waits for its first scan.
func attach(t *testing.T, doc dom.Document, r Renderer, tweaks ...func(*Options)) *Session {
	t.Helper()
	updates := make(chan scanner.State, 16)
	opts := testOptions(t, updates)
	for _, fn := range tweaks {
		fn(&opts)
	}
	s, err := Attach(context.Background(), doc, r, opts)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("no scan published")
	}
	return s
}

func TestAttach_RendersScans(t *testing.T) {
	rec := &recorder{}
	s := attach(t, testDoc(t), rec)

	v := rec.last()
	if v.SessionID != s.ID() || v.Platform != "acme" {
		t.Errorf("view: session %q platform %q", v.SessionID, v.Platform)
	}
	if len(v.Prompts) != 2 {
		t.Fatalf("prompts: got %d, want 2", len(v.Prompts))
	}
	if v.Prompts[1].Text != "[Image] second" {
		t.Errorf("prompt 2 text: %q", v.Prompts[1].Text)
	}
	if v.Panel.Mode != panel.Expanded {
		t.Errorf("panel mode: %q", v.Panel.Mode)
	}
}

func TestAttach_Reentrant(t *testing.T) {
	doc := testDoc(t)
	s := attach(t, doc, nil)

	updates := make(chan scanner.State, 1)
	if _, err := Attach(context.Background(), doc, nil, testOptions(t, updates)); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("second Attach: got %v, want ErrAlreadyAttached", err)
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if doc.Observers() != 0 {
		t.Errorf("observers after Close: %d", doc.Observers())
	}
	s2, err := Attach(context.Background(), doc, nil, testOptions(t, updates))
	if err != nil {
		t.Fatalf("Attach after Close: %v", err)
	}
	s2.Close(context.Background())
}

func TestHandleEvent_DragThenClick(t *testing.T) {
	s := attach(t, testDoc(t), &recorder{})
	ctx := context.Background()

	steps := []dom.UIEvent{
		{Type: dom.EventPointerDown, Target: dom.TargetHeader, X: 30, Y: 110},
		{Type: dom.EventPointerMove, X: 530, Y: 410},
		{Type: dom.EventPointerUp, X: 530, Y: 410},
	}
	for _, ev := range steps {
		if err := s.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}
	if got := s.Panel().State().Position; got != (panel.Point{X: 520, Y: 400}) {
		t.Errorf("position after drag: %+v", got)
	}

	if err := s.HandleEvent(ctx, dom.UIEvent{Type: dom.EventCollapse}); err != nil {
		t.Fatal(err)
	}
	// Centre (680,600) is closest to the bottom edge.
	if st := s.Panel().State(); st.Mode != panel.Collapsed || st.Position != (panel.Point{X: 656, Y: 742}) {
		t.Fatalf("collapse: %+v", st)
	}

	// A dragged icon does not expand on the click that ends the drag.
	for _, ev := range []dom.UIEvent{
		{Type: dom.EventPointerDown, Target: dom.TargetIcon, X: 670, Y: 760},
		{Type: dom.EventPointerMove, X: 600, Y: 700},
		{Type: dom.EventPointerUp, X: 600, Y: 700},
		{Type: dom.EventClickIcon},
	} {
		s.HandleEvent(ctx, ev)
	}
	if s.Panel().State().Mode != panel.Collapsed {
		t.Error("expanded after a drag")
	}

	for _, ev := range []dom.UIEvent{
		{Type: dom.EventPointerDown, Target: dom.TargetIcon, X: 600, Y: 700},
		{Type: dom.EventPointerUp, X: 600, Y: 700},
		{Type: dom.EventClickIcon},
	} {
		s.HandleEvent(ctx, ev)
	}
	if s.Panel().State().Mode != panel.Expanded {
		t.Error("click did not expand")
	}
}

func TestHandleEvent_ResizeViewport(t *testing.T) {
	s := attach(t, testDoc(t), nil)
	err := s.HandleEvent(context.Background(), dom.UIEvent{Type: dom.EventResize, Width: 300, Height: 300})
	if err != nil {
		t.Fatal(err)
	}
	st := s.Panel().State()
	if st.Position != (panel.Point{}) || st.Viewport != (panel.Size{Width: 300, Height: 300}) {
		t.Errorf("after reflow: %+v", st)
	}
}

func TestHandleEvent_Select(t *testing.T) {
	doc := testDoc(t)
	s := attach(t, doc, nil)
	ctx := context.Background()

	if err := s.HandleEvent(ctx, dom.UIEvent{Type: dom.EventSelect, Index: 2}); err != nil {
		t.Fatalf("select: %v", err)
	}
	p, _ := s.scanner.Prompt(2)
	if got := doc.Scrolled(); len(got) != 1 || got[0] != p.Element.Key() {
		t.Errorf("Scrolled: got %v, want [%s]", got, p.Element.Key())
	}

	if err := s.HandleEvent(ctx, dom.UIEvent{Type: dom.EventSelect, Index: 7}); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("select 7: got %v, want ErrNoPrompt", err)
	}
	if err := s.HandleEvent(ctx, dom.UIEvent{Type: "wiggle"}); !errors.Is(err, ErrBadEvent) {
		t.Errorf("unknown event: got %v, want ErrBadEvent", err)
	}
}

func TestNavigate_DetachedTriggersRescan(t *testing.T) {
	doc := testDoc(t)
	// Keep the change-driven scan out of the way.
	s := attach(t, doc, nil, func(o *Options) { o.Scanner.Debounce = time.Hour })
	before := s.View().Generation

	if _, err := doc.Remove(".q"); err != nil {
		t.Fatal(err)
	}
	err := s.Navigate(context.Background(), 1)
	if !errors.Is(err, dom.ErrDetached) {
		t.Fatalf("got %v, want ErrDetached", err)
	}
	v := s.View()
	if len(v.Prompts) != 0 || v.Generation <= before {
		t.Errorf("after rescan: %d prompts, generation %d (before %d)", len(v.Prompts), v.Generation, before)
	}
}

func TestRescan_ReturnsFreshView(t *testing.T) {
	doc := testDoc(t)
	s := attach(t, doc, nil)

	if err := doc.Append("#thread", `<div class="q">third</div>`); err != nil {
		t.Fatal(err)
	}
	v, err := s.Rescan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Prompts) != 3 || v.Prompts[2].Text != "third" {
		t.Errorf("rescan: %+v", v.Prompts)
	}
}

func TestRender_ScanningClearedAfterScan(t *testing.T) {
	rec := &recorder{}
	s := attach(t, testDoc(t), rec)

	if v := rec.last(); v.Scanning {
		t.Error("view rendered after the first scan says scanning")
	}
	if err := s.HandleEvent(context.Background(), dom.UIEvent{Type: dom.EventRescan}); err != nil {
		t.Fatal(err)
	}
	if v := rec.last(); v.Scanning {
		t.Error("view rendered after a rescan says scanning")
	}
}

// docRenderer draws the prompt count into the root marker of doc.
type docRenderer struct{ doc *htmldoc.Document }

func (r docRenderer) Render(_ context.Context, v View) error {
	return r.doc.SetText("#"+RootID, fmt.Sprintf("%d prompts (%s)", len(v.Prompts), v.Panel.Mode))
}

func TestRender_IntoRootDoesNotTriggerScans(t *testing.T) {
	doc := testDoc(t)
	reg, err := platform.NewRegistry(platform.Config{
		Name: "acme", HostnameMatch: "acme.test", Selectors: []string{".q"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var scans atomic.Int32
	s := attach(t, doc, docRenderer{doc: doc}, func(o *Options) {
		o.Scanner.Registry = reg
		prev := o.Scanner.OnUpdate
		o.Scanner.OnUpdate = func(st scanner.State) {
			scans.Add(1)
			prev(st)
		}
	})

	// Renders triggered by UI events must not feed back either.
	if err := s.HandleEvent(context.Background(), dom.UIEvent{Type: dom.EventCollapse}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := scans.Load(); n != 1 {
		t.Errorf("scans on an idle page: got %d, want 1", n)
	}

	if err := doc.Append("#thread", `<div class="q">third</div>`); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for scans.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("page change outside the root did not trigger a scan")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
