package rodpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/overlay"
)

const chatPage = `<!doctype html>
<html><body>
<main id="thread">
  <div class="q" style="color: red">first question</div>
  <div class="q">second <img src="data:image/gif;base64,R0lGODlhAQABAAAAACw="></div>
</main>
</body></html>`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// livePage starts Chrome on a local chat page. It skips when no browser is
// installed.
func livePage(t *testing.T) *Page {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatPage)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	b, err := Launch(ctx, BrowserConfig{Bin: bin, NoStealth: true, Logger: discard()})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	rp, err := b.Open(ctx, srv.URL+"/chat/1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p, err := New(ctx, rp, Options{PollInterval: 50 * time.Millisecond, Logger: discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPage_QueryAndStyle(t *testing.T) {
	p := livePage(t)
	ctx := context.Background()

	loc, err := p.Location(ctx)
	if err != nil || loc.Hostname != "127.0.0.1" {
		t.Fatalf("Location: %+v, %v", loc, err)
	}

	els, err := p.QueryAll(ctx, ".q")
	if err != nil || len(els) != 2 {
		t.Fatalf("QueryAll: %d, %v", len(els), err)
	}
	if els[0].Key() == els[1].Key() {
		t.Error("keys collide")
	}
	again, _ := p.QueryAll(ctx, ".q")
	if again[0].Key() != els[0].Key() {
		t.Errorf("key not stable: %q vs %q", again[0].Key(), els[0].Key())
	}

	if text, err := els[0].Text(ctx); err != nil || text != "first question" {
		t.Errorf("Text: %q, %v", text, err)
	}
	if n, err := els[1].ImageCount(ctx); err != nil || n != 1 {
		t.Errorf("ImageCount: %d, %v", n, err)
	}
	if r, err := els[1].Rect(ctx); err != nil || r.Top <= 0 {
		t.Errorf("Rect: %+v, %v", r, err)
	}

	if err := els[0].SetStyle(ctx, map[string]string{"outline": "3px solid blue"}); err != nil {
		t.Fatal(err)
	}
	s, err := els[0].Style(ctx, "outline", "color", "transition")
	if err != nil {
		t.Fatal(err)
	}
	if s["color"] != "red" || s["outline"] == "" || s["transition"] != "" {
		t.Errorf("Style: %v", s)
	}
	if err := els[0].SetStyle(ctx, map[string]string{"outline": ""}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.page.Eval(`() => document.querySelector('.q').remove()`); err != nil {
		t.Fatal(err)
	}
	if _, err := els[0].Text(ctx); !errors.Is(err, dom.ErrDetached) {
		t.Errorf("removed element: got %v, want ErrDetached", err)
	}
}

func TestPage_ObserveAndLocation(t *testing.T) {
	p := livePage(t)
	ctx := context.Background()

	changes := make(chan dom.Change, 8)
	sub, err := p.Observe(ctx, "#thread", func(c dom.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	locs := make(chan dom.Location, 4)
	lsub, _ := p.WatchLocation(ctx, func(l dom.Location) { locs <- l })
	defer lsub.Close()

	if _, err := p.page.Eval(`() => {
		const d = document.createElement('div');
		d.className = 'q';
		d.textContent = 'third';
		document.getElementById('thread').appendChild(d);
		history.pushState({}, '', '/chat/2');
	}`); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Kind != dom.ChangeChildList {
			t.Errorf("change kind: %q", c.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case l := <-locs:
		if l.Hostname != "127.0.0.1" {
			t.Errorf("location: %+v", l)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no location change reported")
	}
}

func TestPage_OverlayRoundTrip(t *testing.T) {
	p := livePage(t)
	ctx := context.Background()

	if existed, err := p.Mark(ctx, overlay.RootID); err != nil || existed {
		t.Fatalf("Mark: %v, %v", existed, err)
	}
	if existed, _ := p.Mark(ctx, overlay.RootID); !existed {
		t.Error("second Mark: marker not found")
	}

	var v overlay.View
	v.Panel.Mode = "expanded"
	v.Footprint.Width, v.Footprint.Height = 320, 400
	if err := p.Render(ctx, v); err != nil {
		t.Fatalf("Render: %v", err)
	}

	events := make(chan dom.UIEvent, 1)
	sub := p.OnUIEvent(func(ev dom.UIEvent) { events <- ev })
	defer sub.Close()

	if _, err := p.page.Eval(`() => document.querySelector('#promptnav-root button[title=Collapse]').click()`); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.Type != dom.EventCollapse {
			t.Errorf("event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no UI event")
	}

	if err := p.Unmark(ctx, overlay.RootID); err != nil {
		t.Fatal(err)
	}
	if err := p.Render(ctx, v); err == nil {
		t.Error("Render without root: want error")
	}
}

func TestPage_ReloadRestoresMarker(t *testing.T) {
	p := livePage(t)
	ctx := context.Background()

	changes := make(chan dom.Change, 8)
	sub, err := p.Observe(ctx, "#thread", func(c dom.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if _, err := p.Mark(ctx, overlay.RootID); err != nil {
		t.Fatal(err)
	}
	if err := p.page.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	select {
	case <-changes:
	case <-time.After(10 * time.Second):
		t.Fatal("reload not reported as a change")
	}

	var v overlay.View
	v.Panel.Mode = "collapsed"
	v.Footprint.Width, v.Footprint.Height = 48, 48
	deadline := time.Now().Add(10 * time.Second)
	for {
		err := p.Render(ctx, v)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Render after reload: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestPage_OwnRenderIsNotAChange(t *testing.T) {
	p := livePage(t)
	ctx := context.Background()

	changes := make(chan dom.Change, 8)
	sub, err := p.Observe(ctx, "", func(c dom.Change) {
		select {
		case changes <- c:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if _, err := p.Mark(ctx, overlay.RootID); err != nil {
		t.Fatal(err)
	}
	var v overlay.View
	v.Panel.Mode = "expanded"
	v.Footprint.Width, v.Footprint.Height = 320, 400
	for range 3 {
		if err := p.Render(ctx, v); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case c := <-changes:
		t.Fatalf("overlay render reported as a page change: %+v", c)
	case <-time.After(500 * time.Millisecond):
	}
}
