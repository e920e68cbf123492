package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/promptnav/dom"
	"github.com/hazyhaar/promptnav/dom/rodpage"
	"github.com/hazyhaar/promptnav/overlay"
	"github.com/hazyhaar/promptnav/panel"
)

// live is a session attached to a Chrome tab.
type live struct {
	browser *rodpage.Browser
	page    *rodpage.Page
	reg     *registry
	session *overlay.Session
	uiSub   dom.Subscription
	events  chan dom.UIEvent
	stop    context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// openLive launches the browser, opens url and attaches a session whose
// panel is drawn in the page.
func openLive(ctx context.Context, g *globals, url string) (_ *live, err error) {
	l := &live{logger: g.logger, events: make(chan dom.UIEvent, 64)}
	defer func() {
		if err != nil {
			l.Close()
		}
	}()

	if l.reg, err = openRegistry(ctx, g.cfg, g.logger); err != nil {
		return nil, err
	}

	bc := g.cfg.Browser
	l.browser, err = rodpage.Launch(ctx, rodpage.BrowserConfig{
		RemoteURL: bc.RemoteURL,
		Bin:       bc.Bin,
		Headful:   bc.Headful,
		NoStealth: bc.NoStealth,
		Logger:    g.logger,
	})
	if err != nil {
		return nil, err
	}
	rp, err := l.browser.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if l.page, err = rodpage.New(ctx, rp, rodpage.Options{Logger: g.logger}); err != nil {
		return nil, err
	}

	opts := g.cfg.Options(l.reg.Registry, g.logger)
	if w, h, verr := l.page.Viewport(ctx); verr == nil {
		opts.Viewport = panel.Size{Width: w, Height: h}
	}
	if l.session, err = overlay.Attach(ctx, l.page, l.page, opts); err != nil {
		return nil, err
	}

	// UI events are applied in order on one goroutine, off the CDP
	// event listener.
	l.uiSub = l.page.OnUIEvent(func(ev dom.UIEvent) {
		select {
		case l.events <- ev:
		default:
			l.logger.Warn("promptnav: ui event dropped", "type", ev.Type)
		}
	})
	wctx, stop := context.WithCancel(ctx)
	l.stop = stop
	l.wg.Add(1)
	go l.applyEvents(wctx)
	return l, nil
}

func (l *live) applyEvents(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.events:
			if err := l.session.HandleEvent(ctx, ev); err != nil {
				l.logger.Warn("promptnav: ui event", "type", ev.Type, "error", err)
			}
		}
	}
}

// serveHTTP runs the control surface on addr until ctx is cancelled.
func (l *live) serveHTTP(ctx context.Context, addr string) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	overlay.Routes(r, overlay.MakeEndpoints(l.session))

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	l.logger.Info("promptnav: http listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("promptnav: http: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches the session and tears everything down in reverse order.
func (l *live) Close() {
	if l.uiSub != nil {
		l.uiSub.Close()
	}
	if l.stop != nil {
		l.stop()
	}
	l.wg.Wait()
	if l.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.session.Close(ctx); err != nil {
			l.logger.Warn("promptnav: close session", "error", err)
		}
		cancel()
	}
	if l.page != nil {
		l.page.Close()
	}
	if l.browser != nil {
		l.browser.Close()
	}
	if l.reg != nil {
		l.reg.Close()
	}
}
