package rodpage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig selects the Chrome instance pages are opened in.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of a running browser. Empty
	// launches a local Chrome.
	RemoteURL string
	// Bin is the Chrome binary. Empty lets the launcher find or fetch one.
	Bin string
	// Headful shows the browser window.
	Headful bool
	// NoStealth opens plain tabs without the stealth evasions.
	NoStealth bool
	// NavigateTimeout bounds Open's navigation and load. Default: 30s.
	NavigateTimeout time.Duration
	Logger          *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a connected Chrome.
type Browser struct {
	cfg     BrowserConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts a local Chrome, or connects to RemoteURL.
func Launch(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	wsURL := cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL != "" {
		log.Info("rodpage: connecting to remote browser", "url", wsURL)
	} else {
		l = launcher.New().Context(ctx).Headless(!cfg.Headful)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodpage: launch: %w", err)
		}
		wsURL = u
		log.Info("rodpage: launched local chrome", "url", wsURL, "headful", cfg.Headful)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("rodpage: connect: %w", err)
	}
	return &Browser{cfg: cfg, browser: b, lnch: l}, nil
}

// Rod returns the underlying browser.
func (b *Browser) Rod() *rod.Browser { return b.browser }

// Open creates a tab, navigates it to url and waits for the load event. A
// load timeout is logged, not returned: chat pages keep streaming long after
// they are usable.
func (b *Browser) Open(ctx context.Context, url string) (*rod.Page, error) {
	var page *rod.Page
	var err error
	if b.cfg.NoStealth {
		page, err = b.browser.Page(proto.TargetCreateTarget{URL: ""})
	} else {
		page, err = stealth.Page(b.browser)
	}
	if err != nil {
		return nil, fmt.Errorf("rodpage: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("rodpage: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("rodpage: wait load", "url", url, "error", err)
	}
	return page, nil
}

// Close disconnects and, for a launched browser, kills the process.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch.Cleanup()
	}
	if err != nil {
		return fmt.Errorf("rodpage: close: %w", err)
	}
	return nil
}
