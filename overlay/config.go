package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/promptnav/extract"
	"github.com/hazyhaar/promptnav/navigate"
	"github.com/hazyhaar/promptnav/panel"
	"github.com/hazyhaar/promptnav/platform"
	"github.com/hazyhaar/promptnav/scanner"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PROMPTNAV_"

// Config is the file and environment configuration of the CLI. Zero values
// fall back to the component defaults.
//
//	platforms: ./platforms.yaml
//	listen: 127.0.0.1:7777
//	scan:
//	  debounce: 300ms
//	panel:
//	  width: 360
type Config struct {
	// Platforms is a YAML platform table, watched for changes.
	Platforms string `yaml:"platforms" env:"PLATFORMS"`
	// PlatformDB is an SQLite database holding the platform table, watched
	// for changes. Ignored when Platforms is set.
	PlatformDB string `yaml:"platform_db" env:"PLATFORM_DB"`
	// Listen is the HTTP control address. Empty disables it.
	Listen string `yaml:"listen" env:"LISTEN"`

	Browser   BrowserConfig   `yaml:"browser" envPrefix:"BROWSER_"`
	Scan      ScanConfig      `yaml:"scan" envPrefix:"SCAN_"`
	Extract   ExtractConfig   `yaml:"extract" envPrefix:"EXTRACT_"`
	Panel     PanelConfig     `yaml:"panel" envPrefix:"PANEL_"`
	Highlight HighlightConfig `yaml:"highlight" envPrefix:"HIGHLIGHT_"`
}

// BrowserConfig selects the Chrome instance.
type BrowserConfig struct {
	// RemoteURL connects to a running browser instead of launching one.
	RemoteURL string `yaml:"remote_url" env:"REMOTE_URL"`
	Bin       string `yaml:"bin" env:"BIN"`
	Headful   bool   `yaml:"headful" env:"HEADFUL"`
	NoStealth bool   `yaml:"no_stealth" env:"NO_STEALTH"`
}

type ScanConfig struct {
	Debounce   time.Duration `yaml:"debounce" env:"DEBOUNCE"`
	Settle     time.Duration `yaml:"settle" env:"SETTLE"`
	StartDelay time.Duration `yaml:"start_delay" env:"START_DELAY"`
}

type ExtractConfig struct {
	MaxLen      int    `yaml:"max_len" env:"MAX_LEN"`
	Ellipsis    string `yaml:"ellipsis" env:"ELLIPSIS"`
	ImageMarker string `yaml:"image_marker" env:"IMAGE_MARKER"`
}

type PanelConfig struct {
	X         float64 `yaml:"x" env:"X"`
	Y         float64 `yaml:"y" env:"Y"`
	Width     float64 `yaml:"width" env:"WIDTH"`
	Height    float64 `yaml:"height" env:"HEIGHT"`
	MinWidth  float64 `yaml:"min_width" env:"MIN_WIDTH"`
	MinHeight float64 `yaml:"min_height" env:"MIN_HEIGHT"`
	Icon      float64 `yaml:"icon" env:"ICON"`
	Padding   float64 `yaml:"padding" env:"PADDING"`
}

type HighlightConfig struct {
	Duration      time.Duration `yaml:"duration" env:"DURATION"`
	Fade          time.Duration `yaml:"fade" env:"FADE"`
	Outline       string        `yaml:"outline" env:"OUTLINE"`
	OutlineOffset string        `yaml:"outline_offset" env:"OUTLINE_OFFSET"`
}

// LoadConfig reads path (if not empty) and then applies PROMPTNAV_*
// environment variables on top.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("overlay: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("overlay: parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("overlay: env: %w", err)
	}
	return cfg, nil
}

// Registry builds the platform registry from the Platforms file, or from
// the built-in table when it is not set. PlatformDB is opened by the caller.
func (c Config) Registry() (*platform.Registry, error) {
	if c.Platforms == "" {
		return platform.NewRegistry()
	}
	configs, err := platform.LoadFile(c.Platforms)
	if err != nil {
		return nil, err
	}
	return platform.NewRegistry(configs...)
}

// Options converts the configuration into session options.
func (c Config) Options(reg *platform.Registry, logger *slog.Logger) Options {
	var pc panel.Config
	pc.Position = panel.Point{X: c.Panel.X, Y: c.Panel.Y}
	pc.Size = panel.Size{Width: c.Panel.Width, Height: c.Panel.Height}
	pc.MinSize = panel.Size{Width: c.Panel.MinWidth, Height: c.Panel.MinHeight}
	pc.CollapsedSize = panel.Size{Width: c.Panel.Icon, Height: c.Panel.Icon}
	pc.Padding = c.Panel.Padding

	return Options{
		Scanner: scanner.Config{
			Registry: reg,
			Extractor: extract.New(extract.Options{
				MaxLen:      c.Extract.MaxLen,
				Ellipsis:    c.Extract.Ellipsis,
				ImageMarker: c.Extract.ImageMarker,
			}),
			Debounce:   c.Scan.Debounce,
			Settle:     c.Scan.Settle,
			StartDelay: c.Scan.StartDelay,
		},
		Panel: pc,
		Navigate: navigate.Config{
			Highlight:     c.Highlight.Duration,
			Fade:          c.Highlight.Fade,
			Outline:       c.Highlight.Outline,
			OutlineOffset: c.Highlight.OutlineOffset,
		},
		Logger: logger,
	}
}
