package overlay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/promptnav/panel"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptnav.yaml")
	data := `
listen: 127.0.0.1:7777
scan:
  debounce: 250ms
  settle: 1s
panel:
  width: 360
  height: 480
highlight:
  outline: 2px dashed red
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMPTNAV_SCAN_DEBOUNCE", "50ms")
	t.Setenv("PROMPTNAV_PANEL_PADDING", "16")
	t.Setenv("PROMPTNAV_BROWSER_HEADFUL", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := Config{
		Listen:    "127.0.0.1:7777",
		Browser:   BrowserConfig{Headful: true},
		Scan:      ScanConfig{Debounce: 50 * time.Millisecond, Settle: time.Second},
		Panel:     PanelConfig{Width: 360, Height: 480, Padding: 16},
		Highlight: HighlightConfig{Outline: "2px dashed red"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}
	t.Setenv("PROMPTNAV_SCAN_SETTLE", "soon")
	if _, err := LoadConfig(""); err == nil {
		t.Error("bad duration: want error")
	}
}

func TestConfig_Options(t *testing.T) {
	reg, err := Config{}.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Configs()) == 0 {
		t.Fatal("built-in table is empty")
	}

	cfg := Config{Panel: PanelConfig{X: 40, Y: 60, Icon: 56}, Scan: ScanConfig{Settle: time.Second}}
	opts := cfg.Options(reg, discard())
	if opts.Scanner.Registry != reg || opts.Scanner.Settle != time.Second {
		t.Errorf("scanner options: %+v", opts.Scanner)
	}
	if opts.Panel.Position != (panel.Point{X: 40, Y: 60}) || opts.Panel.CollapsedSize != (panel.Size{Width: 56, Height: 56}) {
		t.Errorf("panel options: %+v", opts.Panel)
	}
	if opts.Scanner.Extractor == nil {
		t.Error("no extractor")
	}
}
