package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileTable is the on-disk layout:
//
//	platforms:
//	  - name: chatgpt
//	    hostname_match: chatgpt.com
//	    selectors: ['[data-message-author-role="user"]']
//	    container_selector: main
type fileTable struct {
	Platforms []Config `yaml:"platforms"`
}

// LoadFile reads a YAML platform table.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: read %s: %w", path, err)
	}
	var t fileTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("platform: parse %s: %w", path, err)
	}
	for _, c := range t.Platforms {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("platform: %s: %w", path, err)
		}
	}
	return t.Platforms, nil
}

// fileDebounce coalesces the write bursts editors produce on save.
const fileDebounce = 200 * time.Millisecond

// WatchFile reloads reg from path whenever the file is written or replaced.
// It blocks until ctx is cancelled. A reload that fails to parse or validate
// is logged and the registry keeps its current table.
func WatchFile(ctx context.Context, path string, reg *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("platform: watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file via rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("platform: watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	logger.Info("platform: watching file", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(fileDebounce)
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("platform: watch error", "path", path, "error", err)

		case <-timerC:
			timerC = nil
			configs, err := LoadFile(path)
			if err != nil {
				logger.Error("platform: reload failed", "path", path, "error", err)
				continue
			}
			if err := reg.Replace(configs); err != nil {
				logger.Error("platform: reload rejected", "path", path, "error", err)
				continue
			}
			logger.Info("platform: reloaded", "path", path, "platforms", len(configs))
		}
	}
}
