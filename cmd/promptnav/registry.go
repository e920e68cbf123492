package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/promptnav/overlay"
	"github.com/hazyhaar/promptnav/platform"
)

// registry is a platform registry with its reload watcher.
type registry struct {
	*platform.Registry
	db     *sql.DB
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// openRegistry builds the registry from the configured source and starts
// watching it. An empty platform database is seeded with the built-in table.
func openRegistry(ctx context.Context, cfg overlay.Config, logger *slog.Logger) (*registry, error) {
	wctx, cancel := context.WithCancel(ctx)
	r := &registry{cancel: cancel}

	switch {
	case cfg.Platforms != "":
		reg, err := cfg.Registry()
		if err != nil {
			cancel()
			return nil, err
		}
		r.Registry = reg
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := platform.WatchFile(wctx, cfg.Platforms, reg, logger); err != nil {
				logger.Warn("promptnav: platform file watch", "error", err)
			}
		}()

	case cfg.PlatformDB != "":
		db, err := platform.OpenDB(cfg.PlatformDB)
		if err != nil {
			cancel()
			return nil, err
		}
		configs, err := platform.LoadDB(ctx, db)
		if err == nil && len(configs) == 0 {
			configs = platform.Defaults()
			err = platform.SaveDB(ctx, db, configs)
			logger.Info("promptnav: seeded platform table", "path", cfg.PlatformDB, "platforms", len(configs))
		}
		if err != nil {
			db.Close()
			cancel()
			return nil, err
		}
		reg, err := platform.NewRegistry(configs...)
		if err != nil {
			db.Close()
			cancel()
			return nil, err
		}
		r.Registry, r.db = reg, db
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			platform.WatchDB(wctx, db, reg, platform.WatchOptions{Logger: logger})
		}()

	default:
		reg, err := platform.NewRegistry()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("promptnav: built-in table: %w", err)
		}
		r.Registry = reg
	}
	return r, nil
}

// Close stops the watcher and closes the database.
func (r *registry) Close() {
	r.cancel()
	r.wg.Wait()
	if r.db != nil {
		r.db.Close()
	}
}
