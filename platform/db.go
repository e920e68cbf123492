package platform

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/promptnav/dbopen"
)

// Schema is the DDL for the platforms table. Rows are matched in position
// order; disabled rows are ignored.
const Schema = `
CREATE TABLE IF NOT EXISTS platforms (
	position            INTEGER PRIMARY KEY,
	name                TEXT NOT NULL,
	hostname_match      TEXT NOT NULL,
	selectors           TEXT NOT NULL DEFAULT '[]',
	container_selector  TEXT NOT NULL DEFAULT '',
	enabled             INTEGER NOT NULL DEFAULT 1,
	updated_at          INTEGER NOT NULL
);
`

// OpenDB opens (or creates) the SQLite database at path and applies
// Schema. The pool is pinned to one connection because PRAGMA data_version
// is per connection. The caller must blank-import modernc.org/sqlite.
func OpenDB(path string) (*sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSingleConn(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}
	return db, nil
}

// LoadDB reads the enabled rows of the platforms table in position order.
func LoadDB(ctx context.Context, db *sql.DB) ([]Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, hostname_match, selectors, container_selector
		FROM platforms
		WHERE enabled = 1
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("platform: load: %w", err)
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		var c Config
		var name, selsJSON string
		if err := rows.Scan(&name, &c.HostnameMatch, &selsJSON, &c.ContainerSelector); err != nil {
			return nil, fmt.Errorf("platform: scan row: %w", err)
		}
		c.Name = Platform(name)
		if err := json.Unmarshal([]byte(selsJSON), &c.Selectors); err != nil {
			return nil, fmt.Errorf("platform: %s: selectors: %w", name, err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// SaveDB replaces the platforms table with configs, preserving their order.
func SaveDB(ctx context.Context, db *sql.DB, configs []Config) error {
	for _, c := range configs {
		if err := c.validate(); err != nil {
			return err
		}
	}

	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM platforms`); err != nil {
			return fmt.Errorf("platform: clear: %w", err)
		}
		for i, c := range configs {
			sels, err := json.Marshal(c.Selectors)
			if err != nil {
				return fmt.Errorf("platform: %s: marshal selectors: %w", c.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO platforms (position, name, hostname_match, selectors, container_selector, enabled, updated_at)
				VALUES (?, ?, ?, ?, ?, 1, ?)`,
				i, string(c.Name), c.HostnameMatch, string(sels), c.ContainerSelector, now); err != nil {
				return fmt.Errorf("platform: insert %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// WatchOptions tunes WatchDB.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before reloading. If more
	// changes arrive during the window the timer resets. Default: 500ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// dataVersion reads PRAGMA data_version, which changes whenever another
// connection commits to the same database file.
func dataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// WatchDB polls db for changes to the platforms table and reloads reg once a
// change has been quiet for the debounce window. It blocks until ctx is
// cancelled. A failed reload keeps the current table and is retried after
// the next poll.
func WatchDB(ctx context.Context, db *sql.DB, reg *Registry, opts WatchOptions) {
	opts.defaults()
	log := opts.Logger

	version, err := dataVersion(ctx, db)
	if err != nil {
		log.Warn("platform: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	pending := int64(-1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			cur, err := dataVersion(ctx, db)
			if err != nil {
				log.Warn("platform: version check failed", "error", err)
				continue
			}
			if cur == version || cur == pending {
				continue
			}
			pending = cur
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(opts.Debounce)
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			configs, err := LoadDB(ctx, db)
			if err == nil {
				err = reg.Replace(configs)
			}
			if err != nil {
				log.Error("platform: db reload failed", "error", err, "version", pending)
				pending = -1
				continue
			}
			version, pending = pending, -1
			log.Info("platform: db reloaded", "version", version, "platforms", len(configs))
		}
	}
}
