package platform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	_ "modernc.org/sqlite"
)

func TestDB_RoundTrip(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	want := Defaults()
	if err := SaveDB(ctx, db, want); err != nil {
		t.Fatalf("SaveDB: %v", err)
	}

	got, err := LoadDB(ctx, db)
	if err != nil {
		t.Fatalf("LoadDB: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDB_DisabledRowsSkipped(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := SaveDB(ctx, db, Defaults()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE platforms SET enabled = 0 WHERE name = 'claude'`); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadDB(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range configs {
		if c.Name == Claude {
			t.Fatal("disabled claude row returned")
		}
	}
}

func TestSaveDB_RejectsInvalid(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	err = SaveDB(context.Background(), db, []Config{{Name: "x", HostnameMatch: "x.com"}})
	if err == nil {
		t.Fatal("SaveDB: want validation error")
	}
}

func TestWatchDB_ReloadsOnExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.db")

	reader, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	writer, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	r := testRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchDB(ctx, reader, r, WatchOptions{
			Interval: 20 * time.Millisecond,
			Debounce: 50 * time.Millisecond,
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Let the watcher seed its version before writing.
	time.Sleep(60 * time.Millisecond)
	table := []Config{{Name: "acme", HostnameMatch: "acme.test", Selectors: []string{".u"}}}
	if err := SaveDB(ctx, writer, table); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.Identify("acme.test") == "acme" {
			if r.Identify("claude.ai") != Unknown {
				t.Error("old table still active after reload")
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("registry not reloaded from db")
}
