package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/store"
)

const testVenuesYAML = `venues:
  neumos:
    name: Neumos
    scrapers:
      text:
        url: https://example.com/shows
        priority: 1
  empty-venue:
    name: No Shows Yet
    scrapers:
      text:
        url: https://example.com/none
        priority: 1
`

// testNow pins the rolling window for every export test.
var testNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

func newExporter(st *store.Store) *Exporter {
	e := New(st, 3)
	e.now = func() time.Time { return testNow }
	return e
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "seattle"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "seattle", "venues.yaml"), []byte(testVenuesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return store.New(root)
}

func TestWriteSnapshot(t *testing.T) {
	st := newTestStore(t)
	jan := event.MonthKey{Year: 2025, Month: time.January}
	feb := event.MonthKey{Year: 2025, Month: time.February}
	now := time.Now()
	if err := st.WritePlaylist("seattle", "neumos", jan, "https://open.spotify.com/playlist/abc", "Neumos - January 2025", now); err != nil {
		t.Fatal(err)
	}
	if err := st.WritePlaylist("seattle", "neumos", feb, "https://open.spotify.com/playlist/t", store.TestMarker+" Neumos - February 2025", now); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "data", "venues.json")
	snap, err := newExporter(st).Write(path)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot file not written: %v", err)
	}
	var onDisk Snapshot
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}

	v, ok := onDisk.Venues["neumos"]
	if !ok {
		t.Fatalf("venue missing: %+v", onDisk.Venues)
	}
	if _, ok := v.Months["January_2025"]; !ok {
		t.Error("public playlist missing from snapshot")
	}
	if _, ok := v.Months["February_2025"]; ok {
		t.Error("test playlist leaked into snapshot")
	}
	if _, ok := onDisk.Venues["empty-venue"]; ok {
		t.Error("venue without playlists included in snapshot")
	}
	if snap.GeneratedAt == "" {
		t.Error("generated_at missing")
	}
}

func TestWriteRefusesWhenLocked(t *testing.T) {
	st := newTestStore(t)
	path := filepath.Join(t.TempDir(), "venues.json")

	held := flock.New(path + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("could not pre-acquire lock: %v", err)
	}
	defer held.Unlock()

	if _, err := newExporter(st).Write(path); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestBuildExcludesMonthsOutsideWindow(t *testing.T) {
	st := newTestStore(t)
	jan := event.MonthKey{Year: 2025, Month: time.January}
	old := event.MonthKey{Year: 2020, Month: time.January}
	now := time.Now()
	if err := st.WritePlaylist("seattle", "neumos", jan, "https://open.spotify.com/playlist/abc", "Neumos - January 2025", now); err != nil {
		t.Fatal(err)
	}
	if err := st.WritePlaylist("seattle", "neumos", old, "https://open.spotify.com/playlist/x", "Neumos - January 2020", now); err != nil {
		t.Fatal(err)
	}
	// A venue whose only playlist predates the window drops out entirely.
	if err := st.WritePlaylist("seattle", "empty-venue", old, "https://open.spotify.com/playlist/y", "No Shows Yet - January 2020", now); err != nil {
		t.Fatal(err)
	}

	snap, err := newExporter(st).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	months := snap.Venues["neumos"].Months
	if _, ok := months["January_2020"]; ok {
		t.Errorf("month outside the rolling window exported: %+v", months)
	}
	if _, ok := months["January_2025"]; !ok {
		t.Errorf("window month missing: %+v", months)
	}
	if _, ok := snap.Venues["empty-venue"]; ok {
		t.Error("venue with only out-of-window playlists included in snapshot")
	}
}

func TestBuildMissingRoot(t *testing.T) {
	e := newExporter(store.New(filepath.Join(t.TempDir(), "nope")))
	if _, err := e.Build(); !errors.Is(err, store.ErrRootMissing) {
		t.Errorf("expected ErrRootMissing, got %v", err)
	}
}
