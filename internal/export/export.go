// Package export writes the static website data snapshot. The snapshot is a
// single JSON document consumed by the public site, so writes are guarded by
// a file lock and land atomically.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/store"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// ErrLocked reports that another export run holds the snapshot lock.
var ErrLocked = errors.New("export already in progress")

// MonthEntry is one month's playlist in the snapshot.
type MonthEntry struct {
	PlaylistURL string `json:"playlist_url"`
}

// VenueEntry is one venue in the snapshot. Only venues that have at least one
// public playlist are included.
type VenueEntry struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Months      map[string]MonthEntry `json:"months"`
}

// Snapshot is the exported document.
type Snapshot struct {
	Venues      map[string]VenueEntry `json:"venues"`
	GeneratedAt string                `json:"generated_at"`
}

// Exporter builds website data snapshots from the record store.
type Exporter struct {
	store  *store.Store
	months int
	now    func() time.Time
}

func New(st *store.Store, windowMonths int) *Exporter {
	return &Exporter{store: st, months: windowMonths, now: time.Now}
}

// Build assembles the snapshot without writing it. Test-marked playlists,
// months outside the rolling window, and venues left with no public playlist
// are all excluded.
func (e *Exporter) Build() (*Snapshot, error) {
	cities, err := e.store.Cities()
	if err != nil {
		return nil, err
	}

	window := event.Window(e.now(), e.months)
	snap := &Snapshot{
		Venues:      make(map[string]VenueEntry),
		GeneratedAt: e.now().Format(time.RFC3339),
	}
	for _, city := range cities {
		cfg, err := venue.LoadCityConfig(e.store.VenueConfigPath(city))
		if err != nil {
			return nil, err
		}
		for i := range cfg.Venues {
			v := &cfg.Venues[i]
			months, err := e.store.PlaylistMonths(city, v.Key)
			if err != nil {
				return nil, err
			}
			entry := VenueEntry{
				Name:        v.Name,
				Description: v.Description,
				Months:      make(map[string]MonthEntry),
			}
			for _, month := range months {
				if !month.In(window) {
					continue
				}
				rec, err := e.store.ReadPlaylist(city, v.Key, month)
				if err != nil {
					return nil, err
				}
				if rec == nil || rec.IsTest() {
					continue
				}
				entry.Months[month.String()] = MonthEntry{PlaylistURL: rec.PlaylistURL}
			}
			if len(entry.Months) == 0 {
				continue
			}
			snap.Venues[v.Key] = entry
		}
	}
	return snap, nil
}

// Write builds the snapshot and writes it to path under an exclusive file
// lock. The document is written to a temp file and renamed so a concurrent
// reader never sees a partial snapshot.
func (e *Exporter) Write(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring export lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	defer lock.Unlock()

	snap, err := e.Build()
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replacing snapshot: %w", err)
	}
	return snap, nil
}
