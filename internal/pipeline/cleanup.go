package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/mattmock/venue-playlists/internal/runlog"
	"github.com/mattmock/venue-playlists/internal/spotify"
	"github.com/mattmock/venue-playlists/internal/store"
)

// Library is the slice of the streaming account the cleaner touches.
type Library interface {
	ListTestPlaylists(ctx context.Context, marker string) ([]spotify.TestPlaylist, error)
	Unfollow(ctx context.Context, playlistID string) error
}

// CleanupResult reports what a cleanup pass did.
type CleanupResult struct {
	Removed []spotify.TestPlaylist
	Kept    []spotify.TestPlaylist
	Errors  int
}

// Cleaner removes test-marked playlists from the account and reconciles the
// run history's created-playlist ledger.
type Cleaner struct {
	library Library
	history *runlog.DB // optional
	now     func() time.Time
}

func NewCleaner(library Library, history *runlog.DB) *Cleaner {
	return &Cleaner{library: library, history: history, now: time.Now}
}

// Run unfollows test playlists older than maxAge. A zero maxAge removes every
// test playlist. Playlists without a recoverable creation time are treated as
// old enough to remove.
func (c *Cleaner) Run(ctx context.Context, maxAge time.Duration) (*CleanupResult, error) {
	playlists, err := c.library.ListTestPlaylists(ctx, store.TestMarker)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-maxAge)
	result := &CleanupResult{}
	for _, pl := range playlists {
		if maxAge > 0 && !pl.CreatedAt.IsZero() && pl.CreatedAt.After(cutoff) {
			log.Printf("Keeping test playlist %q (created %s)", pl.Name, pl.CreatedAt.Format(time.DateTime))
			result.Kept = append(result.Kept, pl)
			continue
		}
		if err := c.library.Unfollow(ctx, pl.ID); err != nil {
			log.Printf("Error removing test playlist %q: %v", pl.Name, err)
			result.Errors++
			continue
		}
		log.Printf("Removed test playlist %q", pl.Name)
		result.Removed = append(result.Removed, pl)
	}

	c.reconcile(result)
	return result, nil
}

// RemoveByID unfollows a single playlist regardless of its name or age.
func (c *Cleaner) RemoveByID(ctx context.Context, playlistID string) error {
	return c.library.Unfollow(ctx, playlistID)
}

// RemoveCreated unfollows exactly the playlists one run created, leaving any
// other test playlists in the account alone. Matching ledger entries are
// marked cleaned.
func (c *Cleaner) RemoveCreated(ctx context.Context, created []CreatedPlaylist) *CleanupResult {
	result := &CleanupResult{}
	for _, p := range created {
		if err := c.library.Unfollow(ctx, p.ID); err != nil {
			log.Printf("Error removing test playlist %q: %v", p.Name, err)
			result.Errors++
			continue
		}
		log.Printf("Removed test playlist %q", p.Name)
		result.Removed = append(result.Removed, spotify.TestPlaylist{ID: p.ID, Name: p.Name})
	}
	c.reconcile(result)
	return result
}

// reconcile marks matching ledger entries cleaned so a later pass does not
// report them again.
func (c *Cleaner) reconcile(result *CleanupResult) {
	if c.history == nil || len(result.Removed) == 0 {
		return
	}
	recorded, err := c.history.GetUncleanedTestPlaylists()
	if err != nil {
		log.Printf("Error reading playlist ledger: %v", err)
		return
	}
	removed := make(map[string]struct{}, len(result.Removed))
	for _, pl := range result.Removed {
		removed[pl.ID] = struct{}{}
	}
	for _, rec := range recorded {
		if _, ok := removed[rec.PlaylistID]; !ok {
			continue
		}
		if err := c.history.MarkPlaylistCleaned(rec.ID); err != nil {
			log.Printf("Error marking playlist %s cleaned: %v", rec.PlaylistID, err)
		}
	}
}
