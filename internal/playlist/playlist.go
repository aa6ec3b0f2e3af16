// Package playlist builds a streaming playlist from a month's deduplicated
// artist list. The music catalog and playlist sink are narrow collaborator
// interfaces so the pipeline can run against fakes.
package playlist

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mattmock/venue-playlists/internal/event"
)

// Catalog resolves artists to their top tracks.
type Catalog interface {
	// SearchArtist returns the catalog ID of the best match, or "" when the
	// artist is unknown.
	SearchArtist(ctx context.Context, name string) (string, error)
	// TopTracks returns track IDs for an artist.
	TopTracks(ctx context.Context, artistID string) ([]string, error)
}

// Sink creates playlists in the streaming service.
type Sink interface {
	Create(ctx context.Context, name, description string) (string, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	PublicURL(playlistID string) string
}

const (
	searchAttempts  = 3
	retryBackoff    = time.Second
	rateLimitPause  = 500 * time.Millisecond
	addTracksBatch  = 100
	tracksPerArtist = 3
)

// Built describes a successfully created playlist.
type Built struct {
	ID         string
	URL        string
	Name       string
	TrackCount int
}

// Builder runs the playlist build pipeline.
type Builder struct {
	catalog Catalog
	sink    Sink

	// NamePrefix marks test-mode playlists, e.g. "[TEST] ". It is applied to
	// the playlist title so test playlists can be filtered and cleaned up.
	NamePrefix string
	// IncludeCreationTime appends a creation timestamp to the description so
	// test playlists can be age-filtered by the cleaner.
	IncludeCreationTime bool
	// TracksPerArtist caps each artist's contribution. Defaults to 3.
	TracksPerArtist int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewBuilder creates a playlist builder.
func NewBuilder(catalog Catalog, sink Sink) *Builder {
	return &Builder{
		catalog:         catalog,
		sink:            sink,
		TracksPerArtist: tracksPerArtist,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// Build resolves top tracks for each artist in order and creates one playlist
// holding the concatenated track list. A single artist's resolution failure
// never aborts the build; it contributes zero tracks. When no tracks resolve
// at all, Build returns (nil, nil) and the caller must not write a playlist
// record.
func (b *Builder) Build(ctx context.Context, venueName string, month event.MonthKey, artists []string) (*Built, error) {
	var tracks []string
	for i, artist := range artists {
		if i > 0 {
			b.sleep(rateLimitPause)
		}
		found := b.artistTracks(ctx, artist)
		if len(found) == 0 {
			log.Printf("No tracks found for artist: %s", artist)
			continue
		}
		tracks = append(tracks, found...)
	}

	if len(tracks) == 0 {
		log.Printf("No tracks found for any artist at %s in %s", venueName, month)
		return nil, nil
	}

	name := b.NamePrefix + venueName + " - " + month.Display()
	description := fmt.Sprintf("Top tracks from artists playing at %s in %s", venueName, month.Display())
	if b.IncludeCreationTime {
		description += fmt.Sprintf(" (Created: %s)", b.now().Format("2006-01-02 15:04:05"))
	}

	playlistID, err := b.sink.Create(ctx, name, description)
	if err != nil {
		return nil, fmt.Errorf("creating playlist %q: %w", name, err)
	}

	for start := 0; start < len(tracks); start += addTracksBatch {
		end := start + addTracksBatch
		if end > len(tracks) {
			end = len(tracks)
		}
		if err := b.sink.AddTracks(ctx, playlistID, tracks[start:end]); err != nil {
			return nil, fmt.Errorf("adding tracks to %q: %w", name, err)
		}
	}

	log.Printf("Created playlist %q with %d tracks", name, len(tracks))
	return &Built{
		ID:         playlistID,
		URL:        b.sink.PublicURL(playlistID),
		Name:       name,
		TrackCount: len(tracks),
	}, nil
}

// artistTracks resolves one artist with bounded retries. Exhausting retries
// degrades to an empty contribution.
func (b *Builder) artistTracks(ctx context.Context, artist string) []string {
	limit := b.TracksPerArtist
	if limit <= 0 {
		limit = tracksPerArtist
	}

	for attempt := 1; attempt <= searchAttempts; attempt++ {
		if attempt > 1 {
			b.sleep(retryBackoff)
		}

		artistID, err := b.catalog.SearchArtist(ctx, artist)
		if err != nil {
			log.Printf("Retry %d for %s: %v", attempt, artist, err)
			continue
		}
		if artistID == "" {
			return nil
		}

		tracks, err := b.catalog.TopTracks(ctx, artistID)
		if err != nil {
			log.Printf("Retry %d for %s: %v", attempt, artist, err)
			continue
		}
		if len(tracks) > limit {
			tracks = tracks[:limit]
		}
		return tracks
	}

	log.Printf("Giving up on artist %s after %d attempts", artist, searchAttempts)
	return nil
}
