package store

import (
	"os"
	"time"

	"github.com/mattmock/venue-playlists/internal/event"
)

// maxPlaylistAge is the freshness window beyond which a playlist is rebuilt
// even if the artist data has not changed.
const maxPlaylistAge = 24 * time.Hour

// NeedsUpdate decides whether the playlist for a venue and month should be
// (re)generated, from on-disk state and the given wall-clock time:
//
//   - no artist record: false; nothing to build from yet, scraping will
//     create it
//   - artist record but no playlist record: true
//   - artist record modified after the playlist record: true
//   - playlist record older than maxPlaylistAge: true
//
// Missing files are treated as states, never as errors. A force flag at the
// caller bypasses this check entirely.
func (s *Store) NeedsUpdate(city, venueKey string, month event.MonthKey, now time.Time) bool {
	artistPath, ok := findRecord(s.artistPath(city, venueKey, month))
	if !ok {
		return false
	}
	playlistPath, ok := findRecord(s.playlistPath(city, venueKey, month))
	if !ok {
		return true
	}

	artistInfo, err := os.Stat(artistPath)
	if err != nil {
		return false
	}
	playlistInfo, err := os.Stat(playlistPath)
	if err != nil {
		return true
	}

	if artistInfo.ModTime().After(playlistInfo.ModTime()) {
		return true
	}
	return now.Sub(playlistInfo.ModTime()) >= maxPlaylistAge
}
