// Package store persists per-venue per-month artist and playlist records as
// YAML documents under a city-partitioned data root. File modification times
// are the source of truth for freshness.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattmock/venue-playlists/internal/event"
)

// ErrRootMissing marks a completely absent storage root. The read layer maps
// it to a service-unavailable response.
var ErrRootMissing = errors.New("venue data root not found")

// ErrDataFormat marks a record file that exists but cannot be parsed.
var ErrDataFormat = errors.New("malformed record file")

// TestMarker is the prefix applied to playlists created in test mode. Records
// carrying it in the URL or name are excluded from reads and eligible for
// cleanup.
const TestMarker = "[TEST]"

// ArtistRecord is the persisted artist list for one venue and month.
type ArtistRecord struct {
	Venue   string   `yaml:"venue"`
	Month   string   `yaml:"month"`
	Artists []string `yaml:"artists"`
	Updated string   `yaml:"updated"`
}

// PlaylistRecord is the persisted playlist reference for one venue and month.
type PlaylistRecord struct {
	Venue       string `yaml:"venue"`
	Month       string `yaml:"month"`
	PlaylistURL string `yaml:"playlist_url"`
	Name        string `yaml:"name,omitempty"`
	Created     string `yaml:"created"`
}

// IsTest reports whether the record points at a test-mode playlist.
func (r *PlaylistRecord) IsTest() bool {
	return strings.Contains(r.PlaylistURL, TestMarker) || strings.HasPrefix(r.Name, TestMarker)
}

// Store reads and writes records under a data root laid out as
// <root>/<city>/venues.yaml and <root>/<city>/<venue>/artists_<Month_YYYY>.yaml.
type Store struct {
	root string
}

// New creates a Store rooted at dir. The root is not required to exist yet;
// Cities reports ErrRootMissing when it is absent.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the data root path.
func (s *Store) Root() string {
	return s.root
}

// Cities lists city directories under the root in sorted order.
func (s *Store) Cities() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, s.root)
		}
		return nil, fmt.Errorf("reading venue data root: %w", err)
	}
	var cities []string
	for _, e := range entries {
		if e.IsDir() {
			cities = append(cities, e.Name())
		}
	}
	sort.Strings(cities)
	return cities, nil
}

// VenueConfigPath returns the path of a city's venues.yaml.
func (s *Store) VenueConfigPath(city string) string {
	return filepath.Join(s.root, city, "venues.yaml")
}

func (s *Store) artistPath(city, venueKey string, month event.MonthKey) string {
	return filepath.Join(s.root, city, venueKey, "artists_"+month.String()+".yaml")
}

func (s *Store) playlistPath(city, venueKey string, month event.MonthKey) string {
	return filepath.Join(s.root, city, venueKey, "playlist_"+month.String()+".yaml")
}

// findRecord resolves path case variants: canonical "January_2025" first,
// then the legacy all-lowercase form.
func findRecord(path string) (string, bool) {
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	lower := filepath.Join(filepath.Dir(path), strings.ToLower(filepath.Base(path)))
	if _, err := os.Stat(lower); err == nil {
		return lower, true
	}
	return "", false
}

// WriteArtists overwrites the artist record for a venue and month. The list
// is stored as given; callers are expected to pass the deduplicated output of
// event.Partition. The write is atomic so a partial record is never visible.
func (s *Store) WriteArtists(city, venueKey string, month event.MonthKey, artists []string, now time.Time) error {
	rec := ArtistRecord{
		Venue:   venueKey,
		Month:   month.String(),
		Artists: artists,
		Updated: now.Format(time.RFC3339),
	}
	return s.writeRecord(s.artistPath(city, venueKey, month), rec)
}

// ReadArtists returns the artist record for a venue and month, or nil when no
// record exists.
func (s *Store) ReadArtists(city, venueKey string, month event.MonthKey) (*ArtistRecord, error) {
	path, ok := findRecord(s.artistPath(city, venueKey, month))
	if !ok {
		return nil, nil
	}
	var rec ArtistRecord
	if err := s.readRecord(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// WritePlaylist overwrites the playlist record for a venue and month.
func (s *Store) WritePlaylist(city, venueKey string, month event.MonthKey, playlistURL, name string, now time.Time) error {
	rec := PlaylistRecord{
		Venue:       venueKey,
		Month:       month.String(),
		PlaylistURL: playlistURL,
		Name:        name,
		Created:     now.Format(time.RFC3339),
	}
	return s.writeRecord(s.playlistPath(city, venueKey, month), rec)
}

// ReadPlaylist returns the playlist record for a venue and month, or nil when
// no record exists.
func (s *Store) ReadPlaylist(city, venueKey string, month event.MonthKey) (*PlaylistRecord, error) {
	path, ok := findRecord(s.playlistPath(city, venueKey, month))
	if !ok {
		return nil, nil
	}
	var rec PlaylistRecord
	if err := s.readRecord(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PlaylistMonths lists the months that have a playlist record for a venue,
// sorted chronologically. A venue directory that does not exist yields an
// empty list. Files whose month segment does not parse are skipped.
func (s *Store) PlaylistMonths(city, venueKey string) ([]event.MonthKey, error) {
	dir := filepath.Join(s.root, city, venueKey)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading venue directory: %w", err)
	}
	var months []event.MonthKey
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "playlist_") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		month, err := event.ParseMonthKey(strings.TrimSuffix(strings.TrimPrefix(name, "playlist_"), ".yaml"))
		if err != nil {
			continue
		}
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}

// HasArtists reports whether an artist record exists for a venue and month.
func (s *Store) HasArtists(city, venueKey string, month event.MonthKey) bool {
	_, ok := findRecord(s.artistPath(city, venueKey, month))
	return ok
}

func (s *Store) writeRecord(path string, rec any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating venue directory: %w", err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}

func (s *Store) readRecord(path string, rec any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDataFormat, path, err)
	}
	return nil
}
