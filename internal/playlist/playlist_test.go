package playlist

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattmock/venue-playlists/internal/event"
)

var march = event.MonthKey{Year: 2025, Month: time.March}

// fakeCatalog maps artist names to track IDs, with optional transient
// failures per artist.
type fakeCatalog struct {
	tracks       map[string][]string
	failuresLeft map[string]int
	searches     int
}

func (c *fakeCatalog) SearchArtist(ctx context.Context, name string) (string, error) {
	c.searches++
	if c.failuresLeft[name] > 0 {
		c.failuresLeft[name]--
		return "", fmt.Errorf("rate limited")
	}
	if _, ok := c.tracks[name]; !ok {
		return "", nil
	}
	return "id:" + name, nil
}

func (c *fakeCatalog) TopTracks(ctx context.Context, artistID string) ([]string, error) {
	return c.tracks[strings.TrimPrefix(artistID, "id:")], nil
}

type fakeSink struct {
	created   []string // names
	descs     []string
	batches   [][]string
	createErr error
}

func (s *fakeSink) Create(ctx context.Context, name, description string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, name)
	s.descs = append(s.descs, description)
	return "pl1", nil
}

func (s *fakeSink) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	s.batches = append(s.batches, trackIDs)
	return nil
}

func (s *fakeSink) PublicURL(playlistID string) string {
	return "https://open.spotify.com/playlist/" + playlistID
}

func newTestBuilder(c Catalog, s Sink) *Builder {
	b := NewBuilder(c, s)
	b.sleep = func(time.Duration) {}
	b.now = func() time.Time { return time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC) }
	return b
}

func TestBuildConcatenatesInArtistOrder(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string][]string{
		"Artist A": {"a1", "a2"},
		"Artist B": {"b1"},
	}}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)

	built, err := b.Build(context.Background(), "The Venue", march, []string{"Artist A", "Artist B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built == nil {
		t.Fatal("expected playlist to be built")
	}
	if built.TrackCount != 3 {
		t.Errorf("expected 3 tracks, got %d", built.TrackCount)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(sink.batches))
	}
	want := []string{"a1", "a2", "b1"}
	for i, id := range want {
		if sink.batches[0][i] != id {
			t.Errorf("track %d: expected %s, got %s", i, id, sink.batches[0][i])
		}
	}
	if built.Name != "The Venue - March 2025" {
		t.Errorf("unexpected playlist name %q", built.Name)
	}
	if built.URL != "https://open.spotify.com/playlist/pl1" {
		t.Errorf("unexpected URL %q", built.URL)
	}
}

func TestBuildNoTracksNoPlaylist(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string][]string{}}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)

	built, err := b.Build(context.Background(), "The Venue", march, []string{"Unknown A", "Unknown B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built != nil {
		t.Error("expected no playlist when no tracks resolved")
	}
	if len(sink.created) != 0 {
		t.Error("expected no playlist creation call")
	}
}

func TestBuildRetriesTransientFailures(t *testing.T) {
	catalog := &fakeCatalog{
		tracks:       map[string][]string{"Artist A": {"a1"}},
		failuresLeft: map[string]int{"Artist A": 2},
	}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)

	built, err := b.Build(context.Background(), "V", march, []string{"Artist A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built == nil || built.TrackCount != 1 {
		t.Fatalf("expected recovery on third attempt, got %+v", built)
	}
}

func TestBuildExhaustedRetriesSkipsArtist(t *testing.T) {
	catalog := &fakeCatalog{
		tracks:       map[string][]string{"Flaky": {"f1"}, "Solid": {"s1"}},
		failuresLeft: map[string]int{"Flaky": 10},
	}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)

	built, err := b.Build(context.Background(), "V", march, []string{"Flaky", "Solid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built == nil {
		t.Fatal("expected playlist from the surviving artist")
	}
	if built.TrackCount != 1 || sink.batches[0][0] != "s1" {
		t.Errorf("expected only Solid's track, got %v", sink.batches)
	}
}

func TestBuildBatchesTracks(t *testing.T) {
	var tracks []string
	for i := 0; i < 250; i++ {
		tracks = append(tracks, fmt.Sprintf("t%d", i))
	}
	catalog := &fakeCatalog{tracks: map[string][]string{"Prolific": tracks}}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)
	b.TracksPerArtist = len(tracks)

	built, err := b.Build(context.Background(), "V", march, []string{"Prolific"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built.TrackCount != 250 {
		t.Fatalf("expected 250 tracks, got %d", built.TrackCount)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(sink.batches))
	}
	for i, want := range []int{100, 100, 50} {
		if len(sink.batches[i]) != want {
			t.Errorf("batch %d: expected %d tracks, got %d", i, want, len(sink.batches[i]))
		}
	}
}

func TestBuildTracksPerArtistCap(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string][]string{"A": {"a1", "a2", "a3", "a4", "a5"}}}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)

	built, err := b.Build(context.Background(), "V", march, []string{"A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built.TrackCount != 3 {
		t.Errorf("expected default cap of 3 tracks, got %d", built.TrackCount)
	}
}

func TestBuildTestModePrefixAndTimestamp(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string][]string{"A": {"a1"}}}
	sink := &fakeSink{}
	b := newTestBuilder(catalog, sink)
	b.NamePrefix = "[TEST] "
	b.IncludeCreationTime = true

	built, err := b.Build(context.Background(), "The Venue", march, []string{"A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(built.Name, "[TEST] ") {
		t.Errorf("expected test prefix in name, got %q", built.Name)
	}
	if !strings.Contains(sink.descs[0], "(Created: 2025-03-01 10:00:00)") {
		t.Errorf("expected creation timestamp in description, got %q", sink.descs[0])
	}
}

func TestBuildCreateFailurePropagates(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string][]string{"A": {"a1"}}}
	sink := &fakeSink{createErr: fmt.Errorf("forbidden")}
	b := newTestBuilder(catalog, sink)

	if _, err := b.Build(context.Background(), "V", march, []string{"A"}); err == nil {
		t.Fatal("expected create failure to propagate")
	}
}
