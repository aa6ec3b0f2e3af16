package scrape

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mattmock/venue-playlists/internal/venue"
)

// fakeFetcher serves canned content or a fixed error.
type fakeFetcher struct {
	content []byte
	err     error
	closed  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

const bandsintownPage = `<html><head>
<script type="application/ld+json">
[
  {"@type": "MusicEvent", "startDate": "2025-01-15T20:00:00", "performer": {"name": "Artist A"}},
  {"@type": "MusicEvent", "startDate": "2025-01-20T20:00:00", "performer": [{"name": "Artist A"}, {"name": "Opener"}]},
  {"@type": "Place", "name": "Not an event"},
  {"@type": "MusicEvent", "startDate": "not a date", "performer": {"name": "Broken"}},
  {"@type": "MusicEvent", "startDate": "2025-02-01T19:30:00", "performer": {"name": "Artist B"}}
]
</script>
<script type="application/ld+json">{not json at all</script>
</head><body></body></html>`

func TestParseJSONLDEvents(t *testing.T) {
	events := ParseJSONLDEvents([]byte(bandsintownPage), "The Venue")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Name != "Artist A" || events[0].Date.Month() != time.January {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	// Multi-performer entries use the headline performer.
	if events[1].Name != "Artist A" {
		t.Errorf("expected headline performer, got %q", events[1].Name)
	}
	if events[2].Name != "Artist B" || events[2].Date.Month() != time.February {
		t.Errorf("unexpected last event: %+v", events[2])
	}
	for _, ev := range events {
		if ev.Venue != "The Venue" || ev.Source != TypeBandsintown {
			t.Errorf("unexpected venue/source tagging: %+v", ev)
		}
	}
}

func TestParseJSONLDEventsEmptyPage(t *testing.T) {
	if events := ParseJSONLDEvents([]byte("<html><body>nothing</body></html>"), "V"); len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
}

func TestBandsintownScraperFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: fmt.Errorf("connection refused")}
	s := NewBandsintownScraper("https://bandsintown.example/v/1", f)
	v := &venue.Venue{Key: "v", Name: "V"}

	if _, err := s.Events(context.Background(), v); err == nil {
		t.Fatal("expected fetch failure to propagate")
	}
}

func TestBandsintownScraperEvents(t *testing.T) {
	f := &fakeFetcher{content: []byte(bandsintownPage)}
	s := NewBandsintownScraper("https://bandsintown.example/v/1", f)
	v := &venue.Venue{Key: "v", Name: "The Venue"}

	events, err := s.Events(context.Background(), v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !f.closed {
		t.Error("expected fetcher to be closed")
	}
}
