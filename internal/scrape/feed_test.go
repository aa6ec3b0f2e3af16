package scrape

import (
	"context"
	"testing"

	"github.com/mattmock/venue-playlists/internal/venue"
)

const eventFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>The Venue Events</title>
  <item>
    <title>Artist A at The Venue</title>
    <link>https://thevenue.example/events/1</link>
    <pubDate>Wed, 15 Jan 2025 20:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Artist B - SOLD OUT</title>
    <link>https://thevenue.example/events/2</link>
    <pubDate>Sat, 01 Feb 2025 19:30:00 GMT</pubDate>
  </item>
  <item>
    <title>No Date Show</title>
    <link>https://thevenue.example/events/3</link>
  </item>
</channel>
</rss>`

func TestFeedScraperEvents(t *testing.T) {
	f := &fakeFetcher{content: []byte(eventFeed)}
	s := NewFeedScraper("https://thevenue.example/events.rss", f)
	v := &venue.Venue{Key: "the-venue", Name: "The Venue"}

	events, err := s.Events(context.Background(), v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (undated item dropped), got %d", len(events))
	}
	if events[0].Name != "Artist A" {
		t.Errorf("expected title decoration stripped, got %q", events[0].Name)
	}
	if events[1].Name != "Artist B" {
		t.Errorf("expected 'Artist B', got %q", events[1].Name)
	}
}

func TestFeedScraperMalformedFeed(t *testing.T) {
	f := &fakeFetcher{content: []byte("this is not xml")}
	s := NewFeedScraper("https://thevenue.example/events.rss", f)
	v := &venue.Venue{Key: "v", Name: "V"}

	if _, err := s.Events(context.Background(), v); err == nil {
		t.Fatal("expected error for malformed feed")
	}
}

func TestArtistFromTitle(t *testing.T) {
	cases := map[string]string{
		"Artist Name at The Venue": "Artist Name",
		"Artist Name @ The Venue":  "Artist Name",
		"Artist Name - SOLD OUT":   "Artist Name",
		"Artist Name | Doors 7pm":  "Artist Name",
		"  Plain Artist  ":         "Plain Artist",
	}
	for in, want := range cases {
		if got := artistFromTitle(in); got != want {
			t.Errorf("artistFromTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
