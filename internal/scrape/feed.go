package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// TypeFeed identifies the RSS/Atom event feed scraper.
const TypeFeed = "feed"

// FeedScraper reads a venue's event feed. Each item title is taken as the
// headline artist; the item's published or updated timestamp is the event
// date.
type FeedScraper struct {
	url     string
	fetcher Fetcher
	parser  *gofeed.Parser
}

// NewFeedScraper creates a scraper for the given feed URL.
func NewFeedScraper(url string, fetcher Fetcher) *FeedScraper {
	return &FeedScraper{url: url, fetcher: fetcher, parser: gofeed.NewParser()}
}

// Type returns the scraper type tag.
func (s *FeedScraper) Type() string { return TypeFeed }

// Close releases the fetch session.
func (s *FeedScraper) Close() error { return s.fetcher.Close() }

// Events fetches and parses the feed. Items without a usable title or date
// are dropped with a warning.
func (s *FeedScraper) Events(ctx context.Context, v *venue.Venue) ([]event.ArtistEvent, error) {
	raw, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}
	feed, err := s.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.url, err)
	}

	var events []event.ArtistEvent
	for _, item := range feed.Items {
		name := artistFromTitle(item.Title)
		date := item.PublishedParsed
		if date == nil {
			date = item.UpdatedParsed
		}
		if name == "" || date == nil {
			log.Printf("Skipping feed item %q: missing artist or date", item.Title)
			continue
		}
		ev, ok := event.NewArtistEvent(name, *date, v.Name, TypeFeed)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	log.Printf("Parsed %d events from feed for %s", len(events), v.Key)
	return events, nil
}

// artistFromTitle strips common listing decorations from a feed item title,
// e.g. "Artist Name at The Venue" or "Artist Name - SOLD OUT".
func artistFromTitle(title string) string {
	t := strings.TrimSpace(title)
	for _, sep := range []string{" at ", " @ ", " — ", " – ", " - ", " | "} {
		if idx := strings.Index(t, sep); idx > 0 {
			t = t[:idx]
		}
	}
	return strings.TrimSpace(t)
}
