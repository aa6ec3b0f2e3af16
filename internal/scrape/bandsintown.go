package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// TypeBandsintown identifies the JSON-LD scraper for Bandsintown venue pages.
const TypeBandsintown = "bandsintown"

// BandsintownScraper extracts MusicEvent entries from the JSON-LD blocks
// embedded in a Bandsintown venue page.
type BandsintownScraper struct {
	url     string
	fetcher Fetcher
}

// NewBandsintownScraper creates a scraper for the given venue page URL.
func NewBandsintownScraper(url string, fetcher Fetcher) *BandsintownScraper {
	return &BandsintownScraper{url: url, fetcher: fetcher}
}

// Type returns the scraper type tag.
func (s *BandsintownScraper) Type() string { return TypeBandsintown }

// Close releases the fetch session.
func (s *BandsintownScraper) Close() error { return s.fetcher.Close() }

// Events fetches the venue page and parses its JSON-LD event data. A fetch
// failure is fatal for the venue; individual malformed entries are dropped
// with a warning.
func (s *BandsintownScraper) Events(ctx context.Context, v *venue.Venue) ([]event.ArtistEvent, error) {
	raw, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}
	events := ParseJSONLDEvents(raw, v.Name)
	log.Printf("Found %d events for %s", len(events), v.Key)
	return events, nil
}

// ldEvent mirrors the schema.org MusicEvent fields we care about.
type ldEvent struct {
	Type      string          `json:"@type"`
	StartDate string          `json:"startDate"`
	Performer json.RawMessage `json:"performer"`
}

type ldPerformer struct {
	Name string `json:"name"`
}

// ParseJSONLDEvents extracts MusicEvent entries from every
// script[type="application/ld+json"] block in the document, in document
// order. Malformed blocks and entries are skipped with a warning.
func ParseJSONLDEvents(html []byte, venueName string) []event.ArtistEvent {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		log.Printf("Failed to parse HTML document: %v", err)
		return nil
	}

	var events []event.ArtistEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		entries, err := decodeLDBlock([]byte(sel.Text()))
		if err != nil {
			log.Printf("Skipping JSON-LD block: %v", err)
			return
		}
		for _, entry := range entries {
			ev, err := ldToEvent(entry, venueName)
			if err != nil {
				log.Printf("Skipping event entry: %v", err)
				continue
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}
	})
	return events
}

// decodeLDBlock accepts both a single JSON-LD object and an array of them.
func decodeLDBlock(data []byte) ([]ldEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var entries []ldEvent
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var entry ldEvent
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return []ldEvent{entry}, nil
}

// ldToEvent converts one JSON-LD entry. Non-MusicEvent entries map to nil
// without error.
func ldToEvent(entry ldEvent, venueName string) (*event.ArtistEvent, error) {
	if entry.Type != "MusicEvent" {
		return nil, nil
	}
	name, err := performerName(entry.Performer)
	if err != nil {
		return nil, err
	}
	date, err := dateparse.ParseAny(entry.StartDate)
	if err != nil {
		return nil, fmt.Errorf("unparseable start date %q: %w", entry.StartDate, err)
	}
	ev, ok := event.NewArtistEvent(name, date, venueName, TypeBandsintown)
	if !ok {
		return nil, fmt.Errorf("empty performer name")
	}
	return &ev, nil
}

// performerName handles both a single performer object and an array; the
// first named performer wins.
func performerName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("missing performer")
	}
	if raw[0] == '[' {
		var performers []ldPerformer
		if err := json.Unmarshal(raw, &performers); err != nil {
			return "", fmt.Errorf("decoding performers: %w", err)
		}
		for _, p := range performers {
			if p.Name != "" {
				return p.Name, nil
			}
		}
		return "", fmt.Errorf("no named performer")
	}
	var p ldPerformer
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("decoding performer: %w", err)
	}
	return p.Name, nil
}
