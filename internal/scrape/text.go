package scrape

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/llm"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// TypeText identifies the free-text extraction scraper: fetch, reduce the
// page to readable text, and pull (artist, date) pairs out with an LLM.
const TypeText = "text"

const extractPrompt = `The text below is a concert venue's event calendar page.
List every performing artist and their event date, one per line, in this exact format:

Artist Name | YYYY-MM-DD

Use %d for dates that do not state a year. Output nothing but these lines.

%s`

const llmMaxTokens = 1024

// TextScraper extracts events from venues that only publish a human-readable
// calendar page.
type TextScraper struct {
	url        string
	fetcher    Fetcher
	provider   llm.Provider
	chunkLimit int
	now        func() time.Time
}

// NewTextScraper creates a text scraper. The provider must be non-nil for
// Events to succeed.
func NewTextScraper(pageURL string, fetcher Fetcher, provider llm.Provider, chunkLimit int) *TextScraper {
	if chunkLimit <= 0 {
		chunkLimit = DefaultChunkLimit
	}
	return &TextScraper{
		url:        pageURL,
		fetcher:    fetcher,
		provider:   provider,
		chunkLimit: chunkLimit,
		now:        time.Now,
	}
}

// Type returns the scraper type tag.
func (s *TextScraper) Type() string { return TypeText }

// Close releases the fetch session.
func (s *TextScraper) Close() error { return s.fetcher.Close() }

// Events fetches the page, extracts its readable text, and runs each chunk
// through the LLM. A chunk whose extraction fails is dropped with a warning;
// the remaining chunks still contribute, in original order.
func (s *TextScraper) Events(ctx context.Context, v *venue.Venue) ([]event.ArtistEvent, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured for text extraction")
	}

	raw, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}

	text, err := readableText(raw, s.url)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", s.url, err)
	}
	if text == "" {
		return nil, fmt.Errorf("no extractable text at %s", s.url)
	}

	return s.extractFromText(ctx, text, v)
}

// extractFromText chunks the text and runs each chunk through the LLM,
// concatenating results in original chunk order.
func (s *TextScraper) extractFromText(ctx context.Context, text string, v *venue.Venue) ([]event.ArtistEvent, error) {
	chunks := Chunk(text, s.chunkLimit)
	var events []event.ArtistEvent
	for i, chunk := range chunks {
		resp, err := s.provider.Generate(ctx, fmt.Sprintf(extractPrompt, s.now().Year(), chunk), llmMaxTokens)
		if err != nil {
			log.Printf("Dropping chunk %d/%d for %s: %v", i+1, len(chunks), v.Key, err)
			continue
		}
		events = append(events, ParseEventLines(resp, v.Name, s.now().Year())...)
	}
	log.Printf("Extracted %d events from %d chunk(s) for %s", len(events), len(chunks), v.Key)
	return events, nil
}

// readableText reduces an HTML page to its readable text content.
func readableText(html []byte, pageURL string) (string, error) {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(html)), parsedURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

// ParseEventLines parses "Artist Name | date" lines from an LLM response.
// Malformed lines are dropped with a warning. Dates missing a year are
// assumed to fall in assumeYear.
func ParseEventLines(text, venueName string, assumeYear int) []event.ArtistEvent {
	var events []event.ArtistEvent
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		name := strings.TrimSpace(parts[0])
		dateStr := strings.TrimSpace(parts[1])

		date, err := parseEventDate(dateStr, assumeYear)
		if err != nil {
			log.Printf("Skipping line %q: %v", line, err)
			continue
		}
		ev, ok := event.NewArtistEvent(name, date, venueName, TypeText)
		if !ok {
			log.Printf("Skipping line %q: empty artist name", line)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// parseEventDate accepts ISO dates and the loose month-day forms smaller
// models tend to emit.
func parseEventDate(s string, assumeYear int) (time.Time, error) {
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"Jan 2", "January 2", "1/2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.AddDate(assumeYear, 0, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
