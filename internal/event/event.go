package event

import (
	"strings"
	"time"
)

// ArtistEvent is a single performance at a venue on a specific date.
type ArtistEvent struct {
	Name   string
	Date   time.Time
	Venue  string
	Source string // scraper type that produced the event, empty if unknown
}

// NewArtistEvent builds an event with a trimmed name. Returns false if the
// name is empty after trimming.
func NewArtistEvent(name string, date time.Time, venue, source string) (ArtistEvent, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ArtistEvent{}, false
	}
	return ArtistEvent{
		Name:   name,
		Date:   date,
		Venue:  strings.TrimSpace(venue),
		Source: source,
	}, true
}
