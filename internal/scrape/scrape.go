// Package scrape turns a venue's configured source into a dated list of
// artist events. Scraper selection goes through a registry keyed by the
// scraper type tags used in venues.yaml.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/llm"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// Scraper produces the raw, order-preserving event list for one venue. The
// output may contain duplicate names; deduplication happens per month in
// event.Partition. A scraper owns its fetch session and must be closed after
// the venue it was built for.
type Scraper interface {
	Type() string
	Events(ctx context.Context, v *venue.Venue) ([]event.ArtistEvent, error)
	Close() error
}

// Fetcher retrieves raw page content. Network failures propagate as errors
// and abort the venue's run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Close() error
}

// HTTPFetcher fetches pages over plain HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch retrieves the page at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "venue-playlists/1.0 (event aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Deps carries the collaborators scrapers are built from. A nil Fetcher means
// each scraper gets its own HTTP fetcher, so sessions stay per venue.
type Deps struct {
	Fetcher    Fetcher
	Provider   llm.Provider
	ChunkLimit int
	Timeout    time.Duration
}

func (d Deps) fetcher() Fetcher {
	if d.Fetcher != nil {
		return d.Fetcher
	}
	return NewHTTPFetcher(d.Timeout)
}

// Builder constructs a scraper bound to one venue's scraper config.
type Builder func(cfg venue.ScraperConfig, deps Deps) Scraper

// Registry maps scraper type tags to builders.
type Registry struct {
	deps     Deps
	builders map[string]Builder
}

// NewRegistry creates a registry with the built-in scraper types registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, builders: make(map[string]Builder)}
	r.Register(TypeBandsintown, func(cfg venue.ScraperConfig, deps Deps) Scraper {
		return NewBandsintownScraper(cfg.URL, deps.fetcher())
	})
	r.Register(TypeFeed, func(cfg venue.ScraperConfig, deps Deps) Scraper {
		return NewFeedScraper(cfg.URL, deps.fetcher())
	})
	r.Register(TypeText, func(cfg venue.ScraperConfig, deps Deps) Scraper {
		return NewTextScraper(cfg.URL, deps.fetcher(), deps.Provider, deps.ChunkLimit)
	})
	return r
}

// Register adds or replaces a builder for a type tag.
func (r *Registry) Register(tag string, b Builder) {
	r.builders[tag] = b
}

// Known reports whether a type tag has a registered builder.
func (r *Registry) Known(tag string) bool {
	_, ok := r.builders[tag]
	return ok
}

// ForVenue selects the venue's highest-priority configured scraper and builds
// it. Unknown type tags are a configuration error.
func (r *Registry) ForVenue(v *venue.Venue) (Scraper, error) {
	tag, cfg, err := v.SelectScraper()
	if err != nil {
		return nil, err
	}
	b, ok := r.builders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown scraper type %q for venue %q", tag, v.Key)
	}
	return b(cfg, r.deps), nil
}
