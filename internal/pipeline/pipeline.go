// Package pipeline orchestrates the venue update run: per city, per venue,
// per month, it decides whether to scrape and whether to (re)build the
// playlist, isolating failures so one venue cannot block its siblings.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/playlist"
	"github.com/mattmock/venue-playlists/internal/runlog"
	"github.com/mattmock/venue-playlists/internal/scrape"
	"github.com/mattmock/venue-playlists/internal/store"
	"github.com/mattmock/venue-playlists/internal/venue"
)

// State is the computed condition of one venue+month before processing.
type State int

const (
	StateUpToDate State = iota
	StateNeedsArtistRefresh
	StateArtistsFreshNoPlaylist
	StateForced
)

func (s State) String() string {
	switch s {
	case StateUpToDate:
		return "up_to_date"
	case StateNeedsArtistRefresh:
		return "needs_artist_refresh"
	case StateArtistsFreshNoPlaylist:
		return "artists_fresh_no_playlist"
	case StateForced:
		return "forced"
	}
	return "unknown"
}

// Outcome is the terminal result of processing one venue+month.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeSkippedUpToDate
	OutcomeSkippedNoArtists
	OutcomeSkippedNoTracks
	OutcomeSkippedInvalidConfig
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkippedUpToDate:
		return "skipped_up_to_date"
	case OutcomeSkippedNoArtists:
		return "skipped_no_artists"
	case OutcomeSkippedNoTracks:
		return "skipped_no_tracks"
	case OutcomeSkippedInvalidConfig:
		return "skipped_invalid_config"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Unit is the result of processing one venue+month.
type Unit struct {
	City         string
	VenueKey     string
	VenueName    string
	Month        event.MonthKey
	State        State
	Outcome      Outcome
	PlaylistURL  string
	PlaylistName string
	Err          error
}

// CreatedPlaylist identifies a playlist created during this run.
type CreatedPlaylist struct {
	ID   string
	Name string
}

// CityError records a city whose venue config could not be loaded at all.
type CityError struct {
	City string
	Err  error
}

// Summary aggregates a full run.
type Summary struct {
	Started    time.Time
	Finished   time.Time
	Units      []Unit
	CityErrors []CityError
	Created    []CreatedPlaylist
}

// Counts returns the number of updated, skipped, and failed units.
func (s *Summary) Counts() (updated, skipped, failed int) {
	for _, u := range s.Units {
		switch u.Outcome {
		case OutcomeUpdated:
			updated++
		case OutcomeFailed:
			failed++
		default:
			skipped++
		}
	}
	return
}

// Options are the orchestrator's run-time inputs.
type Options struct {
	// ForceAll reprocesses every venue+month regardless of freshness.
	ForceAll bool
	// ForceVenue restricts the run to one venue and forces it.
	ForceVenue string
	// VenueAllowlist, when non-empty, restricts processing to these keys.
	VenueAllowlist []string
	// MonthsLimit, when positive, truncates the rolling window.
	MonthsLimit int
	// TestMode marks created playlists for later cleanup.
	TestMode bool
}

// Orchestrator drives the scrape-partition-build pipeline.
type Orchestrator struct {
	store    *store.Store
	registry *scrape.Registry
	builder  *playlist.Builder
	history  *runlog.DB // optional
	months   int
	now      func() time.Time
}

// New creates an orchestrator. history may be nil to skip run recording.
func New(st *store.Store, registry *scrape.Registry, builder *playlist.Builder, history *runlog.DB, months int) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: registry,
		builder:  builder,
		history:  history,
		months:   months,
		now:      time.Now,
	}
}

// Run processes every city under the storage root. Only a missing storage
// root is fatal; everything else degrades to per-unit outcomes.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{Started: o.now()}

	months := event.Window(o.now(), o.months)
	if opts.MonthsLimit > 0 && opts.MonthsLimit < len(months) {
		months = months[:opts.MonthsLimit]
	}

	cities, err := o.store.Cities()
	if err != nil {
		return nil, err
	}

	for _, city := range cities {
		o.processCity(ctx, city, months, opts, summary)
	}

	summary.Finished = o.now()
	o.record(summary, opts)
	return summary, nil
}

func (o *Orchestrator) processCity(ctx context.Context, city string, months []event.MonthKey, opts Options, summary *Summary) {
	cfg, err := venue.LoadCityConfig(o.store.VenueConfigPath(city))
	if err != nil {
		log.Printf("Error loading venue config for %s: %v", city, err)
		summary.CityErrors = append(summary.CityErrors, CityError{City: city, Err: err})
		return
	}

	if opts.ForceVenue != "" {
		if v := cfg.Get(opts.ForceVenue); v != nil {
			o.processVenue(ctx, city, v, months, true, summary)
		}
		return
	}

	allow := toSet(opts.VenueAllowlist)
	for i := range cfg.Venues {
		v := &cfg.Venues[i]
		if len(allow) > 0 {
			if _, ok := allow[v.Key]; !ok {
				continue
			}
		}
		o.processVenue(ctx, city, v, months, opts.ForceAll, summary)
	}
}

// processVenue runs the scrape stage when needed, then the per-month state
// machine. No error escapes it; failures become unit outcomes.
func (o *Orchestrator) processVenue(ctx context.Context, city string, v *venue.Venue, months []event.MonthKey, force bool, summary *Summary) {
	log.Printf("Processing venue: %s", v.Key)

	writeFailed := make(map[event.MonthKey]error)
	if force || o.anyMonthMissingArtists(city, v.Key, months) {
		outcome, err := o.refreshArtists(ctx, city, v, months, writeFailed)
		if err != nil {
			log.Printf("Error processing %s: %v", v.Key, err)
			for _, month := range months {
				summary.Units = append(summary.Units, Unit{
					City: city, VenueKey: v.Key, VenueName: v.Name, Month: month,
					State:   o.stateFor(city, v.Key, month, force),
					Outcome: outcome, Err: err,
				})
			}
			return
		}
	}

	for _, month := range months {
		unit := o.processMonth(ctx, city, v, month, force, writeFailed[month])
		summary.Units = append(summary.Units, unit)
		if unit.Outcome == OutcomeUpdated && unit.PlaylistURL != "" {
			summary.Created = append(summary.Created, CreatedPlaylist{
				ID:   playlistIDFromURL(unit.PlaylistURL),
				Name: unit.PlaylistName,
			})
		}
	}
}

// refreshArtists scrapes the venue once and rewrites the artist record of
// every window month that has events. The scrape session is always released
// before the next venue runs.
func (o *Orchestrator) refreshArtists(ctx context.Context, city string, v *venue.Venue, months []event.MonthKey, writeFailed map[event.MonthKey]error) (Outcome, error) {
	scraper, err := o.registry.ForVenue(v)
	if err != nil {
		return OutcomeSkippedInvalidConfig, err
	}
	defer func() {
		if cerr := scraper.Close(); cerr != nil {
			log.Printf("Error releasing scraper for %s: %v", v.Key, cerr)
		}
	}()

	events, err := scraper.Events(ctx, v)
	if err != nil {
		return OutcomeFailed, err
	}
	log.Printf("Found %d events for %s", len(events), v.Key)

	buckets := event.Partition(events, months)
	for _, month := range months {
		artists, ok := buckets[month]
		if !ok {
			log.Printf("No artists found for %s in %s", v.Key, month)
			continue
		}
		if err := o.store.WriteArtists(city, v.Key, month, artists, o.now()); err != nil {
			log.Printf("Error writing artists for %s %s: %v", v.Key, month, err)
			writeFailed[month] = err
			continue
		}
		log.Printf("Saved %d unique artists for %s", len(artists), month)
	}
	return OutcomeUpdated, nil
}

func (o *Orchestrator) processMonth(ctx context.Context, city string, v *venue.Venue, month event.MonthKey, force bool, writeErr error) Unit {
	unit := Unit{City: city, VenueKey: v.Key, VenueName: v.Name, Month: month}
	unit.State = o.stateFor(city, v.Key, month, force)

	if writeErr != nil {
		unit.Outcome = OutcomeFailed
		unit.Err = fmt.Errorf("artist record write failed: %w", writeErr)
		return unit
	}

	switch unit.State {
	case StateNeedsArtistRefresh:
		// Scraping found nothing for this month; there is nothing to build.
		unit.Outcome = OutcomeSkippedNoArtists
		return unit
	case StateUpToDate:
		log.Printf("Skipping %s %s - playlist is up to date", v.Name, month)
		unit.Outcome = OutcomeSkippedUpToDate
		return unit
	}

	rec, err := o.store.ReadArtists(city, v.Key, month)
	if err != nil {
		unit.Outcome = OutcomeFailed
		unit.Err = err
		return unit
	}
	if rec == nil || len(rec.Artists) == 0 {
		unit.Outcome = OutcomeSkippedNoArtists
		return unit
	}

	built, err := o.builder.Build(ctx, v.Name, month, rec.Artists)
	if err != nil {
		log.Printf("Error creating playlist for %s: %v", v.Name, err)
		unit.Outcome = OutcomeFailed
		unit.Err = err
		return unit
	}
	if built == nil {
		unit.Outcome = OutcomeSkippedNoTracks
		return unit
	}

	if err := o.store.WritePlaylist(city, v.Key, month, built.URL, built.Name, o.now()); err != nil {
		unit.Outcome = OutcomeFailed
		unit.Err = err
		return unit
	}
	log.Printf("Created playlist for %s: %s", v.Name, built.URL)
	unit.Outcome = OutcomeUpdated
	unit.PlaylistURL = built.URL
	unit.PlaylistName = built.Name
	return unit
}

// stateFor computes the venue+month state. A force flag overrides freshness
// entirely.
func (o *Orchestrator) stateFor(city, venueKey string, month event.MonthKey, force bool) State {
	if force {
		return StateForced
	}
	if !o.store.HasArtists(city, venueKey, month) {
		return StateNeedsArtistRefresh
	}
	if o.store.NeedsUpdate(city, venueKey, month, o.now()) {
		return StateArtistsFreshNoPlaylist
	}
	return StateUpToDate
}

func (o *Orchestrator) anyMonthMissingArtists(city, venueKey string, months []event.MonthKey) bool {
	for _, month := range months {
		if !o.store.HasArtists(city, venueKey, month) {
			return true
		}
	}
	return false
}

// record persists the run to the history database, when one is attached.
func (o *Orchestrator) record(summary *Summary, opts Options) {
	if o.history == nil {
		return
	}
	units := make([]runlog.Unit, len(summary.Units))
	for i, u := range summary.Units {
		errMsg := ""
		if u.Err != nil {
			errMsg = u.Err.Error()
		}
		units[i] = runlog.Unit{
			City:        u.City,
			Venue:       u.VenueKey,
			Month:       u.Month.String(),
			State:       u.State.String(),
			Outcome:     u.Outcome.String(),
			PlaylistURL: u.PlaylistURL,
			Error:       errMsg,
		}
	}
	runID, err := o.history.InsertRun(summary.Started, summary.Finished, units)
	if err != nil {
		log.Printf("Error recording run: %v", err)
		return
	}
	for _, p := range summary.Created {
		if err := o.history.InsertCreatedPlaylist(runID, p.ID, p.Name, opts.TestMode); err != nil {
			log.Printf("Error recording created playlist %s: %v", p.ID, err)
		}
	}
}

func playlistIDFromURL(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}

func toSet(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
