// Package server exposes the read API over the record store. It only ever
// reads: playlists are created by the pipeline, never through HTTP.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yuin/goldmark"

	"github.com/mattmock/venue-playlists/internal/event"
	"github.com/mattmock/venue-playlists/internal/store"
	"github.com/mattmock/venue-playlists/internal/venue"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// MonthEntry is one month's playlist reference in the API payload.
type MonthEntry struct {
	PlaylistURL string `json:"playlist_url"`
}

// VenueEntry is one venue in the API payload.
type VenueEntry struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Months      map[string]MonthEntry `json:"months"`
}

// VenuesResponse is the /api/venues payload.
type VenuesResponse struct {
	Venues      map[string]VenueEntry `json:"venues"`
	LastUpdated string                `json:"last_updated,omitempty"`
}

// Server is the HTTP server for the venue playlist data.
type Server struct {
	store  *store.Store
	months int
	index  *template.Template
	router chi.Router
	now    func() time.Time
}

// New creates a new Server scoped to a rolling window of windowMonths months.
// allowedOrigins configures CORS; empty means any origin, which suits a
// public read-only API.
func New(st *store.Store, windowMonths int, allowedOrigins []string) (*Server, error) {
	index, err := template.New("index.html").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing index template: %w", err)
	}

	s := &Server{store: st, months: windowMonths, index: index, now: time.Now}
	s.routes(allowedOrigins)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/api/venues", s.handleVenues)
	s.router = r
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	resp, err := s.buildVenuesResponse()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding venues response: %v", err)
	}
}

// buildVenuesResponse assembles the per-venue month map from the record
// store, skipping test-marked playlists. Only months inside the rolling
// window are exposed; older records stay on disk but never leave the API.
func (s *Server) buildVenuesResponse() (*VenuesResponse, error) {
	cities, err := s.store.Cities()
	if err != nil {
		return nil, err
	}

	window := event.Window(s.now(), s.months)
	resp := &VenuesResponse{
		Venues:      make(map[string]VenueEntry),
		LastUpdated: s.now().Format(time.RFC3339),
	}
	for _, city := range cities {
		cfg, err := venue.LoadCityConfig(s.store.VenueConfigPath(city))
		if err != nil {
			return nil, err
		}
		for i := range cfg.Venues {
			v := &cfg.Venues[i]
			entry := VenueEntry{
				Name:        v.Name,
				Description: v.Description,
				Months:      make(map[string]MonthEntry),
			}
			months, err := s.store.PlaylistMonths(city, v.Key)
			if err != nil {
				return nil, err
			}
			for _, month := range months {
				if !month.In(window) {
					continue
				}
				rec, err := s.store.ReadPlaylist(city, v.Key, month)
				if err != nil {
					return nil, err
				}
				if rec == nil || rec.IsTest() {
					continue
				}
				entry.Months[month.String()] = MonthEntry{PlaylistURL: rec.PlaylistURL}
			}
			resp.Venues[v.Key] = entry
		}
	}
	return resp, nil
}

// writeError maps storage errors onto the API's response taxonomy: a missing
// data root is a 503 so a deploy without data reads as "not ready", while a
// malformed document is a plain server error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRootMissing):
		http.Error(w, "Venue data not available", http.StatusServiceUnavailable)
	case errors.Is(err, store.ErrDataFormat), errors.Is(err, venue.ErrDataFormat):
		log.Printf("Data format error: %v", err)
		http.Error(w, "Invalid venue data format", http.StatusInternalServerError)
	default:
		log.Printf("Error building venues response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	resp, err := s.buildVenuesResponse()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, resp); err != nil {
		log.Printf("Error rendering index: %v", err)
	}
}

// Serve runs the read API on the given port until the listener fails.
func Serve(st *store.Store, windowMonths, port int, allowedOrigins []string) error {
	srv, err := New(st, windowMonths, allowedOrigins)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
