package venue

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "venues.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadCityConfig(t *testing.T) {
	path := writeConfig(t, `
venues:
  the-independent:
    name: The Independent
    description: Intimate rock club
    scrapers:
      bandsintown:
        url: https://www.bandsintown.com/v/123
        priority: 1
  the-fillmore:
    name: The Fillmore
    scrapers:
      text:
        url: https://thefillmore.com/calendar
        priority: 2
`)

	cfg, err := LoadCityConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Venues) != 2 {
		t.Fatalf("expected 2 venues, got %d", len(cfg.Venues))
	}
	// Declaration order must be preserved.
	if cfg.Venues[0].Key != "the-independent" || cfg.Venues[1].Key != "the-fillmore" {
		t.Errorf("unexpected venue order: %s, %s", cfg.Venues[0].Key, cfg.Venues[1].Key)
	}
	if cfg.Venues[0].Description != "Intimate rock club" {
		t.Errorf("unexpected description: %q", cfg.Venues[0].Description)
	}
}

func TestLoadCityConfigSkipsMalformedEntry(t *testing.T) {
	path := writeConfig(t, `
venues:
  broken:
    scrapers: "not a mapping"
  missing-name:
    description: no name here
  valid:
    name: Valid Venue
    scrapers:
      feed:
        url: https://example.com/events.rss
        priority: 1
`)

	cfg, err := LoadCityConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Venues) != 1 {
		t.Fatalf("expected exactly 1 venue, got %d", len(cfg.Venues))
	}
	if cfg.Venues[0].Key != "valid" {
		t.Errorf("expected 'valid', got %q", cfg.Venues[0].Key)
	}
	if cfg.Get("broken") != nil || cfg.Get("missing-name") != nil {
		t.Error("malformed entries must be absent from the result")
	}
}

func TestLoadCityConfigMalformedDocument(t *testing.T) {
	path := writeConfig(t, "venues: [not: valid: yaml: here\n")

	_, err := LoadCityConfig(path)
	if err == nil {
		t.Fatal("expected error for malformed document")
	}
	if !errors.Is(err, ErrDataFormat) {
		t.Errorf("expected ErrDataFormat, got %v", err)
	}
}

func TestLoadCityConfigMissingVenuesKey(t *testing.T) {
	path := writeConfig(t, "something_else: true\n")

	_, err := LoadCityConfig(path)
	if !errors.Is(err, ErrDataFormat) {
		t.Errorf("expected ErrDataFormat, got %v", err)
	}
}

func TestLoadCityConfigMissingFile(t *testing.T) {
	_, err := LoadCityConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrDataFormat) {
		t.Error("missing file must not be reported as a data format error")
	}
}

func TestSelectScraper(t *testing.T) {
	v := &Venue{
		Key:  "v",
		Name: "V",
		Scrapers: map[string]ScraperConfig{
			"text":        {URL: "https://v.example/cal", Priority: 5},
			"bandsintown": {URL: "https://bandsintown.example/v", Priority: 1},
		},
	}

	tag, sc, err := v.SelectScraper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag != "bandsintown" {
		t.Errorf("expected bandsintown, got %q", tag)
	}
	if sc.URL != "https://bandsintown.example/v" {
		t.Errorf("unexpected url %q", sc.URL)
	}
}

func TestSelectScraperNoneConfigured(t *testing.T) {
	v := &Venue{Key: "v", Name: "V"}
	if _, _, err := v.SelectScraper(); err == nil {
		t.Fatal("expected error for venue without scrapers")
	}
}
