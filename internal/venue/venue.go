package venue

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDataFormat marks a venue config document that exists but cannot be
// parsed. The read layer maps it to a server-error response, distinct from
// "not found".
var ErrDataFormat = errors.New("malformed venue config")

// ScraperConfig is one configured scraper for a venue. Lower priority values
// win.
type ScraperConfig struct {
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
}

// Venue is a single venue entry from a city's venues.yaml.
type Venue struct {
	Key         string
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Scrapers    map[string]ScraperConfig `yaml:"scrapers"`
}

// SelectScraper returns the type tag and config of the highest-priority
// configured scraper (lowest numeric priority, ties broken by tag). A venue
// with no scrapers configured is an error, not a skip.
func (v *Venue) SelectScraper() (string, ScraperConfig, error) {
	if len(v.Scrapers) == 0 {
		return "", ScraperConfig{}, fmt.Errorf("no scrapers configured for venue %q", v.Key)
	}
	tags := make([]string, 0, len(v.Scrapers))
	for tag := range v.Scrapers {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		pi, pj := v.Scrapers[tags[i]].Priority, v.Scrapers[tags[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return tags[i] < tags[j]
	})
	tag := tags[0]
	return tag, v.Scrapers[tag], nil
}

// CityConfig holds the venues declared for one city, in document order.
type CityConfig struct {
	Venues []Venue
}

// Get returns the venue with the given key, or nil.
func (c *CityConfig) Get(key string) *Venue {
	for i := range c.Venues {
		if c.Venues[i].Key == key {
			return &c.Venues[i]
		}
	}
	return nil
}

// LoadCityConfig reads a city's venues.yaml. The document is a mapping with a
// top-level "venues" key. Individual venue entries that are malformed or
// missing a name are skipped with a warning; a document that cannot be parsed
// at all is an ErrDataFormat.
func LoadCityConfig(path string) (*CityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading venue config: %w", err)
	}
	cfg, err := parseCityConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataFormat, path, err)
	}
	return cfg, nil
}

// parseCityConfig decodes via yaml.Node so that declaration order survives
// and one corrupt venue entry cannot take down its siblings.
func parseCityConfig(data []byte) (*CityConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at document root")
	}

	venuesNode := mappingValue(root, "venues")
	if venuesNode == nil {
		return nil, fmt.Errorf("missing top-level venues key")
	}
	if venuesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("venues must be a mapping")
	}

	cfg := &CityConfig{}
	for i := 0; i+1 < len(venuesNode.Content); i += 2 {
		key := venuesNode.Content[i].Value
		var v Venue
		if err := venuesNode.Content[i+1].Decode(&v); err != nil {
			log.Printf("Skipping venue %q: %v", key, err)
			continue
		}
		if strings.TrimSpace(v.Name) == "" {
			log.Printf("Skipping venue %q: missing name", key)
			continue
		}
		v.Key = key
		cfg.Venues = append(cfg.Venues, v)
	}
	return cfg, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
