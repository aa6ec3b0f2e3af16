package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Storage    Storage    `yaml:"storage"`
	Window     Window     `yaml:"window"`
	Extraction Extraction `yaml:"extraction"`
	Spotify    Spotify    `yaml:"spotify"`
	Server     Server     `yaml:"server"`
	Export     Export     `yaml:"export"`
}

type Storage struct {
	// DataDir holds application state such as the run history database.
	DataDir string `yaml:"data_dir"`
	// VenueDataDir is the record store root: one directory per city.
	VenueDataDir string `yaml:"venue_data_dir"`
}

type Window struct {
	// Months is the rolling processing window, current month included.
	Months int `yaml:"months"`
}

type Extraction struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	ChunkChars  int    `yaml:"chunk_chars"`
}

type Spotify struct {
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	RefreshTokenEnv string `yaml:"refresh_token_env"`
	TracksPerArtist int    `yaml:"tracks_per_artist"`
}

type Server struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Export struct {
	Output string `yaml:"output"`
}

// ConfigDir returns the XDG config directory for venueplaylists.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "venueplaylists")
}

// DataDir returns the XDG data directory for venueplaylists.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "venueplaylists")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/venueplaylists/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'venueplaylists init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Window: Window{Months: 3},
		Extraction: Extraction{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			ChunkChars:  12000,
		},
		Spotify: Spotify{
			ClientIDEnv:     "SPOTIFY_CLIENT_ID",
			ClientSecretEnv: "SPOTIFY_CLIENT_SECRET",
			RefreshTokenEnv: "SPOTIFY_REFRESH_TOKEN",
			TracksPerArtist: 3,
		},
		Server: Server{Port: 5001},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// GetVenueDataDir returns the record store root from config or its default
// under the data directory.
func (c *Config) GetVenueDataDir() string {
	if c.Storage.VenueDataDir != "" {
		return c.Storage.VenueDataDir
	}
	return filepath.Join(c.GetDataDir(), "venue_data")
}

// GetExportPath returns the website snapshot path from config or its default
// under the data directory.
func (c *Config) GetExportPath() string {
	if c.Export.Output != "" {
		return c.Export.Output
	}
	return filepath.Join(c.GetDataDir(), "website", "venues.json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
