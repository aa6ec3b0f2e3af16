package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattmock/venue-playlists/internal/config"
	"github.com/mattmock/venue-playlists/internal/export"
	"github.com/mattmock/venue-playlists/internal/llm"
	"github.com/mattmock/venue-playlists/internal/pipeline"
	"github.com/mattmock/venue-playlists/internal/playlist"
	"github.com/mattmock/venue-playlists/internal/runlog"
	"github.com/mattmock/venue-playlists/internal/scrape"
	"github.com/mattmock/venue-playlists/internal/server"
	"github.com/mattmock/venue-playlists/internal/spotify"
	"github.com/mattmock/venue-playlists/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "venueplaylists",
	Short:   "Monthly Spotify playlists from venue event listings",
	Long:    "venueplaylists scrapes venue event pages, extracts performing artists, and maintains one Spotify playlist per venue per month.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(cleanupCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("venueplaylists", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/venueplaylists/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the venue data directory and Spotify credential env vars.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record store and run history status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.New(cfg.GetVenueDataDir())
		cities, err := st.Cities()
		if err != nil {
			return err
		}
		fmt.Printf("Venue data root: %s\n", st.Root())
		fmt.Printf("Cities: %d\n", len(cities))

		history, err := openHistory()
		if err != nil {
			return err
		}
		defer history.Close()

		stats, err := history.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Println("\nRuns:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  Playlists updated: %d\n", stats.TotalUpdated)
		fmt.Printf("  Units failed: %d\n", stats.TotalFailed)
		fmt.Println("\nCreated playlists:")
		fmt.Printf("  Total: %d\n", stats.CreatedPlaylists)
		fmt.Printf("  Pending test cleanup: %d\n", stats.PendingCleanup)

		if last, err := history.GetLastRun(); err == nil && last != nil {
			fmt.Printf("\nLast run: %s (%d updated, %d skipped, %d failed)\n",
				last.StartedAt, last.Updated, last.Skipped, last.Failed)
			if last.Failed > 0 {
				units, err := history.GetRunUnits(last.ID)
				if err != nil {
					return fmt.Errorf("getting run units: %w", err)
				}
				for _, u := range units {
					if u.Outcome == "failed" {
						fmt.Printf("  failed: %s/%s %s: %s\n", u.City, u.Venue, u.Month, u.Error)
					}
				}
			}
		}
		return nil
	},
}

// --- run command ---

var (
	forceAll     bool
	forceVenue   string
	venueFilter  []string
	monthsLimit  int
	testMode     bool
	preserveTest bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape venues and update stale playlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		client, err := spotify.New(ctx, spotifyCredentials())
		if err != nil {
			return fmt.Errorf("connecting to Spotify: %w", err)
		}

		builder := playlist.NewBuilder(client, client)
		builder.TracksPerArtist = cfg.Spotify.TracksPerArtist
		if testMode {
			builder.NamePrefix = store.TestMarker + " "
			builder.IncludeCreationTime = true
		}

		provider := llm.CreateProvider(
			cfg.Extraction.Provider,
			cfg.Extraction.Model,
			cfg.Extraction.OllamaURL,
			cfg.Extraction.OpenAIModel,
			cfg.Extraction.APIKeyEnv,
		)
		registry := scrape.NewRegistry(scrape.Deps{
			Provider:   provider,
			ChunkLimit: cfg.Extraction.ChunkChars,
		})

		history, err := openHistory()
		if err != nil {
			return err
		}
		defer history.Close()

		orch := pipeline.New(store.New(cfg.GetVenueDataDir()), registry, builder, history, cfg.Window.Months)
		summary, err := orch.Run(ctx, pipeline.Options{
			ForceAll:       forceAll,
			ForceVenue:     forceVenue,
			VenueAllowlist: venueFilter,
			MonthsLimit:    monthsLimit,
			TestMode:       testMode,
		})
		if err != nil {
			return err
		}

		printSummary(summary)

		// Only the playlists this run created are removed; test playlists
		// preserved from earlier runs stay until an explicit cleanup.
		if testMode && !preserveTest && len(summary.Created) > 0 {
			fmt.Println("\nCleaning up this run's test playlists...")
			cleaner := pipeline.NewCleaner(client, history)
			result := cleaner.RemoveCreated(ctx, summary.Created)
			fmt.Printf("Removed %d test playlist(s)\n", len(result.Removed))
			if result.Errors > 0 {
				return fmt.Errorf("%d test playlist(s) could not be removed", result.Errors)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&forceAll, "force-all", false, "Reprocess every venue regardless of freshness")
	runCmd.Flags().StringVar(&forceVenue, "force-venue", "", "Process only this venue key, forced")
	runCmd.Flags().StringSliceVar(&venueFilter, "venues", nil, "Only process these venue keys")
	runCmd.Flags().IntVar(&monthsLimit, "months", 0, "Limit the rolling window to this many months")
	runCmd.Flags().BoolVar(&testMode, "test-mode", false, "Create playlists with the test marker prefix")
	runCmd.Flags().BoolVar(&preserveTest, "preserve-test", false, "Keep test playlists after a test-mode run")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(store.New(cfg.GetVenueDataDir()), cfg.Window.Months, port, cfg.Server.AllowedOrigins)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- export command ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the website data snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.GetExportPath()
		snap, err := export.New(store.New(cfg.GetVenueDataDir()), cfg.Window.Months).Write(path)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d venue(s) to %s\n", len(snap.Venues), path)
		return nil
	},
}

// --- cleanup command ---

var (
	cleanupHours      int
	cleanupPlaylistID string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove test playlists from the Spotify account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		client, err := spotify.New(ctx, spotifyCredentials())
		if err != nil {
			return fmt.Errorf("connecting to Spotify: %w", err)
		}

		history, err := openHistory()
		if err != nil {
			return err
		}
		defer history.Close()

		cleaner := pipeline.NewCleaner(client, history)
		if cleanupPlaylistID != "" {
			if err := cleaner.RemoveByID(ctx, cleanupPlaylistID); err != nil {
				return err
			}
			fmt.Printf("Removed playlist %s\n", cleanupPlaylistID)
			return nil
		}

		result, err := cleaner.Run(ctx, time.Duration(cleanupHours)*time.Hour)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d test playlist(s), kept %d\n", len(result.Removed), len(result.Kept))
		if result.Errors > 0 {
			return fmt.Errorf("%d playlist(s) could not be removed", result.Errors)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupHours, "hours", 0, "Only remove test playlists older than this many hours")
	cleanupCmd.Flags().StringVar(&cleanupPlaylistID, "playlist-id", "", "Remove one playlist by ID, regardless of name")
}

func spotifyCredentials() spotify.Credentials {
	return spotify.Credentials{
		ClientID:     os.Getenv(cfg.Spotify.ClientIDEnv),
		ClientSecret: os.Getenv(cfg.Spotify.ClientSecretEnv),
		RefreshToken: os.Getenv(cfg.Spotify.RefreshTokenEnv),
	}
}

func openHistory() (*runlog.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return runlog.Open(filepath.Join(dataDir, "venueplaylists.db"))
}
