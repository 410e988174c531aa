package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	gtfsprep "opentransit.dev/gtfsprep"
	"opentransit.dev/gtfsprep/config"
	"opentransit.dev/gtfsprep/downloader"
	"opentransit.dev/gtfsprep/nextbus"
	"opentransit.dev/gtfsprep/storage"
	"opentransit.dev/gtfsprep/uploader"
)

var rootCmd = &cobra.Command{
	Use:           "gtfsprep",
	Short:         "OpenTransit GTFS preprocessor",
	Long:          "Precomputes route and timetable documents from GTFS feeds",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath  string
	dataDir     string
	storageKind string
	postgresURL string
	useS3       bool
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "Agency config file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&storageKind, "storage", "", "filesystem", "Document store: filesystem, sqlite or postgres")
	rootCmd.PersistentFlags().StringVarP(&postgresURL, "postgres", "", "", "Postgres connection string for --storage postgres")
	rootCmd.PersistentFlags().BoolVarP(&useS3, "s3", "", false, "Publish documents to the configured S3 bucket")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(timetablesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Builds a Scraper from the config file and flags.
func newScraper() (*gtfsprep.Scraper, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	dl, err := downloader.NewFilesystem(filepath.Join(cfg.DataDir, "feeds"))
	if err != nil {
		return nil, nil, err
	}

	scraper := gtfsprep.NewScraper(cfg, store, newLogger())
	scraper.Downloader = dl
	scraper.Nextbus = nextbus.NewClient(dl)

	if useS3 {
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("--s3 requires s3_bucket in %s", configPath)
		}
		up, err := uploader.NewS3Uploader(cfg.S3Bucket)
		if err != nil {
			return nil, nil, err
		}
		scraper.Uploader = up
	}

	return scraper, cfg, nil
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch storageKind {
	case "filesystem":
		return storage.NewFilesystemStorage(filepath.Join(cfg.DataDir, "documents"))
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, err
		}
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: cfg.DataDir})
	case "postgres":
		if postgresURL == "" {
			return nil, fmt.Errorf("--storage postgres requires --postgres")
		}
		return storage.NewPSQLStorage(postgresURL, false)
	}
	return nil, fmt.Errorf("unknown storage backend %q", storageKind)
}

// The agency ids to operate on: the arguments if given, otherwise
// every configured agency.
func agencyIDs(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return args
	}

	ids := []string{}
	for _, a := range cfg.Agencies {
		ids = append(ids, a.ID)
	}
	return ids
}
