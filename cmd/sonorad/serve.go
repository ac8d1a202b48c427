package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/config"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/enrich"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/organize"
	"github.com/franz/sonora/internal/scan"
	"github.com/franz/sonora/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Start the audio streamer, job trigger endpoints, and avatar upload
surface (spec.md §6). Self-heals any job flags left running by a
previous crashed process before accepting requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	coord := coordinator.New(store)
	if err := coord.SelfHeal(); err != nil {
		return err
	}

	scanner := scan.New(store, coord, scan.Options{
		Concurrency: cfg.ScanConcurrency,
		CoverCache:  cfg.CoverDir,
	})
	enricher := enrich.New(store, coord, enrich.Options{
		Concurrency: cfg.EnrichConcurrency,
		CoverDir:    cfg.CoverDir,
	})
	defer enricher.Close()
	organizer := organize.New(store, coord, cfg.MusicDir, organize.Options{
		AvatarDir: cfg.AvatarDir,
		CoverDir:  cfg.CoverDir,
	})

	router := stream.NewRouter(store, coord, scanner, enricher, organizer, stream.Options{
		MusicDir:      cfg.MusicDir,
		AvatarDir:     cfg.AvatarDir,
		JWTSecret:     cfg.JWTSecret,
		TranscoderCap: cfg.TranscoderCap,
	})

	logging.InfoLog("sonorad: listening on %s", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, router)
}
