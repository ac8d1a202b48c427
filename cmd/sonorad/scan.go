package main

import (
	"context"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/config"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library and update the catalog",
	Long: `Walk MUSIC_DIR, extract tags, and upsert artists, albums, and
tracks into the catalog (spec.md §4.6). Runs in the foreground and
blocks until the walk finishes, unlike the HTTP-triggered scan which
runs in the background.`,
	RunE: runScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	logging.InfoLog("=== Scanning %s ===", cfg.MusicDir)

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-progressCtx.Done():
					return
				case <-ticker.C:
					if status, err := store.ScanStatus(); err == nil {
						_ = bar.Set(status.CurrentCount)
					}
				}
			}
		}()
		defer bar.Finish()
	}

	start := time.Now()
	result, err := scanner.Scan(ctx, cfg.MusicDir)
	stopProgress()
	if err != nil {
		return err
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	logging.SuccessLog("Scan complete in %v", elapsed)
	logging.InfoLog("  Files found:      %d", result.FilesFound)
	logging.InfoLog("  Files upserted:   %d", result.FilesUpserted)
	logging.InfoLog("  Orphans removed:  %d", result.OrphansRemoved)
	if result.FilesFailed > 0 {
		logging.WarnLog("  Files failed:     %d", result.FilesFailed)
	}

	return nil
}
