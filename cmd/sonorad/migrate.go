package main

import (
	"github.com/spf13/cobra"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/config"
	"github.com/franz/sonora/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog schema migrations",
	Long: `Open the catalog database and apply any pending schema migrations.
catalog.Open already applies migrations as part of opening the store, so
this command exists to run that step explicitly and report the result
before a first "serve" or "scan" invocation.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CheckIntegrity(); err != nil {
		return err
	}

	logging.SuccessLog("catalog schema up to date: %s", cfg.DatabaseURL)
	return nil
}
