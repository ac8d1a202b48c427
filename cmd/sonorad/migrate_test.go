package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestRunMigrateOpensAndChecksFreshDatabase(t *testing.T) {
	viper.Reset()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	t.Setenv("SONORA_DATABASE_URL", dbPath)
	t.Setenv("SONORA_MUSIC_DIR", t.TempDir())

	if err := runMigrate(migrateCmd, nil); err != nil {
		t.Fatalf("runMigrate: %v", err)
	}
}
