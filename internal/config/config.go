// Package config binds the process configuration from environment
// variables and an optional config file, the way the teacher's
// cmd/mlc root command binds flags and env vars through viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every environment-driven setting from spec.md §6.
type Config struct {
	DatabaseURL      string // DATABASE_URL: catalog store connection string
	RedisURL         string // REDIS_URL: session/cache store for the external Auth collaborator
	JWTSecret        string // JWT_SECRET: token signing key for the default Identity middleware
	MusicDir         string // MUSIC_DIR: library root, canonicalized at load
	CoverDir         string // COVER_DIR: cover cache directory
	AvatarDir        string // AVATAR_DIR: avatar upload directory (defaults to a sibling of COVER_DIR)
	ScanConcurrency  int    // SCAN_CONCURRENCY: scanner worker pool size (default 8)
	EnrichConcurrency int   // enrichment worker pool size (default 4, not spec-mandated env var)
	TranscoderCap    int    // max concurrent transcoder subprocesses (default 4)
	ListenAddr       string // HTTP listen address for `sonorad serve`
	LogLevel         string // LOG_LEVEL (falls back to RUST_LOG)
}

// Load reads configuration from environment variables (optionally
// bound to cobra flags by the caller before Load runs), mirroring the
// teacher's SetEnvPrefix("MLC")+AutomaticEnv pattern with a
// SONORA_-prefixed fallback.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix("SONORA")
	v.AutomaticEnv()
	v.SetDefault("scan_concurrency", 8)
	v.SetDefault("enrich_concurrency", 4)
	v.SetDefault("transcoder_cap", 4)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	// raw reads the unprefixed variables; v supplies the SONORA_ fallback.
	raw := viper.New()
	raw.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:       firstNonEmpty(raw.GetString("DATABASE_URL"), v.GetString("database_url")),
		RedisURL:          firstNonEmpty(raw.GetString("REDIS_URL"), v.GetString("redis_url")),
		JWTSecret:         firstNonEmpty(raw.GetString("JWT_SECRET"), v.GetString("jwt_secret")),
		MusicDir:          firstNonEmpty(raw.GetString("MUSIC_DIR"), v.GetString("music_dir")),
		CoverDir:          firstNonEmpty(raw.GetString("COVER_DIR"), v.GetString("cover_dir")),
		AvatarDir:         firstNonEmpty(raw.GetString("AVATAR_DIR"), v.GetString("avatar_dir")),
		ScanConcurrency:   firstPositive(raw.GetInt("SCAN_CONCURRENCY"), v.GetInt("scan_concurrency"), 8),
		EnrichConcurrency: firstPositive(v.GetInt("enrich_concurrency"), 0, 4),
		TranscoderCap:     firstPositive(v.GetInt("transcoder_cap"), 0, 4),
		ListenAddr:        v.GetString("listen_addr"),
		LogLevel:          firstNonEmpty(raw.GetString("LOG_LEVEL"), raw.GetString("RUST_LOG"), v.GetString("log_level")),
	}

	if cfg.AvatarDir == "" && cfg.CoverDir != "" {
		cfg.AvatarDir = filepath.Join(filepath.Dir(cfg.CoverDir), "avatars")
	}

	if cfg.MusicDir == "" {
		return nil, fmt.Errorf("MUSIC_DIR is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for i, v := range values {
		if v > 0 {
			return v
		}
		// last element is the caller-provided default, always accepted
		if i == len(values)-1 {
			return v
		}
	}
	return 0
}
