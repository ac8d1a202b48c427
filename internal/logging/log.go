// Package logging provides the process-wide structured logger. Call
// shapes mirror the teacher's plain DebugLog/InfoLog/WarnLog/ErrorLog
// helpers so call sites read the same everywhere in the codebase, but
// the backing implementation is a structured zerolog logger that
// honors LOG_LEVEL (falling back to RUST_LOG) and emits JSON unless
// Pretty is called.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
	SetLevel(resolveLevel())
}

// resolveLevel reads LOG_LEVEL, falling back to RUST_LOG for operators
// migrating a compose file from the origin project (spec.md §6).
func resolveLevel() string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	if v := os.Getenv("RUST_LOG"); v != "" {
		return v
	}
	return "info"
}

// SetLevel sets the minimum level to display. Unknown levels fall back
// to info rather than erroring, since this is read from environment
// input.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base = base.Level(lvl)
}

// Pretty switches to a human-readable console writer, for interactive
// use. No command in this module calls it.
func Pretty() {
	base = base.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// Component returns a child logger tagged with a component field, used
// to scope log lines to a subsystem (scanner, enricher, organizer,
// streamer, catalog) the way the teacher's per-package InfoLog calls
// implicitly did through call-site context alone.
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

func DebugLog(format string, args ...interface{}) {
	base.Debug().Msgf(format, args...)
}

func InfoLog(format string, args ...interface{}) {
	base.Info().Msgf(format, args...)
}

func WarnLog(format string, args ...interface{}) {
	base.Warn().Msgf(format, args...)
}

func ErrorLog(format string, args ...interface{}) {
	base.Error().Msgf(format, args...)
}

func SuccessLog(format string, args ...interface{}) {
	base.Info().Bool("ok", true).Msgf(format, args...)
}
