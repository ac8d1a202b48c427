// Package retry implements exponential backoff with jitter, generalized
// from the teacher's file-I/O retry helper to also drive the Metadata
// Enricher's provider HTTP calls (spec.md §4.7).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // maximum number of attempts, including the first
	InitialWait time.Duration // initial wait duration (doubled each retry)
	MaxWait     time.Duration // maximum wait duration between retries
	Jitter      float64       // fraction of the wait duration to randomize, e.g. 0.2 = ±20%
}

// DefaultConfig mirrors the teacher's DefaultRetryConfig.
func DefaultConfig() *Config {
	return &Config{MaxAttempts: 3, InitialWait: 100 * time.Millisecond, MaxWait: 5 * time.Second, Jitter: 0.2}
}

// ProviderConfig is tuned for external HTTP provider calls: up to 4
// attempts, per spec.md §4.7's "small cap (e.g. 4 attempts)".
func ProviderConfig() *Config {
	return &Config{MaxAttempts: 4, InitialWait: 250 * time.Millisecond, MaxWait: 8 * time.Second, Jitter: 0.3}
}

// NASConfig is tuned for network-attached storage moves: longer waits,
// same attempt budget as the teacher's NASRetryConfig.
func NASConfig() *Config {
	return &Config{MaxAttempts: 3, InitialWait: 200 * time.Millisecond, MaxWait: 10 * time.Second, Jitter: 0.1}
}

// IsRetryableError checks if an error is worth retrying: transient
// filesystem/network errors. It does not look at HTTP status codes;
// RetryableHTTPStatus below classifies those separately.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pathError *os.PathError
	var linkError *os.LinkError
	var syscallError syscall.Errno
	var netErr net.Error

	if errors.As(err, &pathError) {
		err = pathError.Err
	}
	if errors.As(err, &linkError) {
		err = linkError.Err
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.As(err, &syscallError) {
		switch syscallError {
		case syscall.EAGAIN, syscall.ETIMEDOUT, syscall.ECONNRESET, syscall.ECONNABORTED,
			syscall.ECONNREFUSED, syscall.ENETDOWN, syscall.ENETUNREACH, syscall.EHOSTDOWN,
			syscall.EHOSTUNREACH, syscall.EIO:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout", "timed out", "connection reset", "connection refused",
		"connection aborted", "broken pipe", "no route to host",
		"network is unreachable", "network is down", "host is down",
		"temporary failure", "resource temporarily unavailable", "i/o error",
		"too many open files", "eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// RetryableHTTPStatus reports whether an HTTP status code represents a
// transient provider failure worth retrying (spec.md §4.7: 5xx,
// timeouts, 429). Terminal failures (404, 422) are not retryable.
func RetryableHTTPStatus(status int) bool {
	return status == 429 || status >= 500
}

// Do executes operation with exponential backoff, retrying only while
// shouldRetry(err) is true, up to cfg.MaxAttempts. It stops early if
// ctx is cancelled between attempts.
func Do[T any](ctx context.Context, cfg *Config, shouldRetry func(error) bool, operation func() (T, error)) (T, error) {
	var result T
	var err error

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if shouldRetry == nil {
		shouldRetry = IsRetryableError
	}

	wait := cfg.InitialWait

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !shouldRetry(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts {
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		sleep := jitter(wait, cfg.Jitter)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}

	return result, err
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
