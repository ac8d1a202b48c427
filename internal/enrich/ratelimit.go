package enrich

import (
	"context"
	"sync"
	"time"
)

// hostLimiter generalizes the teacher's single-host time.Ticker-based
// limiter into one bucket per external host, so MusicBrainz's 1 req/s
// requirement doesn't also throttle Cover Art Archive requests.
type hostLimiter struct {
	mu       sync.Mutex
	tickers  map[string]*time.Ticker
	interval map[string]time.Duration
}

func newHostLimiter() *hostLimiter {
	return &hostLimiter{
		tickers:  make(map[string]*time.Ticker),
		interval: make(map[string]time.Duration),
	}
}

// SetRate configures host to allow at most one request per interval.
// Must be called before the first Wait for that host.
func (l *hostLimiter) SetRate(host string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval[host] = interval
}

// Wait blocks until a token for host is available or ctx is done. The
// first Wait for a host takes its initial token without blocking.
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	ticker, created := l.tickerFor(host)
	if created {
		return nil
	}
	select {
	case <-ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *hostLimiter) tickerFor(host string) (*time.Ticker, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.tickers[host]; ok {
		return t, false
	}
	interval := l.interval[host]
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	l.tickers[host] = t
	return t, true
}

// Close stops every host's ticker.
func (l *hostLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.tickers {
		t.Stop()
	}
}
