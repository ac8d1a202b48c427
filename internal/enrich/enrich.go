// Package enrich is the Metadata Enricher (spec.md §4.7): looks up
// artists against MusicBrainz, binds their albums to release groups,
// and fetches portraits and cover art, all rate-limited per host and
// bounded to a small worker pool out of courtesy to the providers.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/pathsafe"
	"github.com/franz/sonora/internal/retry"
)

// MaxConcurrency bounds enrichment parallelism out of provider
// etiquette (spec.md §4.7: "a pool of size ≤ 4").
const MaxConcurrency = 4

// Options configures an Enricher.
type Options struct {
	Concurrency int
	PortraitDir string // artists/<id>.<ext> lives under here
	CoverDir    string // covers/<album_id>.<ext> lives under here
	Portrait    PortraitProvider
	RetryConfig *retry.Config
}

// portraitFetch bundles a portrait download's bytes and extension so
// retry.Do can hand back a single value.
type portraitFetch struct {
	data []byte
	ext  string
}

// coverFetch bundles a cover art download's bytes and extension so
// retry.Do can hand back a single value.
type coverFetch struct {
	data []byte
	ext  string
}

// Enricher drives artist-sync against the external providers.
type Enricher struct {
	store    *catalog.Store
	coord    *coordinator.Coordinator
	mb       *MusicBrainzClient
	coverArt *CoverArtProvider
	limiter  *hostLimiter
	opts     Options
}

// New creates an Enricher. If opts.Portrait is nil, NullPortraitProvider is used.
func New(store *catalog.Store, coord *coordinator.Coordinator, opts Options) *Enricher {
	if opts.Concurrency <= 0 || opts.Concurrency > MaxConcurrency {
		opts.Concurrency = MaxConcurrency
	}
	if opts.Portrait == nil {
		opts.Portrait = NullPortraitProvider{}
	}
	if opts.RetryConfig == nil {
		opts.RetryConfig = retry.ProviderConfig()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	limiter := newHostLimiter()
	limiter.SetRate("musicbrainz.org", time.Second) // MusicBrainz requires <=1 req/s
	limiter.SetRate("coverartarchive.org", 500*time.Millisecond)
	limiter.SetRate(opts.Portrait.Host(), time.Second)

	return &Enricher{
		store:    store,
		coord:    coord,
		mb:       NewMusicBrainzClient(httpClient),
		coverArt: NewCoverArtProvider(httpClient),
		limiter:  limiter,
		opts:     opts,
	}
}

// Close releases the rate limiter's tickers.
func (e *Enricher) Close() {
	e.limiter.Close()
}

// Result summarizes one sync run.
type Result struct {
	Attempted int
	Synced    int
	Failed    int
}

// FullSync re-enriches every artist in the catalog.
func (e *Enricher) FullSync(ctx context.Context) (*Result, error) {
	artists, err := e.store.AllArtists()
	if err != nil {
		return nil, apperr.Internal(err, "list artists")
	}
	return e.run(ctx, artists)
}

// SyncMissing enriches only artists lacking an external_id.
func (e *Enricher) SyncMissing(ctx context.Context) (*Result, error) {
	artists, err := e.store.ArtistsMissingExternalID()
	if err != nil {
		return nil, apperr.Internal(err, "list unsynced artists")
	}
	return e.run(ctx, artists)
}

// BeginFullSyncAsync and BeginMissingSyncAsync claim the sync slot
// synchronously (so an HTTP caller sees SyncBusy immediately) and run
// the rest of the sync in the background.
func (e *Enricher) BeginFullSyncAsync(ctx context.Context) error {
	artists, err := e.store.AllArtists()
	if err != nil {
		return apperr.Internal(err, "list artists")
	}
	return e.beginAsync(ctx, artists)
}

func (e *Enricher) BeginMissingSyncAsync(ctx context.Context) error {
	artists, err := e.store.ArtistsMissingExternalID()
	if err != nil {
		return apperr.Internal(err, "list unsynced artists")
	}
	return e.beginAsync(ctx, artists)
}

func (e *Enricher) beginAsync(ctx context.Context, artists []*catalog.Artist) error {
	runID, err := e.coord.TryBegin(coordinator.JobSync)
	if err != nil {
		return err
	}
	go func() { _, _ = e.runAfterBegin(ctx, artists, runID) }()
	return nil
}

// SyncOne re-enriches a single artist by id, idempotently.
func (e *Enricher) SyncOne(ctx context.Context, artistID int64) error {
	artist, err := e.store.ArtistByID(artistID)
	if err != nil {
		return err
	}
	result, err := e.run(ctx, []*catalog.Artist{artist})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return apperr.ProviderFailure("enrichment failed for artist %d", artistID)
	}
	return nil
}

func (e *Enricher) run(ctx context.Context, artists []*catalog.Artist) (*Result, error) {
	runID, err := e.coord.TryBegin(coordinator.JobSync)
	if err != nil {
		return nil, err
	}
	return e.runAfterBegin(ctx, artists, runID)
}

func (e *Enricher) runAfterBegin(ctx context.Context, artists []*catalog.Artist, runID string) (*Result, error) {
	result := &Result{}
	if len(artists) == 0 {
		_ = e.coord.End(coordinator.JobSync, runID, nil)
		return result, nil
	}

	var attempted, synced, failed atomic.Int64
	total := len(artists)

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				_ = e.coord.Report(coordinator.JobSync, runID, int(attempted.Load()), total)
			}
		}
	}()

	jobs := make(chan *catalog.Artist, e.opts.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for artist := range jobs {
				attempted.Add(1)
				if err := e.syncArtist(ctx, artist); err != nil {
					failed.Add(1)
					logging.WarnLog("enrich: artist %d (%s) failed: %v", artist.ID, artist.Name, err)
					_ = e.coord.ReportError(coordinator.JobSync, err.Error())
					if setErr := e.store.SetArtistSyncError(artist.ID, err.Error()); setErr != nil {
						logging.WarnLog("enrich: persist sync error for artist %d: %v", artist.ID, setErr)
					}
				} else {
					synced.Add(1)
					if clearErr := e.store.ClearArtistSyncError(artist.ID); clearErr != nil {
						logging.WarnLog("enrich: clear sync error for artist %d: %v", artist.ID, clearErr)
					}
				}
			}
		}()
	}

	for _, artist := range artists {
		select {
		case jobs <- artist:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
	cancelProgress()

	result.Attempted = int(attempted.Load())
	result.Synced = int(synced.Load())
	result.Failed = int(failed.Load())

	_ = e.coord.End(coordinator.JobSync, runID, nil)
	logging.SuccessLog("enrich: sync complete, %d attempted, %d synced, %d failed", result.Attempted, result.Synced, result.Failed)
	return result, nil
}

// syncArtist performs steps 1-4 of spec.md §4.7 for a single artist:
// resolve canonical identity, bind albums to release groups, fetch a
// portrait, and backfill missing album covers.
func (e *Enricher) syncArtist(ctx context.Context, artist *catalog.Artist) error {
	if err := e.limiter.Wait(ctx, e.mb.Host()); err != nil {
		return err
	}

	match, err := retry.Do(ctx, e.opts.RetryConfig, isTransientProviderError, func() (*ArtistMatch, error) {
		return e.mb.SearchArtist(ctx, artist.Name)
	})
	if err != nil {
		return err
	}
	if match == nil {
		// No confident match; leave the artist unsynced without
		// treating "not found" as a hard failure.
		return nil
	}

	if err := e.store.UpdateArtistEnrichment(artist.ID, match.Bio, artist.ImageLocalPath.String, match.ExternalID); err != nil {
		return apperr.Internal(err, "persist artist enrichment for %d", artist.ID)
	}

	e.bindAlbums(artist.ID, match)
	e.fetchPortrait(ctx, artist, match)
	e.backfillCovers(ctx, artist.ID, match)

	return nil
}

func (e *Enricher) bindAlbums(artistID int64, match *ArtistMatch) {
	albums, err := e.store.AlbumsByArtist(artistID)
	if err != nil {
		logging.WarnLog("enrich: list albums for artist %d: %v", artistID, err)
		return
	}
	for _, album := range albums {
		if album.ExternalID.Valid {
			continue
		}
		groupID, ok := match.ReleaseGroups[album.Title]
		if !ok {
			continue
		}
		if err := e.store.UpdateAlbumEnrichment(album.ID, groupID, groupID); err != nil {
			logging.WarnLog("enrich: bind album %d to release group: %v", album.ID, err)
		}
	}
}

func (e *Enricher) fetchPortrait(ctx context.Context, artist *catalog.Artist, match *ArtistMatch) {
	if artist.ImageLocalPath.Valid && artist.ImageLocalPath.String != "" {
		return
	}
	if err := e.limiter.Wait(ctx, e.opts.Portrait.Host()); err != nil {
		return
	}

	fetched, err := retry.Do(ctx, e.opts.RetryConfig, isTransientProviderError, func() (portraitFetch, error) {
		data, ext, err := e.opts.Portrait.FetchPortrait(ctx, artist.Name, artist.ExternalID.String)
		return portraitFetch{data: data, ext: ext}, err
	})
	if err != nil || len(fetched.data) == 0 {
		return
	}

	filename := fmt.Sprintf("%d%s", artist.ID, clampExt(fetched.ext))
	dst, err := pathsafe.UnderRoot(e.opts.PortraitDir, filepath.Join(e.opts.PortraitDir, filename))
	if err != nil {
		return
	}
	if err := os.WriteFile(dst, fetched.data, 0o644); err != nil {
		logging.WarnLog("enrich: write portrait for artist %d: %v", artist.ID, err)
		return
	}
	if err := e.store.UpdateArtistEnrichment(artist.ID, match.Bio, filename, match.ExternalID); err != nil {
		logging.WarnLog("enrich: persist portrait path for artist %d: %v", artist.ID, err)
	}
}

func (e *Enricher) backfillCovers(ctx context.Context, artistID int64, match *ArtistMatch) {
	albums, err := e.store.AlbumsByArtist(artistID)
	if err != nil {
		return
	}
	for _, album := range albums {
		if album.CoverLocalPath.Valid && album.CoverLocalPath.String != "" {
			continue
		}
		if !album.ReleaseGroupID.Valid || album.ReleaseGroupID.String == "" {
			continue
		}
		if err := e.limiter.Wait(ctx, e.coverArt.Host()); err != nil {
			return
		}
		fetched, err := retry.Do(ctx, e.opts.RetryConfig, isTransientProviderError, func() (coverFetch, error) {
			data, ext, err := e.coverArt.FetchFront(ctx, album.ReleaseGroupID.String)
			return coverFetch{data: data, ext: ext}, err
		})
		if err != nil || len(fetched.data) == 0 {
			continue
		}
		relName := fmt.Sprintf("%d%s", album.ID, clampExt(fetched.ext))
		dst, err := pathsafe.UnderRoot(e.opts.CoverDir, filepath.Join(e.opts.CoverDir, relName))
		if err == nil {
			err = os.MkdirAll(e.opts.CoverDir, 0o755)
		}
		if err == nil {
			err = os.WriteFile(dst, fetched.data, 0o644)
		}
		if err != nil {
			logging.WarnLog("enrich: cache cover for album %d: %v", album.ID, err)
			continue
		}
		if err := e.store.UpdateAlbumCover(album.ID, relName); err != nil {
			logging.WarnLog("enrich: persist cover for album %d: %v", album.ID, err)
		}
	}
}

func isTransientProviderError(err error) bool {
	if httpErr, ok := err.(*providerHTTPError); ok {
		return retry.RetryableHTTPStatus(httpErr.status)
	}
	return retry.IsRetryableError(err)
}

func clampExt(ext string) string {
	if ext == "" {
		return ".jpg"
	}
	return ext
}
