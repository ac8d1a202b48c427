// Package scan is the Physical Scanner (spec.md §4.6): walks the
// library root, extracts tags, and upserts the catalog with a bounded
// worker pool. Failures on individual files are logged and skipped;
// the scan only aborts on catastrophic (store-level) errors.
package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/assets"
	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/pathsafe"
	"github.com/franz/sonora/internal/tags"
	"github.com/franz/sonora/internal/textenc"
)

// audioExtensions are the extensions the Tag Reader knows how to
// handle (spec.md §4.2).
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".ape":  true,
	".wv":   true,
}

// DefaultConcurrency matches SCAN_CONCURRENCY's default.
const DefaultConcurrency = 8

// Options configures a Scanner.
type Options struct {
	Concurrency  int
	CoverCache   string // directory covers are content-hashed into
	AuxLyricRoot string // optional mirrored lyric tree; "" disables it
}

// Scanner walks a library root and upserts what it finds into the
// Catalog Store, coordinating with the Job Coordinator so only one
// scan runs at a time.
type Scanner struct {
	store *catalog.Store
	coord *coordinator.Coordinator
	opts  Options
}

// New creates a Scanner backed by store and coordinated by coord.
func New(store *catalog.Store, coord *coordinator.Coordinator, opts Options) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Scanner{store: store, coord: coord, opts: opts}
}

// Result summarizes one completed scan.
type Result struct {
	FilesFound     int
	FilesUpserted  int
	FilesFailed    int
	OrphansRemoved int
}

// Scan enumerates every audio file under root, streaming the walk so
// arbitrarily large libraries never sit fully in memory, upserts each
// through a bounded worker pool, then reconciles catalog rows whose
// backing file has disappeared.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	runID, err := s.coord.TryBegin(coordinator.JobScan)
	if err != nil {
		return nil, err
	}
	return s.runAfterBegin(ctx, root, runID)
}

// BeginAsync starts a scan in the background. The coordinator's
// try_begin runs synchronously, so a caller (typically the HTTP
// surface) gets ScanBusy immediately instead of after the whole walk
// completes; the walk itself proceeds on its own goroutine.
func (s *Scanner) BeginAsync(ctx context.Context, root string) error {
	runID, err := s.coord.TryBegin(coordinator.JobScan)
	if err != nil {
		return err
	}
	go func() { _, _ = s.runAfterBegin(ctx, root, runID) }()
	return nil
}

func (s *Scanner) runAfterBegin(ctx context.Context, root, runID string) (*Result, error) {
	result, scanErr := s.runScan(ctx, root, runID)
	if scanErr != nil {
		_ = s.coord.End(coordinator.JobScan, runID, scanErr)
		return result, scanErr
	}
	_ = s.coord.End(coordinator.JobScan, runID, nil)
	return result, nil
}

func (s *Scanner) runScan(ctx context.Context, root string, runID string) (*Result, error) {
	logging.InfoLog("scan: starting under %s", root)

	paths := make(chan string, s.opts.Concurrency*4)
	result := &Result{}

	var found, processed, upserted, failed atomic.Int64

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
				_ = s.coord.Report(coordinator.JobScan, runID, int(processed.Load()), int(found.Load()))
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if err := s.processFile(root, path); err != nil {
					failed.Add(1)
					logging.WarnLog("scan: %s: %v", path, err)
					_ = s.coord.ReportError(coordinator.JobScan, err.Error())
				} else {
					upserted.Add(1)
				}
				processed.Add(1)
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			logging.WarnLog("scan: cannot access %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !isAudioFile(path) {
			return nil
		}
		found.Add(1)
		select {
		case paths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(paths)
	wg.Wait()
	cancelProgress()

	if walkErr != nil && walkErr != context.Canceled {
		return result, apperr.Internal(walkErr, "walk library root %s", root)
	}

	orphans, err := s.reconcileOrphans()
	if err != nil {
		return result, apperr.Internal(err, "orphan reconciliation")
	}

	result.FilesFound = int(found.Load())
	result.FilesUpserted = int(upserted.Load())
	result.FilesFailed = int(failed.Load())
	result.OrphansRemoved = orphans

	logging.SuccessLog("scan: complete, %d found, %d upserted, %d failed, %d orphans removed",
		result.FilesFound, result.FilesUpserted, result.FilesFailed, result.OrphansRemoved)

	return result, nil
}

// processFile reads tags for one file and upserts the artist, album,
// and track rows, then opportunistically runs the Asset Probe.
func (s *Scanner) processFile(root, path string) error {
	if _, err := pathsafe.UnderRoot(root, path); err != nil {
		return err
	}

	tagResult, err := tags.Read(path)
	if err != nil {
		return err
	}

	artistName := tagResult.Artist
	if artistName == "" {
		artistName = "Unknown Artist"
	}
	artist, err := s.store.GetOrCreateArtist(pathsafe.CanonicalArtistCase(artistName))
	if err != nil {
		return apperr.Internal(err, "resolve artist for %s", path)
	}

	var albumID int64
	if tagResult.Album != "" {
		album, err := s.store.GetOrCreateAlbum(tagResult.Album, artist.ID, tagResult.Year)
		if err != nil {
			return apperr.Internal(err, "resolve album for %s", path)
		}
		albumID = album.ID

		if album.CoverLocalPath.String == "" {
			s.probeCover(path, tagResult.Album, album.ID, tagResult)
		}
	}

	info, statErr := fileSize(path)
	if statErr != nil {
		return apperr.Internal(statErr, "stat %s", path)
	}

	trackID, err := s.store.UpsertTrack(catalog.TrackUpsert{
		Title:       tagResult.Title,
		AlbumID:     albumID,
		ArtistID:    artist.ID,
		DurationS:   tagResult.DurationS,
		TrackNo:     tagResult.TrackNo,
		DiscNo:      tagResult.DiscNo,
		Path:        path,
		Bitrate:     tagResult.BitrateKbp,
		Format:      tagResult.Format,
		SizeBytes:   info,
		EmbeddedArt: tagResult.HasEmbeddedArt,
	})
	if err != nil {
		return apperr.Internal(err, "upsert track for %s", path)
	}

	s.probeLyrics(root, path, trackID)
	return nil
}

func (s *Scanner) probeCover(trackPath, albumTitle string, albumID int64, tagResult *tags.Result) {
	cover, err := assets.FindCover(filepath.Dir(trackPath), albumTitle)
	if err != nil {
		logging.WarnLog("scan: cover search failed for %s: %v", trackPath, err)
		return
	}
	if cover != "" {
		relName, err := assets.CacheCover(cover, s.opts.CoverCache)
		if err != nil {
			logging.WarnLog("scan: cache cover failed for %s: %v", trackPath, err)
			return
		}
		if err := s.store.UpdateAlbumCover(albumID, relName); err != nil {
			logging.WarnLog("scan: update album cover failed for %s: %v", trackPath, err)
		}
		return
	}

	if tagResult.HasEmbeddedArt {
		withArt, err := tags.ReadWithOptions(trackPath, tags.ReadOptions{LoadEmbeddedArt: true})
		if err != nil || len(withArt.EmbeddedArt) == 0 {
			return
		}
		relName, err := assets.CacheCoverBytes(withArt.EmbeddedArt, ".jpg", s.opts.CoverCache)
		if err != nil {
			logging.WarnLog("scan: cache embedded art failed for %s: %v", trackPath, err)
			return
		}
		if err := s.store.UpdateAlbumCover(albumID, relName); err != nil {
			logging.WarnLog("scan: update album cover failed for %s: %v", trackPath, err)
		}
	}
}

func (s *Scanner) probeLyrics(root, trackPath string, trackID int64) {
	lrcPath, err := assets.FindLyricFile(trackPath, root, s.opts.AuxLyricRoot)
	if err != nil || lrcPath == "" {
		return
	}

	raw, err := os.ReadFile(lrcPath)
	if err != nil {
		logging.WarnLog("scan: read lyric file %s: %v", lrcPath, err)
		return
	}

	text, encName, err := textenc.Decode(raw)
	if err != nil {
		logging.WarnLog("scan: decode lyric file %s: %v", lrcPath, err)
		return
	}
	if encName != "utf-8" {
		logging.DebugLog("scan: decoded lyric file %s as %s", lrcPath, encName)
	}

	if err := s.store.UpdateTrackLyrics(trackID, text, 0); err != nil {
		logging.WarnLog("scan: update lyrics failed for %s: %v", trackPath, err)
	}
}

// reconcileOrphans removes catalog rows whose backing file no longer
// exists, then cascades to empty albums and artists.
func (s *Scanner) reconcileOrphans() (int, error) {
	paths, err := s.store.AllTrackPaths()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, p := range paths {
		if !pathExists(p) {
			if err := s.store.DeleteTrackByPath(p); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if _, err := s.store.DeleteOrphanAlbums(); err != nil {
		return removed, err
	}
	if _, err := s.store.DeleteOrphanArtists(); err != nil {
		return removed, err
	}

	return removed, nil
}

func isAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
