package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func newTestScanner(t *testing.T) (*Scanner, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New(store)
	scanner := New(store, coord, Options{Concurrency: 2, CoverCache: filepath.Join(t.TempDir(), "covers")})
	return scanner, store
}

func TestIsAudioFileRecognizesKnownExtensions(t *testing.T) {
	assert.True(t, isAudioFile("/music/track.mp3"))
	assert.True(t, isAudioFile("/music/track.FLAC"))
	assert.False(t, isAudioFile("/music/cover.jpg"))
	assert.False(t, isAudioFile("/music/readme.txt"))
}

func TestScanFindsNoFilesInEmptyDirectory(t *testing.T) {
	scanner, _ := newTestScanner(t)
	root := t.TempDir()

	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesFound)
}

func TestScanSkipsNonAudioFilesButProcessesAudioExtensions(t *testing.T) {
	scanner, _ := newTestScanner(t)
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not audio"), 0o644))
	// An mp3-named file with garbage bytes: the walk will find it and
	// count it, but tag extraction will fail, so it's counted as failed
	// rather than upserted — this exercises the "skip on error" path
	// without depending on a real encoder.
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.mp3"), []byte("not real audio data"), 0o644))

	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesFound)
	assert.Equal(t, 1, result.FilesFailed)
	assert.Equal(t, 0, result.FilesUpserted)
}

func TestScanReconcilesOrphanedTrackRows(t *testing.T) {
	scanner, store := newTestScanner(t)
	root := t.TempDir()

	artist, err := store.GetOrCreateArtist("Ghost Artist")
	require.NoError(t, err)
	album, err := store.GetOrCreateAlbum("Ghost Album", artist.ID, 2020)
	require.NoError(t, err)

	goneePath := filepath.Join(root, "gone.mp3")
	_, err = store.UpsertTrack(catalog.TrackUpsert{
		Title: "Gone Track", AlbumID: album.ID, ArtistID: artist.ID,
		DurationS: 100, TrackNo: 1, Path: goneePath, Format: "mp3",
	})
	require.NoError(t, err)

	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OrphansRemoved)

	_, err = store.TrackByPath(goneePath)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestProbeLyricsStoresDecodedTextNotPath(t *testing.T) {
	scanner, store := newTestScanner(t)
	root := t.TempDir()

	artist, err := store.GetOrCreateArtist("Lyric Artist")
	require.NoError(t, err)
	album, err := store.GetOrCreateAlbum("Lyric Album", artist.ID, 2020)
	require.NoError(t, err)

	trackPath := filepath.Join(root, "song.mp3")
	require.NoError(t, os.WriteFile(trackPath, []byte("audio"), 0o644))
	trackID, err := store.UpsertTrack(catalog.TrackUpsert{
		Title: "Song", AlbumID: album.ID, ArtistID: artist.ID,
		DurationS: 100, TrackNo: 1, Path: trackPath, Format: "mp3",
	})
	require.NoError(t, err)

	gbk, err := simplifiedchinese.GB18030.NewEncoder().String("[00:01.00]你好世界")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "song.lrc"), []byte(gbk), 0o644))

	scanner.probeLyrics(root, trackPath, trackID)

	track, err := store.TrackByID(trackID)
	require.NoError(t, err)
	require.True(t, track.Lyrics.Valid)
	assert.Contains(t, track.Lyrics.String, "你好世界")
	assert.NotContains(t, track.Lyrics.String, root)
}

func TestScanRejectsConcurrentScan(t *testing.T) {
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	coord := coordinator.New(store)
	_, err = coord.TryBegin(coordinator.JobScan)
	require.NoError(t, err)

	scanner := New(store, coord, Options{Concurrency: 2})
	_, err = scanner.Scan(context.Background(), t.TempDir())
	assert.Error(t, err)
}
