package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCoverPrefersTrackDirectoryCoverFile(t *testing.T) {
	root := t.TempDir()
	artistDir := filepath.Join(root, "Artist")
	albumDir := filepath.Join(artistDir, "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(albumDir, "cover.jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(artistDir, "folder.png"), []byte("png"), 0o644))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(albumDir, "cover.jpg"), got)
}

func TestFindCoverFallsBackToArtistDirectory(t *testing.T) {
	root := t.TempDir()
	artistDir := filepath.Join(root, "Artist")
	albumDir := filepath.Join(artistDir, "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(artistDir, "folder.png"), []byte("png"), 0o644))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(artistDir, "folder.png"), got)
}

func TestFindCoverMatchesAlbumTitleNamedFile(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist", "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(albumDir, "Album.jpg"), []byte("jpg"), 0o644))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(albumDir, "Album.jpg"), got)
}

func TestFindCoverReturnsEmptyWhenNoneExists(t *testing.T) {
	root := t.TempDir()
	albumDir := filepath.Join(root, "Artist", "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCoverAcceptsWebpOnlyForCoverBasename(t *testing.T) {
	albumDir := filepath.Join(t.TempDir(), "Artist", "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(albumDir, "cover.webp"), []byte("webp"), 0o644))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(albumDir, "cover.webp"), got)
}

func TestFindCoverIgnoresWebpFolderAndAlbumBasenames(t *testing.T) {
	albumDir := filepath.Join(t.TempDir(), "Artist", "Album")
	require.NoError(t, os.MkdirAll(albumDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(albumDir, "folder.webp"), []byte("webp"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(albumDir, "Album.webp"), []byte("webp"), 0o644))

	got, err := FindCover(albumDir, "Album")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheCoverIsContentAddressedAndDeduplicates(t *testing.T) {
	root := t.TempDir()
	cacheDir := filepath.Join(root, "cache")
	src := filepath.Join(root, "cover.jpg")
	require.NoError(t, os.WriteFile(src, []byte("same bytes"), 0o644))

	name1, err := CacheCover(src, cacheDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, name1))

	src2 := filepath.Join(root, "duplicate.jpg")
	require.NoError(t, os.WriteFile(src2, []byte("same bytes"), 0o644))

	name2, err := CacheCover(src2, cacheDir)
	require.NoError(t, err)
	assert.Equal(t, name1, name2)
}

func TestCacheCoverBytesWritesEmbeddedArt(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")

	name, err := CacheCoverBytes([]byte{0xFF, 0xD8, 0xFF}, ".jpg", cacheDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, name))
	assert.True(t, filepath.Ext(name) == ".jpg")
}

func TestFindLyricFileSameStem(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01. Song.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "01. Song.lrc"), got)
}

func TestFindLyricFileAdoptsSoleLrcInDirectory(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "album.lrc"), got)
}

func TestFindLyricFileAmbiguousDoesNotAdopt(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lrc"), []byte("lyrics"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, dir, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindLyricFileFallsBackToAuxLyricTree(t *testing.T) {
	root := t.TempDir()
	trackDir := filepath.Join(root, "music", "Artist", "Album")
	require.NoError(t, os.MkdirAll(trackDir, 0o755))
	track := filepath.Join(trackDir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))

	auxDir := filepath.Join(root, "lyrics", "Artist", "Album")
	require.NoError(t, os.MkdirAll(auxDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(auxDir, "01. Song.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, filepath.Join(root, "music"), filepath.Join(root, "lyrics"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(auxDir, "01. Song.lrc"), got)
}

func TestFindLyricFileFuzzyMatchesSuffixedNameInAuxTree(t *testing.T) {
	root := t.TempDir()
	trackDir := filepath.Join(root, "music", "Artist", "Album")
	require.NoError(t, os.MkdirAll(trackDir, 0o755))
	track := filepath.Join(trackDir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))

	auxDir := filepath.Join(root, "lyrics", "Artist", "Album")
	require.NoError(t, os.MkdirAll(auxDir, 0o755))
	// A batch downloader appended "_synced" to the stem, so no exact
	// match exists — only the prefix fallback should find this.
	require.NoError(t, os.WriteFile(filepath.Join(auxDir, "01. Song_synced.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, filepath.Join(root, "music"), filepath.Join(root, "lyrics"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(auxDir, "01. Song_synced.lrc"), got)
}

func TestFindLyricFileReturnsEmptyWhenAuxTreeHasNoMatch(t *testing.T) {
	root := t.TempDir()
	trackDir := filepath.Join(root, "music", "Artist", "Album")
	require.NoError(t, os.MkdirAll(trackDir, 0o755))
	track := filepath.Join(trackDir, "01. Song.mp3")
	require.NoError(t, os.WriteFile(track, []byte("audio"), 0o644))

	auxDir := filepath.Join(root, "lyrics", "Artist", "Album")
	require.NoError(t, os.MkdirAll(auxDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(auxDir, "02. Other Song.lrc"), []byte("lyrics"), 0o644))

	got, err := FindLyricFile(track, filepath.Join(root, "music"), filepath.Join(root, "lyrics"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
