// Package assets is the Asset Probe (spec.md §4.3): locates cover
// images and lyric files that sit alongside a track on disk, hashing
// covers into a content-addressed cache directory.
package assets

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/sonora/internal/pathsafe"
)

// coverExts is the extension set for folder.* and <album>.* hits.
// cover.* additionally accepts .webp: it's the one basename an
// uploader is likely to produce straight from a modern image tool,
// while folder/album art is almost always ripped straight off the
// original release in jpg or png.
var coverExts = []string{".jpg", ".jpeg", ".png"}
var coverExtsWithWebp = []string{".jpg", ".jpeg", ".png", ".webp"}

// FindCover searches trackDir then its parent (the artist directory)
// for a cover image, in the order: cover.*, folder.*, <album>.*. It
// returns the absolute path of the first hit, or "" if none is found.
func FindCover(trackDir, albumTitle string) (string, error) {
	dirs := []string{trackDir, filepath.Dir(trackDir)}
	names := []struct {
		basename string
		exts     []string
	}{
		{"cover", coverExtsWithWebp},
		{"folder", coverExts},
		{safeBasename(albumTitle), coverExts},
	}

	for _, dir := range dirs {
		for _, n := range names {
			if n.basename == "" {
				continue
			}
			for _, ext := range n.exts {
				candidate := filepath.Join(dir, n.basename+ext)
				if fileExists(candidate) {
					return candidate, nil
				}
			}
		}
	}
	return "", nil
}

func safeBasename(albumTitle string) string {
	clean, err := pathsafe.CleanName(albumTitle)
	if err != nil {
		return ""
	}
	return clean
}

// CacheCover copies src into cacheDir under a content-hashed filename
// (sha1 of the file's bytes, so identical covers shared across albums
// are stored once) and returns the cache-relative filename to store on
// the Album row.
func CacheCover(src, cacheDir string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cover cache dir: %w", err)
	}

	hash, err := contentHash(src)
	if err != nil {
		return "", fmt.Errorf("hash cover: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(src))
	relName := hash + ext
	dst, err := pathsafe.UnderRoot(cacheDir, filepath.Join(cacheDir, relName))
	if err != nil {
		return "", err
	}

	if fileExists(dst) {
		return relName, nil // already cached under this hash
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("copy cover into cache: %w", err)
	}
	return relName, nil
}

// CacheCoverBytes hashes and stores raw image bytes (the embedded-art
// fallback path, when no on-disk cover file exists) into cacheDir
// under a content-hashed filename, using ext (including the leading
// dot) to preserve the original image format.
func CacheCoverBytes(data []byte, ext, cacheDir string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cover cache dir: %w", err)
	}

	h := sha1.Sum(data)
	relName := fmt.Sprintf("%x%s", h, strings.ToLower(ext))
	dst, err := pathsafe.UnderRoot(cacheDir, filepath.Join(cacheDir, relName))
	if err != nil {
		return "", err
	}

	if fileExists(dst) {
		return relName, nil
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write embedded cover into cache: %w", err)
	}
	return relName, nil
}

// FindLyricFile locates a same-stem .lrc file next to trackPath. If
// none exists but exactly one .lrc file sits in the directory, that
// file is adopted (single-track-per-folder libraries often name the
// lyric file after the album, not the track). Otherwise it falls back
// to a mirrored path under auxLyricRoot, if provided.
func FindLyricFile(trackPath, libraryRoot, auxLyricRoot string) (string, error) {
	dir := filepath.Dir(trackPath)
	stem := strings.TrimSuffix(filepath.Base(trackPath), filepath.Ext(trackPath))

	sameStem := filepath.Join(dir, stem+".lrc")
	if fileExists(sameStem) {
		return sameStem, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read track directory: %w", err)
	}
	var lrcFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".lrc") {
			lrcFiles = append(lrcFiles, e.Name())
		}
	}
	if len(lrcFiles) == 1 {
		return filepath.Join(dir, lrcFiles[0]), nil
	}

	if auxLyricRoot == "" {
		return "", nil
	}

	rel, err := filepath.Rel(libraryRoot, dir)
	if err != nil {
		return "", nil
	}
	mirrored := filepath.Join(auxLyricRoot, rel, stem+".lrc")
	if fileExists(mirrored) {
		return mirrored, nil
	}

	// Fuzzy recovery: the mirrored tree sometimes carries a lyric file
	// whose name only shares the track's stem as a prefix (batch lyric
	// downloaders often append a suffix). Adopt the first match.
	mirroredDir := filepath.Dir(mirrored)
	mirroredEntries, err := os.ReadDir(mirroredDir)
	if err != nil {
		return "", nil
	}
	for _, e := range mirroredEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, stem) && strings.EqualFold(filepath.Ext(name), ".lrc") {
			return filepath.Join(mirroredDir, name), nil
		}
	}
	return "", nil
}

func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
