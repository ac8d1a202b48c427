// Package tags is the Tag Reader (spec.md §4.2): read-only extraction
// of embedded metadata and audio properties from a single audio file.
// It never writes back to the file.
package tags

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/franz/sonora/internal/apperr"
)

var errFFprobeUnavailable = errors.New("tags: ffprobe not found on PATH")

// Result is everything the Tag Reader could determine about one file.
type Result struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Year        int
	TrackNo     int
	TrackTotal  int
	DiscNo      int
	DiscTotal   int

	Format     string // container/codec label, e.g. "mp3", "flac"
	DurationS  float64
	BitrateKbp int
	SampleRate int
	Channels   int

	HasEmbeddedArt bool
	EmbeddedArt    []byte // nil unless the caller asked for picture bytes
}

// ReadOptions controls optional, more expensive extraction steps.
type ReadOptions struct {
	// LoadEmbeddedArt decodes and returns the embedded picture bytes.
	// Skipped by default since most callers only need HasEmbeddedArt.
	LoadEmbeddedArt bool
}

// Read extracts tags and audio properties from path. It tries
// dhowden/tag first (fast, in-process) and falls back to an ffprobe
// subprocess for files the tag library can't parse or to fill in
// audio properties the tag library never exposes (duration, bitrate,
// codec, sample rate). If both fail, the file is unreadable.
func Read(path string) (*Result, error) {
	return ReadWithOptions(path, ReadOptions{})
}

// ReadWithOptions is Read with control over optional extraction steps.
func ReadWithOptions(path string, opts ReadOptions) (*Result, error) {
	tagResult, tagErr := readWithTagLibrary(path, opts)
	probeResult, probeErr := readWithFFprobe(path)

	if tagErr != nil && probeErr != nil {
		if errors.Is(probeErr, errFFprobeUnavailable) {
			return nil, fmt.Errorf("%w: %s: %v", apperr.ErrUnreadableTag, path, tagErr)
		}
		return nil, fmt.Errorf("%w: %s: tag: %v, ffprobe: %v", apperr.ErrUnreadableAudio, path, tagErr, probeErr)
	}

	var result *Result
	switch {
	case tagResult != nil && probeResult != nil:
		result = probeResult
		overlayTags(result, tagResult)
	case tagResult != nil:
		result = tagResult
	default:
		result = probeResult
	}

	if result.Title == "" {
		result.Title = fileStem(path)
	}

	return result, nil
}

func overlayTags(dst, src *Result) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Artist != "" {
		dst.Artist = src.Artist
	}
	if src.Album != "" {
		dst.Album = src.Album
	}
	if src.AlbumArtist != "" {
		dst.AlbumArtist = src.AlbumArtist
	}
	if src.Year > 0 {
		dst.Year = src.Year
	}
	if src.TrackNo > 0 {
		dst.TrackNo = src.TrackNo
		dst.TrackTotal = src.TrackTotal
	}
	if src.DiscNo > 0 {
		dst.DiscNo = src.DiscNo
		dst.DiscTotal = src.DiscTotal
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	dst.HasEmbeddedArt = dst.HasEmbeddedArt || src.HasEmbeddedArt
	if src.EmbeddedArt != nil {
		dst.EmbeddedArt = src.EmbeddedArt
	}
}

func readWithTagLibrary(path string, opts ReadOptions) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}

	track, trackTotal := m.Track()
	disc, discTotal := m.Disc()

	result := &Result{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Year:        m.Year(),
		TrackNo:     track,
		TrackTotal:  trackTotal,
		DiscNo:      disc,
		DiscTotal:   discTotal,
		Format:      strings.ToLower(string(m.Format())),
	}

	if pic := m.Picture(); pic != nil {
		result.HasEmbeddedArt = true
		if opts.LoadEmbeddedArt {
			result.EmbeddedArt = pic.Data
		}
	}

	return result, nil
}

func readWithFFprobe(path string) (*Result, error) {
	info, err := runFFprobe(path)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if info.Format != nil {
		result.Format = strings.ToLower(info.Format.FormatName)
		result.DurationS = parseFloat(info.Format.Duration)
		if kbps := parseInt(info.Format.BitRate); kbps > 0 {
			result.BitrateKbp = kbps / 1000
		}

		tags := info.Format.Tags
		result.Artist = firstTag(tags, "artist", "ARTIST")
		result.Album = firstTag(tags, "album", "ALBUM")
		result.Title = firstTag(tags, "title", "TITLE")
		result.AlbumArtist = firstTag(tags, "album_artist", "ALBUM_ARTIST", "albumartist")
		result.Year = parseInt(firstFourDigits(firstTag(tags, "date", "DATE", "year", "YEAR")))
		result.TrackNo = parseInt(firstTag(tags, "track", "TRACK"))
		result.DiscNo = parseInt(firstTag(tags, "disc", "DISC"))
	}

	if stream := firstAudioStream(info.Streams); stream != nil {
		result.SampleRate = stream.SampleRate
		result.Channels = stream.Channels
		if result.Format == "" {
			result.Format = strings.ToLower(stream.CodecName)
		}
		if result.DurationS == 0 {
			result.DurationS = parseFloat(stream.Duration)
		}
		if result.BitrateKbp == 0 {
			if kbps := parseInt(stream.BitRate); kbps > 0 {
				result.BitrateKbp = kbps / 1000
			}
		}
	}

	return result, nil
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func firstFourDigits(s string) string {
	if len(s) >= 4 {
		return s[:4]
	}
	return s
}

func parseFloat(s string) float64 {
	var v float64
	fmt.Sscanf(s, "%f", &v)
	return v
}

func parseInt(s string) int {
	var v int
	fmt.Sscanf(s, "%d", &v)
	return v
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
