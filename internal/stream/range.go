package stream

import (
	"strconv"
	"strings"

	"github.com/franz/sonora/internal/apperr"
)

// byteRange is a validated, fully-resolved inclusive byte range.
type byteRange struct {
	start, end int64 // inclusive, 0 <= start <= end < size
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange interprets a `Range` header value against a resource of
// the given size (spec.md §4.9A). Only single-range requests are
// supported; a multi-range header is rejected as unsatisfiable rather
// than answered with multipart/byteranges, since no client of this
// streamer sends one.
func parseRange(header string, size int64) (byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "malformed range header", apperr.ErrRangeUnsatisfiable)
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "multi-range requests are not supported", apperr.ErrRangeUnsatisfiable)
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "malformed range header", apperr.ErrRangeUnsatisfiable)
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	var start, end int64
	switch {
	case startStr == "" && endStr == "":
		return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "empty range", apperr.ErrRangeUnsatisfiable)

	case startStr == "":
		// Suffix range: bytes=-N means the last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "malformed suffix range", apperr.ErrRangeUnsatisfiable)
		}
		if n > size {
			n = size
		}
		start = size - n
		end = size - 1

	case endStr == "":
		// Open range: bytes=a- means from a to the end.
		a, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "malformed open range", apperr.ErrRangeUnsatisfiable)
		}
		start = a
		end = size - 1

	default:
		a, err1 := strconv.ParseInt(startStr, 10, 64)
		b, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil {
			return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "malformed range", apperr.ErrRangeUnsatisfiable)
		}
		start, end = a, b
	}

	if size == 0 || start < 0 || end < start || end >= size {
		return byteRange{}, apperr.Wrap(apperr.KindRangeUnsatisfiable, "range not satisfiable", apperr.ErrRangeUnsatisfiable)
	}
	return byteRange{start: start, end: end}, nil
}

// contentTypeForFormat maps a track's stored format to the Content-Type
// spec.md §4.9A requires for the non-transcoded passthrough mode.
func contentTypeForFormat(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "m4a", "mp4", "aac":
		return "audio/mp4"
	case "ogg":
		return "audio/ogg"
	case "opus":
		return "audio/opus"
	case "wav":
		return "audio/wav"
	case "ape":
		return "audio/x-ape"
	case "wv":
		return "audio/x-wavpack"
	default:
		return "application/octet-stream"
	}
}
