package stream

import (
	"io"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/transcode"
)

// chunkSize bounds each write to the response so a range read never
// pulls a whole (possibly multi-hundred-MB FLAC) file into memory.
const chunkSize = 64 * 1024

// streamTrack implements GET /stream/{track_id}[?bitrate=K] (spec.md
// §4.9): byte-range passthrough by default, or a live transcode when
// `bitrate` is present.
func (s *Server) streamTrack(c *gin.Context) {
	track, ok := s.lookupTrack(c)
	if !ok {
		return
	}

	if bitrate := c.Query("bitrate"); bitrate != "" {
		s.streamTranscoded(c, track, bitrate)
		return
	}
	s.streamRange(c, track)
}

// lookupTrack resolves the track_id path parameter to a catalog row
// and confirms the backing file still exists on disk. A vanished file
// is reported 404 and queued for the next scan's orphan reconciliation
// rather than deleted here, since the streamer has no business
// mutating the catalog outside its own read path.
func (s *Server) lookupTrack(c *gin.Context) (*catalog.Track, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, apperr.Validation("invalid track id"))
		return nil, false
	}

	track, err := s.store.TrackByID(id)
	if err != nil {
		writeError(c, apperr.NotFound("track %d not found", id))
		return nil, false
	}

	if _, statErr := os.Stat(track.Path); statErr != nil {
		logging.WarnLog("stream: track %d file missing at %s, will be reconciled on next scan", track.ID, track.Path)
		writeError(c, apperr.NotFound("track file is no longer on disk"))
		return nil, false
	}

	return track, true
}

func (s *Server) streamRange(c *gin.Context, track *catalog.Track) {
	f, err := os.Open(track.Path)
	if err != nil {
		writeError(c, apperr.Internal(err, "open track file"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(c, apperr.Internal(err, "stat track file"))
		return
	}
	size := info.Size()
	contentType := contentTypeForFormat(track.Format.String)

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		c.Header("Accept-Ranges", "bytes")
		c.Status(200)
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", int64ToString(size))
		copyChunked(c, f, size)
		return
	}

	rng, err := parseRange(rangeHeader, size)
	if err != nil {
		c.Header("Content-Range", "bytes */"+int64ToString(size))
		writeError(c, err)
		return
	}

	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		writeError(c, apperr.Internal(err, "seek track file"))
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", contentType)
	c.Header("Content-Range", contentRangeHeader(rng, size))
	c.Header("Content-Length", int64ToString(rng.length()))
	c.Status(206)
	copyChunked(c, io.LimitReader(f, rng.length()), rng.length())
}

// streamTranscoded implements mode B (spec.md §4.9B): a live ffmpeg
// pipe with no Content-Length and no range support. A slot is reserved
// from the transcoder pool before any header is written, so a
// saturated pool reports 503 instead of committing 200 and then
// truncating the body. The same reasoning extends to the subprocess
// itself: ffmpeg is started and its first chunk of output is read
// before c.Status is ever called, the same way streamRange only
// commits 206 after the Range header has already been validated. A
// pre-first-byte ffmpeg failure therefore still surfaces as a clean
// error response instead of a truncated 200.
func (s *Server) streamTranscoded(c *gin.Context, track *catalog.Track, bitrate string) {
	if err := transcode.ValidateBitrate(bitrate); err != nil {
		writeError(c, err)
		return
	}

	startSeconds, err := parseStartOffset(c.Query("start"))
	if err != nil {
		writeError(c, err)
		return
	}

	release, err := s.transcoder.TryAcquire()
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	peeker, err := s.transcoder.Start(c.Request.Context(), track.Path, bitrate, startSeconds)
	if err != nil {
		writeError(c, err)
		return
	}

	firstChunk, err := peeker.PeekFirstChunk()
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", transcode.ContentType())
	c.Header("Transfer-Encoding", "chunked")
	c.Status(200)

	if err := peeker.Finish(c.Request.Context(), firstChunk, c.Writer); err != nil && !c.Writer.Written() {
		logging.WarnLog("stream: transcode of track %d failed before any bytes: %v", track.ID, err)
	}
}

// parseStartOffset parses the optional ?start= seek-ahead parameter
// (fractional seconds). An empty value means "from the beginning".
func parseStartOffset(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, apperr.Validation("invalid start offset %q", raw)
	}
	return v, nil
}

func copyChunked(c *gin.Context, r io.Reader, total int64) {
	buf := make([]byte, chunkSize)
	written := int64(0)
	for written < total {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			written += int64(n)
			c.Writer.Flush()
		}
		if err != nil {
			return
		}
	}
}
