// Package transcode manages the subprocess side of the audio
// streamer's on-the-fly transcoding mode (spec.md §4.9B): spawning a
// bounded pool of ffmpeg processes, piping their stdout to the HTTP
// response, and reaping them cleanly on cancellation.
package transcode

import (
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/logging"
)

// AllowedBitrates is the enumerated set of transcode targets accepted
// from the `?bitrate=` query parameter. Bounding this to a fixed
// allowlist keeps arbitrary strings out of the subprocess argv.
var AllowedBitrates = map[string]bool{
	"96k": true, "128k": true, "192k": true, "256k": true, "320k": true,
}

// transcodeContentType is fixed at one lossy target codec (spec.md
// Non-goals: "transcoding formats beyond one configurable lossy
// target"), so every accepted bitrate maps to the same container.
const transcodeContentType = "audio/mpeg"

// ContentType returns the Content-Type header for a transcoded stream.
func ContentType() string { return transcodeContentType }

// ValidateBitrate rejects anything outside AllowedBitrates.
func ValidateBitrate(bitrate string) error {
	if !AllowedBitrates[bitrate] {
		return apperr.Validation("unsupported bitrate %q", bitrate)
	}
	return nil
}

// Pool bounds the number of concurrently running transcoder
// subprocesses (spec.md §4.9B: "spawn cap, e.g. 4 per process").
type Pool struct {
	slots chan struct{}
	inUse atomic.Int64
}

// NewPool creates a Pool that allows at most maxConcurrent transcoders
// to run at once.
func NewPool(maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Pool{slots: make(chan struct{}, maxConcurrent)}
}

// InUse reports how many transcoders are currently running.
func (p *Pool) InUse() int { return int(p.inUse.Load()) }

// newCommand builds the subprocess to run. Swappable in tests so the
// suite doesn't require a real ffmpeg binary on PATH. startSeconds, if
// positive, is passed as -ss ahead of -i so ffmpeg seeks before
// decoding rather than the caller discarding leading output.
var newCommand = func(ctx context.Context, srcPath, bitrate string, startSeconds float64) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if startSeconds > 0 {
		args = append(args, "-ss", strconv.FormatFloat(startSeconds, 'f', 3, 64))
	}
	args = append(args,
		"-i", srcPath,
		"-vn",
		"-c:a", "libmp3lame", "-b:a", bitrate,
		"-f", "mp3", "pipe:1",
	)
	return exec.CommandContext(ctx, "ffmpeg", args...)
}

// TryAcquire reserves a transcoder slot without blocking, returning
// apperr.ErrTranscoderSaturated immediately if the pool is at capacity.
// Callers that need to commit HTTP response headers only once a slot is
// actually held (spec.md §4.9B: over-cap requests get a 503, not a
// truncated 200) call TryAcquire before writing anything, then Run.
// The returned release func must be called exactly once.
func (p *Pool) TryAcquire() (release func(), err error) {
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, apperr.Wrap(apperr.KindServiceSaturated, "transcoder pool exhausted", apperr.ErrTranscoderSaturated)
	}
	p.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			<-p.slots
			p.inUse.Add(-1)
		})
	}, nil
}

// firstChunkSize bounds the initial read used to confirm a transcoder
// actually produces output before a caller commits response headers.
const firstChunkSize = 4096

// Peeker wraps a started transcoder subprocess so a caller can read its
// first chunk of output before deciding whether to commit an HTTP
// response, then hand the chunk back in to finish the copy.
type Peeker struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	srcPath  string
	waitOnce sync.Once
	waitErr  error
}

// wait calls cmd.Wait exactly once: PeekFirstChunk may already have
// waited out a zero-output process before Finish gets a chance to.
func (pk *Peeker) wait() error {
	pk.waitOnce.Do(func() {
		pk.waitErr = pk.cmd.Wait()
	})
	return pk.waitErr
}

// Start spawns ffmpeg against srcPath at the given bitrate, seeking to
// startSeconds first when positive, without writing anything anywhere.
// The caller must already hold a slot from TryAcquire.
func (p *Pool) Start(ctx context.Context, srcPath, bitrate string, startSeconds float64) (*Peeker, error) {
	if err := ValidateBitrate(bitrate); err != nil {
		return nil, err
	}

	cmd := newCommand(ctx, srcPath, bitrate, startSeconds)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Internal(err, "open transcoder stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, apperr.Internal(err, "start transcoder")
	}

	return &Peeker{cmd: cmd, stdout: stdout, srcPath: srcPath}, nil
}

// PeekFirstChunk blocks on the first read off ffmpeg's stdout. If
// ffmpeg exits before producing any output at all, it returns that
// failure directly rather than an empty chunk, so a caller streaming
// the response never has to commit headers for output that never
// existed (spec.md §4.9B: a subprocess that fails before any bytes
// surfaces as a 500, not a truncated 200).
func (pk *Peeker) PeekFirstChunk() ([]byte, error) {
	buf := make([]byte, firstChunkSize)
	n, err := pk.stdout.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}

	if waitErr := pk.wait(); waitErr != nil {
		return nil, apperr.Internal(waitErr, "transcoder exited before producing output")
	}
	if err != nil && err != io.EOF {
		return nil, apperr.Internal(err, "read transcoder output")
	}
	return nil, nil
}

// Finish writes firstChunk (as returned by PeekFirstChunk) to w, then
// copies the rest of ffmpeg's stdout until the process exits or ctx is
// cancelled. The caller must have already committed any response
// headers it needs before calling this.
func (pk *Peeker) Finish(ctx context.Context, firstChunk []byte, w io.Writer) error {
	var bytesWritten int64
	if len(firstChunk) > 0 {
		n, err := w.Write(firstChunk)
		bytesWritten += int64(n)
		if err != nil {
			_ = pk.cmd.Process.Kill()
			_ = pk.wait()
			return apperr.Internal(err, "write transcoder output to client")
		}
	}

	n, copyErr := io.Copy(w, pk.stdout)
	bytesWritten += n
	waitErr := pk.wait()

	if ctx.Err() != nil {
		// Client disconnected or request context ended; the subprocess
		// was signalled by CommandContext, nothing further to report.
		logging.DebugLog("transcode: stream for %s cancelled after %d bytes", pk.srcPath, bytesWritten)
		return ctx.Err()
	}

	if waitErr != nil {
		// Bytes already reached the client; treat as a clean EOF rather
		// than failing a response whose headers are already sent.
		logging.WarnLog("transcode: %s exited non-zero after %d bytes: %v", pk.srcPath, bytesWritten, waitErr)
		return nil
	}

	if copyErr != nil {
		return apperr.Internal(copyErr, "stream transcoder output")
	}

	return nil
}

// Run spawns ffmpeg against srcPath at the given bitrate, seeking to
// startSeconds first when positive, and copies its stdout to w until
// the process exits or ctx is cancelled. The caller must already hold
// a slot from TryAcquire. Callers that need to gate committing a
// response on the transcoder actually producing output should use
// Start/PeekFirstChunk/Finish directly instead.
func (p *Pool) Run(ctx context.Context, srcPath, bitrate string, startSeconds float64, w io.Writer) error {
	pk, err := p.Start(ctx, srcPath, bitrate, startSeconds)
	if err != nil {
		return err
	}
	firstChunk, err := pk.PeekFirstChunk()
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before any output: CommandContext killed ffmpeg.
			return ctx.Err()
		}
		return err
	}
	return pk.Finish(ctx, firstChunk, w)
}

// Stream is TryAcquire immediately followed by Run, for callers (such
// as tests) that don't need to gate a response commit on slot
// acquisition the way the HTTP streamer does.
func (p *Pool) Stream(ctx context.Context, srcPath, bitrate string, w io.Writer) error {
	release, err := p.TryAcquire()
	if err != nil {
		return err
	}
	defer release()
	return p.Run(ctx, srcPath, bitrate, 0, w)
}
