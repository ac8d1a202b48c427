package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/sonora/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUnreadableFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("this is not an audio file"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read("/nonexistent/path/track.mp3")
	assert.Error(t, err)
}

func TestOverlayTagsPrefersNonEmptySource(t *testing.T) {
	dst := &Result{Title: "From FFprobe", Format: "mp3"}
	src := &Result{Title: "From Tag Library", Artist: "Tag Artist"}

	overlayTags(dst, src)

	assert.Equal(t, "From Tag Library", dst.Title)
	assert.Equal(t, "Tag Artist", dst.Artist)
	assert.Equal(t, "mp3", dst.Format) // src had no format, dst keeps its own
}

func TestOverlayTagsLeavesDestinationWhenSourceEmpty(t *testing.T) {
	dst := &Result{Title: "Keep Me", Year: 1999}
	src := &Result{}

	overlayTags(dst, src)

	assert.Equal(t, "Keep Me", dst.Title)
	assert.Equal(t, 1999, dst.Year)
}

func TestFileStemStripsExtension(t *testing.T) {
	assert.Equal(t, "01. Wildlife Analysis", fileStem("/music/Boards of Canada/01. Wildlife Analysis.flac"))
	assert.Equal(t, "track", fileStem("track"))
}

func TestFirstTagChecksKeysInOrder(t *testing.T) {
	tagMap := map[string]string{"ARTIST": "Uppercase Wins When Lowercase Missing"}
	assert.Equal(t, "Uppercase Wins When Lowercase Missing", firstTag(tagMap, "artist", "ARTIST"))

	tagMap = map[string]string{"artist": "Lowercase First", "ARTIST": "Uppercase Second"}
	assert.Equal(t, "Lowercase First", firstTag(tagMap, "artist", "ARTIST"))

	assert.Equal(t, "", firstTag(map[string]string{}, "artist", "ARTIST"))
}

func TestFirstFourDigitsTruncatesFullDate(t *testing.T) {
	assert.Equal(t, "1998", firstFourDigits("1998-03-16"))
	assert.Equal(t, "199", firstFourDigits("199"))
}

func TestParseIntAndParseFloat(t *testing.T) {
	assert.Equal(t, 128, parseInt("128"))
	assert.Equal(t, 0, parseInt("not a number"))
	assert.InDelta(t, 180.5, parseFloat("180.5"), 0.001)
	assert.Equal(t, float64(0), parseFloat("N/A"))
}
