package stream

import (
	"testing"

	"github.com/franz/sonora/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeBoundedRequest(t *testing.T) {
	r, err := parseRange("bytes=10-19", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.start)
	assert.Equal(t, int64(19), r.end)
	assert.Equal(t, int64(10), r.length())
}

func TestParseRangeOpenEndedRequest(t *testing.T) {
	r, err := parseRange("bytes=90-", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(90), r.start)
	assert.Equal(t, int64(99), r.end)
}

func TestParseRangeSuffixRequest(t *testing.T) {
	r, err := parseRange("bytes=-10", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(90), r.start)
	assert.Equal(t, int64(99), r.end)
}

func TestParseRangeSuffixLargerThanSizeClampsToWholeFile(t *testing.T) {
	r, err := parseRange("bytes=-1000", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.start)
	assert.Equal(t, int64(99), r.end)
}

func TestParseRangeUnsatisfiableBeyondEnd(t *testing.T) {
	_, err := parseRange("bytes=50-200", 100)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRangeUnsatisfiable, apperr.KindOf(err))
}

func TestParseRangeMalformedHeaderIsUnsatisfiable(t *testing.T) {
	_, err := parseRange("garbage", 100)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRangeUnsatisfiable, apperr.KindOf(err))
}

func TestParseRangeStartAfterEndIsUnsatisfiable(t *testing.T) {
	_, err := parseRange("bytes=50-10", 100)
	require.Error(t, err)
}

func TestContentTypeForFormatKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "audio/mpeg", contentTypeForFormat("mp3"))
	assert.Equal(t, "audio/flac", contentTypeForFormat("FLAC"))
	assert.Equal(t, "application/octet-stream", contentTypeForFormat("xyz"))
}
