package stream

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/enrich"
	"github.com/franz/sonora/internal/organize"
	"github.com/franz/sonora/internal/scan"
)

const testJWTSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *catalog.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := catalog.Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New(store)
	scanner := scan.New(store, coord, scan.Options{})
	enricher := enrich.New(store, coord, enrich.Options{})
	t.Cleanup(enricher.Close)
	organizer := organize.New(store, coord, root, organize.Options{})

	router := NewRouter(store, coord, scanner, enricher, organizer, Options{
		MusicDir:      root,
		AvatarDir:     filepath.Join(root, "avatars"),
		JWTSecret:     testJWTSecret,
		TranscoderCap: 2,
	})
	return router, store, root
}

func bearerToken(t *testing.T, userID string, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   userID,
		"admin": admin,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func seedTrack(t *testing.T, store *catalog.Store, root, contents string) *catalog.Track {
	t.Helper()
	path := filepath.Join(root, "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	artist, err := store.GetOrCreateArtist("Test Artist")
	require.NoError(t, err)
	album, err := store.GetOrCreateAlbum("Test Album", artist.ID, 2020)
	require.NoError(t, err)
	id, err := store.UpsertTrack(catalog.TrackUpsert{
		Title: "Test Track", AlbumID: album.ID, ArtistID: artist.ID,
		DurationS: 180, TrackNo: 1, Path: path, Format: "mp3",
	})
	require.NoError(t, err)
	track, err := store.TrackByID(id)
	require.NoError(t, err)
	return track
}

func TestStreamRequiresAuthentication(t *testing.T) {
	router, store, root := newTestServer(t)
	track := seedTrack(t, store, root, "hello-audio")

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamFullBodyWithoutRangeHeader(t *testing.T) {
	router, store, root := newTestServer(t)
	track := seedTrack(t, store, root, "hello-audio-bytes")

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID), nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello-audio-bytes", rec.Body.String())
}

func TestStreamPartialRangeReturns206(t *testing.T) {
	router, store, root := newTestServer(t)
	track := seedTrack(t, store, root, "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID), nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "2345", rec.Body.String())
}

func TestStreamUnsatisfiableRangeReturns416(t *testing.T) {
	router, store, root := newTestServer(t)
	track := seedTrack(t, store, root, "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID), nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	req.Header.Set("Range", "bytes=50-60")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}

func TestStreamUnknownTrackReturns404(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stream/999", nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamTranscodeRejectsUnknownBitrate(t *testing.T) {
	router, store, root := newTestServer(t)
	track := seedTrack(t, store, root, "audio")

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID)+"?bitrate=999k", nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamTranscodeReturns503WhenPoolSaturated(t *testing.T) {
	root := t.TempDir()
	store, err := catalog.Open(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New(store)
	scanner := scan.New(store, coord, scan.Options{})
	enricher := enrich.New(store, coord, enrich.Options{})
	t.Cleanup(enricher.Close)
	organizer := organize.New(store, coord, root, organize.Options{})

	opts := Options{
		MusicDir:      root,
		AvatarDir:     filepath.Join(root, "avatars"),
		JWTSecret:     testJWTSecret,
		TranscoderCap: 1,
	}
	s := newServer(store, coord, scanner, enricher, organizer, opts)
	router := newEngine(s, opts)

	track := seedTrack(t, store, root, "audio-bytes")

	release, err := s.transcoder.TryAcquire()
	require.NoError(t, err)
	defer release()

	req := httptest.NewRequest(http.MethodGet, "/stream/"+int64ToString(track.ID)+"?bitrate=192k", nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanEndpointRejectsNonAdmin(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanEndpointAcceptsAdminAndReportsBusyOnSecondCall(t *testing.T) {
	router, _, root := newTestServer(t)
	// Give the scan something real, if slow, to walk while the test
	// fires the second request; an empty root would finish instantly
	// and the busy check would race the goroutine.
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.mp3"), []byte("x"), 0o644))

	admin := bearerToken(t, "1", true)

	req1 := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req1.Header.Set("Authorization", admin)
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusAccepted, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req2.Header.Set("Authorization", admin)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestScanStatusEndpointReportsIdleByDefault(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/scan/status", nil)
	req.Header.Set("Authorization", bearerToken(t, "1", false))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":false`)
}

func TestAvatarUploadRejectsNonImageContent(t *testing.T) {
	router, store, _ := newTestServer(t)
	artist, err := store.GetOrCreateArtist("Some Artist")
	require.NoError(t, err)

	body, contentType := multipartAvatarBody(t, "avatar.txt", []byte("not an image"))
	req := httptest.NewRequest(http.MethodPost, "/artists/"+int64ToString(artist.ID)+"/avatar", body)
	req.Header.Set("Authorization", bearerToken(t, "1", true))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarUploadAcceptsRealPNG(t *testing.T) {
	router, store, _ := newTestServer(t)
	artist, err := store.GetOrCreateArtist("PNG Artist")
	require.NoError(t, err)

	body, contentType := multipartAvatarBody(t, "avatar.png", pngMagicBytes())
	req := httptest.NewRequest(http.MethodPost, "/artists/"+int64ToString(artist.ID)+"/avatar", body)
	req.Header.Set("Authorization", bearerToken(t, "1", true))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// pngMagicBytes returns a minimal buffer carrying just the PNG magic
// number, enough for the content-sniffer without a real image payload.
func pngMagicBytes() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
}

func multipartAvatarBody(t *testing.T, filename string, contents []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(contents)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}
