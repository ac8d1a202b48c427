package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortraitProvider struct {
	data []byte
	ext  string
	err  error
}

func (f *fakePortraitProvider) Host() string { return "fake-portraits.example.com" }

func (f *fakePortraitProvider) FetchPortrait(ctx context.Context, artistName, externalID string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.ext, nil
}

func newTestEnricher(t *testing.T, mbServer, coverServer *httptest.Server, portrait PortraitProvider) (*Enricher, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New(store)
	e := New(store, coord, Options{
		Concurrency: 2,
		PortraitDir: t.TempDir(),
		CoverDir:    t.TempDir(),
		Portrait:    portrait,
		RetryConfig: &retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	})
	t.Cleanup(e.Close)

	e.mb.baseURL = mbServer.URL
	e.mb.httpClient = mbServer.Client()
	if coverServer != nil {
		e.coverArt.baseURL = coverServer.URL
		e.coverArt.httpClient = coverServer.Client()
	}
	// Tests don't want to wait out real provider rate limits.
	e.limiter.SetRate(e.mb.Host(), time.Millisecond)
	e.limiter.SetRate(e.coverArt.Host(), time.Millisecond)
	e.limiter.SetRate(portrait.Host(), time.Millisecond)

	return e, store
}

func TestSyncMissingSkipsArtistsAlreadyEnriched(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("musicbrainz should not be queried when nothing is missing")
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	artist, err := store.GetOrCreateArtist("Enriched Already")
	require.NoError(t, err)
	require.NoError(t, store.UpdateArtistEnrichment(artist.ID, "bio", "", "mbid-1"))

	result, err := e.SyncMissing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)
}

func TestFullSyncBindsAlbumsAndPersistsExternalID(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(mbArtistSearchResult{
			Artists: []mbArtist{{
				ID: "mbid-radiohead", Name: "Radiohead", Score: 100,
				ReleaseGroups: []mbReleaseGr{{ID: "rg-okc", Title: "OK Computer"}},
			}},
		})
	}))
	defer mbServer.Close()

	coverServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("cover-bytes"))
	}))
	defer coverServer.Close()

	e, store := newTestEnricher(t, mbServer, coverServer, &fakePortraitProvider{})

	artist, err := store.GetOrCreateArtist("Radiohead")
	require.NoError(t, err)
	album, err := store.GetOrCreateAlbum("OK Computer", artist.ID, 1997)
	require.NoError(t, err)

	result, err := e.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, result.Failed)

	updatedArtist, err := store.ArtistByID(artist.ID)
	require.NoError(t, err)
	assert.Equal(t, "mbid-radiohead", updatedArtist.ExternalID.String)

	updatedAlbum, err := store.AlbumByID(album.ID)
	require.NoError(t, err)
	assert.Equal(t, "rg-okc", updatedAlbum.ReleaseGroupID.String)
	assert.True(t, updatedAlbum.CoverLocalPath.Valid)
}

func TestSyncOneWithNoConfidentMatchLeavesArtistUnsynced(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(mbArtistSearchResult{Artists: nil})
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	artist, err := store.GetOrCreateArtist("Totally Obscure Band")
	require.NoError(t, err)

	err = e.SyncOne(context.Background(), artist.ID)
	require.NoError(t, err)

	updated, err := store.ArtistByID(artist.ID)
	require.NoError(t, err)
	assert.False(t, updated.ExternalID.Valid)
}

func TestSyncOneReturnsProviderFailureWhenProviderErrors(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	artist, err := store.GetOrCreateArtist("Some Band")
	require.NoError(t, err)

	err = e.SyncOne(context.Background(), artist.ID)
	assert.Error(t, err)
}

func TestFullSyncRecordsPerArtistErrorForEachFailure(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	first, err := store.GetOrCreateArtist("First Failing Artist")
	require.NoError(t, err)
	second, err := store.GetOrCreateArtist("Second Failing Artist")
	require.NoError(t, err)

	result, err := e.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)

	updatedFirst, err := store.ArtistByID(first.ID)
	require.NoError(t, err)
	assert.True(t, updatedFirst.SyncLastError.Valid)

	updatedSecond, err := store.ArtistByID(second.ID)
	require.NoError(t, err)
	assert.True(t, updatedSecond.SyncLastError.Valid)
}

func TestFullSyncClearsPriorErrorOnSuccess(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(mbArtistSearchResult{
			Artists: []mbArtist{{ID: "mbid-recovered", Name: "Recovered Artist", Score: 100}},
		})
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	artist, err := store.GetOrCreateArtist("Recovered Artist")
	require.NoError(t, err)
	require.NoError(t, store.SetArtistSyncError(artist.ID, "previous 422 from provider"))

	_, err = e.FullSync(context.Background())
	require.NoError(t, err)

	updated, err := store.ArtistByID(artist.ID)
	require.NoError(t, err)
	assert.False(t, updated.SyncLastError.Valid)
}

func TestSyncRejectedWhileOrganizeRuns(t *testing.T) {
	mbServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(mbArtistSearchResult{Artists: nil})
	}))
	defer mbServer.Close()

	e, store := newTestEnricher(t, mbServer, nil, &fakePortraitProvider{})
	_, err := store.GetOrCreateArtist("Whoever")
	require.NoError(t, err)

	coord := coordinator.New(store)
	_, err = coord.TryBegin(coordinator.JobOrganize)
	require.NoError(t, err)
	e.coord = coord

	_, err = e.FullSync(context.Background())
	assert.Error(t, err)
}
