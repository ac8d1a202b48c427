package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// CoverArtProvider is external provider C: cover art keyed by a
// MusicBrainz release-group id, needing no separate API key since
// provider A already supplies the id.
type CoverArtProvider struct {
	httpClient *http.Client
	baseURL    string // overridable in tests, defaults to coverArtArchiveBaseURL
}

const coverArtArchiveBaseURL = "https://coverartarchive.org"

// NewCoverArtProvider creates a provider C client.
func NewCoverArtProvider(httpClient *http.Client) *CoverArtProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &CoverArtProvider{httpClient: httpClient, baseURL: coverArtArchiveBaseURL}
}

func (p *CoverArtProvider) Host() string { return "coverartarchive.org" }

// FetchFront downloads the front cover image for a release group and
// returns its bytes and a file extension inferred from Content-Type.
func (p *CoverArtProvider) FetchFront(ctx context.Context, releaseGroupID string) ([]byte, string, error) {
	reqURL := fmt.Sprintf("%s/release-group/%s/front", p.baseURL, releaseGroupID)
	return fetchFrontFrom(ctx, reqURL, p.httpClient)
}

// fetchFrontFrom performs the actual request; split out from FetchFront
// so tests can point it at an httptest.Server without touching the
// provider's configured host.
func fetchFrontFrom(ctx context.Context, reqURL string, httpClient *http.Client) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request cover art archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", &providerHTTPError{status: resp.StatusCode, body: string(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read cover art body: %w", err)
	}

	ext := extensionForContentType(resp.Header.Get("Content-Type"))
	return data, ext, nil
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// PortraitProvider is external provider B: an artist portrait image
// source. Modeled as an interface so the actual backing service
// (Wikidata, Fanart.tv, a manual upload store) is swappable without
// touching the enrichment state machine.
type PortraitProvider interface {
	Host() string
	FetchPortrait(ctx context.Context, artistName, externalID string) (data []byte, ext string, err error)
}

// NullPortraitProvider is used when no portrait backend is configured;
// every lookup reports "not found" rather than failing enrichment.
type NullPortraitProvider struct{}

func (NullPortraitProvider) Host() string { return "none" }

func (NullPortraitProvider) FetchPortrait(ctx context.Context, artistName, externalID string) ([]byte, string, error) {
	return nil, "", &providerHTTPError{status: http.StatusNotFound, body: "no portrait provider configured"}
}
