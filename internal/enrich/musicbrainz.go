package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/logging"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org/ws/2"

	// musicBrainzUserAgent identifies this application to MusicBrainz,
	// which rejects unidentified clients.
	musicBrainzUserAgent = "sonorad/1.0 (https://github.com/franz/sonora)"

	// minConfidenceScore is the search-result score below which a hit
	// is not trusted to overwrite catalog metadata (spec.md §4.7).
	minConfidenceScore = 90
)

// MusicBrainzClient is external provider A: artist search/lookup and
// release-group listing.
type MusicBrainzClient struct {
	httpClient *http.Client
	baseURL    string // overridable in tests, defaults to musicBrainzBaseURL
}

// NewMusicBrainzClient creates a provider A client.
func NewMusicBrainzClient(httpClient *http.Client) *MusicBrainzClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &MusicBrainzClient{httpClient: httpClient, baseURL: musicBrainzBaseURL}
}

func (c *MusicBrainzClient) Host() string { return "musicbrainz.org" }

// mbArtistSearchResult is the shape of a /artist/?query= response.
type mbArtistSearchResult struct {
	Artists []mbArtist `json:"artists"`
}

type mbArtist struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Score          int           `json:"score"`
	Disambiguation string        `json:"disambiguation"`
	ReleaseGroups  []mbReleaseGr `json:"release-groups"`
}

type mbReleaseGr struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ArtistMatch is the confidence-gated result of SearchArtist.
type ArtistMatch struct {
	ExternalID    string
	CanonicalName string
	Bio           string
	ReleaseGroups map[string]string // title -> release-group id
}

// SearchArtist looks up name and returns the best match, or nil if no
// candidate cleared the confidence threshold.
func (c *MusicBrainzClient) SearchArtist(ctx context.Context, name string) (*ArtistMatch, error) {
	if name == "" {
		return nil, apperr.Validation("artist name is required")
	}

	query := url.QueryEscape(fmt.Sprintf("artist:%s", name))
	reqURL := fmt.Sprintf("%s/artist/?query=%s&fmt=json&limit=5&inc=release-groups", c.baseURL, query)

	var result mbArtistSearchResult
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}

	if len(result.Artists) == 0 {
		logging.DebugLog("musicbrainz: no results for %q", name)
		return nil, nil
	}

	best := result.Artists[0]
	if best.Score < minConfidenceScore {
		logging.DebugLog("musicbrainz: low confidence (%d) for %q, discarding", best.Score, name)
		return nil, nil
	}

	groups := make(map[string]string, len(best.ReleaseGroups))
	for _, g := range best.ReleaseGroups {
		groups[g.Title] = g.ID
	}

	return &ArtistMatch{
		ExternalID:    best.ID,
		CanonicalName: best.Name,
		Bio:           best.Disambiguation,
		ReleaseGroups: groups,
	}, nil
}

func (c *MusicBrainzClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", musicBrainzUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request musicbrainz: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &providerHTTPError{status: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode musicbrainz response: %w", err)
	}
	return nil
}

// providerHTTPError carries the status code so retry logic and the
// terminal-vs-transient classification in Enricher can inspect it.
type providerHTTPError struct {
	status int
	body   string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.body)
}

func (e *providerHTTPError) StatusCode() int { return e.status }
