// Package musicbrainz adapts the MusicBrainz web service into the catalog
// interface the matcher consumes: release-group lookup, release lookup (for
// following a release back to its group), and release-group search.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sydlexius/daily3albums/internal/broker"
	"github.com/sydlexius/daily3albums/internal/provider"
	"github.com/sydlexius/daily3albums/internal/version"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter implements provider.Catalog for MusicBrainz.
type Adapter struct {
	broker    *broker.Broker
	userAgent string
	logger    *slog.Logger
	baseURL   string
}

// New creates a MusicBrainz adapter with the default base URL. The userAgent
// is required by MusicBrainz's terms; an empty value falls back to the
// project default.
func New(b *broker.Broker, userAgent string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(b, userAgent, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(b *broker.Broker, userAgent string, logger *slog.Logger, baseURL string) *Adapter {
	if userAgent == "" {
		userAgent = fmt.Sprintf("daily3albums/%s (https://github.com/sydlexius/daily3albums)", version.Version)
	}
	return &Adapter{
		broker:    b,
		userAgent: userAgent,
		logger:    logger.With(slog.String("source", "musicbrainz")),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.SourceMusicBrainz }

// ReleaseGroupByID looks up a release group directly by its MBID.
func (a *Adapter) ReleaseGroupByID(ctx context.Context, id string) (*provider.ReleaseGroup, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &provider.ErrNotFound{Source: provider.SourceMusicBrainz, ID: id}
	}

	params := url.Values{"fmt": {"json"}, "inc": {"artists"}}
	reqURL := a.baseURL + "/release-group/" + url.PathEscape(id) + "?" + params.Encode()

	body, err := a.get(ctx, reqURL, id)
	if err != nil {
		return nil, err
	}

	var rg mbReleaseGroup
	if err := json.Unmarshal(body, &rg); err != nil {
		return nil, fmt.Errorf("parsing release group: %w", err)
	}
	if rg.ID == "" {
		return nil, &provider.ErrNotFound{Source: provider.SourceMusicBrainz, ID: id}
	}

	return mapReleaseGroup(&rg), nil
}

// ReleaseByID looks up a release by its MBID, returning the release-group
// back-reference.
func (a *Adapter) ReleaseByID(ctx context.Context, id string) (*provider.Release, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &provider.ErrNotFound{Source: provider.SourceMusicBrainz, ID: id}
	}

	params := url.Values{"fmt": {"json"}, "inc": {"release-groups"}}
	reqURL := a.baseURL + "/release/" + url.PathEscape(id) + "?" + params.Encode()

	body, err := a.get(ctx, reqURL, id)
	if err != nil {
		return nil, err
	}

	var rel mbRelease
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parsing release: %w", err)
	}
	if rel.ID == "" {
		return nil, &provider.ErrNotFound{Source: provider.SourceMusicBrainz, ID: id}
	}

	return &provider.Release{ID: rel.ID, ReleaseGroupID: rel.ReleaseGroup.ID}, nil
}

// SearchReleaseGroups runs a Lucene query against the release-group search
// endpoint. No results is not an error.
func (a *Adapter) SearchReleaseGroups(ctx context.Context, query string, limit int) ([]provider.ReleaseGroup, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	reqURL := a.baseURL + "/release-group?" + params.Encode()

	body, err := a.get(ctx, reqURL, query)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	groups := make([]provider.ReleaseGroup, 0, len(resp.ReleaseGroups))
	for i := range resp.ReleaseGroups {
		rg := &resp.ReleaseGroups[i]
		if rg.ID == "" {
			continue
		}
		groups = append(groups, *mapReleaseGroup(rg))
	}
	return groups, nil
}

func (a *Adapter) get(ctx context.Context, reqURL, id string) ([]byte, error) {
	a.logger.Debug("requesting", slog.String("url", reqURL))

	body, err := a.broker.Get(ctx, reqURL, broker.Options{
		Adapter: "musicbrainz",
		Headers: map[string]string{
			"User-Agent": a.userAgent,
			"Accept":     "application/json",
		},
	})
	if err != nil {
		var reqErr *broker.RequestError
		if errors.As(err, &reqErr) {
			if reqErr.Status == http.StatusNotFound || reqErr.Status == http.StatusBadRequest {
				return nil, &provider.ErrNotFound{Source: provider.SourceMusicBrainz, ID: id}
			}
			return nil, &provider.ErrSourceUnavailable{Source: provider.SourceMusicBrainz, Cause: err}
		}
		return nil, err
	}
	return body, nil
}

func mapReleaseGroup(rg *mbReleaseGroup) *provider.ReleaseGroup {
	return &provider.ReleaseGroup{
		ID:               rg.ID,
		Title:            rg.Title,
		ArtistCredit:     rg.creditString(),
		ArtistIDs:        rg.artistIDs(),
		FirstReleaseDate: rg.FirstReleaseDate,
		PrimaryType:      rg.PrimaryType,
		SecondaryTypes:   rg.SecondaryTypes,
	}
}
