// Package lastfm adapts the Last.fm tag.getTopAlbums API into the common
// chart-source interface. Last.fm is the primary charting source: its per-tag
// album lists carry ranks and, for many entries, MusicBrainz identifiers.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sydlexius/daily3albums/internal/broker"
	"github.com/sydlexius/daily3albums/internal/provider"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// preferredImageSize is the Last.fm image size used for cover art.
const preferredImageSize = "extralarge"

// Adapter implements provider.ChartSource for Last.fm.
type Adapter struct {
	broker  *broker.Broker
	apiKey  string
	logger  *slog.Logger
	baseURL string
}

// New creates a Last.fm adapter with the default base URL.
func New(b *broker.Broker, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(b, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing).
func NewWithBaseURL(b *broker.Broker, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		broker:  b,
		apiKey:  apiKey,
		logger:  logger.With(slog.String("source", "lastfm")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.SourceLastFM }

// RequiresAuth returns whether this source needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// TopAlbums fetches the top albums for a tag. An unknown tag yields an empty
// list, not an error.
func (a *Adapter) TopAlbums(ctx context.Context, tag string, limit int) ([]provider.SourceRecord, error) {
	if a.apiKey == "" {
		return nil, &provider.ErrAuthRequired{Source: provider.SourceLastFM}
	}

	params := url.Values{
		"method":  {"tag.getTopAlbums"},
		"tag":     {tag},
		"limit":   {strconv.Itoa(limit)},
		"page":    {"1"},
		"api_key": {a.apiKey},
		"format":  {"json"},
	}
	reqURL := a.baseURL + "/?" + params.Encode()

	body, err := a.broker.Get(ctx, reqURL, broker.Options{Adapter: "lastfm"})
	if err != nil {
		return nil, mapBrokerError(err)
	}

	// Last.fm signals errors in-band with HTTP 200.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		if apiErr.Error == 10 || apiErr.Error == 26 { // invalid/suspended key
			return nil, &provider.ErrAuthRequired{Source: provider.SourceLastFM}
		}
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.SourceLastFM,
			Cause:  fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message),
		}
	}

	var resp topAlbumsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing top albums response: %w", err)
	}

	container := resp.container()
	if container == nil {
		return nil, nil
	}

	records := make([]provider.SourceRecord, 0, len(container.Album))
	for i, al := range container.Album {
		title := strings.TrimSpace(al.Name)
		artist := strings.TrimSpace(al.Artist.Name)
		if title == "" || artist == "" {
			continue
		}

		rank := i + 1
		if r, err := strconv.Atoi(al.Attr.Rank); err == nil && r > 0 {
			rank = r
		}

		records = append(records, provider.SourceRecord{
			Title:    title,
			Artist:   artist,
			ImageURL: pickImage(al.Image),
			Rank:     rank,
			MBIDHint: strings.TrimSpace(al.MBID),
		})
	}

	a.logger.Debug("fetched tag top albums",
		slog.String("tag", tag), slog.Int("count", len(records)))
	return records, nil
}

// pickImage prefers the extralarge rendition, falling back to any non-empty URL.
func pickImage(images []albumImage) string {
	var fallback string
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if img.Size == preferredImageSize {
			return img.URL
		}
		fallback = img.URL
	}
	return fallback
}

func mapBrokerError(err error) error {
	var reqErr *broker.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Status == http.StatusForbidden || reqErr.Status == http.StatusUnauthorized {
			return &provider.ErrAuthRequired{Source: provider.SourceLastFM}
		}
		return &provider.ErrSourceUnavailable{Source: provider.SourceLastFM, Cause: err}
	}
	return err
}
