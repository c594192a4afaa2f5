// Package deezer adapts Deezer's public album search into the common
// chart-source interface. Deezer is a secondary discovery source: no API key,
// no MusicBrainz identifiers, but good cover art and a different editorial
// slant than Last.fm's tag charts.
package deezer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/sydlexius/daily3albums/internal/broker"
	"github.com/sydlexius/daily3albums/internal/provider"
)

const defaultBaseURL = "https://api.deezer.com"

// Adapter implements provider.ChartSource for Deezer.
type Adapter struct {
	broker  *broker.Broker
	logger  *slog.Logger
	baseURL string
}

// New creates a Deezer adapter with the default base URL.
func New(b *broker.Broker, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(b, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing).
func NewWithBaseURL(b *broker.Broker, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		broker:  b,
		logger:  logger.With(slog.String("source", "deezer")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.SourceDeezer }

// RequiresAuth returns false since Deezer's public API needs no API key.
func (a *Adapter) RequiresAuth() bool { return false }

// TopAlbums searches Deezer albums for a tag. Results are relevance-ordered;
// the position becomes the record rank. Singles and EPs are dropped at the
// boundary since Deezer labels them explicitly.
func (a *Adapter) TopAlbums(ctx context.Context, tag string, limit int) ([]provider.SourceRecord, error) {
	if tag == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {tag},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := a.baseURL + "/search/album?" + params.Encode()

	body, err := a.broker.Get(ctx, reqURL, broker.Options{Adapter: "deezer"})
	if err != nil {
		var reqErr *broker.RequestError
		if errors.As(err, &reqErr) {
			return nil, &provider.ErrSourceUnavailable{Source: provider.SourceDeezer, Cause: err}
		}
		return nil, err
	}

	// Deezer signals quota errors in-band with HTTP 200.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Code != 0 {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.SourceDeezer,
			Cause:  fmt.Errorf("API error %d: %s", apiErr.Error.Code, apiErr.Error.Message),
		}
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing album search response: %w", err)
	}

	records := make([]provider.SourceRecord, 0, len(resp.Data))
	rank := 0
	for _, al := range resp.Data {
		title := strings.TrimSpace(al.Title)
		artist := strings.TrimSpace(al.Artist.Name)
		if title == "" || artist == "" {
			continue
		}
		if al.RecordType != "" && al.RecordType != "album" {
			continue
		}

		rank++
		image := al.CoverXL
		if image == "" {
			image = al.CoverBig
		}

		records = append(records, provider.SourceRecord{
			Title:    title,
			Artist:   artist,
			ImageURL: image,
			Rank:     rank,
		})
	}

	a.logger.Debug("fetched album search",
		slog.String("tag", tag), slog.Int("count", len(records)))
	return records, nil
}
