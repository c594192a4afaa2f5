// Package provider defines the shared types and interfaces for external
// metadata sources: chart sources that propose albums, and the catalog that
// resolves them to canonical release groups.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SourceName uniquely identifies an external source.
type SourceName string

// Known source names.
const (
	SourceLastFM      SourceName = "lastfm"
	SourceDeezer      SourceName = "deezer"
	SourceMusicBrainz SourceName = "musicbrainz"
)

// DisplayName returns a human-readable name for the source.
func (n SourceName) DisplayName() string {
	switch n {
	case SourceLastFM:
		return "Last.fm"
	case SourceDeezer:
		return "Deezer"
	case SourceMusicBrainz:
		return "MusicBrainz"
	default:
		return string(n)
	}
}

// SourceRecord is one album proposal as returned by a chart source,
// normalized at the adapter boundary.
type SourceRecord struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ImageURL string `json:"image_url,omitempty"`
	// Rank is the 1-based position within the source's result list.
	// 0 means the source reported no rank.
	Rank int `json:"rank,omitempty"`
	// MBIDHint is a MusicBrainz identifier supplied by the source. It may
	// name either a release group or a release; callers must normalize it.
	MBIDHint string `json:"mbid_hint,omitempty"`
	// ReleaseGroupHint is a release-group identifier supplied by a
	// secondary discovery source, usable for direct lookup.
	ReleaseGroupHint string `json:"release_group_hint,omitempty"`
}

// ChartSource is the interface all candidate source adapters implement.
// TopAlbums returns zero or more records for a tag; an empty result is not
// an error. Transport failures surface as *ErrSourceUnavailable.
type ChartSource interface {
	Name() SourceName
	RequiresAuth() bool
	TopAlbums(ctx context.Context, tag string, limit int) ([]SourceRecord, error)
}

// ReleaseGroup is a canonical catalog entry: one album across all its
// editions and pressings.
type ReleaseGroup struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	ArtistCredit     string   `json:"artist_credit"`
	ArtistIDs        []string `json:"artist_ids,omitempty"`
	FirstReleaseDate string   `json:"first_release_date,omitempty"`
	PrimaryType      string   `json:"primary_type,omitempty"`
	SecondaryTypes   []string `json:"secondary_types,omitempty"`
}

// Release is a single edition of an album, carrying a back-reference to its
// release group.
type Release struct {
	ID             string `json:"id"`
	ReleaseGroupID string `json:"release_group_id,omitempty"`
}

// Catalog is the canonical-metadata interface the matcher consumes.
// Lookups return *ErrNotFound when the catalog has no entry for the id.
type Catalog interface {
	ReleaseGroupByID(ctx context.Context, id string) (*ReleaseGroup, error)
	ReleaseByID(ctx context.Context, id string) (*Release, error)
	SearchReleaseGroups(ctx context.Context, query string, limit int) ([]ReleaseGroup, error)
}

// ErrSourceUnavailable indicates a transient failure (rate-limited, timeout,
// server error).
type ErrSourceUnavailable struct {
	Source     SourceName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrSourceUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrSourceUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the source has no data for the requested ID.
type ErrNotFound struct {
	Source SourceName
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: %s not found", e.Source, e.ID)
}

// ErrAuthRequired indicates the source needs an API key but none is configured.
type ErrAuthRequired struct {
	Source SourceName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("source %s: API key not configured", e.Source)
}

// IsNotFound reports whether err is a not-found error from any source.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// IsUnavailable reports whether err is a transient source failure.
func IsUnavailable(err error) bool {
	var ua *ErrSourceUnavailable
	return errors.As(err, &ua)
}
