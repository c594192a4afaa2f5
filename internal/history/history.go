// Package history builds a read-only index over recently archived issues so
// assembly can enforce cooldowns and lookback deduplication. The index is
// rebuilt from the archive on every run and never mutated afterwards.
package history

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sydlexius/daily3albums/internal/candidate"
)

// DateLayout is the archive's date-key format.
const DateLayout = "2006-01-02"

// Index summarizes the lookback window: which albums already ran, and when
// each artist and style/theme key last appeared.
type Index struct {
	AlbumKeys      map[string]bool
	ArtistLastSeen map[string]time.Time
	StyleLastSeen  map[string]time.Time
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		AlbumKeys:      map[string]bool{},
		ArtistLastSeen: map[string]time.Time{},
		StyleLastSeen:  map[string]time.Time{},
	}
}

// SeenAlbum reports whether the album key appeared within the lookback window.
func (ix *Index) SeenAlbum(key string) bool { return ix.AlbumKeys[key] }

// ArtistWithin reports whether any of the artist keys was seen fewer than
// cooldownDays before the given date.
func (ix *Index) ArtistWithin(keys []string, date time.Time, cooldownDays int) bool {
	for _, k := range keys {
		if last, ok := ix.ArtistLastSeen[k]; ok && DaysBetween(last, date) < cooldownDays {
			return true
		}
	}
	return false
}

// StyleWithin reports whether the style or theme key was seen fewer than
// cooldownDays before the given date.
func (ix *Index) StyleWithin(key string, date time.Time, cooldownDays int) bool {
	last, ok := ix.StyleLastSeen[key]
	return ok && DaysBetween(last, date) < cooldownDays
}

// Minimal archive shapes: only the identity fields assembly needs. Parsing
// the full issue here would couple this package to the writer's schema.
type archivedIssue struct {
	Date  string         `json:"date"`
	Slots []archivedSlot `json:"slots"`
}

type archivedSlot struct {
	ThemeKey string         `json:"theme_key"`
	Picks    []archivedPick `json:"picks"`
}

type archivedPick struct {
	AlbumKey   string   `json:"album_key"`
	ArtistKeys []string `json:"artist_keys"`
	StyleKey   string   `json:"style_key"`
}

// Load builds the index from archive/<date>.json files for the lookbackDays
// days before date (exclusive). Missing days are normal; unreadable or
// corrupt archives are skipped with a warning rather than failing the run.
func Load(archiveDir string, date time.Time, lookbackDays int, logger *slog.Logger) *Index {
	ix := NewIndex()
	for d := 1; d <= lookbackDays; d++ {
		day := date.AddDate(0, 0, -d)
		path := filepath.Join(archiveDir, day.Format(DateLayout)+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("skipping unreadable archive", slog.String("path", path), slog.Any("error", err))
			}
			continue
		}

		var iss archivedIssue
		if err := json.Unmarshal(data, &iss); err != nil {
			logger.Warn("skipping corrupt archive", slog.String("path", path), slog.Any("error", err))
			continue
		}

		ix.record(&iss, day)
	}
	return ix
}

// record merges one archived day. Later-seen dates win so last-seen maps
// always hold the most recent occurrence.
func (ix *Index) record(iss *archivedIssue, day time.Time) {
	for _, slot := range iss.Slots {
		if slot.ThemeKey != "" {
			ix.touchStyle(slot.ThemeKey, day)
		}
		for _, p := range slot.Picks {
			if p.AlbumKey != "" {
				ix.AlbumKeys[p.AlbumKey] = true
			}
			for _, ak := range p.ArtistKeys {
				ix.touchArtist(ak, day)
			}
			if p.StyleKey != "" {
				ix.touchStyle(p.StyleKey, day)
			}
		}
	}
}

func (ix *Index) touchArtist(key string, day time.Time) {
	if last, ok := ix.ArtistLastSeen[key]; !ok || day.After(last) {
		ix.ArtistLastSeen[key] = day
	}
}

func (ix *Index) touchStyle(key string, day time.Time) {
	if last, ok := ix.StyleLastSeen[key]; !ok || day.After(last) {
		ix.StyleLastSeen[key] = day
	}
}

// AlbumKey identifies an album across days: the release-group id when
// resolved, otherwise a stable digest of the normalized text identity.
func AlbumKey(releaseGroupID, artist, title string, year int) string {
	if releaseGroupID != "" {
		return releaseGroupID
	}
	basis := fmt.Sprintf("%s|%d", candidate.IdentityKey(artist, title), year)
	sum := sha1.Sum([]byte(basis))
	return "fallback:" + hex.EncodeToString(sum[:])[:20]
}

// ArtistKeys identifies an artist credit across days: catalog artist ids when
// resolved, otherwise the normalized credit text.
func ArtistKeys(artistIDs []string, artist string) []string {
	if len(artistIDs) > 0 {
		return append([]string(nil), artistIDs...)
	}
	norm := candidate.NormalizeText(artist)
	if norm == "" {
		return nil
	}
	return []string{"name:" + norm}
}

// StyleKey buckets a pick for style cooldown: theme, primary type, and
// release decade.
func StyleKey(theme, primaryType string, year int) string {
	decade := "unknown"
	if year > 0 {
		decade = fmt.Sprintf("%ds", year/10*10)
	}
	if primaryType == "" {
		primaryType = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s", candidate.NormalizeText(theme), primaryType, decade)
}

// DaysBetween returns the whole calendar days from a to b, ignoring
// time-of-day and timezone offsets within the day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
