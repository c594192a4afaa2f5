// Package assembler builds the day's three themed slots. Each slot picks a
// theme deterministically from the date, fetches a widening candidate pool,
// applies the hard eligibility filters, and samples three distinct-artist
// albums by softmax-weighted drawing without replacement. Slots run in
// sequence because each consumes the dedup state the previous ones produced.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/history"
	"github.com/sydlexius/daily3albums/internal/issue"
	"github.com/sydlexius/daily3albums/internal/scorer"
)

// Rejection counter names, in filter order.
const (
	RejectNoMatch           = "no_match"
	RejectVariousArtists    = "various_artists"
	RejectTypeNotAllowed    = "type_not_allowed"
	RejectAlbumUsedToday    = "album_used_today"
	RejectAlbumSeenRecently = "album_seen_recently"
	RejectArtistUsedToday   = "artist_used_today"
	RejectArtistCooldown    = "artist_cooldown"
)

// slotLabels name the three daily windows.
var slotLabels = [issue.SlotCount]string{"Headliner", "Lineage", "DeepCut"}

// variousArtistsNames are normalized artist credits that mean "not a real
// artist" and are never publishable.
var variousArtistsNames = map[string]bool{
	"various artists":     true,
	"various":             true,
	"va":                  true,
	"soundtrack":          true,
	"original soundtrack": true,
}

// Fetcher supplies a scored candidate pool for one theme. Implemented by the
// pipeline on top of the adapters, merger, matcher, and scorer.
type Fetcher interface {
	FetchPool(ctx context.Context, theme string, limit int, deepcut bool) ([]scorer.Scored, error)
}

// Config tunes assembly.
type Config struct {
	// Themes is the tag pool slots draw from.
	Themes []string
	// FetchLimits is the widening sequence of pool sizes per theme.
	FetchLimits []int
	// MaxTriesPerSlot caps theme attempts per slot.
	MaxTriesPerSlot int
	// AllowedTypes is the primary-type allow-list.
	AllowedTypes []string
	// SampleAttempts bounds weighted draws per slot so sampling terminates.
	SampleAttempts int
	// Temperatures holds the per-slot softmax temperature; the deep-cut
	// slot runs hotter for more randomness.
	Temperatures []float64

	ArtistCooldownDays int
	StyleCooldownDays  int
}

// DefaultConfig returns production assembly settings.
func DefaultConfig() Config {
	return Config{
		FetchLimits:        []int{30, 60, 120},
		MaxTriesPerSlot:    6,
		AllowedTypes:       []string{"Album"},
		SampleAttempts:     200,
		Temperatures:       []float64{4, 6, 10},
		ArtistCooldownDays: 7,
		StyleCooldownDays:  3,
	}
}

// ThemeAttempt records one theme try for diagnostics.
type ThemeAttempt struct {
	Theme      string
	FetchLimit int
	Eligible   int
	Rejections map[string]int
	Outcome    string
}

// BuildError reports slot exhaustion with the full attempt trail.
type BuildError struct {
	SlotIndex int
	Attempts  []ThemeAttempt
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "slot %d exhausted after %d theme attempts:", e.SlotIndex, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, " [%s limit=%d eligible=%d %s", a.Theme, a.FetchLimit, a.Eligible, a.Outcome)
		for name, n := range a.Rejections {
			if n > 0 {
				fmt.Fprintf(&sb, " %s=%d", name, n)
			}
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// accumulator is the cross-slot dedup state, owned by one Assemble call and
// threaded through the slots in order.
type accumulator struct {
	albums  map[string]bool
	artists map[string]bool
	themes  map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		albums:  map[string]bool{},
		artists: map[string]bool{},
		themes:  map[string]bool{},
	}
}

// eligible is a pool entry that survived filtering, with its identity keys
// precomputed.
type eligible struct {
	scored     scorer.Scored
	albumKey   string
	artistKeys []string
	year       int
}

// Assembler builds slots from a fetcher.
type Assembler struct {
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger
}

// New creates an Assembler.
func New(fetcher Fetcher, cfg Config, logger *slog.Logger) *Assembler {
	def := DefaultConfig()
	if len(cfg.FetchLimits) == 0 {
		cfg.FetchLimits = def.FetchLimits
	}
	if cfg.MaxTriesPerSlot <= 0 {
		cfg.MaxTriesPerSlot = def.MaxTriesPerSlot
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = def.AllowedTypes
	}
	if cfg.SampleAttempts <= 0 {
		cfg.SampleAttempts = def.SampleAttempts
	}
	if len(cfg.Temperatures) == 0 {
		cfg.Temperatures = def.Temperatures
	}
	return &Assembler{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "assembler")),
	}
}

// Assemble builds the three slots for date. All randomness derives from the
// date and seed, so the same inputs always produce the same day.
func (a *Assembler) Assemble(ctx context.Context, date time.Time, seed string, hist *history.Index) ([]issue.Slot, error) {
	if len(a.cfg.Themes) == 0 {
		return nil, fmt.Errorf("assemble: empty theme pool")
	}

	acc := newAccumulator()
	dateKey := date.Format(history.DateLayout)

	slots := make([]issue.Slot, 0, issue.SlotCount)
	for i := 0; i < issue.SlotCount; i++ {
		slot, err := a.assembleSlot(ctx, i, dateKey, date, seed, hist, acc)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, nil
}

func (a *Assembler) assembleSlot(ctx context.Context, index int, dateKey string, date time.Time, seed string, hist *history.Index, acc *accumulator) (*issue.Slot, error) {
	deepcut := index == issue.SlotCount-1
	order := a.themeOrder(index, dateKey, acc)
	rng := newRand(fmt.Sprintf("%s|%s|slot%d", seed, dateKey, index))

	var attempts []ThemeAttempt
	tries := 0
	for _, theme := range order {
		if tries >= a.cfg.MaxTriesPerSlot {
			break
		}
		tries++

		themeKey := candidate.NormalizeText(theme)
		if hist.StyleWithin(themeKey, date, a.cfg.StyleCooldownDays) {
			attempts = append(attempts, ThemeAttempt{Theme: theme, Outcome: "theme_cooldown"})
			continue
		}

		attempt, picks := a.tryTheme(ctx, theme, index, deepcut, date, hist, acc, rng)
		attempts = append(attempts, *attempt)
		if picks == nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		slot := &issue.Slot{
			Index:    index,
			Label:    slotLabels[index],
			Theme:    theme,
			ThemeKey: themeKey,
			Picks:    a.commit(picks, theme, acc),
		}
		acc.themes[themeKey] = true
		a.logger.Info("slot assembled",
			slog.Int("slot", index), slog.String("theme", theme),
			slog.Int("attempts", len(attempts)))
		return slot, nil
	}

	return nil, &BuildError{SlotIndex: index, Attempts: attempts}
}

// tryTheme fetches a widening pool for one theme and attempts to sample
// three picks. A nil pick slice means the theme failed; the attempt records
// why.
func (a *Assembler) tryTheme(ctx context.Context, theme string, index int, deepcut bool, date time.Time, hist *history.Index, acc *accumulator, rng *rand.Rand) (*ThemeAttempt, []eligible) {
	attempt := &ThemeAttempt{Theme: theme, Rejections: map[string]int{}}

	for _, limit := range a.cfg.FetchLimits {
		attempt.FetchLimit = limit

		pool, err := a.fetcher.FetchPool(ctx, theme, limit, deepcut)
		if err != nil {
			attempt.Outcome = fmt.Sprintf("fetch_error: %v", err)
			a.logger.Warn("theme fetch failed",
				slog.String("theme", theme), slog.Any("error", err))
			return attempt, nil
		}

		elig := a.filter(pool, date, hist, acc, attempt)
		attempt.Eligible = len(elig)
		if len(elig) < issue.PicksPerSlot {
			continue
		}

		picks := a.sample(elig, index, rng)
		if picks != nil {
			attempt.Outcome = "success"
			return attempt, picks
		}
		attempt.Outcome = "sample_exhausted"
	}

	if attempt.Outcome == "" {
		attempt.Outcome = "too_few_eligible"
	}
	return attempt, nil
}

// filter applies the hard filters in order, counting each rejection.
func (a *Assembler) filter(pool []scorer.Scored, date time.Time, hist *history.Index, acc *accumulator, attempt *ThemeAttempt) []eligible {
	out := make([]eligible, 0, len(pool))
	for _, s := range pool {
		n := s.Normalized
		if n == nil {
			attempt.Rejections[RejectNoMatch]++
			continue
		}
		if variousArtistsNames[candidate.NormalizeText(s.Candidate.Artist)] ||
			variousArtistsNames[candidate.NormalizeText(n.Artist)] {
			attempt.Rejections[RejectVariousArtists]++
			continue
		}
		if !a.typeAllowed(n.PrimaryType) {
			attempt.Rejections[RejectTypeNotAllowed]++
			continue
		}

		year := n.Year()
		albumKey := history.AlbumKey(n.ReleaseGroupID, s.Candidate.Artist, s.Candidate.Title, year)
		if acc.albums[albumKey] {
			attempt.Rejections[RejectAlbumUsedToday]++
			continue
		}
		if hist.SeenAlbum(albumKey) {
			attempt.Rejections[RejectAlbumSeenRecently]++
			continue
		}

		artistKeys := history.ArtistKeys(n.ArtistIDs, s.Candidate.Artist)
		if a.anyUsed(artistKeys, acc) {
			attempt.Rejections[RejectArtistUsedToday]++
			continue
		}
		if hist.ArtistWithin(artistKeys, date, a.cfg.ArtistCooldownDays) {
			attempt.Rejections[RejectArtistCooldown]++
			continue
		}

		out = append(out, eligible{scored: s, albumKey: albumKey, artistKeys: artistKeys, year: year})
	}
	return out
}

func (a *Assembler) typeAllowed(primaryType string) bool {
	for _, t := range a.cfg.AllowedTypes {
		if t == primaryType {
			return true
		}
	}
	return false
}

func (a *Assembler) anyUsed(keys []string, acc *accumulator) bool {
	for _, k := range keys {
		if acc.artists[k] {
			return true
		}
	}
	return false
}

// sample draws three picks without replacement under softmax weights. Draws
// that would repeat an artist already chosen for this slot are rejected and
// retried; the attempt cap guarantees termination. Nil means exhaustion.
func (a *Assembler) sample(pool []eligible, index int, rng *rand.Rand) []eligible {
	temp := a.temperature(index)
	scores := make([]float64, len(pool))
	for i := range pool {
		scores[i] = pool[i].scored.Score
	}
	weights := softmaxWeights(scores, temp)

	chosen := make([]eligible, 0, issue.PicksPerSlot)
	chosenArtists := map[string]bool{}
	for attempt := 0; attempt < a.cfg.SampleAttempts && len(chosen) < issue.PicksPerSlot; attempt++ {
		i := drawWeighted(rng, weights)
		if i < 0 {
			break
		}
		e := pool[i]

		repeat := false
		for _, k := range e.artistKeys {
			if chosenArtists[k] {
				repeat = true
				break
			}
		}
		if repeat {
			weights[i] = 0
			continue
		}

		chosen = append(chosen, e)
		for _, k := range e.artistKeys {
			chosenArtists[k] = true
		}
		weights[i] = 0
	}

	if len(chosen) < issue.PicksPerSlot {
		return nil
	}
	return chosen
}

func (a *Assembler) temperature(index int) float64 {
	temps := a.cfg.Temperatures
	if index >= len(temps) {
		return temps[len(temps)-1]
	}
	return temps[index]
}

// commit turns sampled picks into issue picks, ordered by score descending,
// and records their identities in the accumulator.
func (a *Assembler) commit(picks []eligible, theme string, acc *accumulator) []issue.Pick {
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].scored.Score > picks[j].scored.Score
	})

	out := make([]issue.Pick, 0, len(picks))
	for pos, e := range picks {
		n := e.scored.Normalized
		c := e.scored.Candidate

		title, artist := c.Title, c.Artist
		if n.Title != "" {
			title = n.Title
		}
		if n.Artist != "" {
			artist = n.Artist
		}

		out = append(out, issue.Pick{
			Position:         pos + 1,
			Title:            title,
			Artist:           artist,
			ImageURL:         c.ImageURL,
			ReleaseGroupMBID: n.ReleaseGroupID,
			AlbumKey:         e.albumKey,
			ArtistKeys:       e.artistKeys,
			StyleKey:         history.StyleKey(theme, n.PrimaryType, e.year),
			Year:             e.year,
			PrimaryType:      n.PrimaryType,
			Confidence:       n.Confidence,
			MatchSource:      n.Source,
			Sources:          append([]string(nil), c.Sources...),
			Score:            e.scored.Score,
		})

		acc.albums[e.albumKey] = true
		for _, k := range e.artistKeys {
			acc.artists[k] = true
		}
	}
	return out
}

// themeOrder rotates the theme pool by a date-and-slot derived offset, then
// deprioritizes themes earlier slots already used today.
func (a *Assembler) themeOrder(index int, dateKey string, acc *accumulator) []string {
	pool := a.cfg.Themes
	start := int(hash64(fmt.Sprintf("%s|slot%d", dateKey, index)) % uint64(len(pool)))

	rotated := make([]string, 0, len(pool))
	for i := 0; i < len(pool); i++ {
		rotated = append(rotated, pool[(start+i)%len(pool)])
	}

	fresh := make([]string, 0, len(rotated))
	var used []string
	for _, t := range rotated {
		if acc.themes[candidate.NormalizeText(t)] {
			used = append(used, t)
		} else {
			fresh = append(fresh, t)
		}
	}
	return append(fresh, used...)
}
