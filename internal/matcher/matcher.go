// Package matcher resolves chart candidates against the MusicBrainz catalog.
// Resolution prefers deterministic identifier lookups and falls back to a
// tiered fuzzy search with confidence gating, so a candidate either maps to
// exactly one release group or is rejected with a trace explaining why.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/provider"
)

// Similarity weights and gates. Title similarity dominates because chart
// artist credits are noisy (featured artists, translations, "Various").
const (
	titleWeight  = 0.72
	artistWeight = 0.28

	minTitleSim  = 0.60
	minArtistSim = 0.50

	// Title-only searches drop the artist term from the query, so they
	// get stricter acceptance gates.
	titleOnlyMinArtistSim  = 0.62
	titleOnlyMinConfidence = 0.88

	// Searching stops early once a hit is this confident.
	earlyStopConfidence = 0.92

	// Per-result confidence adjustments by release-group type.
	albumBonus         = 0.05
	epSinglePenalty    = 0.10
	compilationPenalty = 0.12
	livePenalty        = 0.08
	remixPenalty       = 0.06
)

// Config tunes resolution.
type Config struct {
	// MinConfidence is the floor below which the best hit is rejected.
	MinConfidence float64
	// AmbiguityGap rejects a best hit whose runner-up (a different release
	// group) scores within this margin.
	AmbiguityGap float64
	// SearchLimit is the per-query result limit.
	SearchLimit int
	// MaxQueries caps catalog searches per candidate across all tiers.
	MaxQueries int
}

// DefaultConfig returns production resolution settings.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.80,
		AmbiguityGap:  0.06,
		SearchLimit:   10,
		MaxQueries:    4,
	}
}

// Normalized is a candidate resolved to a catalog release group.
type Normalized struct {
	ReleaseGroupID   string
	Title            string
	Artist           string
	ArtistIDs        []string
	PrimaryType      string
	SecondaryTypes   []string
	FirstReleaseDate string
	// Confidence is 1.0 for identifier lookups, the match score otherwise.
	Confidence float64
	// Source names the resolution path: mbid:release-group, mbid:release,
	// hint:release-group, or the search tier that produced the hit.
	Source string
}

// Year returns the four-digit release year, or 0 when unknown.
func (n *Normalized) Year() int {
	if len(n.FirstReleaseDate) < 4 {
		return 0
	}
	var y int
	if _, err := fmt.Sscanf(n.FirstReleaseDate[:4], "%d", &y); err != nil {
		return 0
	}
	return y
}

// HasSecondaryType reports whether the release group carries the named
// secondary type (case-insensitive).
func (n *Normalized) HasSecondaryType(name string) bool {
	for _, t := range n.SecondaryTypes {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Matcher resolves candidates against a catalog.
type Matcher struct {
	catalog provider.Catalog
	cfg     Config
	logger  *slog.Logger
}

// New creates a Matcher.
func New(catalog provider.Catalog, cfg Config, logger *slog.Logger) *Matcher {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultConfig().SearchLimit
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultConfig().MaxQueries
	}
	return &Matcher{
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "matcher")),
	}
}

// Resolve maps a candidate to a release group. A nil Normalized with a nil
// error means no acceptable match; the trace records every decision made
// along the way. Only context cancellation is returned as an error: transient
// catalog failures degrade to no-match so one flaky lookup cannot sink a
// whole build.
func (m *Matcher) Resolve(ctx context.Context, c *candidate.Candidate) (*Normalized, []string, error) {
	var trace []string

	if c.MBIDHint != "" {
		n, err := m.resolveMBID(ctx, c.MBIDHint, &trace)
		if err != nil {
			return nil, trace, err
		}
		if n != nil {
			return n, trace, nil
		}
		// Fall through to search when the hint is stale.
	} else {
		trace = append(trace, "mbid: none")
	}

	if c.ReleaseGroupHint != "" {
		n, err := m.resolveHint(ctx, c.ReleaseGroupHint, &trace)
		if err != nil {
			return nil, trace, err
		}
		if n != nil {
			return n, trace, nil
		}
	}

	return m.search(ctx, c, &trace)
}

// resolveMBID follows a source-supplied MBID, which may name either a release
// group or a release. Release IDs are normalized to their group.
func (m *Matcher) resolveMBID(ctx context.Context, mbid string, trace *[]string) (*Normalized, error) {
	rg, err := m.catalog.ReleaseGroupByID(ctx, mbid)
	if err == nil {
		*trace = append(*trace, fmt.Sprintf("mbid: release-group %s ok", mbid))
		return fromReleaseGroup(rg, 1.0, "mbid:release-group"), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !provider.IsNotFound(err) {
		*trace = append(*trace, fmt.Sprintf("mbid: release-group lookup unavailable: %v", err))
		return nil, nil
	}

	rel, err := m.catalog.ReleaseByID(ctx, mbid)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		*trace = append(*trace, fmt.Sprintf("mbid: %s is neither release group nor release", mbid))
		return nil, nil
	}
	if rel.ReleaseGroupID == "" {
		*trace = append(*trace, fmt.Sprintf("mbid: release %s has no release group", mbid))
		return nil, nil
	}

	rg, err = m.catalog.ReleaseGroupByID(ctx, rel.ReleaseGroupID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		*trace = append(*trace, fmt.Sprintf("mbid: release %s -> group %s lookup failed: %v", mbid, rel.ReleaseGroupID, err))
		return nil, nil
	}
	*trace = append(*trace, fmt.Sprintf("mbid: release %s -> group %s", mbid, rg.ID))
	return fromReleaseGroup(rg, 1.0, "mbid:release"), nil
}

// resolveHint follows a release-group hint from a secondary source.
func (m *Matcher) resolveHint(ctx context.Context, id string, trace *[]string) (*Normalized, error) {
	rg, err := m.catalog.ReleaseGroupByID(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		*trace = append(*trace, fmt.Sprintf("hint: release-group %s failed: %v", id, err))
		return nil, nil
	}
	*trace = append(*trace, fmt.Sprintf("hint: release-group %s ok", id))
	return fromReleaseGroup(rg, 1.0, "hint:release-group"), nil
}

// hit is one scored search result.
type hit struct {
	rg         provider.ReleaseGroup
	confidence float64
	tier       string
	titleSim   float64
	artistSim  float64
}

// search runs the tiered fuzzy search: strict quoted, cleaned strict, cleaned
// loose, then title-only. Tracking keeps the best two distinct release groups
// so ambiguous names ("Greatest Hits") can be rejected.
func (m *Matcher) search(ctx context.Context, c *candidate.Candidate, trace *[]string) (*Normalized, []string, error) {
	title := strings.TrimSpace(c.Title)
	artist := strings.TrimSpace(c.Artist)
	if title == "" || artist == "" {
		*trace = append(*trace, "search: skipped, empty title or artist")
		return nil, *trace, nil
	}

	ct := cleanTitle(title)
	ca := cleanArtist(artist)
	if ct == "" {
		ct = title
	}
	if ca == "" {
		ca = artist
	}
	if len([]rune(normText(ct))) < 3 {
		*trace = append(*trace, "search: skipped, title too short after cleaning")
		return nil, *trace, nil
	}

	tiers := []struct {
		name  string
		query string
	}{
		{"search:strict", fmt.Sprintf(`releasegroup:%q AND artist:%q`, title, artist)},
		{"search:clean_strict", fmt.Sprintf(`releasegroup:%q AND artist:%q`, ct, ca)},
		{"search:clean_loose", fmt.Sprintf(`releasegroup:(%s) AND artist:(%s)`, ct, ca)},
		{"search:title_only", fmt.Sprintf(`releasegroup:(%s)`, ct)},
	}

	var top1, top2 *hit
	queries := 0
	for _, tier := range tiers {
		if queries >= m.cfg.MaxQueries {
			*trace = append(*trace, fmt.Sprintf("search: query budget (%d) exhausted", m.cfg.MaxQueries))
			break
		}
		queries++

		groups, err := m.catalog.SearchReleaseGroups(ctx, tier.query, m.cfg.SearchLimit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, *trace, ctxErr
			}
			*trace = append(*trace, fmt.Sprintf("%s: error: %v", tier.name, err))
			continue
		}
		*trace = append(*trace, fmt.Sprintf("%s: %d results", tier.name, len(groups)))

		titleOnly := tier.name == "search:title_only"
		for i := range groups {
			rg := groups[i]
			conf, ts, as := m.score(ct, ca, &rg)
			if ts < minTitleSim {
				continue
			}
			if titleOnly {
				if as < titleOnlyMinArtistSim || conf < titleOnlyMinConfidence {
					continue
				}
			} else if as < minArtistSim {
				continue
			}
			top1, top2 = pushTop2(top1, top2, &hit{
				rg: rg, confidence: conf, tier: tier.name, titleSim: ts, artistSim: as,
			})
		}

		if top1 != nil {
			*trace = append(*trace, fmt.Sprintf("%s: best %q / %q conf=%.3f (title=%.3f artist=%.3f)",
				tier.name, top1.rg.Title, top1.rg.ArtistCredit, top1.confidence, top1.titleSim, top1.artistSim))
			if top1.confidence >= earlyStopConfidence {
				*trace = append(*trace, fmt.Sprintf("search: early stop at conf=%.3f", top1.confidence))
				break
			}
		}
	}

	if top1 == nil {
		*trace = append(*trace, "search: no acceptable results")
		return nil, *trace, nil
	}
	if top1.confidence < m.cfg.MinConfidence {
		*trace = append(*trace, fmt.Sprintf("search: rejected, conf=%.3f below minimum %.2f",
			top1.confidence, m.cfg.MinConfidence))
		return nil, *trace, nil
	}
	if top2 != nil && top1.confidence-top2.confidence < m.cfg.AmbiguityGap {
		*trace = append(*trace, fmt.Sprintf("search: ambiguous, %q conf=%.3f vs %q conf=%.3f (gap < %.2f)",
			top1.rg.Title, top1.confidence, top2.rg.Title, top2.confidence, m.cfg.AmbiguityGap))
		return nil, *trace, nil
	}

	return fromReleaseGroup(&top1.rg, top1.confidence, top1.tier), *trace, nil
}

// score combines title and artist similarity with type adjustments.
func (m *Matcher) score(title, artist string, rg *provider.ReleaseGroup) (conf, titleSim, artistSim float64) {
	titleSim = similarity(title, cleanTitle(rg.Title))
	artistSim = similarity(artist, cleanArtist(rg.ArtistCredit))
	conf = titleWeight*titleSim + artistWeight*artistSim

	switch rg.PrimaryType {
	case "Album":
		conf += albumBonus
	case "EP", "Single":
		conf -= epSinglePenalty
	}
	for _, st := range rg.SecondaryTypes {
		switch st {
		case "Compilation":
			conf -= compilationPenalty
		case "Live":
			conf -= livePenalty
		case "Remix":
			conf -= remixPenalty
		}
	}

	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return conf, titleSim, artistSim
}

// pushTop2 maintains the best two hits across tiers, deduplicated by release
// group: a repeat of the same group only replaces its existing entry when it
// scores higher.
func pushTop2(top1, top2, h *hit) (*hit, *hit) {
	if top1 != nil && h.rg.ID == top1.rg.ID {
		if h.confidence > top1.confidence {
			top1 = h
		}
		return top1, top2
	}
	if top2 != nil && h.rg.ID == top2.rg.ID {
		if h.confidence > top2.confidence {
			top2 = h
		}
		if top2.confidence > top1.confidence {
			top1, top2 = top2, top1
		}
		return top1, top2
	}

	switch {
	case top1 == nil:
		top1 = h
	case h.confidence > top1.confidence:
		top1, top2 = h, top1
	case top2 == nil || h.confidence > top2.confidence:
		top2 = h
	}
	return top1, top2
}

func fromReleaseGroup(rg *provider.ReleaseGroup, confidence float64, source string) *Normalized {
	return &Normalized{
		ReleaseGroupID:   rg.ID,
		Title:            rg.Title,
		Artist:           rg.ArtistCredit,
		ArtistIDs:        append([]string(nil), rg.ArtistIDs...),
		PrimaryType:      rg.PrimaryType,
		SecondaryTypes:   append([]string(nil), rg.SecondaryTypes...),
		FirstReleaseDate: rg.FirstReleaseDate,
		Confidence:       confidence,
		Source:           source,
	}
}
