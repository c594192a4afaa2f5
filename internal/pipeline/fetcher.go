package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/matcher"
	"github.com/sydlexius/daily3albums/internal/provider"
	"github.com/sydlexius/daily3albums/internal/scorer"
)

// matchResult caches one candidate's resolution so repeated themes across
// slots do not redo catalog work.
type matchResult struct {
	normalized *matcher.Normalized
	trace      []string
}

// fetcher adapts the chart sources, merger, matcher, and scorer into the
// pool interface the assembler consumes. One fetcher lives for one run and
// carries the run's matcher budget.
type fetcher struct {
	charts  []provider.ChartSource
	matcher *matcher.Matcher
	logger  *slog.Logger

	seed          string
	maxCandidates int
	deadline      time.Time

	matched map[string]matchResult
}

func newFetcher(charts []provider.ChartSource, m *matcher.Matcher, seed string, maxCandidates int, timeBudget time.Duration, logger *slog.Logger) *fetcher {
	return &fetcher{
		charts:        charts,
		matcher:       m,
		logger:        logger.With(slog.String("component", "fetcher")),
		seed:          seed,
		maxCandidates: maxCandidates,
		deadline:      time.Now().Add(timeBudget),
		matched:       map[string]matchResult{},
	}
}

// FetchPool gathers records for a theme from every available chart source,
// merges them, resolves each candidate against the catalog under the run's
// budget, and returns the pool scored and sorted descending.
func (f *fetcher) FetchPool(ctx context.Context, theme string, limit int, deepcut bool) ([]scorer.Scored, error) {
	merged, err := f.gather(ctx, theme, limit)
	if err != nil {
		return nil, err
	}

	out := make([]scorer.Scored, 0, len(merged))
	budgetUsed := 0
	for i := range merged {
		c := &merged[i]

		res, err := f.resolve(ctx, c, &budgetUsed)
		if err != nil {
			return nil, err
		}

		s := scorer.Scored{
			Candidate:  *c,
			Normalized: res.normalized,
			Trace:      res.trace,
			Score:      scorer.Score(c, res.normalized, deepcut, f.seed),
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	f.logger.Debug("pool ready",
		slog.String("theme", theme), slog.Int("limit", limit),
		slog.Int("candidates", len(out)))
	return out, nil
}

// gather queries every chart source for the theme. Unconfigured and
// transiently unavailable sources are skipped; the pool fails only when no
// source produced anything and at least one failed.
func (f *fetcher) gather(ctx context.Context, theme string, limit int) ([]candidate.Candidate, error) {
	var all []candidate.Candidate
	var lastErr error
	failed := 0
	for _, src := range f.charts {
		records, err := src.TopAlbums(ctx, theme, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var auth *provider.ErrAuthRequired
			if provider.IsUnavailable(err) {
				f.logger.Warn("chart source unavailable",
					slog.String("source", string(src.Name())), slog.Any("error", err))
			} else if errors.As(err, &auth) {
				f.logger.Debug("chart source not configured",
					slog.String("source", string(src.Name())))
			} else {
				f.logger.Warn("chart source failed",
					slog.String("source", string(src.Name())), slog.Any("error", err))
			}
			failed++
			lastErr = err
			continue
		}
		for _, r := range records {
			all = append(all, candidate.FromRecord(src.Name(), r))
		}
	}

	if len(all) == 0 && failed > 0 {
		return nil, fmt.Errorf("no chart source produced candidates for %q: %w", theme, lastErr)
	}
	return candidate.Merge(all), nil
}

// resolve matches one candidate, consulting the run-level cache first and
// charging uncached work against the budget. Once either budget is spent,
// remaining candidates flow through unmatched.
func (f *fetcher) resolve(ctx context.Context, c *candidate.Candidate, budgetUsed *int) (matchResult, error) {
	key := c.Key()
	if res, ok := f.matched[key]; ok {
		return res, nil
	}

	if *budgetUsed >= f.maxCandidates {
		return matchResult{trace: []string{"match skipped: candidate budget spent"}}, nil
	}
	if time.Now().After(f.deadline) {
		return matchResult{trace: []string{"match skipped: time budget spent"}}, nil
	}
	*budgetUsed++

	n, trace, err := f.matcher.Resolve(ctx, c)
	if err != nil {
		return matchResult{}, err
	}

	res := matchResult{normalized: n, trace: trace}
	f.matched[key] = res
	return res, nil
}
