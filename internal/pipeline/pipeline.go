// Package pipeline runs one day end to end: gather charts, merge, resolve,
// score, assemble slots, validate against history, and publish artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/daily3albums/internal/artifact"
	"github.com/sydlexius/daily3albums/internal/assembler"
	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/config"
	"github.com/sydlexius/daily3albums/internal/history"
	"github.com/sydlexius/daily3albums/internal/issue"
	"github.com/sydlexius/daily3albums/internal/matcher"
	"github.com/sydlexius/daily3albums/internal/provider"
	"github.com/sydlexius/daily3albums/internal/scorer"
)

// Pipeline wires the run. Charts propose, the catalog resolves, the writer
// publishes.
type Pipeline struct {
	charts  []provider.ChartSource
	matcher *matcher.Matcher
	writer  *artifact.Writer
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(charts []provider.ChartSource, catalog provider.Catalog, writer *artifact.Writer, cfg *config.Config, logger *slog.Logger) *Pipeline {
	m := matcher.New(catalog, matcher.Config{
		MinConfidence: cfg.Match.MinConfidence,
		AmbiguityGap:  cfg.Match.AmbiguityGap,
		SearchLimit:   cfg.Match.SearchLimit,
		MaxQueries:    cfg.Match.MaxQueries,
	}, logger)

	return &Pipeline{
		charts:  charts,
		matcher: m,
		writer:  writer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "pipeline")),
	}
}

// Run builds, validates, and publishes the issue for date. An empty seed
// defaults to the date key, making unseeded runs reproducible per day.
func (p *Pipeline) Run(ctx context.Context, date time.Time, seed string) (*issue.Issue, error) {
	iss, hist, err := p.build(ctx, date, seed)
	if err != nil {
		return nil, err
	}

	violations, limits := issue.ValidateRelaxed(iss, hist, p.limits(), p.logger)
	if len(violations) > 0 {
		return nil, fmt.Errorf("issue failed validation: %s", joinViolations(violations))
	}
	iss.Params.MinInDecade = limits.MinInDecade
	iss.Params.MaxUnknownYear = limits.MaxUnknownYear

	if err := p.writer.WriteDaily(iss); err != nil {
		return nil, err
	}

	p.logger.Info("run complete",
		slog.String("date", iss.Date), slog.String("run_id", iss.RunID),
		slog.String("theme_of_day", iss.ThemeOfDay))
	return iss, nil
}

// DryRunResult is the inspection bundle a dry run returns: the merged
// candidate list and scored pool for the would-be theme of day, the top of
// that pool, and the fully assembled slots. Nothing is written.
type DryRunResult struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Scored     []scorer.Scored       `json:"scored"`
	Top        []scorer.Scored       `json:"top"`
	Slots      []issue.Slot          `json:"slots"`
	Violations []string              `json:"violations,omitempty"`
}

// DryRun assembles the day without publishing and returns the intermediate
// state for inspection.
func (p *Pipeline) DryRun(ctx context.Context, date time.Time, seed string) (*DryRunResult, error) {
	iss, hist, err := p.build(ctx, date, seed)
	if err != nil {
		return nil, err
	}

	f := p.newFetcher(iss.Seed)
	pool, err := f.FetchPool(ctx, iss.ThemeOfDay, p.cfg.Assembly.FetchLimits[0], false)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate.Candidate, 0, len(pool))
	for _, s := range pool {
		candidates = append(candidates, s.Candidate)
	}
	top := pool
	if len(top) > 10 {
		top = top[:10]
	}

	res := &DryRunResult{
		Candidates: candidates,
		Scored:     pool,
		Top:        top,
		Slots:      iss.Slots,
	}
	violations, _ := issue.ValidateRelaxed(iss, hist, p.limits(), p.logger)
	for _, v := range violations {
		res.Violations = append(res.Violations, v.String())
	}
	return res, nil
}

// build assembles the issue and the history index it was checked against.
func (p *Pipeline) build(ctx context.Context, date time.Time, seed string) (*issue.Issue, *history.Index, error) {
	dateKey := date.Format(history.DateLayout)
	if seed == "" {
		seed = dateKey
	}

	hist := history.Load(p.writer.ArchiveDir(), date, p.cfg.Cooldown.LookbackDays, p.logger)
	p.logger.Info("history indexed",
		slog.Int("albums", len(hist.AlbumKeys)),
		slog.Int("artists", len(hist.ArtistLastSeen)),
		slog.Int("lookback_days", p.cfg.Cooldown.LookbackDays))

	asm := assembler.New(p.newFetcher(seed), assembler.Config{
		Themes:             p.cfg.Tags,
		FetchLimits:        p.cfg.Assembly.FetchLimits,
		MaxTriesPerSlot:    p.cfg.Assembly.MaxTriesPerSlot,
		AllowedTypes:       p.cfg.Assembly.AllowedTypes,
		SampleAttempts:     p.cfg.Assembly.SampleAttempts,
		Temperatures:       p.cfg.Assembly.Temperatures,
		ArtistCooldownDays: p.cfg.Cooldown.ArtistDays,
		StyleCooldownDays:  p.cfg.Cooldown.ThemeDays,
	}, p.logger)

	slots, err := asm.Assemble(ctx, date, seed, hist)
	if err != nil {
		return nil, nil, fmt.Errorf("assembling %s: %w", dateKey, err)
	}

	iss := &issue.Issue{
		SchemaVersion: issue.SchemaVersion,
		Date:          dateKey,
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		Seed:          seed,
		ThemeOfDay:    slots[0].Theme,
		Slots:         slots,
		Params: issue.Params{
			MinConfidence:      p.cfg.Match.MinConfidence,
			AmbiguityGap:       p.cfg.Match.AmbiguityGap,
			ArtistCooldownDays: p.cfg.Cooldown.ArtistDays,
			StyleCooldownDays:  p.cfg.Cooldown.ThemeDays,
			LookbackDays:       p.cfg.Cooldown.LookbackDays,
		},
	}
	if p.cfg.Decade != nil {
		iss.Params.DecadeTheme = p.cfg.Decade.Theme
		iss.Params.MinInDecade = p.cfg.Decade.MinInDecade
		iss.Params.MaxUnknownYear = p.cfg.Decade.MaxUnknownYear
	}
	return iss, hist, nil
}

func (p *Pipeline) newFetcher(seed string) *fetcher {
	return newFetcher(p.charts, p.matcher, seed,
		p.cfg.Match.MaxCandidates,
		time.Duration(p.cfg.Match.TimeBudgetSeconds)*time.Second,
		p.logger)
}

func (p *Pipeline) limits() issue.Limits {
	lim := issue.Limits{
		ArtistCooldownDays: p.cfg.Cooldown.ArtistDays,
		StyleCooldownDays:  p.cfg.Cooldown.ThemeDays,
	}
	if p.cfg.Decade != nil {
		lim.DecadeStartYear = config.DecadeStartYear(p.cfg.Decade.Theme)
		lim.MinInDecade = p.cfg.Decade.MinInDecade
		lim.MaxUnknownYear = p.cfg.Decade.MaxUnknownYear
	}
	return lim
}

func joinViolations(vs []issue.Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}
