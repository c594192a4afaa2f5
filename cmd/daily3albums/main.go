package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sydlexius/daily3albums/internal/artifact"
	"github.com/sydlexius/daily3albums/internal/broker"
	"github.com/sydlexius/daily3albums/internal/config"
	"github.com/sydlexius/daily3albums/internal/history"
	"github.com/sydlexius/daily3albums/internal/logging"
	"github.com/sydlexius/daily3albums/internal/pipeline"
	"github.com/sydlexius/daily3albums/internal/provider"
	"github.com/sydlexius/daily3albums/internal/provider/deezer"
	"github.com/sydlexius/daily3albums/internal/provider/lastfm"
	"github.com/sydlexius/daily3albums/internal/provider/musicbrainz"
	"github.com/sydlexius/daily3albums/internal/version"
)

func main() {
	cmd := "build"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "build":
		err = runBuild(args)
	case "dry-run":
		err = runDryRun(args)
	case "probe-lastfm":
		err = runProbeLastFM(args)
	case "probe-mb":
		err = runProbeMB(args)
	case "doctor":
		err = runDoctor(args)
	case "version":
		fmt.Printf("daily3albums %s (%s)\n", version.Version, version.Commit)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`usage: daily3albums <command> [flags]

commands:
  build         assemble and publish today's issue (default)
  dry-run       assemble without writing artifacts, print inspection JSON
  probe-lastfm  fetch one Last.fm tag chart and print the records
  probe-mb      run one MusicBrainz search and print the release groups
  doctor        check configuration, credentials, and output directories
  version       print version information

flags common to build and dry-run:
  -config PATH  config file (default $D3A_CONFIG_PATH or config.yaml)
  -date DATE    date key YYYY-MM-DD (default today in configured timezone)
  -seed SEED    randomness seed (default the date key)
`)
}

// env is the shared wiring behind every subcommand.
type env struct {
	cfg    *config.Config
	logMgr *logging.Manager
	logger *slog.Logger
	cache  *broker.Cache
	broker *broker.Broker
}

func (e *env) close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Error("closing cache", "error", err)
		}
	}
	e.logMgr.Close() //nolint:errcheck
}

func setup(configPath string) (*env, error) {
	if configPath == "" {
		configPath = os.Getenv("D3A_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logMgr, logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	cache, err := broker.OpenCache(filepath.Join(cfg.DataDir, "http_cache.db"))
	if err != nil {
		logger.Warn("cache unavailable, continuing without", "error", err)
		cache = nil
	}

	return &env{
		cfg:    cfg,
		logMgr: logMgr,
		logger: logger,
		cache:  cache,
		broker: broker.New(cache, brokerPolicies(cfg), logger),
	}, nil
}

// brokerPolicies converts the config's per-host sections into broker
// policies, falling back to defaults for unparseable durations.
func brokerPolicies(cfg *config.Config) map[string]broker.HostPolicy {
	out := make(map[string]broker.HostPolicy, len(cfg.Hosts))
	for host, hp := range cfg.Hosts {
		pol := broker.DefaultHostPolicy()
		if hp.RateLimitRPS > 0 {
			pol.RateLimitRPS = hp.RateLimitRPS
		}
		if d, err := time.ParseDuration(hp.TTL); err == nil && d > 0 {
			pol.TTL = d
		}
		if d, err := time.ParseDuration(hp.NegativeTTL); err == nil && d > 0 {
			pol.NegativeTTL = d
		}
		if hp.Retry.MaxAttempts > 0 {
			pol.MaxAttempts = hp.Retry.MaxAttempts
		}
		if hp.Retry.BaseDelayMS > 0 {
			pol.BaseDelay = time.Duration(hp.Retry.BaseDelayMS) * time.Millisecond
		}
		if hp.Retry.MaxDelayMS > 0 {
			pol.MaxDelay = time.Duration(hp.Retry.MaxDelayMS) * time.Millisecond
		}
		out[host] = pol
	}
	return out
}

func (e *env) chartSources() []provider.ChartSource {
	return []provider.ChartSource{
		lastfm.New(e.broker, e.cfg.LastFMAPIKey, e.logger),
		deezer.New(e.broker, e.logger),
	}
}

func (e *env) newPipeline() *pipeline.Pipeline {
	catalog := musicbrainz.New(e.broker, e.cfg.MBUserAgent, e.logger)
	writer := artifact.NewWriter(e.cfg.OutputDir, e.logger)
	return pipeline.New(e.chartSources(), catalog, writer, e.cfg, e.logger)
}

// resolveDate parses -date or defaults to today in the configured timezone.
func resolveDate(cfg *config.Config, dateFlag string) (time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if dateFlag == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	d, err := time.ParseInLocation(history.DateLayout, dateFlag, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", dateFlag, err)
	}
	return d, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	dateFlag := fs.String("date", "", "date key YYYY-MM-DD")
	seed := fs.String("seed", "", "randomness seed")
	fs.Parse(args) //nolint:errcheck

	e, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer e.close()

	date, err := resolveDate(e.cfg, *dateFlag)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	iss, err := e.newPipeline().Run(ctx, date, *seed)
	if err != nil {
		return err
	}

	fmt.Printf("published %s (run %s, theme %q)\n", iss.Date, iss.RunID, iss.ThemeOfDay)
	logBrokerStats(e)
	return nil
}

func runDryRun(args []string) error {
	fs := flag.NewFlagSet("dry-run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	dateFlag := fs.String("date", "", "date key YYYY-MM-DD")
	seed := fs.String("seed", "", "randomness seed")
	trace := fs.Bool("trace", false, "include per-candidate match traces")
	fs.Parse(args) //nolint:errcheck

	e, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer e.close()

	date, err := resolveDate(e.cfg, *dateFlag)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := e.newPipeline().DryRun(ctx, date, *seed)
	if err != nil {
		return err
	}
	if !*trace {
		for i := range res.Scored {
			res.Scored[i].Trace = nil
		}
		for i := range res.Top {
			res.Top[i].Trace = nil
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runProbeLastFM(args []string) error {
	fs := flag.NewFlagSet("probe-lastfm", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	tag := fs.String("tag", "shoegaze", "tag to fetch")
	limit := fs.Int("limit", 10, "number of records")
	fs.Parse(args) //nolint:errcheck

	e, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signalContext()
	defer stop()

	src := lastfm.New(e.broker, e.cfg.LastFMAPIKey, e.logger)
	records, err := src.TopAlbums(ctx, *tag, *limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		mbid := r.MBIDHint
		if mbid == "" {
			mbid = "-"
		}
		fmt.Printf("%3d  %-40s  %-30s  %s\n", r.Rank, truncate(r.Title, 40), truncate(r.Artist, 30), mbid)
	}
	return nil
}

func runProbeMB(args []string) error {
	fs := flag.NewFlagSet("probe-mb", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	query := fs.String("query", "", "release-group search query (Lucene syntax)")
	artist := fs.String("artist", "", "artist name (builds a query with -title)")
	title := fs.String("title", "", "album title (builds a query with -artist)")
	limit := fs.Int("limit", 10, "number of results")
	fs.Parse(args) //nolint:errcheck

	if *query == "" && *title != "" {
		q := fmt.Sprintf("releasegroup:%q", *title)
		if *artist != "" {
			q += fmt.Sprintf(" AND artist:%q", *artist)
		}
		*query = q
	}
	if *query == "" {
		return fmt.Errorf("probe-mb requires -query, or -title with optional -artist")
	}

	e, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signalContext()
	defer stop()

	catalog := musicbrainz.New(e.broker, e.cfg.MBUserAgent, e.logger)
	groups, err := catalog.SearchReleaseGroups(ctx, *query, *limit)
	if err != nil {
		return err
	}
	for _, rg := range groups {
		fmt.Printf("%s  %-12s %-40s  %s  (%s)\n",
			rg.ID, rg.PrimaryType, truncate(rg.Title, 40), truncate(rg.ArtistCredit, 30), rg.FirstReleaseDate)
	}
	return nil
}

// runDoctor checks the pieces a build needs before burning API quota on one.
func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args) //nolint:errcheck

	e, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer e.close()

	ok := true
	check := func(name string, pass bool, detail string) {
		status := "ok"
		if !pass {
			status = "FAIL"
			ok = false
		}
		fmt.Printf("%-28s %-4s %s\n", name, status, detail)
	}

	check("config", true, fmt.Sprintf("%d tags, min_confidence=%.2f", len(e.cfg.Tags), e.cfg.Match.MinConfidence))
	check("lastfm api key", e.cfg.LastFMAPIKey != "", "set D3A_LASTFM_API_KEY")
	uaDetail := e.cfg.MBUserAgent
	if uaDetail == "" {
		uaDetail = "using project default (set D3A_MB_USER_AGENT to override)"
	}
	check("mb user agent", true, uaDetail)
	check("http cache", e.cache != nil, filepath.Join(e.cfg.DataDir, "http_cache.db"))

	_, tzErr := time.LoadLocation(e.cfg.Timezone)
	check("timezone", tzErr == nil, e.cfg.Timezone)

	outErr := os.MkdirAll(filepath.Join(e.cfg.OutputDir, "archive"), 0o755)
	check("output dir writable", outErr == nil, e.cfg.OutputDir)

	if !ok {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Println("all checks passed")
	return nil
}

func logBrokerStats(e *env) {
	for adapter, c := range e.broker.Stats() {
		e.logger.Info("broker stats",
			slog.String("adapter", adapter),
			slog.Int("requests", c.Requests),
			slog.Int("cache_hits", c.CacheHits),
			slog.Int("retries", c.Retries),
			slog.Int("failures", c.Failures))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
