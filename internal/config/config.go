// Package config loads the daily3albums configuration from a YAML file with
// environment-variable overrides. Credentials come from the environment only
// and are never written to disk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/daily3albums/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Timezone  string                `yaml:"timezone"`
	DataDir   string                `yaml:"data_dir"`
	OutputDir string                `yaml:"output_dir"`
	Tags      []string              `yaml:"tags"`
	Match     MatchConfig           `yaml:"match"`
	Assembly  AssemblyConfig        `yaml:"assembly"`
	Cooldown  CooldownConfig        `yaml:"cooldown"`
	Decade    *DecadeConfig         `yaml:"decade,omitempty"`
	Hosts     map[string]HostPolicy `yaml:"hosts"`
	Logging   logging.Config        `yaml:"logging"`

	// Credentials, environment only.
	LastFMAPIKey string `yaml:"-"`
	MBUserAgent  string `yaml:"-"`
}

// MatchConfig tunes the catalog matcher.
type MatchConfig struct {
	MinConfidence     float64 `yaml:"min_confidence"`
	AmbiguityGap      float64 `yaml:"ambiguity_gap"`
	SearchLimit       int     `yaml:"search_limit"`
	MaxQueries        int     `yaml:"max_queries"`
	MaxCandidates     int     `yaml:"max_candidates"`
	TimeBudgetSeconds int     `yaml:"time_budget_seconds"`
}

// AssemblyConfig tunes the slot assembler.
type AssemblyConfig struct {
	FetchLimits     []int     `yaml:"fetch_limits"`
	MaxTriesPerSlot int       `yaml:"max_tries_per_slot"`
	AllowedTypes    []string  `yaml:"allowed_types"`
	SampleAttempts  int       `yaml:"sample_attempts"`
	Temperatures    []float64 `yaml:"temperatures"`
}

// CooldownConfig holds the anti-repetition windows, in days.
type CooldownConfig struct {
	ArtistDays   int `yaml:"artist_days"`
	ThemeDays    int `yaml:"theme_days"`
	LookbackDays int `yaml:"lookback_days"`
}

// DecadeConfig enables decade-coverage validation when a decade theme is set.
type DecadeConfig struct {
	Theme          string `yaml:"theme"` // e.g. "1990s"
	MinInDecade    int    `yaml:"min_in_decade"`
	MaxUnknownYear int    `yaml:"max_unknown_year"`
}

// HostPolicy tunes the request broker per external host.
type HostPolicy struct {
	RateLimitRPS float64     `yaml:"rate_limit_rps"`
	TTL          string      `yaml:"ttl"`          // e.g. "24h"
	NegativeTTL  string      `yaml:"negative_ttl"` // e.g. "1h"
	Retry        RetryPolicy `yaml:"retry"`
}

// RetryPolicy tunes broker retries per host.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Timezone:  "UTC",
		DataDir:   ".state",
		OutputDir: "public",
		Tags: []string{
			"shoegaze", "post-punk", "ambient", "jazz", "krautrock",
			"dream pop", "trip-hop", "folk", "soul", "electronic",
		},
		Match: MatchConfig{
			MinConfidence:     0.80,
			AmbiguityGap:      0.06,
			SearchLimit:       10,
			MaxQueries:        4,
			MaxCandidates:     80,
			TimeBudgetSeconds: 240,
		},
		Assembly: AssemblyConfig{
			FetchLimits:     []int{30, 60, 120},
			MaxTriesPerSlot: 6,
			AllowedTypes:    []string{"Album"},
			SampleAttempts:  200,
			Temperatures:    []float64{4, 6, 10},
		},
		Cooldown: CooldownConfig{
			ArtistDays:   7,
			ThemeDays:    3,
			LookbackDays: 14,
		},
		Hosts: map[string]HostPolicy{
			"ws.audioscrobbler.com": {
				RateLimitRPS: 5,
				TTL:          "24h",
				NegativeTTL:  "1h",
				Retry:        RetryPolicy{MaxAttempts: 3, BaseDelayMS: 400, MaxDelayMS: 6000},
			},
			"musicbrainz.org": {
				RateLimitRPS: 1,
				TTL:          "168h",
				NegativeTTL:  "1h",
				Retry:        RetryPolicy{MaxAttempts: 2, BaseDelayMS: 500, MaxDelayMS: 5000},
			},
			"api.deezer.com": {
				RateLimitRPS: 5,
				TTL:          "24h",
				NegativeTTL:  "1h",
				Retry:        RetryPolicy{MaxAttempts: 3, BaseDelayMS: 400, MaxDelayMS: 6000},
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("D3A_TZ"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("D3A_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("D3A_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("D3A_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Match.MinConfidence = f
		}
	}
	if v := os.Getenv("D3A_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("D3A_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	c.LastFMAPIKey = strings.TrimSpace(os.Getenv("D3A_LASTFM_API_KEY"))
	c.MBUserAgent = strings.TrimSpace(os.Getenv("D3A_MB_USER_AGENT"))
}

func (c *Config) validate() error {
	if len(c.Tags) == 0 {
		return fmt.Errorf("tag pool is empty")
	}
	if c.Match.MinConfidence < 0 || c.Match.MinConfidence > 1 {
		return fmt.Errorf("min_confidence out of range: %v", c.Match.MinConfidence)
	}
	if c.Match.AmbiguityGap < 0 || c.Match.AmbiguityGap > 1 {
		return fmt.Errorf("ambiguity_gap out of range: %v", c.Match.AmbiguityGap)
	}
	if len(c.Assembly.FetchLimits) == 0 {
		return fmt.Errorf("assembly.fetch_limits is empty")
	}
	if c.Assembly.MaxTriesPerSlot < 1 {
		return fmt.Errorf("assembly.max_tries_per_slot must be >= 1")
	}
	if len(c.Assembly.Temperatures) != 3 {
		return fmt.Errorf("assembly.temperatures must list exactly 3 values, got %d", len(c.Assembly.Temperatures))
	}
	for i, temp := range c.Assembly.Temperatures {
		if temp <= 0 {
			return fmt.Errorf("assembly.temperatures[%d] must be positive", i)
		}
	}
	if c.Cooldown.LookbackDays < c.Cooldown.ArtistDays || c.Cooldown.LookbackDays < c.Cooldown.ThemeDays {
		return fmt.Errorf("cooldown.lookback_days must cover the artist and theme windows")
	}
	if c.Decade != nil && !validDecadeTheme(c.Decade.Theme) {
		return fmt.Errorf("invalid decade theme: %q", c.Decade.Theme)
	}
	return nil
}

// validDecadeTheme accepts themes like "1970s" or "2000s".
func validDecadeTheme(s string) bool {
	if len(s) != 5 || !strings.HasSuffix(s, "0s") {
		return false
	}
	_, err := strconv.Atoi(s[:4])
	return err == nil
}

// DecadeStartYear returns the first year of a decade theme like "1990s".
// Returns 0 for an invalid theme.
func DecadeStartYear(theme string) int {
	if !validDecadeTheme(theme) {
		return 0
	}
	y, _ := strconv.Atoi(theme[:4])
	return y
}
