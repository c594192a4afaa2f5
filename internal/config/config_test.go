package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Match.MinConfidence != 0.80 || cfg.Match.AmbiguityGap != 0.06 {
		t.Errorf("match defaults = %+v", cfg.Match)
	}
	if cfg.Cooldown.ArtistDays != 7 || cfg.Cooldown.ThemeDays != 3 || cfg.Cooldown.LookbackDays != 14 {
		t.Errorf("cooldown defaults = %+v", cfg.Cooldown)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Tags) == 0 {
		t.Error("defaults not applied")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: Europe/Berlin
tags: [jazz, ambient, krautrock]
match:
  min_confidence: 0.85
cooldown:
  artist_days: 5
  theme_days: 2
  lookback_days: 10
decade:
  theme: 1990s
  min_in_decade: 4
  max_unknown_year: 1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[0] != "jazz" {
		t.Errorf("tags = %v", cfg.Tags)
	}
	if cfg.Match.MinConfidence != 0.85 {
		t.Errorf("min_confidence = %v", cfg.Match.MinConfidence)
	}
	if cfg.Decade == nil || cfg.Decade.Theme != "1990s" || cfg.Decade.MinInDecade != 4 {
		t.Errorf("decade = %+v", cfg.Decade)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("D3A_TZ", "America/New_York")
	t.Setenv("D3A_MIN_CONFIDENCE", "0.9")
	t.Setenv("D3A_LASTFM_API_KEY", " key-123 ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Match.MinConfidence != 0.9 {
		t.Errorf("min_confidence = %v", cfg.Match.MinConfidence)
	}
	if cfg.LastFMAPIKey != "key-123" {
		t.Errorf("api key = %q, want trimmed", cfg.LastFMAPIKey)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty tags", func(c *Config) { c.Tags = nil }, "tag pool"},
		{"bad confidence", func(c *Config) { c.Match.MinConfidence = 1.5 }, "min_confidence"},
		{"bad temperatures", func(c *Config) { c.Assembly.Temperatures = []float64{1} }, "temperatures"},
		{"short lookback", func(c *Config) { c.Cooldown.LookbackDays = 2 }, "lookback"},
		{"bad decade", func(c *Config) { c.Decade = &DecadeConfig{Theme: "nineties"} }, "decade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDecadeStartYear(t *testing.T) {
	if got := DecadeStartYear("1990s"); got != 1990 {
		t.Errorf("got %d", got)
	}
	if got := DecadeStartYear("nineties"); got != 0 {
		t.Errorf("invalid theme = %d, want 0", got)
	}
}
