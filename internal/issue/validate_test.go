package issue

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sydlexius/daily3albums/internal/history"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// validIssue builds a 3x3 issue with distinct albums and artists, all from
// the 1990s.
func validIssue() *Issue {
	iss := &Issue{Date: "2026-08-26"}
	n := 0
	for s := 0; s < SlotCount; s++ {
		slot := Slot{Index: s, Theme: fmt.Sprintf("theme-%d", s), ThemeKey: fmt.Sprintf("theme-%d", s)}
		for p := 0; p < PicksPerSlot; p++ {
			n++
			slot.Picks = append(slot.Picks, Pick{
				Position:   p + 1,
				Title:      fmt.Sprintf("Album %d", n),
				Artist:     fmt.Sprintf("Artist %d", n),
				AlbumKey:   fmt.Sprintf("album-%d", n),
				ArtistKeys: []string{fmt.Sprintf("artist-%d", n)},
				Year:       1990 + n,
			})
		}
		iss.Slots = append(iss.Slots, slot)
	}
	return iss
}

func baseLimits() Limits {
	return Limits{ArtistCooldownDays: 7, StyleCooldownDays: 3}
}

func TestValidateCleanIssue(t *testing.T) {
	vs := Validate(validIssue(), history.NewIndex(), baseLimits())
	if len(vs) != 0 {
		t.Errorf("unexpected violations: %v", vs)
	}
}

func TestValidateAlbumRepeat(t *testing.T) {
	iss := validIssue()
	iss.Slots[2].Picks[2].AlbumKey = iss.Slots[0].Picks[0].AlbumKey

	vs := Validate(iss, history.NewIndex(), baseLimits())
	if !hasCode(vs, "album_repeat") {
		t.Errorf("missing album_repeat, got %v", vs)
	}
}

func TestValidateArtistRepeat(t *testing.T) {
	iss := validIssue()
	iss.Slots[1].Picks[0].ArtistKeys = iss.Slots[0].Picks[1].ArtistKeys

	vs := Validate(iss, history.NewIndex(), baseLimits())
	if !hasCode(vs, "artist_repeat") {
		t.Errorf("missing artist_repeat, got %v", vs)
	}
}

func TestValidateArtistCooldown(t *testing.T) {
	iss := validIssue()
	hist := history.NewIndex()
	hist.ArtistLastSeen["artist-1"] = mustDay("2026-08-23") // 3 days before

	vs := Validate(iss, hist, baseLimits())
	if !hasCode(vs, "artist_cooldown") {
		t.Errorf("missing artist_cooldown, got %v", vs)
	}

	// 10 days before is outside a 7-day window.
	hist.ArtistLastSeen["artist-1"] = mustDay("2026-08-16")
	vs = Validate(iss, hist, baseLimits())
	if hasCode(vs, "artist_cooldown") {
		t.Errorf("stale sighting must not violate: %v", vs)
	}
}

func TestValidateStyleCooldown(t *testing.T) {
	iss := validIssue()
	hist := history.NewIndex()
	hist.StyleLastSeen["theme-1"] = mustDay("2026-08-25")

	vs := Validate(iss, hist, baseLimits())
	if !hasCode(vs, "style_cooldown") {
		t.Errorf("missing style_cooldown, got %v", vs)
	}
}

func TestValidateDecadeCoverage(t *testing.T) {
	iss := validIssue() // years 1991..1999
	lim := baseLimits()
	lim.DecadeStartYear = 1990
	lim.MinInDecade = 3
	lim.MaxUnknownYear = 2

	if vs := Validate(iss, history.NewIndex(), lim); len(vs) != 0 {
		t.Fatalf("all-1990s issue must pass: %v", vs)
	}

	lim.DecadeStartYear = 1970
	vs := Validate(iss, history.NewIndex(), lim)
	if !hasCode(vs, "decade_coverage") {
		t.Errorf("missing decade_coverage, got %v", vs)
	}

	iss.Slots[0].Picks[0].Year = 0
	iss.Slots[0].Picks[1].Year = 0
	iss.Slots[0].Picks[2].Year = 0
	lim.DecadeStartYear = 1990
	lim.MaxUnknownYear = 2
	vs = Validate(iss, history.NewIndex(), lim)
	if !hasCode(vs, "unknown_years") {
		t.Errorf("missing unknown_years, got %v", vs)
	}
}

func TestValidateRelaxedLowersDecadeFloor(t *testing.T) {
	iss := validIssue() // nothing from the 1970s
	lim := baseLimits()
	lim.DecadeStartYear = 1970
	lim.MinInDecade = 2

	vs, relaxed := ValidateRelaxed(iss, history.NewIndex(), lim, testLogger())
	if len(vs) != 0 {
		t.Fatalf("relaxation should absorb decade shortfall: %v", vs)
	}
	if relaxed.MinInDecade != 0 {
		t.Errorf("MinInDecade relaxed to %d, want 0", relaxed.MinInDecade)
	}
}

func TestValidateRelaxedNeverRelaxesUniqueness(t *testing.T) {
	iss := validIssue()
	iss.Slots[2].Picks[2].AlbumKey = iss.Slots[0].Picks[0].AlbumKey

	vs, _ := ValidateRelaxed(iss, history.NewIndex(), baseLimits(), testLogger())
	if !hasCode(vs, "album_repeat") {
		t.Errorf("uniqueness violation must survive relaxation: %v", vs)
	}
}

func hasCode(vs []Violation, code string) bool {
	for _, v := range vs {
		if v.Code == code {
			return true
		}
	}
	return false
}

func mustDay(s string) time.Time {
	d, err := time.Parse(history.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
