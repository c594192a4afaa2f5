package issue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sydlexius/daily3albums/internal/history"
)

// Violation is one failed invariant.
type Violation struct {
	Code   string
	Detail string
}

func (v Violation) String() string { return v.Code + ": " + v.Detail }

// Limits are the numeric thresholds validation enforces. DecadeStartYear of
// zero means no decade theme is in effect.
type Limits struct {
	ArtistCooldownDays int
	StyleCooldownDays  int
	DecadeStartYear    int
	MinInDecade        int
	MaxUnknownYear     int
}

// Validate checks an assembled issue against the day's invariants: shape,
// per-day album and artist uniqueness, history cooldowns, and decade-theme
// coverage. It is a pure function over its inputs.
func Validate(iss *Issue, hist *history.Index, lim Limits) []Violation {
	var out []Violation

	picks := iss.Picks()
	if len(iss.Slots) != SlotCount || len(picks) != SlotCount*PicksPerSlot {
		out = append(out, Violation{"shape", fmt.Sprintf(
			"expected %d slots x %d picks, got %d slots with %d picks",
			SlotCount, PicksPerSlot, len(iss.Slots), len(picks))})
	}

	date, err := time.Parse(history.DateLayout, iss.Date)
	if err != nil {
		out = append(out, Violation{"date", fmt.Sprintf("unparseable date %q", iss.Date)})
		return out
	}

	albums := map[string]string{}
	artists := map[string]string{}
	for _, p := range picks {
		who := p.Artist + " - " + p.Title
		if prev, dup := albums[p.AlbumKey]; dup {
			out = append(out, Violation{"album_repeat", fmt.Sprintf("%s repeats album of %s", who, prev)})
		}
		albums[p.AlbumKey] = who

		for _, ak := range p.ArtistKeys {
			if prev, dup := artists[ak]; dup {
				out = append(out, Violation{"artist_repeat", fmt.Sprintf("%s repeats artist of %s", who, prev)})
			}
			artists[ak] = who
		}

		if hist.ArtistWithin(p.ArtistKeys, date, lim.ArtistCooldownDays) {
			out = append(out, Violation{"artist_cooldown", fmt.Sprintf(
				"%s: artist seen within %d days", who, lim.ArtistCooldownDays)})
		}
	}

	for _, s := range iss.Slots {
		if s.ThemeKey != "" && hist.StyleWithin(s.ThemeKey, date, lim.StyleCooldownDays) {
			out = append(out, Violation{"style_cooldown", fmt.Sprintf(
				"slot %d theme %q seen within %d days", s.Index, s.Theme, lim.StyleCooldownDays)})
		}
	}

	if lim.DecadeStartYear > 0 {
		inDecade, unknown := 0, 0
		for _, p := range picks {
			switch {
			case p.Year == 0:
				unknown++
			case p.Year >= lim.DecadeStartYear && p.Year < lim.DecadeStartYear+10:
				inDecade++
			}
		}
		if inDecade < lim.MinInDecade {
			out = append(out, Violation{"decade_coverage", fmt.Sprintf(
				"%d picks in %ds, need at least %d", inDecade, lim.DecadeStartYear, lim.MinInDecade)})
		}
		if unknown > lim.MaxUnknownYear {
			out = append(out, Violation{"unknown_years", fmt.Sprintf(
				"%d picks with unknown year, allow at most %d", unknown, lim.MaxUnknownYear)})
		}
	}

	return out
}

// ValidateRelaxed validates and, on decade-related violations, retries under
// fixed relaxation steps: first lowering the in-decade minimum one pick at a
// time, then raising the unknown-year allowance. Every step is logged. The
// returned limits are the ones the issue finally passed under; violations
// that survive all steps come back as-is.
func ValidateRelaxed(iss *Issue, hist *history.Index, lim Limits, logger *slog.Logger) ([]Violation, Limits) {
	violations := Validate(iss, hist, lim)
	if len(violations) == 0 || !onlyRelaxable(violations) {
		return violations, lim
	}

	for lim.MinInDecade > 0 || lim.MaxUnknownYear < SlotCount*PicksPerSlot {
		if lim.MinInDecade > 0 {
			lim.MinInDecade--
			logger.Warn("relaxing decade coverage", slog.Int("min_in_decade", lim.MinInDecade))
		} else {
			lim.MaxUnknownYear++
			logger.Warn("relaxing unknown-year allowance", slog.Int("max_unknown_year", lim.MaxUnknownYear))
		}

		violations = Validate(iss, hist, lim)
		if len(violations) == 0 {
			return nil, lim
		}
		if !onlyRelaxable(violations) {
			return violations, lim
		}
	}
	return violations, lim
}

// onlyRelaxable reports whether every violation is one relaxation can fix.
// Uniqueness and cooldown violations are never relaxed.
func onlyRelaxable(vs []Violation) bool {
	for _, v := range vs {
		if v.Code != "decade_coverage" && v.Code != "unknown_years" {
			return false
		}
	}
	return true
}
