package scorer

import (
	"math"
	"testing"

	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/matcher"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreDeterministic(t *testing.T) {
	c := &candidate.Candidate{
		Title: "Loveless", Artist: "My Bloody Valentine",
		Sources:     []string{"lastfm", "deezer"},
		SourceRanks: map[string]int{"lastfm": 2, "deezer": 70},
	}
	n := &matcher.Normalized{PrimaryType: "Album", FirstReleaseDate: "1991-11-04"}

	a := Score(c, n, false, "seed-1")
	b := Score(c, n, false, "seed-1")
	if a != b {
		t.Errorf("same seed must reproduce: %v vs %v", a, b)
	}
}

func TestScoreComponents(t *testing.T) {
	c := &candidate.Candidate{
		Title: "X", Artist: "Y",
		Sources:     []string{"lastfm"},
		SourceRanks: map[string]int{"lastfm": 2},
	}
	n := &matcher.Normalized{PrimaryType: "Album", FirstReleaseDate: "1991"}

	got := Score(c, n, false, "s") - Jitter("s", c.Key())
	// rank 2: (18-2)*0.8 = 12.8; quality: 6 + 2.5 + 1 = 9.5; no diversity.
	if want := 12.8 + 9.5; !almostEqual(got, want) {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestScoreDiversityBonus(t *testing.T) {
	one := &candidate.Candidate{Title: "X", Artist: "Y", Sources: []string{"lastfm"}}
	two := &candidate.Candidate{Title: "X", Artist: "Y", Sources: []string{"lastfm", "deezer"}}

	d := (Score(two, nil, false, "s") - Jitter("s", two.Key())) -
		(Score(one, nil, false, "s") - Jitter("s", one.Key()))
	if !almostEqual(d, 6) {
		t.Errorf("second source worth %v, want 6", d)
	}
}

func TestScoreLongTail(t *testing.T) {
	c := &candidate.Candidate{
		Title: "X", Artist: "Y",
		Sources:     []string{"lastfm"},
		SourceRanks: map[string]int{"lastfm": 100},
	}
	got := Score(c, nil, false, "s") - Jitter("s", c.Key())
	// rank 100: no prominence, tail (100-60)*0.12 = 4.8.
	if !almostEqual(got, 4.8) {
		t.Errorf("score = %v, want 4.8", got)
	}

	c.SourceRanks["lastfm"] = 500
	got = Score(c, nil, false, "s") - Jitter("s", c.Key())
	// tail (500-60)*0.12 = 52.8, capped at 22.
	if !almostEqual(got, 22) {
		t.Errorf("capped tail = %v, want 22", got)
	}
}

func TestScoreDeepcutPenalizesProminence(t *testing.T) {
	c := &candidate.Candidate{
		Title: "X", Artist: "Y",
		Sources:     []string{"lastfm"},
		SourceRanks: map[string]int{"lastfm": 1},
	}
	normal := Score(c, nil, false, "s")
	deep := Score(c, nil, true, "s")
	// rank 1 deepcut penalty: (26-1)*0.9 = 22.5.
	if !almostEqual(normal-deep, 22.5) {
		t.Errorf("deepcut penalty = %v, want 22.5", normal-deep)
	}

	c.SourceRanks["lastfm"] = 80
	normal = Score(c, nil, false, "s")
	deep = Score(c, nil, true, "s")
	if normal != deep {
		t.Errorf("deep ranks must not be penalized: %v vs %v", normal, deep)
	}
}

func TestJitterRangeAndVariation(t *testing.T) {
	seen := map[float64]bool{}
	keys := []string{"a|x", "b|y", "c|z", "d|w", "e|v"}
	for _, k := range keys {
		j := Jitter("seed", k)
		if j < -0.3 || j >= 0.3 {
			t.Errorf("Jitter(%q) = %v out of [-0.3, 0.3)", k, j)
		}
		seen[j] = true
	}
	if len(seen) < 2 {
		t.Error("jitter shows no variation across keys")
	}
	if Jitter("s1", "k") == Jitter("s2", "k") && Jitter("s1", "k2") == Jitter("s2", "k2") {
		t.Error("different seeds produce identical jitter for multiple keys")
	}
}
