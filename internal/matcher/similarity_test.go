package matcher

import (
	"math"
	"testing"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OK Computer (Remastered 2017)", "OK Computer"},
		{"Loveless [Expanded Edition]", "Loveless"},
		{"Blue Lines 2012 Remaster", "Blue Lines 2012"},
		{"Deluxe", ""},
		{"Plain Title", "Plain Title"},
	}
	for _, tt := range tests {
		if got := cleanTitle(tt.in); got != tt.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanArtist(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Massive Attack feat. Horace Andy", "Massive Attack"},
		{"Artist ft. Someone", "Artist"},
		{"Artist featuring A & B", "Artist"},
		{"Plain Artist", "Plain Artist"},
	}
	for _, tt := range tests {
		if got := cleanArtist(tt.in); got != tt.want {
			t.Errorf("cleanArtist(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormTextDropsApostrophes(t *testing.T) {
	if normText("Don't Stop") != normText("Dont Stop") {
		t.Error("apostrophe variants must normalize equal")
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("Disintegration", "Disintegration"); got != 1 {
		t.Errorf("identical strings = %v, want 1", got)
	}
	if got := similarity("abc", "xyz"); got != 0 {
		t.Errorf("disjoint strings = %v, want 0", got)
	}
	if got := similarity("anything", ""); got != 0 {
		t.Errorf("empty operand = %v, want 0", got)
	}
	// LCS of "abcdefghij" and "abcde" is 5: ratio 2*5/15.
	got := similarity("abcdefghij", "abcde")
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("prefix similarity = %v, want %v", got, 2.0/3.0)
	}
	if similarity("The Cure", "the cure!") != 1 {
		t.Error("case and punctuation must not matter")
	}
}
