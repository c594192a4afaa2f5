package matcher

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	trailingBracketRE = regexp.MustCompile(`\s*[\(\[\{][^\)\]\}]*[\)\]\}]\s*$`)
	editionWordsRE    = regexp.MustCompile(`(?i)\b(remaster(ed)?|deluxe|expanded|edition|anniversary|reissue|bonus)\b`)
	featSplitRE       = regexp.MustCompile(`(?i)\s+(feat\.|featuring|ft\.)\s+`)
	spaceRunRE        = regexp.MustCompile(`\s+`)
)

// normText case-folds s and reduces it to letters, digits, kana, and CJK
// runes separated by single spaces. Apostrophes vanish entirely so "Don't"
// and "Dont" compare equal.
func normText(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// drop
		case r >= 0x200b && r <= 0x200f:
			// zero-width characters, drop
		case keepRune(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		default:
			space = true
		}
	}
	return sb.String()
}

// keepRune keeps basic latin alphanumerics, extended latin, kana, and CJK.
func keepRune(r rune) bool {
	if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
		return true
	}
	if r >= 0x00c0 && r <= 0x024f {
		return unicode.IsLetter(r)
	}
	if r >= 0x3040 && r <= 0x30ff {
		return true
	}
	if r >= 0x4e00 && r <= 0x9fff {
		return true
	}
	return false
}

// cleanTitle strips a trailing parenthetical/bracketed annotation and common
// edition words (remaster, deluxe, ...) so "OK Computer (Remastered 2017)"
// searches as "OK Computer".
func cleanTitle(title string) string {
	t := strings.TrimSpace(title)
	t = trailingBracketRE.ReplaceAllString(t, "")
	t = editionWordsRE.ReplaceAllString(t, "")
	return strings.TrimSpace(spaceRunRE.ReplaceAllString(t, " "))
}

// cleanArtist strips a "feat./ft./featuring" suffix from an artist credit.
func cleanArtist(artist string) string {
	a := strings.TrimSpace(artist)
	if loc := featSplitRE.FindStringIndex(a); loc != nil {
		a = a[:loc[0]]
	}
	return strings.TrimSpace(spaceRunRE.ReplaceAllString(a, " "))
}

// similarity computes a character-level longest-common-subsequence ratio in
// [0, 1] over the normalized forms of a and b.
func similarity(a, b string) float64 {
	na := []rune(normText(a))
	nb := []rune(normText(b))
	if len(na) == 0 || len(nb) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(na, nb)) / float64(len(na)+len(nb))
}

// lcsLength is the classic two-row LCS dynamic program.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return prev[len(b)]
}
