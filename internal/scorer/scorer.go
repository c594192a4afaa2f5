// Package scorer ranks normalized candidates for slot sampling. The score
// rewards multi-source agreement and chart prominence, carries a deliberate
// long-tail bonus for deep-catalog entries, and adds a small seed-derived
// jitter so different runs break ties differently while a fixed seed always
// reproduces the same ordering.
package scorer

import (
	"fmt"
	"hash/fnv"

	"github.com/sydlexius/daily3albums/internal/candidate"
	"github.com/sydlexius/daily3albums/internal/matcher"
)

const (
	diversityPerSource = 6.0

	prominenceCutoff  = 18
	prominencePerRank = 0.8

	longTailStart   = 60
	longTailPerRank = 0.12
	longTailCap     = 22.0

	deepcutCutoff  = 25
	deepcutPerRank = 0.9

	matchBonus = 6.0
	albumBonus = 2.5
	dateBonus  = 1.0

	jitterSpan = 0.6 // jitter lands in [-0.3, +0.3)
)

// Scored pairs a candidate with its resolution result, score, and the
// diagnostic trace accumulated through matching and scoring.
type Scored struct {
	Candidate  candidate.Candidate
	Normalized *matcher.Normalized
	Score      float64
	Trace      []string
}

// Score computes the candidate's desirability. In deepcut mode, chart
// prominence becomes a liability instead of an asset.
func Score(c *candidate.Candidate, n *matcher.Normalized, deepcut bool, seed string) float64 {
	s := diversityBonus(c) + rankScore(c, deepcut) + qualityBonus(n)
	return s + Jitter(seed, c.Key())
}

func diversityBonus(c *candidate.Candidate) float64 {
	extra := len(c.Sources) - 1
	if extra < 0 {
		extra = 0
	}
	return diversityPerSource * float64(extra)
}

func rankScore(c *candidate.Candidate, deepcut bool) float64 {
	var s float64
	for _, r := range c.SourceRanks {
		if r < 1 {
			continue
		}
		if r < prominenceCutoff {
			s += float64(prominenceCutoff-r) * prominencePerRank
		}
		if r > longTailStart {
			tail := float64(r-longTailStart) * longTailPerRank
			if tail > longTailCap {
				tail = longTailCap
			}
			s += tail
		}
		if deepcut && r <= deepcutCutoff {
			s -= float64(deepcutCutoff+1-r) * deepcutPerRank
		}
	}
	return s
}

func qualityBonus(n *matcher.Normalized) float64 {
	if n == nil {
		return 0
	}
	s := matchBonus
	if n.PrimaryType == "Album" {
		s += albumBonus
	}
	if n.FirstReleaseDate != "" {
		s += dateBonus
	}
	return s
}

// Jitter derives a deterministic offset in [-0.3, +0.3) from the run seed and
// the candidate's identity key via FNV-1a.
func Jitter(seed, identityKey string) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s", seed, identityKey)
	return float64(h.Sum64()%600)/1000 - jitterSpan/2
}
