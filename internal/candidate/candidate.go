// Package candidate models a proposed album before catalog resolution and
// merges proposals describing the same album across sources.
package candidate

import (
	"strings"
	"unicode"

	"github.com/sydlexius/daily3albums/internal/provider"
)

// Candidate is an album proposal from one or more chart sources. Identity is
// the normalized (artist, title) pair; everything else is provenance.
type Candidate struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ImageURL string `json:"image_url,omitempty"`
	// SourceRanks maps source name to the 1-based rank the source gave
	// this album.
	SourceRanks map[string]int `json:"source_ranks"`
	// Sources lists contributing source names in first-seen order.
	Sources []string `json:"sources"`
	// MBIDHint may name a release group or a release; the matcher
	// normalizes it.
	MBIDHint string `json:"mbid_hint,omitempty"`
	// ReleaseGroupHint is a release-group id from a secondary source.
	ReleaseGroupHint string `json:"release_group_hint,omitempty"`
}

// FromRecord builds a Candidate from one adapter record.
func FromRecord(source provider.SourceName, r provider.SourceRecord) Candidate {
	c := Candidate{
		Title:            strings.TrimSpace(r.Title),
		Artist:           strings.TrimSpace(r.Artist),
		ImageURL:         r.ImageURL,
		SourceRanks:      map[string]int{},
		Sources:          []string{string(source)},
		MBIDHint:         r.MBIDHint,
		ReleaseGroupHint: r.ReleaseGroupHint,
	}
	if r.Rank > 0 {
		c.SourceRanks[string(source)] = r.Rank
	}
	return c
}

// Key returns the candidate's identity key.
func (c *Candidate) Key() string {
	return IdentityKey(c.Artist, c.Title)
}

// HasSource reports whether the named source contributed to this candidate.
func (c *Candidate) HasSource(name string) bool {
	for _, s := range c.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// IdentityKey derives the identity key for an (artist, title) pair:
// case-folded, punctuation-stripped, whitespace-collapsed.
func IdentityKey(artist, title string) string {
	return NormalizeText(artist) + "|" + NormalizeText(title)
}

// NormalizeText lowercases s, drops everything that is not a letter, digit,
// or space, and collapses runs of whitespace to single spaces.
func NormalizeText(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
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

// Merge deduplicates candidates by identity key. The first occurrence of a
// key establishes the record; later occurrences union their rank entries and
// source names into it and backfill optional fields that are still empty.
// Output order is first-occurrence order. Input is not mutated.
func Merge(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	index := make(map[string]int, len(in))

	for _, c := range in {
		key := c.Key()
		i, seen := index[key]
		if !seen {
			merged := c
			merged.SourceRanks = make(map[string]int, len(c.SourceRanks))
			for k, v := range c.SourceRanks {
				merged.SourceRanks[k] = v
			}
			merged.Sources = append([]string(nil), c.Sources...)
			index[key] = len(out)
			out = append(out, merged)
			continue
		}

		m := &out[i]
		for k, v := range c.SourceRanks {
			if _, ok := m.SourceRanks[k]; !ok {
				m.SourceRanks[k] = v
			}
		}
		for _, s := range c.Sources {
			if !m.HasSource(s) {
				m.Sources = append(m.Sources, s)
			}
		}
		if m.ImageURL == "" {
			m.ImageURL = c.ImageURL
		}
		if m.MBIDHint == "" {
			m.MBIDHint = c.MBIDHint
		}
		if m.ReleaseGroupHint == "" {
			m.ReleaseGroupHint = c.ReleaseGroupHint
		}
	}

	return out
}
