// Package issue defines the published day record and validates it against
// the global anti-repetition invariants.
package issue

// SchemaVersion is bumped whenever the artifact shape changes incompatibly.
const SchemaVersion = 3

// SlotCount and PicksPerSlot fix the day's shape: three themed slots of
// three albums each.
const (
	SlotCount    = 3
	PicksPerSlot = 3
)

// Pick is one published album.
type Pick struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ImageURL string `json:"image_url,omitempty"`

	ReleaseGroupMBID string   `json:"rg_mbid,omitempty"`
	AlbumKey         string   `json:"album_key"`
	ArtistKeys       []string `json:"artist_keys"`
	StyleKey         string   `json:"style_key"`

	Year        int     `json:"year,omitempty"`
	PrimaryType string  `json:"primary_type,omitempty"`
	Confidence  float64 `json:"confidence"`
	MatchSource string  `json:"match_source,omitempty"`

	Sources []string `json:"sources"`
	Score   float64  `json:"score"`
}

// Slot is one themed window of the day.
type Slot struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Theme    string `json:"theme"`
	ThemeKey string `json:"theme_key"`
	Picks    []Pick `json:"picks"`
}

// Params records the constraint settings the day was built under, so an
// archived issue explains itself.
type Params struct {
	MinConfidence      float64 `json:"min_confidence"`
	AmbiguityGap       float64 `json:"ambiguity_gap"`
	ArtistCooldownDays int     `json:"artist_cooldown_days"`
	StyleCooldownDays  int     `json:"style_cooldown_days"`
	LookbackDays       int     `json:"lookback_days"`
	DecadeTheme        string  `json:"decade_theme,omitempty"`
	MinInDecade        int     `json:"min_in_decade,omitempty"`
	MaxUnknownYear     int     `json:"max_unknown_year,omitempty"`
}

// Issue is the full published day.
type Issue struct {
	SchemaVersion int      `json:"output_schema_version"`
	Date          string   `json:"date"`
	RunID         string   `json:"run_id"`
	GeneratedAt   string   `json:"generated_at"`
	Seed          string   `json:"seed"`
	ThemeOfDay    string   `json:"theme_of_day"`
	Slots         []Slot   `json:"slots"`
	Params        Params   `json:"params"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
}

// Picks flattens the day's picks in slot order.
func (i *Issue) Picks() []Pick {
	out := make([]Pick, 0, SlotCount*PicksPerSlot)
	for _, s := range i.Slots {
		out = append(out, s.Picks...)
	}
	return out
}
