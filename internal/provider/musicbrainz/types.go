package musicbrainz

import "strings"

// searchResponse is the release-group search envelope.
type searchResponse struct {
	ReleaseGroups []mbReleaseGroup `json:"release-groups"`
}

// mbReleaseGroup is a release group as returned by both the search and the
// lookup endpoints. Search results sometimes carry only the credit phrase.
type mbReleaseGroup struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	PrimaryType        string           `json:"primary-type"`
	SecondaryTypes     []string         `json:"secondary-types"`
	FirstReleaseDate   string           `json:"first-release-date"`
	ArtistCredit       []mbArtistCredit `json:"artist-credit"`
	ArtistCreditPhrase string           `json:"artist-credit-phrase"`
}

type mbArtistCredit struct {
	Name       string   `json:"name"`
	JoinPhrase string   `json:"joinphrase"`
	Artist     mbArtist `json:"artist"`
}

type mbArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// creditString renders the artist credit as a single display string.
func (rg *mbReleaseGroup) creditString() string {
	if rg.ArtistCreditPhrase != "" {
		return rg.ArtistCreditPhrase
	}
	var sb strings.Builder
	pendingJoin := ""
	for _, ac := range rg.ArtistCredit {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		if name == "" {
			continue
		}
		if sb.Len() > 0 {
			if pendingJoin == "" {
				pendingJoin = " / "
			}
			sb.WriteString(pendingJoin)
		}
		sb.WriteString(name)
		pendingJoin = ac.JoinPhrase
	}
	return strings.TrimSpace(sb.String())
}

// artistIDs collects the distinct artist MBIDs from the credit.
func (rg *mbReleaseGroup) artistIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, ac := range rg.ArtistCredit {
		id := strings.TrimSpace(ac.Artist.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// mbRelease is a release lookup result with its release-group back-reference.
type mbRelease struct {
	ID           string `json:"id"`
	ReleaseGroup struct {
		ID string `json:"id"`
	} `json:"release-group"`
}
