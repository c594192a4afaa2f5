package lastfm

// apiError is Last.fm's in-band error envelope. The API returns HTTP 200
// with this body for bad keys, unknown tags, and so on.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// topAlbumsResponse is the tag.getTopAlbums envelope. Depending on the API
// version the container is "topalbums" or "albums"; both are accepted.
type topAlbumsResponse struct {
	TopAlbums *albumContainer `json:"topalbums"`
	Albums    *albumContainer `json:"albums"`
}

func (r *topAlbumsResponse) container() *albumContainer {
	if r.TopAlbums != nil {
		return r.TopAlbums
	}
	return r.Albums
}

type albumContainer struct {
	Album []album `json:"album"`
}

type album struct {
	Name   string       `json:"name"`
	MBID   string       `json:"mbid"`
	URL    string       `json:"url"`
	Artist albumArtist  `json:"artist"`
	Image  []albumImage `json:"image"`
	Attr   albumAttr    `json:"@attr"`
}

type albumArtist struct {
	Name string `json:"name"`
	MBID string `json:"mbid"`
}

type albumImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type albumAttr struct {
	Rank string `json:"rank"`
}
