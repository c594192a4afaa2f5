package deezer

// searchResponse is the album search envelope.
type searchResponse struct {
	Data  []album `json:"data"`
	Total int     `json:"total"`
}

type album struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	RecordType string      `json:"record_type"`
	CoverXL    string      `json:"cover_xl"`
	CoverBig   string      `json:"cover_big"`
	Artist     albumArtist `json:"artist"`
}

type albumArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// apiError is Deezer's in-band error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}
