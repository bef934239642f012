package models

import "strings"

// ContentItem is a catalog title as returned by the catalog API. Copies are
// reconciled by ID, never by value.
type ContentItem struct {
	ID            int64   `json:"id"`
	MediaType     string  `json:"media_type,omitempty"`
	OriginalName  string  `json:"original_name,omitempty"`
	OriginalTitle string  `json:"original_title,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	VoteCount     int     `json:"vote_count"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	VoteAverage   float64 `json:"vote_average"`
}

func (s ContentItem) DisplayTitle() string {
	if s.OriginalTitle != "" {
		return s.OriginalTitle
	}
	return s.OriginalName
}

// WatchlistEntry keeps the minimal display fields the watchlist view needs.
func (s ContentItem) WatchlistEntry() ContentItem {
	mt := s.MediaType
	if mt == "" {
		mt = "movie"
	}
	return ContentItem{
		ID:            s.ID,
		MediaType:     mt,
		OriginalName:  s.OriginalName,
		OriginalTitle: s.OriginalTitle,
		PosterPath:    s.PosterPath,
		Overview:      strings.TrimSpace(s.Overview),
	}
}

func IndexOfItem(items []ContentItem, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
