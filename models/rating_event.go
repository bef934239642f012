package models

import "time"

type EventType string

const (
	EventTypeRatingAdd       EventType = "rating_add"
	EventTypeRatingRemove    EventType = "rating_remove"
	EventTypeWatchlistAdd    EventType = "watchlist_add"
	EventTypeWatchlistRemove EventType = "watchlist_remove"
)

func (t EventType) String() string {
	return string(t)
}

func (t EventType) Valid() bool {
	switch t {
	case EventTypeRatingAdd, EventTypeRatingRemove, EventTypeWatchlistAdd, EventTypeWatchlistRemove:
		return true
	}
	return false
}

// RatingEvent is one record of the remote append-only event log. Handle is
// assigned by the remote store on creation and is the only way to delete
// the record later.
type RatingEvent struct {
	Handle    string    `json:"handle"`
	UserID    string    `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	EventType EventType `json:"event_type"`
	Rating    *int      `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
