package models

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

type UserMovieEvent struct {
	tableName struct{}  `pg:"user_movie_event"`
	EventID   uuid.UUID `pg:"event_id,pk,type:uuid,default:uuid_generate_v4()"`
	UserID    string    `pg:"user_id,notnull"`
	MovieID   int64     `pg:"movie_id,notnull"`
	EventType EventType `pg:"event_type,notnull"`
	Rating    *int16    `pg:"rating"`
	CreatedAt time.Time `pg:"created_at,notnull,default:now()"`
}

func NewUserMovieEvent(e *RatingEvent) *UserMovieEvent {
	ume := &UserMovieEvent{
		UserID:    e.UserID,
		MovieID:   e.ItemID,
		EventType: e.EventType,
	}
	if e.Rating != nil {
		r := int16(*e.Rating)
		ume.Rating = &r
	}
	return ume
}

func (s *UserMovieEvent) ToRatingEvent() RatingEvent {
	e := RatingEvent{
		Handle:    s.EventID.String(),
		UserID:    s.UserID,
		ItemID:    s.MovieID,
		EventType: s.EventType,
		CreatedAt: s.CreatedAt,
	}
	if s.Rating != nil {
		r := int(*s.Rating)
		e.Rating = &r
	}
	return e
}

// CreateUserMovieEvent inserts the event and fills the server assigned id and timestamp
func CreateUserMovieEvent(ctx context.Context, db pg.DBI, e *UserMovieEvent) error {
	_, err := db.Model(e).
		Context(ctx).
		Returning("event_id, created_at").
		Insert()
	if err != nil {
		return errors.Wrap(err, "failed to create user movie event")
	}
	return nil
}

func DeleteUserMovieEvent(ctx context.Context, db pg.DBI, id uuid.UUID) error {
	_, err := db.Model((*UserMovieEvent)(nil)).
		Context(ctx).
		Where("event_id = ?", id).
		Delete()
	if err != nil {
		return errors.Wrap(err, "failed to delete user movie event")
	}
	return nil
}

func GetUserMovieEvents(ctx context.Context, db pg.DBI, userID string, movieID int64, eventType EventType) ([]*UserMovieEvent, error) {
	var events []*UserMovieEvent
	q := db.Model(&events).
		Context(ctx).
		Where("user_id = ?", userID).
		Where("movie_id = ?", movieID)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	err := q.Order("created_at ASC").Select()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user movie events")
	}
	return events, nil
}
