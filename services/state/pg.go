package state

import (
	"context"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	cs "github.com/webtor-io/common-services"

	"github.com/webtor-io/recs/models"
)

// PGLog stores events in the user_movie_event table.
type PGLog struct {
	pg *cs.PG
}

func NewPGLog(pg *cs.PG) (*PGLog, error) {
	if pg == nil || pg.Get() == nil {
		return nil, errors.New("postgres is not configured")
	}
	return &PGLog{
		pg: pg,
	}, nil
}

func (s *PGLog) Create(ctx context.Context, e *models.RatingEvent) (string, error) {
	ume := models.NewUserMovieEvent(e)
	if err := models.CreateUserMovieEvent(ctx, s.pg.Get(), ume); err != nil {
		return "", err
	}
	return ume.EventID.String(), nil
}

func (s *PGLog) Delete(ctx context.Context, handle string) error {
	id, err := uuid.FromString(handle)
	if err != nil {
		return errors.Wrapf(err, "invalid event handle %v", handle)
	}
	return models.DeleteUserMovieEvent(ctx, s.pg.Get(), id)
}

func (s *PGLog) Find(ctx context.Context, f Filter) ([]models.RatingEvent, error) {
	umes, err := models.GetUserMovieEvents(ctx, s.pg.Get(), f.UserID, f.ItemID, f.EventType)
	if err != nil {
		return nil, err
	}
	res := make([]models.RatingEvent, 0, len(umes))
	for _, ume := range umes {
		res = append(res, ume.ToRatingEvent())
	}
	return res, nil
}

// Close is a no-op, the connection is owned by the caller.
func (s *PGLog) Close() {}
