package query

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = RegisterRecommenderFlags(f)
	f = RegisterYoutubeFlags(f)
	return f
}

type recommender interface {
	Recommend(ctx context.Context, title string) ([]string, error)
}

type trailerFinder interface {
	FindTrailer(ctx context.Context, title string) (string, error)
}

// Gateway is the stateless front of the two remote query capabilities.
// Every call is live: no cache and no retry.
type Gateway struct {
	rec recommender
	yt  trailerFinder
}

func New(c *cli.Context, cl *http.Client) (*Gateway, error) {
	rec, err := NewRecommender(c, cl)
	if err != nil {
		return nil, err
	}
	yt := NewYoutube(c, cl)
	if yt == nil {
		return nil, errors.New("youtube api key is not set")
	}
	return NewGateway(rec, yt), nil
}

func NewGateway(rec recommender, yt trailerFinder) *Gateway {
	return &Gateway{
		rec: rec,
		yt:  yt,
	}
}

func (s *Gateway) Recommend(ctx context.Context, title string) ([]string, error) {
	start := time.Now()
	titles, err := s.rec.Recommend(ctx, title)
	s.observe(opRecommend, title, start, err)
	return titles, err
}

func (s *Gateway) FindTrailer(ctx context.Context, title string) (string, error) {
	start := time.Now()
	id, err := s.yt.FindTrailer(ctx, title)
	s.observe(opFindTrailer, title, start, err)
	return id, err
}

func (s *Gateway) observe(op string, title string, start time.Time, err error) {
	d := time.Since(start)
	requestDuration.WithLabelValues(op).Observe(d.Seconds())
	requestsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	l := log.WithFields(log.Fields{
		"op":       op,
		"title":    title,
		"duration": d,
	})
	if err != nil {
		l.WithError(err).Debug("gateway call failed")
		return
	}
	l.Debug("gateway call succeeded")
}
