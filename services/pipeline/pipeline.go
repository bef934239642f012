package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/fanout"
	"github.com/webtor-io/recs/services/loop"
)

type State int

const (
	StateIdle State = iota
	StateFetchingRelated
	StateFetchingTrailers
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingRelated:
		return "fetching_related"
	case StateFetchingTrailers:
		return "fetching_trailers"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

type Recommender interface {
	Recommend(ctx context.Context, title string) ([]string, error)
}

type Joiner interface {
	Join(ctx context.Context, titles []string) *fanout.Result
}

// Presenter receives pipeline output. Every call is made on the loop.
type Presenter interface {
	Reset()
	ShowTrailers(batch *models.RecommendationBatch)
	Reveal()
}

type Status struct {
	State      State
	Generation uint64
	Outcome    models.Outcome
	Revealed   bool
}

// Pipeline turns a rated title into a batch of trailers. Runs are never
// cancelled, a newer Trigger only makes older results stale.
type Pipeline struct {
	rec       Recommender
	joiner    Joiner
	presenter Presenter
	loop      *loop.Loop
	gen       atomic.Uint64
	wg        sync.WaitGroup
	mux       sync.Mutex
	state     State
	outcome   models.Outcome
	revealed  bool
}

func New(rec Recommender, j Joiner, p Presenter, l *loop.Loop) *Pipeline {
	return &Pipeline{
		rec:       rec,
		joiner:    j,
		presenter: p,
		loop:      l,
	}
}

// Trigger starts a run for title and returns its generation.
func (s *Pipeline) Trigger(ctx context.Context, title string) uint64 {
	gen := s.gen.Add(1)
	s.setState(gen, StateFetchingRelated)
	s.loop.Post(func() {
		if s.gen.Load() == gen {
			s.presenter.Reset()
		}
	})
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, gen, title)
	}()
	return gen
}

func (s *Pipeline) run(ctx context.Context, gen uint64, title string) {
	start := time.Now()
	l := log.WithFields(log.Fields{
		"run_id":     uuid.NewString(),
		"generation": gen,
		"title":      title,
	})
	l.Debug("pipeline run started")
	batch := &models.RecommendationBatch{
		Generation: gen,
		Title:      title,
		Results:    []models.TrailerResult{},
		Outcome:    models.OutcomeEmpty,
	}

	titles, err := s.rec.Recommend(ctx, title)
	if err != nil {
		l.WithError(err).Warn("failed to get recommendations")
		s.settle(l, batch, start)
		return
	}
	if s.gen.Load() != gen {
		staleTotal.Inc()
		l.Debug("run superseded before fan-out")
		return
	}
	s.setState(gen, StateFetchingTrailers)

	res := s.joiner.Join(ctx, titles)
	batch.Results = res.Trailers
	batch.Outcome = res.Outcome
	l.WithFields(log.Fields{
		"issued":   res.Issued,
		"resolved": res.Resolved,
		"failed":   res.Failed,
	}).Debug("trailers joined")
	s.settle(l, batch, start)
}

func (s *Pipeline) settle(l *log.Entry, batch *models.RecommendationBatch, start time.Time) {
	s.loop.Post(func() {
		if s.gen.Load() != batch.Generation {
			staleTotal.Inc()
			l.Debug("discarding stale batch")
			return
		}
		s.mux.Lock()
		s.state = StateSettled
		s.outcome = batch.Outcome
		s.mux.Unlock()
		runsTotal.WithLabelValues(string(batch.Outcome)).Inc()
		runDuration.Observe(time.Since(start).Seconds())
		l.WithFields(log.Fields{
			"outcome": batch.Outcome,
			"count":   len(batch.Results),
		}).Info("pipeline settled")
		s.presenter.ShowTrailers(batch)
		if batch.Outcome == models.OutcomePopulated {
			s.reveal()
		}
	})
}

func (s *Pipeline) setState(gen uint64, st State) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.gen.Load() != gen {
		return
	}
	s.state = st
	s.outcome = ""
}

// Discard makes every started run stale and clears the presenter. Used when
// the view goes away.
func (s *Pipeline) Discard() {
	s.gen.Add(1)
	s.loop.Post(s.presenter.Reset)
}

// Reveal shows the recommendation section. Only the first call reaches the
// presenter.
func (s *Pipeline) Reveal() {
	s.loop.Post(s.reveal)
}

func (s *Pipeline) reveal() {
	s.mux.Lock()
	if s.revealed {
		s.mux.Unlock()
		return
	}
	s.revealed = true
	s.mux.Unlock()
	s.presenter.Reveal()
}

func (s *Pipeline) Status() Status {
	s.mux.Lock()
	defer s.mux.Unlock()
	return Status{
		State:      s.state,
		Generation: s.gen.Load(),
		Outcome:    s.outcome,
		Revealed:   s.revealed,
	}
}

// Wait blocks until every started run has finished its remote work.
func (s *Pipeline) Wait() {
	s.wg.Wait()
}
