package preview

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/loop"
	"github.com/webtor-io/recs/services/pipeline"
	"github.com/webtor-io/recs/services/state"
)

type Snapshot struct {
	Item        models.ContentItem     `json:"item"`
	InWatchlist bool                   `json:"in_watchlist"`
	Rated       bool                   `json:"rated"`
	Revealed    bool                   `json:"revealed"`
	State       string                 `json:"state"`
	Outcome     models.Outcome         `json:"outcome,omitempty"`
	Generation  uint64                 `json:"generation"`
	Trailers    []models.TrailerResult `json:"trailers"`
}

// Session is the detail view of one item: its watchlist and rating toggles
// and the recommendation section fed by its own pipeline.
type Session struct {
	item     models.ContentItem
	store    *state.Store
	pipeline *pipeline.Pipeline
	view     *View
	loop     *loop.Loop
	loadMux  sync.Mutex
	loaded   bool
}

func NewSession(item models.ContentItem, st *state.Store, rec pipeline.Recommender, j pipeline.Joiner, l *loop.Loop) *Session {
	v := &View{}
	return &Session{
		item:     item,
		store:    st,
		pipeline: pipeline.New(rec, j, v, l),
		view:     v,
		loop:     l,
	}
}

func (s *Session) Item() models.ContentItem {
	return s.item
}

// Open loads the rating history of the item. An item rated before shows
// its recommendation section right away and gets a fresh run. The history
// is loaded once; after a failure the next call tries again.
func (s *Session) Open(ctx context.Context) error {
	s.loadMux.Lock()
	defer s.loadMux.Unlock()
	if s.loaded {
		return nil
	}
	rated, err := s.store.LoadRatingState(ctx, s.item)
	if err != nil {
		return errors.Wrapf(err, "failed to open title %v", s.item.ID)
	}
	s.loaded = true
	if rated {
		s.pipeline.Reveal()
		s.pipeline.Trigger(ctx, s.item.DisplayTitle())
	}
	return nil
}

// ToggleRating needs the rating history, otherwise an old rating would be
// added twice instead of undone.
func (s *Session) ToggleRating(ctx context.Context) (state.RatingChange, error) {
	if err := s.Open(ctx); err != nil {
		return 0, err
	}
	return s.store.ToggleRating(ctx, s.item, func(item models.ContentItem) {
		s.pipeline.Trigger(ctx, item.DisplayTitle())
	})
}

func (s *Session) ToggleWatchlist(ctx context.Context) (bool, error) {
	return s.store.ToggleWatchlist(ctx, s.item)
}

func (s *Session) Snapshot(ctx context.Context) *Snapshot {
	st := s.pipeline.Status()
	return &Snapshot{
		Item:        s.item,
		InWatchlist: s.store.InWatchlist(ctx, s.item.ID),
		Rated:       s.store.IsRated(s.item.ID),
		Revealed:    s.view.Revealed(),
		State:       st.State.String(),
		Outcome:     st.Outcome,
		Generation:  st.Generation,
		Trailers:    s.view.Trailers(),
	}
}

// Wait blocks until pending remote writes and pipeline runs of the session
// have settled and reached the view.
func (s *Session) Wait(ctx context.Context) error {
	s.store.Flush()
	if err := s.loop.Sync(ctx); err != nil {
		return err
	}
	s.pipeline.Wait()
	return s.loop.Sync(ctx)
}

// Close drops the recommendation batch, late results of running pipelines
// are discarded.
func (s *Session) Close() {
	s.pipeline.Discard()
}
