package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/webtor-io/recs/models"
)

const (
	watchlistKey    = "watchlist"
	watchlistIDsKey = "watchlistIDs"
)

const (
	opRatingCreate    = "rating_create"
	opRatingDelete    = "rating_delete"
	opWatchlistAppend = "watchlist_append"
)

type RatingChange int

const (
	// RatingRequested means a remote create was started, the item becomes
	// rated once it succeeds.
	RatingRequested RatingChange = iota + 1
	RatingRemoved
	// RatingBusy means a create for the item is still in flight.
	RatingBusy
)

func (c RatingChange) String() string {
	switch c {
	case RatingRequested:
		return "requested"
	case RatingRemoved:
		return "removed"
	case RatingBusy:
		return "busy"
	}
	return "unknown"
}

type ratingState struct {
	rated   bool
	handle  string
	pending bool
}

// Store reconciles the local tier with the remote event log for one user.
type Store struct {
	userID   string
	local    LocalStore
	log      EventLog
	notifier *Notifier
	be       BestEffort
	mux      sync.Mutex
	ratings  map[int64]*ratingState
}

func NewStore(userID string, local LocalStore, el EventLog, n *Notifier) *Store {
	return &Store{
		userID:   userID,
		local:    local,
		log:      el,
		notifier: n,
		ratings:  map[int64]*ratingState{},
	}
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) Notifier() *Notifier {
	return s.notifier
}

func (s *Store) EventLog() EventLog {
	return s.log
}

// LoadWatchlist never fails: a missing or corrupt blob is an empty list.
func (s *Store) LoadWatchlist(ctx context.Context) []models.ContentItem {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.loadWatchlist(ctx)
}

func (s *Store) loadWatchlist(ctx context.Context) []models.ContentItem {
	items := []models.ContentItem{}
	data, err := s.local.Get(ctx, watchlistKey)
	if errors.Is(err, ErrNotFound) {
		return items
	} else if err != nil {
		log.WithError(err).Warn("failed to read watchlist")
		return items
	}
	if err := json.Unmarshal(data, &items); err != nil {
		localDecodeFailuresTotal.Inc()
		log.WithError(err).Warn("failed to decode watchlist, treating as empty")
		return []models.ContentItem{}
	}
	return items
}

func (s *Store) InWatchlist(ctx context.Context, id int64) bool {
	return models.IndexOfItem(s.LoadWatchlist(ctx), id) != -1
}

// ToggleWatchlist commits the local blob on the loop first, then appends an
// audit event to the remote log. The local change stands whatever the
// remote outcome. Must not be called from the loop.
func (s *Store) ToggleWatchlist(ctx context.Context, item models.ContentItem) (bool, error) {
	added := false
	var serr error
	err := s.commit(ctx, func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		items := s.loadWatchlist(ctx)
		if i := models.IndexOfItem(items, item.ID); i != -1 {
			items = append(items[:i], items[i+1:]...)
		} else {
			items = append(items, item.WatchlistEntry())
			added = true
		}
		if serr = s.storeWatchlist(ctx, items); serr != nil {
			return
		}
		s.notifier.Broadcast(WatchlistChanged)
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to commit watchlist")
	}
	if serr != nil {
		return false, serr
	}

	et := models.EventTypeWatchlistRemove
	if added {
		et = models.EventTypeWatchlistAdd
	}
	e := &models.RatingEvent{
		UserID:    s.userID,
		ItemID:    item.ID,
		EventType: et,
	}
	s.be.Go(ctx, opWatchlistAppend, log.Fields{"item_id": item.ID, "event_type": et}, func(ctx context.Context) error {
		_, err := s.log.Create(ctx, e)
		return err
	})
	return added, nil
}

// commit runs fn on the loop and waits for it. On error fn has not run
// and nothing was changed.
func (s *Store) commit(ctx context.Context, fn func()) error {
	return s.notifier.loop.Do(ctx, fn)
}

func (s *Store) storeWatchlist(ctx context.Context, items []models.ContentItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "failed to encode watchlist")
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	idData, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "failed to encode watchlist ids")
	}
	if err := s.local.Set(ctx, watchlistKey, data); err != nil {
		return errors.Wrap(err, "failed to store watchlist")
	}
	if err := s.local.Set(ctx, watchlistIDsKey, idData); err != nil {
		return errors.Wrap(err, "failed to store watchlist ids")
	}
	return nil
}

func (s *Store) IsRated(id int64) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	st, ok := s.ratings[id]
	return ok && st.rated
}

// LoadRatingState reports whether the user has ever rated the item. The
// first matching remote record becomes the handle used for undo.
func (s *Store) LoadRatingState(ctx context.Context, item models.ContentItem) (bool, error) {
	events, err := s.log.Find(ctx, Filter{
		UserID:    s.userID,
		ItemID:    item.ID,
		EventType: models.EventTypeRatingAdd,
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to load rating state")
	}
	if len(events) == 0 {
		return s.IsRated(item.ID), nil
	}
	err = s.commit(ctx, func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		st := s.rating(item.ID)
		if !st.rated {
			st.rated = true
			st.handle = events[0].Handle
		}
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to commit rating state")
	}
	return true, nil
}

func (s *Store) rating(id int64) *ratingState {
	st, ok := s.ratings[id]
	if !ok {
		st = &ratingState{}
		s.ratings[id] = st
	}
	return st
}

// ToggleRating undoes a rating when the item is rated and adds one otherwise.
// Adding is asynchronous: the item becomes rated, observers are told and
// onRated runs on the loop only after the remote create succeeded. Must not
// be called from the loop.
func (s *Store) ToggleRating(ctx context.Context, item models.ContentItem, onRated func(item models.ContentItem)) (RatingChange, error) {
	var change RatingChange
	var handle string
	err := s.commit(ctx, func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		st := s.rating(item.ID)
		switch {
		case st.pending:
			change = RatingBusy
		case st.rated:
			handle = st.handle
			st.rated = false
			st.handle = ""
			change = RatingRemoved
			s.notifier.Broadcast(RatingChanged)
		default:
			st.pending = true
			change = RatingRequested
		}
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to commit rating")
	}

	switch change {
	case RatingRemoved:
		if handle == "" {
			log.WithField("item_id", item.ID).Warn("no rating handle recorded, skipping remote delete")
			break
		}
		s.be.Go(ctx, opRatingDelete, log.Fields{"item_id": item.ID, "handle": handle}, func(ctx context.Context) error {
			return s.log.Delete(ctx, handle)
		})
	case RatingRequested:
		s.createRating(ctx, item, onRated)
	}
	return change, nil
}

func (s *Store) createRating(ctx context.Context, item models.ContentItem, onRated func(item models.ContentItem)) {
	rating := 1
	e := &models.RatingEvent{
		UserID:    s.userID,
		ItemID:    item.ID,
		EventType: models.EventTypeRatingAdd,
		Rating:    &rating,
	}
	ctx = context.WithoutCancel(ctx)
	s.be.wg.Add(1)
	go func() {
		defer s.be.wg.Done()
		handle, err := s.log.Create(ctx, e)
		if err != nil {
			remoteWritesTotal.WithLabelValues(opRatingCreate, "failed").Inc()
			log.WithError(err).WithField("item_id", item.ID).Error("failed to record rating")
			sentry.CaptureException(err)
		} else {
			remoteWritesTotal.WithLabelValues(opRatingCreate, "ok").Inc()
		}
		cerr := s.commit(ctx, func() {
			s.mux.Lock()
			st := s.rating(item.ID)
			st.pending = false
			if err == nil {
				st.rated = true
				st.handle = handle
			}
			s.mux.Unlock()
			if err != nil {
				return
			}
			s.notifier.Broadcast(RatingChanged)
			if onRated != nil {
				onRated(item)
			}
		})
		if cerr != nil {
			log.WithError(cerr).WithField("item_id", item.ID).Warn("failed to commit rating")
		}
	}()
}

// Flush waits for every remote write started so far.
func (s *Store) Flush() {
	s.be.Wait()
}

func (s *Store) Close() {
	s.Flush()
	s.log.Close()
	if cl, ok := s.local.(interface{ Close() }); ok {
		cl.Close()
	}
}
