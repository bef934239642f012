package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/loop"
)

type failingLog struct {
	MemoryLog
	mux          sync.Mutex
	failCreate   bool
	failDelete   bool
	deleteCalls  []string
	createCalled chan struct{}
	release      chan struct{}
}

func (s *failingLog) Create(ctx context.Context, e *models.RatingEvent) (string, error) {
	if s.createCalled != nil {
		s.createCalled <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.failCreate {
		return "", errors.New("remote unavailable")
	}
	return s.MemoryLog.Create(ctx, e)
}

func (s *failingLog) Delete(ctx context.Context, handle string) error {
	s.mux.Lock()
	s.deleteCalls = append(s.deleteCalls, handle)
	s.mux.Unlock()
	if s.failDelete {
		return errors.New("remote unavailable")
	}
	return s.MemoryLog.Delete(ctx, handle)
}

func newTestLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New()
	go func() {
		_ = l.Serve()
	}()
	t.Cleanup(l.Close)
	return l
}

func waitLoop(t *testing.T, l *loop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Sync(ctx))
}

// blockLoop occupies l until the returned function is called.
func blockLoop(t *testing.T, l *loop.Loop) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	l.Post(func() {
		close(started)
		<-release
	})
	<-started
	var once sync.Once
	unblock := func() {
		once.Do(func() { close(release) })
	}
	t.Cleanup(unblock)
	return unblock
}

func toggleRating(t *testing.T, s *Store, item models.ContentItem, onRated func(models.ContentItem)) RatingChange {
	t.Helper()
	ch, err := s.ToggleRating(context.Background(), item, onRated)
	require.NoError(t, err)
	return ch
}

var inception = models.ContentItem{ID: 27205, OriginalTitle: "Inception", MediaType: "movie"}
var tenet = models.ContentItem{ID: 577922, OriginalTitle: "Tenet"}

func TestToggleWatchlist_AddThenRemove(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	local := NewMemoryStore()
	el := NewMemoryLog()
	s := NewStore("u1", local, el, NewNotifier(l))

	var events []Event
	s.Notifier().Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))

	added, err := s.ToggleWatchlist(ctx, inception)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, s.InWatchlist(ctx, inception.ID))

	added, err = s.ToggleWatchlist(ctx, inception)
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, s.InWatchlist(ctx, inception.ID))
	assert.Empty(t, s.LoadWatchlist(ctx))

	s.Flush()
	waitLoop(t, l)

	assert.Equal(t, []Event{WatchlistChanged, WatchlistChanged}, events)
	audit, err := el.Find(ctx, Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	require.Len(t, audit, 2)
	types := []models.EventType{audit[0].EventType, audit[1].EventType}
	assert.ElementsMatch(t, []models.EventType{models.EventTypeWatchlistAdd, models.EventTypeWatchlistRemove}, types)
}

func TestToggleWatchlist_MirrorsIDs(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	local := NewMemoryStore()
	s := NewStore("u1", local, NewMemoryLog(), NewNotifier(l))

	_, err := s.ToggleWatchlist(ctx, inception)
	require.NoError(t, err)
	_, err = s.ToggleWatchlist(ctx, tenet)
	require.NoError(t, err)
	s.Flush()

	raw, err := local.Get(ctx, watchlistIDsKey)
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, json.Unmarshal(raw, &ids))
	assert.Equal(t, []int64{inception.ID, tenet.ID}, ids)

	items := s.LoadWatchlist(ctx)
	require.Len(t, items, 2)
	assert.Equal(t, "movie", items[1].MediaType)
}

func TestLoadWatchlist_CorruptBlobIsEmpty(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	local := NewMemoryStore()
	require.NoError(t, local.Set(ctx, watchlistKey, []byte("{not json")))
	s := NewStore("u1", local, NewMemoryLog(), NewNotifier(l))

	assert.Empty(t, s.LoadWatchlist(ctx))
	assert.False(t, s.InWatchlist(ctx, inception.ID))

	added, err := s.ToggleWatchlist(ctx, inception)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, s.LoadWatchlist(ctx), 1)
	s.Flush()
}

func TestToggleWatchlist_RemoteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	el := &failingLog{failCreate: true}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	added, err := s.ToggleWatchlist(ctx, inception)
	require.NoError(t, err)
	assert.True(t, added)
	s.Flush()

	assert.True(t, s.InWatchlist(ctx, inception.ID))
}

func TestToggleRating_AddThenUndo(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	el := &failingLog{}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	var events []Event
	s.Notifier().Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))
	var triggered []string
	onRated := func(item models.ContentItem) {
		triggered = append(triggered, item.DisplayTitle())
	}

	assert.Equal(t, RatingRequested, toggleRating(t, s, inception, onRated))
	s.Flush()
	waitLoop(t, l)
	assert.True(t, s.IsRated(inception.ID))
	assert.Equal(t, []string{"Inception"}, triggered)

	assert.Equal(t, RatingRemoved, toggleRating(t, s, inception, onRated))
	s.Flush()
	waitLoop(t, l)
	assert.False(t, s.IsRated(inception.ID))
	assert.Len(t, el.deleteCalls, 1)
	assert.Equal(t, []Event{RatingChanged, RatingChanged}, events)
	assert.Equal(t, []string{"Inception"}, triggered)

	left, err := el.Find(ctx, Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestToggleRating_CreateFailureStaysUnrated(t *testing.T) {
	l := newTestLoop(t)
	el := &failingLog{failCreate: true}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	var events []Event
	s.Notifier().Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))
	called := false

	toggleRating(t, s, inception, func(models.ContentItem) { called = true })
	s.Flush()
	waitLoop(t, l)

	assert.False(t, s.IsRated(inception.ID))
	assert.False(t, called)
	assert.Empty(t, events)
}

func TestToggleRating_CancelledWaitChangesNothing(t *testing.T) {
	l := newTestLoop(t)
	el := NewMemoryLog()
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))
	unblock := blockLoop(t, l)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.ToggleRating(ctx, inception, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unblock()
	waitLoop(t, l)
	s.Flush()
	assert.False(t, s.IsRated(inception.ID))

	assert.Equal(t, RatingRequested, toggleRating(t, s, inception, nil))
	s.Flush()
	waitLoop(t, l)
	assert.True(t, s.IsRated(inception.ID))
	events, err := el.Find(context.Background(), Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestToggleWatchlist_CancelledWaitChangesNothing(t *testing.T) {
	l := newTestLoop(t)
	el := NewMemoryLog()
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))
	var events []Event
	s.Notifier().Subscribe(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))
	unblock := blockLoop(t, l)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.ToggleWatchlist(ctx, inception)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unblock()
	waitLoop(t, l)
	s.Flush()
	bg := context.Background()
	assert.False(t, s.InWatchlist(bg, inception.ID))
	assert.Empty(t, events)
	audit, err := el.Find(bg, Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	assert.Empty(t, audit)

	added, err := s.ToggleWatchlist(bg, inception)
	require.NoError(t, err)
	assert.True(t, added)
	s.Flush()
	audit, err = el.Find(bg, Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

func TestToggleRating_UndoWithoutHandle(t *testing.T) {
	l := newTestLoop(t)
	el := &failingLog{}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	// Rated locally without a known remote record.
	s.mux.Lock()
	s.rating(inception.ID).rated = true
	s.mux.Unlock()

	assert.Equal(t, RatingRemoved, toggleRating(t, s, inception, nil))
	s.Flush()

	assert.False(t, s.IsRated(inception.ID))
	assert.Empty(t, el.deleteCalls)
}

func TestToggleRating_UndoDeleteFailureStillUnsets(t *testing.T) {
	l := newTestLoop(t)
	el := &failingLog{failDelete: true}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	toggleRating(t, s, inception, nil)
	s.Flush()
	require.True(t, s.IsRated(inception.ID))

	toggleRating(t, s, inception, nil)
	s.Flush()
	assert.False(t, s.IsRated(inception.ID))
	assert.Len(t, el.deleteCalls, 1)
}

func TestToggleRating_SecondTapWhilePending(t *testing.T) {
	l := newTestLoop(t)
	el := &failingLog{
		createCalled: make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	assert.Equal(t, RatingRequested, toggleRating(t, s, inception, nil))
	<-el.createCalled
	assert.Equal(t, RatingBusy, toggleRating(t, s, inception, nil))
	close(el.release)
	s.Flush()

	assert.True(t, s.IsRated(inception.ID))
}

func TestLoadRatingState(t *testing.T) {
	ctx := context.Background()
	l := newTestLoop(t)
	el := NewMemoryLog()
	rating := 1
	handle, err := el.Create(ctx, &models.RatingEvent{UserID: "u1", ItemID: inception.ID, EventType: models.EventTypeRatingAdd, Rating: &rating})
	require.NoError(t, err)
	_, err = el.Create(ctx, &models.RatingEvent{UserID: "u2", ItemID: tenet.ID, EventType: models.EventTypeRatingAdd, Rating: &rating})
	require.NoError(t, err)
	s := NewStore("u1", NewMemoryStore(), el, NewNotifier(l))

	rated, err := s.LoadRatingState(ctx, inception)
	require.NoError(t, err)
	assert.True(t, rated)
	assert.True(t, s.IsRated(inception.ID))

	rated, err = s.LoadRatingState(ctx, tenet)
	require.NoError(t, err)
	assert.False(t, rated)

	// Undo deletes the loaded record.
	toggleRating(t, s, inception, nil)
	s.Flush()
	events, err := el.Find(ctx, Filter{UserID: "u1", ItemID: inception.ID})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotEmpty(t, handle)
}

func TestNotifier_OrderAndUnsubscribe(t *testing.T) {
	l := newTestLoop(t)
	n := NewNotifier(l)

	var got []string
	unsubA := n.Subscribe(ObserverFunc(func(e Event) {
		got = append(got, "a:"+string(e))
	}))
	n.Subscribe(ObserverFunc(func(e Event) {
		got = append(got, "b:"+string(e))
	}))

	n.Broadcast(WatchlistChanged)
	n.Broadcast(RatingChanged)
	waitLoop(t, l)
	unsubA()
	n.Broadcast(WatchlistChanged)
	waitLoop(t, l)

	assert.Equal(t, []string{
		"a:watchlist-changed", "b:watchlist-changed",
		"a:rating-changed", "b:rating-changed",
		"b:watchlist-changed",
	}, got)
}
