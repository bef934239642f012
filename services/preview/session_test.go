package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/fanout"
	"github.com/webtor-io/recs/services/loop"
	"github.com/webtor-io/recs/services/state"
)

type mockRecommender struct {
	titles map[string][]string
}

func (s *mockRecommender) Recommend(_ context.Context, title string) ([]string, error) {
	t, ok := s.titles[title]
	if !ok {
		return nil, errors.New("unknown title")
	}
	return t, nil
}

type mockFinder struct {
	ids map[string]string
}

func (s *mockFinder) FindTrailer(_ context.Context, title string) (string, error) {
	if id, ok := s.ids[title]; ok {
		return id, nil
	}
	return "", errors.New("no trailer")
}

var inception = models.ContentItem{ID: 27205, OriginalTitle: "Inception", MediaType: "movie"}

func newTestManager(t *testing.T, el state.EventLog) (*Manager, *state.Store) {
	t.Helper()
	l := loop.New()
	go func() {
		_ = l.Serve()
	}()
	t.Cleanup(l.Close)
	st := state.NewStore("u1", state.NewMemoryStore(), el, state.NewNotifier(l))
	rec := &mockRecommender{titles: map[string][]string{
		"Inception": {"Interstellar", "The Prestige", "Tenet"},
	}}
	j := fanout.NewJoiner(&mockFinder{ids: map[string]string{
		"Interstellar": "abc",
		"Tenet":        "def",
	}}, 20, 8)
	return NewManager(st, rec, j, l, 0), st
}

func open(t *testing.T, m *Manager, item models.ContentItem) *Session {
	t.Helper()
	sess, err := m.Open(context.Background(), item)
	require.NoError(t, err)
	return sess
}

func toggleRating(t *testing.T, s *Session) state.RatingChange {
	t.Helper()
	ch, err := s.ToggleRating(context.Background())
	require.NoError(t, err)
	return ch
}

func wait(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSession_RateRevealsTrailers(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, state.NewMemoryLog())

	sess := open(t, m, inception)
	wait(t, sess)
	snap := sess.Snapshot(ctx)
	assert.False(t, snap.Rated)
	assert.False(t, snap.Revealed)
	assert.Equal(t, "idle", snap.State)

	assert.Equal(t, state.RatingRequested, toggleRating(t, sess))
	wait(t, sess)

	snap = sess.Snapshot(ctx)
	assert.True(t, snap.Rated)
	assert.True(t, snap.Revealed)
	assert.Equal(t, models.OutcomePopulated, snap.Outcome)
	ids := []string{}
	for _, tr := range snap.Trailers {
		ids = append(ids, tr.VideoID)
	}
	assert.ElementsMatch(t, []string{"abc", "def"}, ids)
}

func TestSession_OpenWithHistoricalRating(t *testing.T) {
	ctx := context.Background()
	el := state.NewMemoryLog()
	rating := 1
	_, err := el.Create(ctx, &models.RatingEvent{
		UserID:    "u1",
		ItemID:    inception.ID,
		EventType: models.EventTypeRatingAdd,
		Rating:    &rating,
	})
	require.NoError(t, err)
	m, _ := newTestManager(t, el)

	sess := open(t, m, inception)
	wait(t, sess)

	snap := sess.Snapshot(ctx)
	assert.True(t, snap.Rated)
	assert.True(t, snap.Revealed)
	assert.Len(t, snap.Trailers, 2)
	assert.Same(t, sess, m.Get(inception.ID))
	assert.Same(t, sess, open(t, m, inception))
}

func TestSession_UndoKeepsSectionRevealed(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, state.NewMemoryLog())
	sess := open(t, m, inception)

	toggleRating(t, sess)
	wait(t, sess)
	assert.Equal(t, state.RatingRemoved, toggleRating(t, sess))
	wait(t, sess)

	snap := sess.Snapshot(ctx)
	assert.False(t, snap.Rated)
	assert.True(t, snap.Revealed)
}

func TestSession_ToggleWatchlist(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t, state.NewMemoryLog())
	sess := open(t, m, inception)

	added, err := sess.ToggleWatchlist(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	wait(t, sess)

	assert.True(t, sess.Snapshot(ctx).InWatchlist)
	assert.Len(t, st.LoadWatchlist(ctx), 1)
}

// flakyLog fails lookups until healed.
type flakyLog struct {
	*state.MemoryLog
	mux    sync.Mutex
	broken bool
}

func (s *flakyLog) Find(ctx context.Context, f state.Filter) ([]models.RatingEvent, error) {
	s.mux.Lock()
	broken := s.broken
	s.mux.Unlock()
	if broken {
		return nil, errors.New("remote unavailable")
	}
	return s.MemoryLog.Find(ctx, f)
}

func (s *flakyLog) heal() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.broken = false
}

func TestManager_OpenRetriesFailedHistoryLoad(t *testing.T) {
	ctx := context.Background()
	el := &flakyLog{MemoryLog: state.NewMemoryLog(), broken: true}
	rating := 1
	_, err := el.Create(ctx, &models.RatingEvent{
		UserID:    "u1",
		ItemID:    inception.ID,
		EventType: models.EventTypeRatingAdd,
		Rating:    &rating,
	})
	require.NoError(t, err)
	m, _ := newTestManager(t, el)

	sess, err := m.Open(ctx, inception)
	require.Error(t, err)
	require.NotNil(t, sess)
	_, err = sess.ToggleRating(ctx)
	require.Error(t, err)

	el.heal()
	again := open(t, m, inception)
	assert.Same(t, sess, again)
	wait(t, sess)
	snap := sess.Snapshot(ctx)
	assert.True(t, snap.Rated)
	assert.True(t, snap.Revealed)

	assert.Equal(t, state.RatingRemoved, toggleRating(t, sess))
	wait(t, sess)
	left, err := el.Find(ctx, state.Filter{UserID: "u1", ItemID: inception.ID, EventType: models.EventTypeRatingAdd})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestManager_EvictsIdleSessions(t *testing.T) {
	m, _ := newTestManager(t, state.NewMemoryLog())
	m.ttl = time.Minute
	now := time.Now()
	m.now = func() time.Time { return now }

	first := open(t, m, inception)
	now = now.Add(2 * time.Minute)
	tenet := models.ContentItem{ID: 577922, OriginalTitle: "Tenet"}
	open(t, m, tenet)

	assert.Nil(t, m.Get(inception.ID))
	assert.NotNil(t, m.Get(tenet.ID))
	assert.NotSame(t, first, open(t, m, inception))
}

func TestManager_CloseDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, state.NewMemoryLog())
	sess := open(t, m, inception)
	toggleRating(t, sess)
	wait(t, sess)
	require.NotEmpty(t, sess.Snapshot(ctx).Trailers)

	assert.True(t, m.Close(inception.ID))
	wait(t, sess)
	assert.Empty(t, sess.Snapshot(ctx).Trailers)
	assert.Nil(t, m.Get(inception.ID))
	assert.False(t, m.Close(inception.ID))
}
