package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtor-io/recs/models"
)

type mockFinder struct {
	mux      sync.Mutex
	calls    []string
	ids      map[string]string
	delays   map[string]time.Duration
	inFlight int32
	maxSeen  int32
}

func (s *mockFinder) FindTrailer(_ context.Context, title string) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	s.mux.Lock()
	s.calls = append(s.calls, title)
	d := s.delays[title]
	id, ok := s.ids[title]
	s.mux.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	if !ok {
		return "", errors.New("no trailer")
	}
	return id, nil
}

func TestJoin_SettlesAfterAllLookups(t *testing.T) {
	f := &mockFinder{
		ids: map[string]string{"A": "a1", "B": "b1", "C": "c1"},
		delays: map[string]time.Duration{
			"A": 30 * time.Millisecond,
			"C": 10 * time.Millisecond,
		},
	}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), []string{"A", "B", "C"})

	require.Len(t, f.calls, 3)
	assert.Equal(t, 3, res.Issued)
	assert.Equal(t, 3, res.Resolved)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, models.OutcomePopulated, res.Outcome)
	assert.ElementsMatch(t, []models.TrailerResult{
		{SourceTitle: "A", VideoID: "a1"},
		{SourceTitle: "B", VideoID: "b1"},
		{SourceTitle: "C", VideoID: "c1"},
	}, res.Trailers)
}

func TestJoin_CompletionOrder(t *testing.T) {
	f := &mockFinder{
		ids: map[string]string{"slow": "s", "fast": "f"},
		delays: map[string]time.Duration{
			"slow": 80 * time.Millisecond,
		},
	}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), []string{"slow", "fast"})

	require.Len(t, res.Trailers, 2)
	assert.Equal(t, "fast", res.Trailers[0].SourceTitle)
	assert.Equal(t, "slow", res.Trailers[1].SourceTitle)
}

func TestJoin_AllFailedIsEmpty(t *testing.T) {
	f := &mockFinder{ids: map[string]string{}}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), []string{"A", "B"})

	assert.Equal(t, models.OutcomeEmpty, res.Outcome)
	assert.Empty(t, res.Trailers)
	assert.Equal(t, 2, res.Issued)
	assert.Equal(t, 2, res.Failed)
}

func TestJoin_NoTitles(t *testing.T) {
	f := &mockFinder{ids: map[string]string{}}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), nil)

	assert.Equal(t, models.OutcomeEmpty, res.Outcome)
	assert.Equal(t, 0, res.Issued)
	assert.Empty(t, f.calls)
}

func TestJoin_PartialFailure(t *testing.T) {
	// Two of three titles resolve, the third has no trailer.
	f := &mockFinder{ids: map[string]string{"Interstellar": "abc", "Tenet": "def"}}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), []string{"Interstellar", "The Prestige", "Tenet"})

	assert.Equal(t, models.OutcomePopulated, res.Outcome)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, 1, res.Failed)
	ids := []string{}
	for _, r := range res.Trailers {
		ids = append(ids, r.VideoID)
	}
	assert.ElementsMatch(t, []string{"abc", "def"}, ids)
}

func TestJoin_KeysAreTrimmedAndCapped(t *testing.T) {
	f := &mockFinder{ids: map[string]string{"A": "a", "B": "b", "C": "c"}}
	j := NewJoiner(f, 2, 8)

	res := j.Join(context.Background(), []string{" ", "A ", "", "B", "C"})

	assert.Equal(t, 2, res.Issued)
	assert.ElementsMatch(t, []string{"A", "B"}, f.calls)
}

func TestJoin_DuplicatesAreLookedUpEach(t *testing.T) {
	f := &mockFinder{ids: map[string]string{"A": "a"}}
	j := NewJoiner(f, 20, 8)

	res := j.Join(context.Background(), []string{"A", "A"})

	assert.Len(t, f.calls, 2)
	assert.Len(t, res.Trailers, 2)
}

func TestJoin_ConcurrencyIsBounded(t *testing.T) {
	ids := map[string]string{}
	delays := map[string]time.Duration{}
	titles := []string{}
	for _, title := range []string{"A", "B", "C", "D", "E", "F"} {
		ids[title] = title
		delays[title] = 20 * time.Millisecond
		titles = append(titles, title)
	}
	f := &mockFinder{ids: ids, delays: delays}
	j := NewJoiner(f, 20, 2)

	res := j.Join(context.Background(), titles)

	assert.Equal(t, 6, res.Resolved)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.maxSeen), int32(2))
}
