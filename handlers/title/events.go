package title

import (
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/webtor-io/recs/services/state"
)

// eventQueue coalesces pending events per type so the loop never blocks on
// a slow client.
type eventQueue struct {
	mux     sync.Mutex
	pending []state.Event
	signal  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
	}
}

func (s *eventQueue) Notify(e state.Event) {
	s.mux.Lock()
	found := false
	for _, p := range s.pending {
		if p == e {
			found = true
			break
		}
	}
	if !found {
		s.pending = append(s.pending, e)
	}
	s.mux.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *eventQueue) drain() []state.Event {
	s.mux.Lock()
	defer s.mux.Unlock()
	res := s.pending
	s.pending = nil
	return res
}

func (s *Handler) events(c *gin.Context) {
	q := newEventQueue()
	unsubscribe := s.st.Notifier().Subscribe(q)
	defer unsubscribe()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-q.signal:
			for _, e := range q.drain() {
				c.SSEvent(string(e), "{}")
			}
			return true
		}
	})
}
