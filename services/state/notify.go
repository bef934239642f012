package state

import (
	"sync"

	"github.com/webtor-io/recs/services/loop"
)

type Event string

const (
	WatchlistChanged Event = "watchlist-changed"
	RatingChanged    Event = "rating-changed"
)

func (e Event) Valid() bool {
	return e == WatchlistChanged || e == RatingChanged
}

// Observer is told that something changed, it re-reads whatever it needs.
type Observer interface {
	Notify(e Event)
}

type ObserverFunc func(e Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Notifier delivers events to registered observers on the loop, in the
// order they were broadcast.
type Notifier struct {
	mux       sync.Mutex
	loop      *loop.Loop
	seq       int
	observers []subscription
}

type subscription struct {
	id int
	o  Observer
}

func NewNotifier(l *loop.Loop) *Notifier {
	return &Notifier{
		loop: l,
	}
}

// Subscribe registers o and returns a function that removes it.
func (s *Notifier) Subscribe(o Observer) func() {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.seq++
	id := s.seq
	s.observers = append(s.observers, subscription{id: id, o: o})
	return func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		for i := range s.observers {
			if s.observers[i].id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Notifier) Broadcast(e Event) {
	s.deliver(e, nil)
}

// deliver posts e to every observer except skip.
func (s *Notifier) deliver(e Event, skip Observer) {
	s.loop.Post(func() {
		s.mux.Lock()
		obs := make([]Observer, 0, len(s.observers))
		for _, sub := range s.observers {
			if skip != nil && sub.o == skip {
				continue
			}
			obs = append(obs, sub.o)
		}
		s.mux.Unlock()
		for _, o := range obs {
			o.Notify(e)
		}
	})
}
