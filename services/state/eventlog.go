package state

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/webtor-io/recs/models"
)

// Filter selects events of one user for one item. Empty EventType matches
// every type.
type Filter struct {
	UserID    string
	ItemID    int64
	EventType models.EventType
}

func (f Filter) Match(e *models.RatingEvent) bool {
	if e.UserID != f.UserID || e.ItemID != f.ItemID {
		return false
	}
	return f.EventType == "" || e.EventType == f.EventType
}

// EventLog is the authoritative remote tier. Records are append-only and
// can only be removed by the handle returned from Create.
type EventLog interface {
	Create(ctx context.Context, e *models.RatingEvent) (string, error)
	Delete(ctx context.Context, handle string) error
	Find(ctx context.Context, f Filter) ([]models.RatingEvent, error)
	Close()
}

// MemoryLog is an in-process EventLog.
type MemoryLog struct {
	mux    sync.Mutex
	seq    int
	events []models.RatingEvent
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (s *MemoryLog) Create(_ context.Context, e *models.RatingEvent) (string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.seq++
	ev := *e
	ev.Handle = strconv.Itoa(s.seq)
	ev.CreatedAt = time.Now().UTC()
	s.events = append(s.events, ev)
	return ev.Handle, nil
}

func (s *MemoryLog) Delete(_ context.Context, handle string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	for i := range s.events {
		if s.events[i].Handle == handle {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("event %v not found", handle)
}

func (s *MemoryLog) Find(_ context.Context, f Filter) ([]models.RatingEvent, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	var res []models.RatingEvent
	for i := range s.events {
		if f.Match(&s.events[i]) {
			res = append(res, s.events[i])
		}
	}
	sortByCreatedAt(res)
	return res, nil
}

func (s *MemoryLog) Close() {}

func sortByCreatedAt(events []models.RatingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
