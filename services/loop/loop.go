package loop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("loop closed")

// Loop runs posted tasks one at a time on a single goroutine, in the order
// they were posted. Presentation state and observer callbacks are only
// touched from inside a task.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks and is safe to call from inside a task.
func (s *Loop) Post(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

const (
	taskQueued int32 = iota
	taskStarted
	taskCancelled
)

// Do posts fn and waits until it has run. When ctx is done before fn has
// started, fn is dropped and ctx.Err() is returned, so an error always means
// fn never ran. Once fn has started Do waits for it whatever ctx says. Must
// not be called from inside a task.
func (s *Loop) Do(ctx context.Context, fn func()) error {
	var st atomic.Int32
	ran := make(chan struct{})
	if !s.Post(func() {
		if !st.CompareAndSwap(taskQueued, taskStarted) {
			return
		}
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		if st.CompareAndSwap(taskQueued, taskCancelled) {
			return ctx.Err()
		}
		<-ran
		return nil
	case <-s.stopped:
		if st.CompareAndSwap(taskQueued, taskCancelled) {
			return ErrClosed
		}
		<-ran
		return nil
	}
}

// Sync waits until every task posted before the call has run.
func (s *Loop) Sync(ctx context.Context) error {
	return s.Do(ctx, func() {})
}

func (s *Loop) Serve() error {
	defer close(s.stopped)
	for {
		s.mu.Lock()
		tasks := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()
		for _, t := range tasks {
			s.run(t)
		}
		if len(tasks) > 0 {
			continue
		}
		if closed {
			return nil
		}
		select {
		case <-s.wake:
		case <-s.done:
		}
	}
}

func (s *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("loop task panicked")
		}
	}()
	fn()
}

// Close stops accepting tasks. Tasks already posted still run before Serve returns.
func (s *Loop) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
