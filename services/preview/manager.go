package preview

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/loop"
	"github.com/webtor-io/recs/services/pipeline"
	"github.com/webtor-io/recs/services/state"
)

const (
	sessionTTLFlag = "preview-session-ttl"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.DurationFlag{
			Name:   sessionTTLFlag,
			Usage:  "idle time after which an opened title is closed",
			Value:  30 * time.Minute,
			EnvVar: "PREVIEW_SESSION_TTL",
		},
	)
}

type entry struct {
	sess *Session
	used time.Time
}

// Manager keeps one session per opened item. Sessions idle for longer than
// ttl are closed on the next Open.
type Manager struct {
	mux      sync.Mutex
	store    *state.Store
	rec      pipeline.Recommender
	joiner   pipeline.Joiner
	loop     *loop.Loop
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]*entry
}

func New(c *cli.Context, st *state.Store, rec pipeline.Recommender, j pipeline.Joiner, l *loop.Loop) *Manager {
	return NewManager(st, rec, j, l, c.Duration(sessionTTLFlag))
}

// NewManager makes a manager, ttl <= 0 keeps sessions until closed.
func NewManager(st *state.Store, rec pipeline.Recommender, j pipeline.Joiner, l *loop.Loop, ttl time.Duration) *Manager {
	return &Manager{
		store:    st,
		rec:      rec,
		joiner:   j,
		loop:     l,
		ttl:      ttl,
		now:      time.Now,
		sessions: map[int64]*entry{},
	}
}

// Open returns the session of item, creating it on first use. The session is
// returned even when loading its history failed, the next use retries.
func (s *Manager) Open(ctx context.Context, item models.ContentItem) (*Session, error) {
	s.mux.Lock()
	now := s.now()
	s.evict(now)
	e, ok := s.sessions[item.ID]
	if !ok {
		e = &entry{sess: NewSession(item, s.store, s.rec, s.joiner, s.loop)}
		s.sessions[item.ID] = e
	}
	e.used = now
	s.mux.Unlock()
	return e.sess, e.sess.Open(ctx)
}

func (s *Manager) Get(id int64) *Session {
	s.mux.Lock()
	defer s.mux.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	e.used = s.now()
	return e.sess
}

// Close closes the session of id, reporting whether there was one.
func (s *Manager) Close(id int64) bool {
	s.mux.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mux.Unlock()
	if ok {
		e.sess.Close()
	}
	return ok
}

func (s *Manager) evict(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.sessions {
		if now.Sub(e.used) <= s.ttl {
			continue
		}
		delete(s.sessions, id)
		e.sess.Close()
		log.WithField("item_id", id).Debug("idle title closed")
	}
}

func (s *Manager) Store() *state.Store {
	return s.store
}
