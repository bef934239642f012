package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	natsURLFlag           = "nats-url"
	natsSubjectPrefixFlag = "nats-subject-prefix"
)

func RegisterNATSFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   natsURLFlag,
			Usage:  "nats url for change relay, empty disables relay",
			EnvVar: "NATS_URL",
		},
		cli.StringFlag{
			Name:   natsSubjectPrefixFlag,
			Usage:  "nats subject prefix",
			Value:  "recs",
			EnvVar: "NATS_SUBJECT_PREFIX",
		},
	)
}

type relayMessage struct {
	Event  Event  `json:"event"`
	UserID string `json:"user_id"`
	Origin string `json:"origin"`
}

// Relay publishes local change events to nats and re-broadcasts events of
// the same user coming from other processes.
type Relay struct {
	nc       *nats.Conn
	prefix   string
	userID   string
	origin   string
	notifier *Notifier
	mux      sync.Mutex
	sub      *nats.Subscription
	done     chan struct{}
	once     sync.Once
	unsub    func()
}

func NewRelay(c *cli.Context, s *Store) (*Relay, error) {
	u := c.String(natsURLFlag)
	if u == "" {
		return nil, nil
	}
	nc, err := nats.Connect(u, nats.Name("recs"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %v", u)
	}
	log.Infof("nats change relay at %v", u)
	return NewRelayWithConn(nc, c.String(natsSubjectPrefixFlag), s), nil
}

func NewRelayWithConn(nc *nats.Conn, prefix string, s *Store) *Relay {
	r := &Relay{
		nc:       nc,
		prefix:   prefix,
		userID:   s.UserID(),
		origin:   uuid.NewString(),
		notifier: s.Notifier(),
		done:     make(chan struct{}),
	}
	r.unsub = r.notifier.Subscribe(r)
	return r
}

func (s *Relay) subject(e Event) string {
	return fmt.Sprintf("%v.%v", s.prefix, e)
}

func (s *Relay) Notify(e Event) {
	data, err := json.Marshal(&relayMessage{
		Event:  e,
		UserID: s.userID,
		Origin: s.origin,
	})
	if err != nil {
		log.WithError(err).Error("failed to encode relay message")
		return
	}
	if err := s.nc.Publish(s.subject(e), data); err != nil {
		log.WithError(err).WithField("event", e).Warn("failed to publish change event")
	}
}

func (s *Relay) handle(msg *nats.Msg) {
	var m relayMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.WithError(err).WithField("subject", msg.Subject).Warn("failed to decode relay message")
		return
	}
	if m.Origin == s.origin || m.UserID != s.userID || !m.Event.Valid() {
		return
	}
	s.notifier.deliver(m.Event, s)
}

func (s *Relay) Serve() error {
	sub, err := s.nc.Subscribe(strings.TrimSuffix(s.prefix, ".")+".*", s.handle)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to change events")
	}
	s.mux.Lock()
	s.sub = sub
	s.mux.Unlock()
	<-s.done
	return nil
}

func (s *Relay) Close() {
	s.once.Do(func() {
		close(s.done)
		s.unsub()
		s.mux.Lock()
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		s.mux.Unlock()
		s.nc.Close()
	})
}
