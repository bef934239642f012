package state

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/webtor-io/recs/services/loop"
)

const (
	userIDFlag     = "user-id"
	eventLogFlag   = "event-log"
	localStoreFlag = "local-store"
)

const (
	EventLogPG        = "pg"
	EventLogMongo     = "mongodb"
	EventLogFirestore = "firestore"
	EventLogMemory    = "memory"

	LocalStoreRedis  = "redis"
	LocalStoreMemory = "memory"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = append(f,
		cli.StringFlag{
			Name:   userIDFlag,
			Usage:  "id of the user whose state is reconciled",
			Value:  "local",
			EnvVar: "USER_ID",
		},
		cli.StringFlag{
			Name:   eventLogFlag,
			Usage:  "remote event log backend (pg, mongodb, firestore, memory)",
			Value:  EventLogPG,
			EnvVar: "EVENT_LOG",
		},
		cli.StringFlag{
			Name:   localStoreFlag,
			Usage:  "local store backend (redis, memory)",
			Value:  LocalStoreRedis,
			EnvVar: "LOCAL_STORE",
		},
	)
	f = RegisterRedisFlags(f)
	f = RegisterMongoFlags(f)
	f = RegisterFirestoreFlags(f)
	f = RegisterNATSFlags(f)
	return f
}

func UsesPG(c *cli.Context) bool {
	return c.String(eventLogFlag) == EventLogPG
}

func New(c *cli.Context, l *loop.Loop, pg *cs.PG) (*Store, error) {
	userID := c.String(userIDFlag)
	if userID == "" {
		return nil, errors.New("user id is not set")
	}
	el, err := newEventLog(c, pg)
	if err != nil {
		return nil, err
	}
	local, err := newLocalStore(c, userID)
	if err != nil {
		el.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":     userID,
		"event_log":   c.String(eventLogFlag),
		"local_store": c.String(localStoreFlag),
	}).Info("state store ready")
	return NewStore(userID, local, el, NewNotifier(l)), nil
}

func newEventLog(c *cli.Context, pg *cs.PG) (EventLog, error) {
	switch b := c.String(eventLogFlag); b {
	case EventLogPG:
		return NewPGLog(pg)
	case EventLogMongo:
		return NewMongoLog(c)
	case EventLogFirestore:
		return NewFirestoreLog(c)
	case EventLogMemory:
		return NewMemoryLog(), nil
	default:
		return nil, errors.Errorf("unknown event log backend %q", b)
	}
}

func newLocalStore(c *cli.Context, userID string) (LocalStore, error) {
	switch b := c.String(localStoreFlag); b {
	case LocalStoreRedis:
		return NewRedisStore(c, userID)
	case LocalStoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Errorf("unknown local store backend %q", b)
	}
}
