package state

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// BestEffort runs remote writes whose failure must never affect local
// state. Failures are logged, reported and counted.
type BestEffort struct {
	wg sync.WaitGroup
}

func (s *BestEffort) Go(ctx context.Context, op string, fields log.Fields, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		if err := fn(ctx); err != nil {
			reportRemoteFailure(op, fields, err)
			return
		}
		remoteWritesTotal.WithLabelValues(op, "ok").Inc()
	}()
}

// Wait blocks until every started write has finished.
func (s *BestEffort) Wait() {
	s.wg.Wait()
}

func reportRemoteFailure(op string, fields log.Fields, err error) {
	remoteWritesTotal.WithLabelValues(op, "failed").Inc()
	log.WithError(err).WithFields(fields).WithField("op", op).Warn("remote write failed")
	sentry.CaptureException(err)
}
