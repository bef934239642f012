package fanout

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/webtor-io/recs/models"
)

const (
	maxKeysFlag     = "fanout-max-keys"
	concurrencyFlag = "fanout-concurrency"
)

const (
	defaultMaxKeys     = 20
	defaultConcurrency = 8
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.IntFlag{
			Name:   maxKeysFlag,
			Usage:  "max number of titles looked up per run, excess is dropped",
			Value:  defaultMaxKeys,
			EnvVar: "FANOUT_MAX_KEYS",
		},
		cli.IntFlag{
			Name:   concurrencyFlag,
			Usage:  "max number of trailer lookups in flight",
			Value:  defaultConcurrency,
			EnvVar: "FANOUT_CONCURRENCY",
		},
	)
}

type TrailerFinder interface {
	FindTrailer(ctx context.Context, title string) (string, error)
}

// Result is a settled join. Trailers are in completion order.
type Result struct {
	Trailers []models.TrailerResult
	Outcome  models.Outcome
	Issued   int
	Resolved int
	Failed   int
}

type Joiner struct {
	finder      TrailerFinder
	maxKeys     int
	concurrency int
}

func New(c *cli.Context, f TrailerFinder) *Joiner {
	return NewJoiner(f, c.Int(maxKeysFlag), c.Int(concurrencyFlag))
}

func NewJoiner(f TrailerFinder, maxKeys int, concurrency int) *Joiner {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Joiner{
		finder:      f,
		maxKeys:     maxKeys,
		concurrency: concurrency,
	}
}

// Join issues one lookup per title and returns once every issued lookup has
// completed. Failed lookups are logged and dropped.
func (s *Joiner) Join(ctx context.Context, titles []string) *Result {
	start := time.Now()
	keys := s.keys(titles)
	res := &Result{
		Trailers: []models.TrailerResult{},
		Issued:   len(keys),
	}
	if len(keys) == 0 {
		res.Outcome = models.OutcomeEmpty
		runsTotal.WithLabelValues(string(res.Outcome)).Inc()
		return res
	}

	var mux sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, k := range keys {
		title := k
		g.Go(func() error {
			id, err := s.finder.FindTrailer(ctx, title)
			mux.Lock()
			defer mux.Unlock()
			if err != nil {
				res.Failed++
				log.WithError(err).WithField("title", title).Warn("failed to find trailer")
				return nil
			}
			res.Resolved++
			res.Trailers = append(res.Trailers, models.TrailerResult{
				SourceTitle: title,
				VideoID:     id,
			})
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Trailers) == 0 {
		res.Outcome = models.OutcomeEmpty
	} else {
		res.Outcome = models.OutcomePopulated
	}
	lookupsTotal.WithLabelValues("resolved").Add(float64(res.Resolved))
	lookupsTotal.WithLabelValues("failed").Add(float64(res.Failed))
	runsTotal.WithLabelValues(string(res.Outcome)).Inc()
	log.WithFields(log.Fields{
		"issued":   res.Issued,
		"resolved": res.Resolved,
		"failed":   res.Failed,
		"duration": time.Since(start),
	}).Debug("fan-out settled")
	return res
}

func (s *Joiner) keys(titles []string) []string {
	keys := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		keys = append(keys, t)
	}
	if len(keys) > s.maxKeys {
		log.WithFields(log.Fields{
			"total": len(keys),
			"max":   s.maxKeys,
		}).Warn("too many titles, dropping excess")
		keys = keys[:s.maxKeys]
	}
	return keys
}
