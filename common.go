package main

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/webtor-io/recs/services/common"
	"github.com/webtor-io/recs/services/fanout"
	"github.com/webtor-io/recs/services/loop"
	"github.com/webtor-io/recs/services/migration"
	"github.com/webtor-io/recs/services/query"
	"github.com/webtor-io/recs/services/state"
	"github.com/webtor-io/recs/services/tmdb"
)

func configureState(f []cli.Flag) []cli.Flag {
	f = cs.RegisterPGFlags(f)
	f = migration.RegisterFlags(f)
	f = state.RegisterFlags(f)
	return f
}

func configurePipeline(f []cli.Flag) []cli.Flag {
	f = query.RegisterFlags(f)
	f = fanout.RegisterFlags(f)
	f = tmdb.RegisterFlags(f)
	return f
}

// stack holds the services shared by every command.
type stack struct {
	loop        *loop.Loop
	pg          *cs.PG
	store       *state.Store
	flushSentry func()
}

func makeStack(c *cli.Context) (*stack, error) {
	flush, err := common.InitSentry(c)
	if err != nil {
		return nil, err
	}
	s := &stack{
		loop:        loop.New(),
		flushSentry: flush,
	}

	// Setting DB
	if state.UsesPG(c) {
		s.pg = cs.NewPG(c)

		// Setting Migrations
		if _, err := migration.New(c, s.pg).Run(); err != nil {
			s.Close()
			return nil, err
		}
	}

	// Setting State
	st, err := state.New(c, s.loop, s.pg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = st
	return s, nil
}

// startLoop runs the loop in the background for one-shot commands.
func (s *stack) startLoop() {
	go func() {
		if err := s.loop.Serve(); err != nil {
			log.WithError(err).Error("loop stopped")
		}
	}()
}

func (s *stack) Close() {
	if s.store != nil {
		s.store.Close()
	}
	s.loop.Close()
	if s.pg != nil {
		s.pg.Close()
	}
	s.flushSentry()
}

func makeGateway(c *cli.Context, cl *http.Client) (*query.Gateway, *fanout.Joiner, error) {
	gw, err := query.New(c, cl)
	if err != nil {
		return nil, nil, err
	}
	return gw, fanout.New(c, gw), nil
}
