package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/webtor-io/recs/handlers/title"
	"github.com/webtor-io/recs/services/preview"
	"github.com/webtor-io/recs/services/state"
	"github.com/webtor-io/recs/services/tmdb"
	w "github.com/webtor-io/recs/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves recommendation api",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = configureState(c.Flags)
	c.Flags = configurePipeline(c.Flags)
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = preview.RegisterFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	// Setting State
	s, err := makeStack(c)
	if err != nil {
		return err
	}
	defer s.Close()

	// Setting Query Gateway and Joiner
	gw, j, err := makeGateway(c, cl)
	if err != nil {
		return err
	}

	// Setting Catalog
	catalog := tmdb.New(c, cl)

	var servers []cs.Servable
	servers = append(servers, s.loop)

	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Change Relay
	relay, err := state.NewRelay(c, s.store)
	if err != nil {
		return err
	}
	if relay != nil {
		servers = append(servers, relay)
		defer relay.Close()
	}

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setting Web
	web, err := w.New(c, r)
	if err != nil {
		return err
	}
	servers = append(servers, web)
	defer web.Close()

	// Setting Preview Sessions
	m := preview.New(c, s.store, gw, j, s.loop)

	// Setting TitleHandler
	title.RegisterHandler(r, m, catalog)

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
