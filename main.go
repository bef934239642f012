package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/services/common"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env")
	}
	app := cli.NewApp()
	app.Name = "recs"
	app.Usage = "resolves trailer recommendations and reconciles watch state"
	app.Version = "0.0.1"
	app.Flags = common.RegisterFlags(app.Flags)
	app.Before = func(c *cli.Context) error {
		return common.InitLog(c)
	}
	configure(app)
	err := app.Run(os.Args)
	if err != nil {
		log.WithError(err).Fatal("failed to run app")
	}
}
