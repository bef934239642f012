package main

import (
	"github.com/urfave/cli"
)

func configure(app *cli.App) {
	serveCMD := makeServeCMD()
	migrationCMD := makePGMigrationCMD()
	recommendCMD := makeRecommendCMD()
	rateCMD := makeRateCMD()
	watchlistCMD := makeWatchlistCMD()
	historyCMD := makeHistoryCMD()
	app.Commands = []cli.Command{serveCMD, migrationCMD, recommendCMD, rateCMD, watchlistCMD, historyCMD}
}
