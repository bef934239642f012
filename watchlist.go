package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/services/tmdb"
)

func makeWatchlistCMD() cli.Command {
	watchlistCMD := cli.Command{
		Name:    "watchlist",
		Aliases: []string{"w"},
		Usage:   "Manages watchlist",
	}
	toggleCMD := cli.Command{
		Name:   "toggle",
		Usage:  "Adds a title to the watchlist or removes it",
		Action: toggleWatchlist,
	}
	toggleCMD.Flags = configureItem(toggleCMD.Flags)
	toggleCMD.Flags = configureState(toggleCMD.Flags)
	toggleCMD.Flags = tmdb.RegisterFlags(toggleCMD.Flags)
	listCMD := cli.Command{
		Name:    "list",
		Aliases: []string{"l"},
		Usage:   "Lists watchlist",
		Action:  listWatchlist,
	}
	listCMD.Flags = configureState(listCMD.Flags)
	watchlistCMD.Subcommands = []cli.Command{toggleCMD, listCMD}
	return watchlistCMD
}

func toggleWatchlist(c *cli.Context) error {
	ctx := context.Background()
	item, err := resolveItem(ctx, c, http.DefaultClient)
	if err != nil {
		return err
	}
	if item.ID == 0 {
		return errors.New("id must be set")
	}

	// Setting State
	s, err := makeStack(c)
	if err != nil {
		return err
	}
	defer s.Close()
	s.startLoop()

	added, err := s.store.ToggleWatchlist(ctx, *item)
	if err != nil {
		return err
	}
	s.store.Flush()
	if added {
		fmt.Printf("added %v to watchlist\n", item.DisplayTitle())
	} else {
		fmt.Printf("removed %v from watchlist\n", item.DisplayTitle())
	}
	return nil
}

func listWatchlist(c *cli.Context) error {
	ctx := context.Background()

	// Setting State
	s, err := makeStack(c)
	if err != nil {
		return err
	}
	defer s.Close()

	return printJSON(s.store.LoadWatchlist(ctx))
}
