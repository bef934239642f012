package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/services/state"
)

func makeHistoryCMD() cli.Command {
	historyCMD := cli.Command{
		Name:    "history",
		Aliases: []string{"h"},
		Usage:   "Lists remote events of a title",
		Action:  history,
	}
	historyCMD.Flags = append(historyCMD.Flags,
		cli.Int64Flag{
			Name:  idFlag,
			Usage: "catalog id of the title",
		},
	)
	historyCMD.Flags = configureState(historyCMD.Flags)
	return historyCMD
}

func history(c *cli.Context) error {
	ctx := context.Background()
	id := c.Int64(idFlag)
	if id == 0 {
		return errors.New("id must be set")
	}

	// Setting State
	s, err := makeStack(c)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := s.store.EventLog().Find(ctx, state.Filter{
		UserID: s.store.UserID(),
		ItemID: id,
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("no events")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range events {
		rating := "-"
		if e.Rating != nil {
			rating = humanize.Comma(int64(*e.Rating))
		}
		_, _ = fmt.Fprintf(tw, "%v\t%v\t%v\t%v\n", humanize.Time(e.CreatedAt), e.EventType, rating, e.Handle)
	}
	return tw.Flush()
}
