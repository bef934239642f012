package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/preview"
	"github.com/webtor-io/recs/services/tmdb"
)

func makeRateCMD() cli.Command {
	rateCMD := cli.Command{
		Name:   "rate",
		Usage:  "Toggles rating of a title and shows resulting recommendations",
		Action: rate,
	}
	configureRate(&rateCMD)
	return rateCMD
}

func configureItem(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.Int64Flag{
			Name:  idFlag,
			Usage: "catalog id of the title",
		},
		cli.StringFlag{
			Name:  titleFlag,
			Usage: "title, skips catalog lookup when set",
		},
	)
}

func configureRate(c *cli.Command) {
	c.Flags = configureItem(c.Flags)
	c.Flags = configureState(c.Flags)
	c.Flags = configurePipeline(c.Flags)
}

// resolveItem builds the item from flags, asking the catalog when only an
// id is given.
func resolveItem(ctx context.Context, c *cli.Context, cl *http.Client) (*models.ContentItem, error) {
	id := c.Int64(idFlag)
	title := c.String(titleFlag)
	if title != "" {
		return &models.ContentItem{
			ID:            id,
			OriginalTitle: title,
			MediaType:     tmdb.MediaTypeMovie.String(),
		}, nil
	}
	if id == 0 {
		return nil, errors.New("either id or title must be set")
	}
	api := tmdb.New(c, cl)
	if api == nil {
		return nil, errors.New("tmdb api key is not set, pass the title explicitly")
	}
	return api.GetMovie(ctx, id)
}

func rate(c *cli.Context) error {
	ctx := context.Background()

	// Setting HTTP Client
	cl := http.DefaultClient

	item, err := resolveItem(ctx, c, cl)
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

	// Setting Query Gateway and Joiner
	gw, j, err := makeGateway(c, cl)
	if err != nil {
		return err
	}

	// Setting Preview Session
	sess, err := preview.NewManager(s.store, gw, j, s.loop, 0).Open(ctx, *item)
	if err != nil {
		return err
	}
	if err := sess.Wait(ctx); err != nil {
		return err
	}
	ch, err := sess.ToggleRating(ctx)
	if err != nil {
		return err
	}
	log.WithField("change", ch).Info("rating toggled")
	if err := sess.Wait(ctx); err != nil {
		return err
	}
	return printJSON(sess.Snapshot(ctx))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
