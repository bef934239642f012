package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/webtor-io/recs/models"
	"github.com/webtor-io/recs/services/loop"
	"github.com/webtor-io/recs/services/pipeline"
)

const (
	titleFlag = "title"
	idFlag    = "id"
)

func makeRecommendCMD() cli.Command {
	recommendCMD := cli.Command{
		Name:    "recommend",
		Aliases: []string{"r"},
		Usage:   "Resolves trailers of titles related to a title",
		Action:  recommend,
	}
	configureRecommend(&recommendCMD)
	return recommendCMD
}

func configureRecommend(c *cli.Command) {
	c.Flags = configureItem(c.Flags)
	c.Flags = configurePipeline(c.Flags)
}

type printPresenter struct{}

func (printPresenter) Reset() {}

func (printPresenter) ShowTrailers(b *models.RecommendationBatch) {
	fmt.Printf("%v: %v\n", b.Title, b.Outcome)
	for _, r := range b.Results {
		fmt.Printf("  %v\thttps://www.youtube.com/watch?v=%v\n", r.SourceTitle, r.VideoID)
	}
}

func (printPresenter) Reveal() {}

func recommend(c *cli.Context) error {
	ctx := context.Background()

	// Setting HTTP Client
	cl := http.DefaultClient

	item, err := resolveItem(ctx, c, cl)
	if err != nil {
		return err
	}

	// Setting Query Gateway and Joiner
	gw, j, err := makeGateway(c, cl)
	if err != nil {
		return err
	}

	// Setting Loop
	l := loop.New()
	go func() {
		_ = l.Serve()
	}()
	defer l.Close()

	// Setting Pipeline
	p := pipeline.New(gw, j, printPresenter{}, l)
	p.Trigger(ctx, item.DisplayTitle())
	p.Wait()
	if err := l.Sync(ctx); err != nil {
		return err
	}
	if p.Status().Outcome == models.OutcomeEmpty {
		return errors.Errorf("no trailers found for %q", item.DisplayTitle())
	}
	return nil
}
