package query

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	recommenderURLFlag = "recommender-url"
)

const opRecommend = "recommend"

func RegisterRecommenderFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   recommenderURLFlag,
			Usage:  "content based recommender endpoint",
			EnvVar: "RECOMMENDER_URL",
			Value:  "https://us-central1-streamflix-pro.cloudfunctions.net/recommendMovies",
		},
	)
}

type recommendResponse struct {
	Recommendations *[]string `json:"recommendations"`
}

// Recommender asks the inference service for titles related to a title.
// The service is keyed by free-text title, not by catalog id.
type Recommender struct {
	url string
	cl  *http.Client
}

func NewRecommender(c *cli.Context, cl *http.Client) (*Recommender, error) {
	u := c.String(recommenderURLFlag)
	if _, err := url.Parse(u); err != nil || u == "" {
		return nil, errors.Errorf("invalid recommender url %q", u)
	}
	log.Infof("recommender endpoint %v", u)
	return &Recommender{
		url: u,
		cl:  cl,
	}, nil
}

// Recommend returns the related titles. A valid response with no titles is
// an empty success, a response without the recommendations field is a
// decode failure.
func (s *Recommender) Recommend(ctx context.Context, title string) ([]string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, newFailure(TransportFailure, opRecommend, title, errors.Wrap(err, "parse url"))
	}
	q := u.Query()
	q.Set("title", title)
	u.RawQuery = q.Encode()

	var resp recommendResponse
	if err := getJSON(ctx, s.cl, opRecommend, title, u.String(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Recommendations == nil {
		return nil, newFailure(DecodeFailure, opRecommend, title, errors.New("recommendations field is missing"))
	}
	return *resp.Recommendations, nil
}
