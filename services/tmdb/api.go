package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"

	"github.com/webtor-io/recs/models"
)

const (
	tmdbApiKeyFlag    = "tmdb-api-key"
	tmdbApiSecureFlag = "tmdb-api-secure"
	tmdbApiHostFlag   = "tmdb-api-host"
	tmdbApiPortFlag   = "tmdb-api-port"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   tmdbApiHostFlag,
			Usage:  "tmdb api host",
			EnvVar: "TMDB_API_HOST",
			Value:  "api.themoviedb.org",
		},
		cli.IntFlag{
			Name:   tmdbApiPortFlag,
			Usage:  "tmdb api port",
			EnvVar: "TMDB_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   tmdbApiSecureFlag,
			Usage:  "tmdb api secure (https)",
			EnvVar: "TMDB_API_SECURE",
		},
		cli.StringFlag{
			Name:   tmdbApiKeyFlag,
			Usage:  "tmdb api key",
			Value:  "",
			EnvVar: "TMDB_API_KEY",
		},
	)
}

var ErrNotFound = errors.New("title not found")

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

func (t MediaType) String() string {
	return string(t)
}

// Api resolves catalog ids to content items. Details rarely change, so they
// are cached.
type Api struct {
	url            string
	cl             *http.Client
	prepareRequest func(r *http.Request)
	cache          *lazymap.LazyMap[*models.ContentItem]
}

func New(c *cli.Context, cl *http.Client) *Api {
	host := c.String(tmdbApiHostFlag)
	port := c.Int(tmdbApiPortFlag)
	secure := c.BoolT(tmdbApiSecureFlag)
	key := c.String(tmdbApiKeyFlag)
	if key == "" {
		return nil
	}
	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("tmdb api endpoint %v", u)
	return newApi(u, cl, key)
}

func newApi(u string, cl *http.Client, key string) *Api {
	return &Api{
		url: u,
		cl:  cl,
		prepareRequest: func(r *http.Request) {
			q := r.URL.Query()
			q.Set("api_key", key)
			r.URL.RawQuery = q.Encode()
		},
		cache: lazymap.New[*models.ContentItem](&lazymap.Config{
			Expire:      30 * time.Minute,
			ErrorExpire: 10 * time.Second,
		}),
	}
}

func (api *Api) GetMovie(ctx context.Context, id int64) (*models.ContentItem, error) {
	return api.Get(ctx, MediaTypeMovie, id)
}

func (api *Api) Get(ctx context.Context, mt MediaType, id int64) (*models.ContentItem, error) {
	key := fmt.Sprintf("%v/%v", mt, id)
	return api.cache.Get(key, func() (*models.ContentItem, error) {
		return api.get(ctx, mt, id)
	})
}

func (api *Api) get(ctx context.Context, mt MediaType, id int64) (*models.ContentItem, error) {
	reqURL := fmt.Sprintf("%s/3/%s/%d", api.url, mt, id)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	api.prepareRequest(req)

	resp, err := api.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("tmdb error: unexpected status code %d", resp.StatusCode)
	}

	var item models.ContentItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if item.MediaType == "" {
		item.MediaType = mt.String()
	}
	return &item, nil
}
