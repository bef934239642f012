package query

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	youtubeKeyFlag    = "youtube-api-key"
	youtubeHostFlag   = "youtube-api-host"
	youtubePortFlag   = "youtube-api-port"
	youtubeSecureFlag = "youtube-api-secure"
)

const opFindTrailer = "find_trailer"

func RegisterYoutubeFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   youtubeHostFlag,
			Usage:  "youtube data api host",
			EnvVar: "YOUTUBE_API_HOST",
			Value:  "youtube.googleapis.com",
		},
		cli.IntFlag{
			Name:   youtubePortFlag,
			Usage:  "youtube data api port",
			EnvVar: "YOUTUBE_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   youtubeSecureFlag,
			Usage:  "youtube data api secure (https)",
			EnvVar: "YOUTUBE_API_SECURE",
		},
		cli.StringFlag{
			Name:   youtubeKeyFlag,
			Usage:  "youtube data api key",
			Value:  "",
			EnvVar: "YOUTUBE_API_KEY",
		},
	)
}

type SearchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type Youtube struct {
	url            string
	cl             *http.Client
	prepareRequest func(r *http.Request)
}

func NewYoutube(c *cli.Context, cl *http.Client) *Youtube {
	host := c.String(youtubeHostFlag)
	port := c.Int(youtubePortFlag)
	secure := c.BoolT(youtubeSecureFlag)
	key := c.String(youtubeKeyFlag)
	if key == "" {
		return nil
	}
	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("youtube api endpoint %v", u)
	return &Youtube{
		url: u,
		cl:  cl,
		prepareRequest: func(r *http.Request) {
			q := r.URL.Query()
			q.Set("key", key)
			r.URL.RawQuery = q.Encode()
		},
	}
}

// FindTrailer returns the video id of the first search hit for "<title> trailer".
func (s *Youtube) FindTrailer(ctx context.Context, title string) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/youtube/v3/search", s.url))
	if err != nil {
		return "", newFailure(TransportFailure, opFindTrailer, title, errors.Wrap(err, "parse url"))
	}
	q := u.Query()
	q.Set("q", strings.TrimSpace(title)+" trailer")
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", "1")
	u.RawQuery = q.Encode()

	var resp SearchResponse
	if err := getJSON(ctx, s.cl, opFindTrailer, title, u.String(), s.prepareRequest, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", newFailure(EmptyResultFailure, opFindTrailer, title, errors.New("no items"))
	}
	id := resp.Items[0].ID.VideoID
	if id == "" {
		return "", newFailure(EmptyResultFailure, opFindTrailer, title, errors.New("first item has no video id"))
	}
	return id, nil
}
