package query

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxErrorBodyLen = 1024

// getJSON performs a single GET and decodes the body into v. There is no
// retry here, timeouts belong to the http client.
func getJSON(ctx context.Context, cl *http.Client, op string, title string, u string, prepare func(r *http.Request), v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return newFailure(TransportFailure, op, title, errors.Wrap(err, "create request"))
	}
	req.Header.Set("Accept", "application/json")
	if prepare != nil {
		prepare(req)
	}

	resp, err := cl.Do(req)
	if err != nil {
		return newFailure(TransportFailure, op, title, errors.Wrap(err, "request failed"))
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		log.WithFields(log.Fields{
			"op":     op,
			"title":  title,
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Debug("got non-success status")
		f := newFailure(HttpStatusFailure, op, title, errors.Errorf("unexpected status code: %d", resp.StatusCode))
		f.Status = resp.StatusCode
		return f
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return newFailure(DecodeFailure, op, title, errors.Wrap(err, "decode response"))
	}
	return nil
}
