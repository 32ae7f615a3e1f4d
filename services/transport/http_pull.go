package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"accel-dashboard/models"
)

// DefaultMaxBody bounds a pulled response; a 50-sample history is a few KB.
const DefaultMaxBody = 1 << 20

// HTTPFetcher issues one GET per Fetch. The endpoint may answer with a
// single sample or with a history array; telling them apart is the
// caller's job.
type HTTPFetcher struct {
	URL      string
	Client   *http.Client
	Encoding models.Encoding
	MaxBody  int64
}

// NewHTTPFetcher returns a fetcher with its own client bounded by timeout.
func NewHTTPFetcher(url string, timeout time.Duration, enc models.Encoding) *HTTPFetcher {
	return &HTTPFetcher{
		URL:      url,
		Client:   &http.Client{Timeout: timeout},
		Encoding: enc,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}
	req.Header.Set("Accept", f.Encoding.ContentType())

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Op: "fetch", Err: fmt.Errorf("GET %s: unexpected status %s", f.URL, resp.Status)}
	}

	limit := f.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &Error{Op: "read", Err: errors.New("response body exceeds limit")}
	}
	return body, nil
}
