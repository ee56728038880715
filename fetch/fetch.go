// Package fetch downloads animation archives over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBytes caps an archive download when no limit is configured.
const DefaultMaxBytes = 256 << 20

// ErrFetch marks every failure to obtain the archive bytes.
var ErrFetch = errors.New("fetch failed")

// HTTPClient is the part of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher GETs archives. Image hosts commonly refuse requests without a
// Referer from their own pages, so one can be set.
type Fetcher struct {
	Client    HTTPClient
	Referer   string
	UserAgent string
	MaxBytes  int64
}

// New returns a Fetcher using client, or http.DefaultClient when nil.
func New(client HTTPClient, referer, userAgent string, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{Client: client, Referer: referer, UserAgent: userAgent, MaxBytes: maxBytes}
}

// Fetch returns the whole response body of a successful GET of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}
	if resp.ContentLength > f.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFetch, url, resp.ContentLength, f.MaxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, url, err)
	}
	if int64(len(body)) > f.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, url, f.MaxBytes)
	}
	return body, nil
}
