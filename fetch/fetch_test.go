package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var gotReferer, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.zip":
			w.Write([]byte("PK\x03\x04payload"))
		case "/big.zip":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.Error(w, "nope", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := New(srv.Client(), "https://www.example.net/", "ugoiratx-test", 32)

	t.Run("ok", func(t *testing.T) {
		b, err := f.Fetch(context.Background(), srv.URL+"/ok.zip")
		require.NoError(t, err)
		assert.Equal(t, "PK\x03\x04payload", string(b))
		assert.Equal(t, "https://www.example.net/", gotReferer)
		assert.Equal(t, "ugoiratx-test", gotAgent)
	})

	t.Run("status", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/forbidden.zip")
		assert.ErrorIs(t, err, ErrFetch)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/big.zip")
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, srv.URL+"/ok.zip")
		assert.ErrorIs(t, err, ErrFetch)
	})
}

type failingClient struct{}

func (failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestFetchTransportError(t *testing.T) {
	_, err := New(failingClient{}, "", "", 0).Fetch(context.Background(), "http://127.0.0.1:1/x.zip")
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewDefaults(t *testing.T) {
	f := New(nil, "", "", 0)
	assert.Equal(t, http.DefaultClient, f.Client)
	assert.Equal(t, int64(DefaultMaxBytes), f.MaxBytes)
}
