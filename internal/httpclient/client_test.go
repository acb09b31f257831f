package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/feed/user/casts/", r.URL.Path)
		assert.Equal(t, "6546", r.URL.Query().Get("fid"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"casts":[{"hash":"0xabc"}]}`)
	}))
	defer srv.Close()

	c, err := New("neynar", srv.URL+"/v2/", WithHeader("x-api-key", "secret"), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	var out struct {
		Casts []struct {
			Hash string `json:"hash"`
		} `json:"casts"`
	}
	err = c.Get(context.Background(), "/farcaster/feed/user/casts/", url.Values{"fid": {"6546"}}, &out)
	require.NoError(t, err)
	require.Len(t, out.Casts, 1)
	assert.Equal(t, "0xabc", out.Casts[0].Hash)
}

func TestClient_StatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", http.StatusBadRequest},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c, err := New("test", srv.URL, WithLogger(zap.NewNop()))
			require.NoError(t, err)

			err = c.Get(context.Background(), "/x", nil, nil)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCodeOf(err))

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode())
			assert.Contains(t, statusErr.Body, "nope")
		})
	}
}

func TestClient_WithTransport(t *testing.T) {
	var calls int32
	wrap := func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			r.Header.Set("X-Payment", "signed")
			return next.RoundTrip(r)
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "signed", r.Header.Get("X-Payment"))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, err := New("test", srv.URL, WithTransport(wrap), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	require.NoError(t, c.Get(context.Background(), "/", nil, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("test", "")
	assert.Error(t, err)
}
