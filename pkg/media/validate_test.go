package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		// Target is URL-encoded the way the CDN emits it.
		w.Header().Set("Location", url.QueryEscape(srv.URL+"/img"))
		w.WriteHeader(http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srv.URL+"/loop")
		w.WriteHeader(http.StatusTemporaryRedirect)
	})
	t.Cleanup(srv.Close)
	return srv
}

func TestIsValidMedia(t *testing.T) {
	srv := probeServer(t)
	v := NewValidator("gallerysync-test/1.0")
	ctx := context.Background()

	assert.True(t, v.IsValidMedia(ctx, srv.URL+"/img"))
	assert.False(t, v.IsValidMedia(ctx, srv.URL+"/page"))
	assert.False(t, v.IsValidMedia(ctx, srv.URL+"/missing"))
}

func TestIsValidMediaFollowsEncodedRedirect(t *testing.T) {
	srv := probeServer(t)
	v := NewValidator("gallerysync-test/1.0")

	assert.True(t, v.IsValidMedia(context.Background(), srv.URL+"/redirect"))
}

func TestIsValidMediaBoundsRedirects(t *testing.T) {
	srv := probeServer(t)
	v := NewValidator("gallerysync-test/1.0")

	assert.False(t, v.IsValidMedia(context.Background(), srv.URL+"/loop"))
}

func TestIsValidMediaAggregatorShortCircuits(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	v := NewValidator("gallerysync-test/1.0")
	assert.False(t, v.IsValidMedia(context.Background(), "https://imgur.com/a/abc123"))
	assert.Zero(t, hits.Load(), "aggregator URLs must not be probed")
}

func TestIsValidMediaOptimisticOnConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	refused := srv.URL + "/img.jpg"
	srv.Close()

	v := NewValidator("gallerysync-test/1.0")
	assert.True(t, v.IsValidMedia(context.Background(), refused))
}

func TestIsValidMediaPessimisticOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	t.Cleanup(srv.Close)

	v := NewValidatorTimeout("gallerysync-test/1.0", 50*time.Millisecond)
	assert.False(t, v.IsValidMedia(context.Background(), srv.URL+"/slow.jpg"))
}

func TestIsValidMediaPessimisticOnTransportError(t *testing.T) {
	// A plain-HTTP server probed over https fails the TLS handshake:
	// a transport error that is neither a refusal nor a reset.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	t.Cleanup(srv.Close)

	v := NewValidator("gallerysync-test/1.0")
	assert.False(t, v.IsValidMedia(context.Background(), "https://"+srv.Listener.Addr().String()+"/img.jpg"))
}

func TestIsValidMediaMalformedURL(t *testing.T) {
	v := NewValidator("gallerysync-test/1.0")
	require.False(t, v.IsValidMedia(context.Background(), "://not-a-url"))
}
