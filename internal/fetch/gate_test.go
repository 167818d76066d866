package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gridcrawl/internal/config"
	"gridcrawl/internal/errdefs"
	"gridcrawl/internal/htmlutil"
)

func fastConfig() config.FetchConfig {
	return config.FetchConfig{
		RateLimitMinSec:  0.05,
		RateLimitMaxSec:  0.05,
		MaxRetries:       2,
		InitialBackoffMs: 1,
		MaxBackoffMs:     5,
		TimeoutMs:        2000,
	}
}

func TestFetchStaticParsesDocument(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><head><title>League</title></head><body><h1>Hello</h1></body></html>`))
	}))
	defer srv.Close()

	g := NewGate(fastConfig(), zap.NewNop())
	defer g.Close(false)

	doc, err := g.FetchStatic(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, doc.Raw, "<h1>Hello</h1>")
	require.NotNil(t, htmlutil.Find(doc.Root, "h1", nil))
	require.NotEmpty(t, gotUA)
}

func TestFetchStaticSharedRateLimitGap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RateLimitMinSec = 0.15
	cfg.RateLimitMaxSec = 0.15
	g := NewGate(cfg, zap.NewNop())
	defer g.Close(false)

	ctx := context.Background()
	_, err := g.FetchStatic(ctx, srv.URL)
	require.NoError(t, err)

	start := time.Now()
	_, err = g.FetchStatic(ctx, srv.URL)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond,
		"second request must wait out the shared gap")
}

func TestFetchStaticRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	g := NewGate(fastConfig(), zap.NewNop())
	defer g.Close(false)

	_, err := g.FetchStatic(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchStaticExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGate(fastConfig(), zap.NewNop())
	defer g.Close(false)

	_, err := g.FetchStatic(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errdefs.IsTransport(err))
	// Initial attempt plus the retry budget.
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchStaticContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RateLimitMinSec = 5
	cfg.RateLimitMaxSec = 5
	g := NewGate(cfg, zap.NewNop())
	defer g.Close(false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.FetchStatic(ctx, srv.URL)
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second, "cancellation must cut the rate-limit wait short")
}

func TestCloseIsIdempotentAndBlocksFurtherFetches(t *testing.T) {
	g := NewGate(fastConfig(), zap.NewNop())
	g.Close(true)
	g.Close(false)

	_, err := g.FetchStatic(context.Background(), "http://localhost:0/")
	require.Error(t, err)
}
