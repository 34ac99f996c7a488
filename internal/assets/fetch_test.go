package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("payload"))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(100, 10)
	ctx := context.Background()

	data, err := f.Get(ctx, srv.URL+"/ok", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = f.Get(ctx, srv.URL+"/missing", time.Second)
	assert.ErrorIs(t, err, ErrAssetUnavailable)

	_, err = f.Get(ctx, srv.URL+"/empty", time.Second)
	assert.ErrorIs(t, err, ErrAssetUnavailable)

	start := time.Now()
	_, err = f.Get(ctx, srv.URL+"/slow", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrAssetUnavailable)
	assert.Less(t, time.Since(start), 180*time.Millisecond)
}

func TestFetcherLimiterWaitBoundedByTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	// One token per minute: the second call cannot get a token within its timeout.
	f := NewFetcher(1.0/60, 1)
	_, err := f.Get(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)

	_, err = f.Get(context.Background(), srv.URL, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrAssetUnavailable)
}
