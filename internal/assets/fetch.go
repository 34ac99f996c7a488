package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxAssetBytes caps a downloaded font or logo.
const maxAssetBytes = 8 << 20

// Fetcher downloads remote assets. All callers share one rate limiter so a
// burst of flyer requests cannot hammer the logo and font providers.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher returns a Fetcher allowing rps requests per second with the given burst.
func NewFetcher(rps float64, burst int) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Get fetches url within timeout. Waiting for the limiter counts against the
// same timeout. Non-200 responses and empty bodies are errors wrapping
// ErrAssetUnavailable.
func (f *Fetcher) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: rate limit wait: %v", ErrAssetUnavailable, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	req.Header.Set("User-Agent", "flyergen/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrAssetUnavailable, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrAssetUnavailable, url, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty body", ErrAssetUnavailable, url)
	}
	if len(data) > maxAssetBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrAssetUnavailable, url, maxAssetBytes)
	}
	return data, nil
}
