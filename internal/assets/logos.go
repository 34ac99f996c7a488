package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	_ "golang.org/x/image/webp"

	u "flyergen/internal/utils"
)

// logoMiss is cached for domains whose logo could not be obtained.
type logoMiss struct{}

// LogoOptions configures a LogoResolver.
type LogoOptions struct {
	Provider     string
	Timeout      time.Duration
	GuessTimeout time.Duration
	CacheTTL     time.Duration
	MissTTL      time.Duration

	// Redis, when set, shares raw logo bytes between instances.
	Redis *redis.Client
}

// LogoResolver turns a company name into a decoded logo.
type LogoResolver struct {
	dir     *Directory
	fetcher *Fetcher
	opts    LogoOptions
	cache   *cache.Cache
}

// NewLogoResolver creates a resolver over dir. Decoded logos are memoised per
// domain for opts.CacheTTL, failures for opts.MissTTL.
func NewLogoResolver(dir *Directory, fetcher *Fetcher, opts LogoOptions) *LogoResolver {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.MissTTL <= 0 {
		opts.MissTTL = 10 * time.Minute
	}
	return &LogoResolver{
		dir:     dir,
		fetcher: fetcher,
		opts:    opts,
		cache:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// ResolveLogo returns the logo of company. Companies in the directory are
// fetched by their domain; others by a few guessed domains, stopping at the
// first hit. The second result is false when no logo could be found.
func (r *LogoResolver) ResolveLogo(ctx context.Context, company string) (image.Image, bool) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, false
	}

	if domain, ok := r.dir.Lookup(company); ok {
		return r.logoForDomain(ctx, domain, r.opts.Timeout)
	}

	for _, domain := range GuessDomains(company) {
		if img, ok := r.logoForDomain(ctx, domain, r.opts.GuessTimeout); ok {
			u.Info("Logo found by domain guess", "company", company, "domain", domain)
			return img, true
		}
	}
	return nil, false
}

func (r *LogoResolver) logoForDomain(ctx context.Context, domain string, timeout time.Duration) (image.Image, bool) {
	key := Key{Kind: KindLogo, Name: domain}.String()

	if v, found := r.cache.Get(key); found {
		img, ok := v.(image.Image)
		return img, ok
	}

	img, err := r.fetchLogo(ctx, key, domain, timeout)
	if err != nil {
		u.Warn("Logo unavailable", "domain", domain, "error", err)
		r.cache.Set(key, logoMiss{}, r.opts.MissTTL)
		return nil, false
	}
	r.cache.Set(key, img, cache.DefaultExpiration)
	return img, true
}

func (r *LogoResolver) fetchLogo(ctx context.Context, key, domain string, timeout time.Duration) (image.Image, error) {
	if data := r.sharedBytes(ctx, key); data != nil {
		if img, err := decodeLogo(data); err == nil {
			return img, nil
		}
	}

	if r.fetcher == nil {
		return nil, fmt.Errorf("%w: fetching is disabled", ErrAssetUnavailable)
	}
	data, err := r.fetcher.Get(ctx, LogoURL(r.opts.Provider, domain), timeout)
	if err != nil {
		return nil, err
	}
	img, err := decodeLogo(data)
	if err != nil {
		return nil, err
	}
	r.shareBytes(ctx, key, data)
	return img, nil
}

func decodeLogo(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode logo: %v", ErrAssetUnavailable, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty logo image", ErrAssetUnavailable)
	}
	return img, nil
}

// sharedBytes reads logo bytes from Redis. Misses and errors return nil.
func (r *LogoResolver) sharedBytes(ctx context.Context, key string) []byte {
	if r.opts.Redis == nil {
		return nil
	}
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	data, err := r.opts.Redis.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		u.Warn("Redis read failed", "key", key, "error", err)
		return nil
	}
	return data
}

func (r *LogoResolver) shareBytes(ctx context.Context, key string, data []byte) {
	if r.opts.Redis == nil {
		return
	}
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := r.opts.Redis.Set(ctxRedis, key, data, r.opts.CacheTTL).Err(); err != nil {
		u.Warn("Redis write failed", "key", key, "error", err)
	}
}
