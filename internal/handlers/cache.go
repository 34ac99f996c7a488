package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"flyergen/internal/flyer"
	u "flyergen/internal/utils"
)

// flyerCache keeps finished PNGs in Redis so identical submissions skip
// asset resolution and rendering. A nil client disables it.
type flyerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// flyerCacheKey digests everything that influences the rendered pixels.
func flyerCacheKey(layout, fontFamily string, req flyer.Request) string {
	h := sha256.New()
	for _, part := range []string{
		layout,
		fontFamily,
		req.Name,
		req.FormerCompany,
		req.NewCompany,
		req.Role,
		req.AnnouncementText,
		req.Date,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(req.Photo)
	return "flyercache:" + hex.EncodeToString(h.Sum(nil))
}

func (fc *flyerCache) enabled() bool { return fc != nil && fc.rdb != nil }

// get returns the cached PNG for key, or nil on a miss or Redis error.
func (fc *flyerCache) get(ctx context.Context, key string) []byte {
	if !fc.enabled() {
		return nil
	}
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	cached, err := fc.rdb.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil
	}
	u.Info("Flyer cache hit", "key", key)
	return cached
}

func (fc *flyerCache) set(ctx context.Context, key string, data []byte) {
	if !fc.enabled() {
		return
	}
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	ttl := fc.ttl
	if ttl <= 0 {
		ttl = 1 * time.Minute
	}
	if err := fc.rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
