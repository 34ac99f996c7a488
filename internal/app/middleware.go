package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	u "flyergen/internal/utils"
)

const apiKeyLocal = "api_key"

// limiters owns the limiter storage and one limiter per distinct key limit.
type limiters struct {
	store    fiber.Storage
	interval time.Duration
	keys     *u.KeyStore

	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

func newLimiters(store fiber.Storage, interval time.Duration, keys *u.KeyStore) *limiters {
	return &limiters{store: store, interval: interval, keys: keys}
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(errorBody("Too Many Requests"))
}

// forLimit returns a cached limiter for the given key limit, creating one if needed.
func (l *limiters) forLimit(limit int) fiber.Handler {
	l.mu.RLock()
	h, ok := l.handlers[limit]
	l.mu.RUnlock()
	if ok {
		return h
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.handlers[limit]; ok {
		return h
	}

	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        l.interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           l.store,
		KeyGenerator: func(c *fiber.Ctx) string {
			key, _ := c.Locals(apiKeyLocal).(string)
			return "key:" + key
		},
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "api_key", maskKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	if l.handlers == nil {
		l.handlers = make(map[int]fiber.Handler)
	}
	l.handlers[limit] = h
	return h
}

// keyMiddleware applies per-key limits to requests authenticated with X-API-Key.
func (l *limiters) keyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := c.Locals(apiKeyLocal).(string)
		if !ok || key == "" || l.keys == nil {
			return c.Next()
		}
		limit := l.keys.RateLimit(key)
		if limit <= 0 {
			return c.Next()
		}
		return l.forLimit(limit)(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// userMiddleware limits anonymous requests per client (IP and User-Agent).
func (l *limiters) userMiddleware(limit int) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        l.interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           l.store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + clientKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		// Requests carrying a valid API key are governed by the key limiter only.
		if key, ok := c.Locals(apiKeyLocal).(string); ok && key != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

func maskKey(c *fiber.Ctx) string {
	key, _ := c.Locals(apiKeyLocal).(string)
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}

// rateLimitStore picks Redis when a host is configured, memory otherwise.
// A Redis storage that cannot connect panics; that also falls back to memory.
func rateLimitStore(cfg u.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

func apiKeyAuth(keys *u.KeyStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !keys.Ready() {
				return false, u.ErrKeyStoreNotReady
			}
			if !keys.Valid(key) {
				return false, u.ErrInvalidAPIKey
			}
			return true, nil
		},
		// The key is optional: anonymous requests go on to the user limiter.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Keyauth can call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, u.ErrKeyStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(errorBody(err.Error()))
		},
	})
}

// RegisterMiddleware attaches global middleware to the app
func RegisterMiddleware(app *fiber.App, cfg u.Config, deps Deps) {
	store := deps.RateLimitStore
	if store == nil {
		store = rateLimitStore(cfg)
	}
	lim := newLimiters(store, cfg.RateLimiter.Interval, deps.Keys)

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return deps.Keys == nil || deps.Keys.Ready()
		},
	}))

	if deps.Keys != nil {
		app.Use(apiKeyAuth(deps.Keys))
		app.Use(lim.keyMiddleware())
	}

	if cfg.RateLimiter.EnableUserLimiter {
		app.Use(lim.userMiddleware(cfg.RateLimiter.UserLimit))
	}

	app.Use(func(c *fiber.Ctx) error {
		u.Info("Incoming request",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return c.Next()
	})
}
