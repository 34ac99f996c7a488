package app

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"flyergen/internal/assets"
	"flyergen/internal/handlers"
	u "flyergen/internal/utils"
)

// Deps are the long-lived collaborators built by main.
type Deps struct {
	Directory *assets.Directory
	Fonts     handlers.FontSource
	Logos     handlers.LogoSource

	// FlyerCache backs the finished-flyer cache; nil disables it.
	FlyerCache *redis.Client
	// Keys validates X-API-Key; nil disables API keys.
	Keys *u.KeyStore
	// RateLimitStore overrides the limiter storage derived from cfg.
	RateLimitStore fiber.Storage
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, deps Deps) (*fiber.App, error) {
	if deps.Directory == nil {
		deps.Directory = assets.NewDirectory(assets.FallbackCompanies)
	}
	svc, err := handlers.NewFlyerService(cfg, deps.Directory, deps.Fonts, deps.Logos, deps.FlyerCache)
	if err != nil {
		return nil, fmt.Errorf("flyer service: %w", err)
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          errorHandler,
	})

	RegisterMiddleware(app, cfg, deps)
	RegisterRoutes(app, svc)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		msg = e.Message
	} else {
		u.Error("Unhandled error", "path", c.Path(), "error", err)
	}

	u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(errorBody(msg))
}

func errorBody(msg string) fiber.Map {
	return fiber.Map{"error": msg}
}

// RegisterRoutes mounts the flyer API at the root and under /api.
func RegisterRoutes(app *fiber.App, svc *handlers.FlyerService) {
	mount := func(r fiber.Router) {
		r.Get("/companies", svc.HandleCompanies)
		r.Post("/generate-flyer", svc.HandleGenerate)
		r.Get("/health", svc.HandleHealth)
	}
	mount(app)
	mount(app.Group("/api"))

	app.Get("/monitor", monitor.New())
}
