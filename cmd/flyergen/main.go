package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"flyergen/internal/app"
	"flyergen/internal/assets"
	u "flyergen/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		u.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		u.Warn("Failed to set GOMAXPROCS", "error", err)
	}

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.FlyerCacheDB,
		})
		defer rdb.Close()
	}

	idleConnsClosed := make(chan struct{})

	var keys *u.KeyStore
	if cfg.Auth.Enabled {
		keys = u.NewKeyStore()
		if err := keys.LoadFromPostgres(context.Background(), cfg.Auth.Postgres); err != nil {
			u.Error("Failed to load API keys", "error", err)
		}
		go keys.RefreshPeriodically(cfg.Auth.Postgres, cfg.Auth.RefreshInterval, idleConnsClosed)
		defer keys.Close()
	}

	dir := assets.LoadDirectory(cfg.Assets.CompaniesFile)
	fetcher := assets.NewFetcher(cfg.Assets.FetchRPS, cfg.Assets.FetchBurst)
	fonts := assets.NewFontResolver(cfg.Assets, fetcher)
	if cfg.Assets.WarmFonts {
		go fonts.Warm(context.Background())
	}
	logos := assets.NewLogoResolver(dir, fetcher, assets.LogoOptions{
		Provider:     cfg.Assets.LogoProvider,
		Timeout:      cfg.Assets.LogoTimeout,
		GuessTimeout: cfg.Assets.GuessTimeout,
		CacheTTL:     cfg.Cache.LogoCacheTTL,
		MissTTL:      cfg.Cache.LogoMissTTL,
		Redis:        rdb,
	})

	srv, err := app.SetupApp(cfg, app.Deps{
		Directory:  dir,
		Fonts:      fonts,
		Logos:      logos,
		FlyerCache: rdb,
		Keys:       keys,
	})
	if err != nil {
		u.Error("Failed to set up server", "error", err)
		os.Exit(1)
	}

	u.Info("Starting flyergen",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"companies", dir.Len(),
		"preset", cfg.Flyer.Preset,
		"flyer_cache", rdb != nil && cfg.Cache.FlyerCacheEnabled,
		"api_keys", keys != nil,
	)

	if err := startServer(srv, cfg, idleConnsClosed); err != nil {
		u.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-idleConnsClosed
}

// startServer starts the Fiber app and blocks until a shutdown signal arrives
// or the listener fails.
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) error {
	addr := cfg.Server.Host + cfg.Server.Port
	listenErr := make(chan error, 1)
	go func() {
		if err := app.Listen(addr); err != nil {
			listenErr <- err
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	select {
	case err := <-listenErr:
		close(idleConnsClosed)
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-sigint:
	}

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
	return nil
}
