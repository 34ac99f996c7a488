package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. It is loaded once at startup and
// passed by value to everything that needs it.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost         string        `yaml:"redis_host"`
		RateLimitDB       int           `yaml:"redis_rate_db"`
		FlyerCacheDB      int           `yaml:"redis_flyer_db"`
		FlyerCacheEnabled bool          `yaml:"flyer_cache_enabled"`
		FlyerCacheTTL     time.Duration `yaml:"flyer_cache_ttl"`
		LogoCacheTTL      time.Duration `yaml:"logo_cache_ttl"`
		LogoMissTTL       time.Duration `yaml:"logo_miss_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Enabled         bool           `yaml:"enabled"`
		RefreshInterval time.Duration  `yaml:"refresh_interval"`
		Postgres        PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Assets AssetsConfig `yaml:"assets"`

	Flyer struct {
		Preset        string `yaml:"preset"`
		FontFamily    string `yaml:"font_family"`
		MaxPhotoBytes int    `yaml:"max_photo_bytes"`
	} `yaml:"flyer"`
}

// PostgresConfig holds connection settings for the API key store.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AssetsConfig describes where fonts, logos and the company directory come from.
type AssetsConfig struct {
	CompaniesFile string            `yaml:"companies_file"`
	FontDir       string            `yaml:"font_dir"`
	Fonts         map[string]string `yaml:"fonts"`
	LogoProvider  string            `yaml:"logo_provider"`
	LogoTimeout   time.Duration     `yaml:"logo_timeout"`
	GuessTimeout  time.Duration     `yaml:"guess_timeout"`
	FontTimeout   time.Duration     `yaml:"font_timeout"`
	FetchRPS      float64           `yaml:"fetch_rps"`
	FetchBurst    int               `yaml:"fetch_burst"`
	WarmFonts     bool              `yaml:"warm_fonts"`
}

// Presets accepted by flyer.preset. Kept here so config validation does not
// depend on the rendering package.
var knownPresets = map[string]bool{"announcement": true, "banner": true}

// DefaultConfig returns a configuration that works without a config file.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":5000"
	cfg.Server.BodyLimitMB = 16

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14

	cfg.Cache.RateLimitDB = 0
	cfg.Cache.FlyerCacheDB = 1
	cfg.Cache.FlyerCacheTTL = 10 * time.Minute
	cfg.Cache.LogoCacheTTL = 24 * time.Hour
	cfg.Cache.LogoMissTTL = 10 * time.Minute

	cfg.RateLimiter.Interval = time.Minute

	cfg.Auth.RefreshInterval = time.Minute
	cfg.Auth.Postgres.Port = 5432
	cfg.Auth.Postgres.SSLMode = "disable"

	cfg.Assets.CompaniesFile = "companies.json"
	cfg.Assets.FontDir = "fonts"
	cfg.Assets.Fonts = map[string]string{
		"LilitaOne-Regular.ttf": "https://fonts.gstatic.com/s/lilitaone/v15/i7dOIFdwYjGaAMFtZd_QA1b4Md8.ttf",
		"SpicyRice-Regular.ttf": "https://fonts.gstatic.com/s/spicyrice/v27/uK_24rSEd-Uqwk4jY1RyGv8.ttf",
	}
	cfg.Assets.LogoProvider = "logo.clearbit.com"
	cfg.Assets.LogoTimeout = 5 * time.Second
	cfg.Assets.GuessTimeout = 3 * time.Second
	cfg.Assets.FontTimeout = 5 * time.Second
	cfg.Assets.FetchRPS = 20
	cfg.Assets.FetchBurst = 10
	cfg.Assets.WarmFonts = true

	cfg.Flyer.Preset = "announcement"
	cfg.Flyer.FontFamily = "LilitaOne-Regular.ttf"
	cfg.Flyer.MaxPhotoBytes = 10 * 1024 * 1024
	return cfg
}

// LoadConfig reads the file named by CONFIG_PATH (default config.yaml).
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the config at path. A missing file yields the
// defaults; an unreadable or invalid file panics, since the service cannot
// start with a half-understood configuration.
func LoadFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		panic(fmt.Sprintf("read config %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("parse config %s: %v", path, err))
		}
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}
	return cfg
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	if cfg.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}
	if cfg.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if cfg.Auth.Enabled && cfg.Auth.RefreshInterval <= 0 {
		return fmt.Errorf("auth.refresh_interval must be positive")
	}
	if strings.TrimSpace(cfg.Assets.LogoProvider) == "" {
		return fmt.Errorf("assets.logo_provider is empty")
	}
	if cfg.Assets.LogoTimeout <= 0 || cfg.Assets.LogoTimeout > 5*time.Second {
		return fmt.Errorf("assets.logo_timeout must be in (0s, 5s]")
	}
	if cfg.Assets.GuessTimeout <= 0 || cfg.Assets.FontTimeout <= 0 {
		return fmt.Errorf("assets timeouts must be positive")
	}
	if cfg.Assets.FetchRPS <= 0 || cfg.Assets.FetchBurst <= 0 {
		return fmt.Errorf("assets.fetch_rps and assets.fetch_burst must be positive")
	}
	if !knownPresets[cfg.Flyer.Preset] {
		return fmt.Errorf("flyer.preset %q is not a known layout", cfg.Flyer.Preset)
	}
	if cfg.Flyer.MaxPhotoBytes <= 0 {
		return fmt.Errorf("flyer.max_photo_bytes must be positive")
	}
	if cfg.Cache.FlyerCacheEnabled && cfg.Cache.FlyerCacheTTL <= 0 {
		return fmt.Errorf("cache.flyer_cache_ttl must be positive when the flyer cache is enabled")
	}
	return nil
}
