package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, "announcement", cfg.Flyer.Preset)
	assert.Equal(t, "logo.clearbit.com", cfg.Assets.LogoProvider)
	assert.Equal(t, 5*time.Second, cfg.Assets.LogoTimeout)
	assert.Contains(t, cfg.Assets.Fonts, "LilitaOne-Regular.ttf")
}

func TestLoadFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":9000"
assets:
  logo_provider: "logos.example.com"
  logo_timeout: 2s
flyer:
  preset: banner
rate_limiter:
  interval: 1h
  user_limit: 20
`)
	cfg := LoadFrom(p)
	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, "logos.example.com", cfg.Assets.LogoProvider)
	assert.Equal(t, 2*time.Second, cfg.Assets.LogoTimeout)
	assert.Equal(t, "banner", cfg.Flyer.Preset)
	assert.Equal(t, 20, cfg.RateLimiter.UserLimit)
	// untouched defaults survive a partial file
	assert.Equal(t, 3*time.Second, cfg.Assets.GuessTimeout)
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "malformed yaml", yml: "server: [\n"},
		{name: "unknown preset", yml: "flyer:\n  preset: poster\n"},
		{name: "logo timeout too long", yml: "assets:\n  logo_timeout: 30s\n"},
		{name: "empty provider", yml: "assets:\n  logo_provider: ''\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
		{name: "zero rate interval", yml: "rate_limiter:\n  interval: 0s\n"},
		{name: "zero photo limit", yml: "flyer:\n  max_photo_bytes: 0\n"},
		{name: "cache without ttl", yml: "cache:\n  flyer_cache_enabled: true\n  flyer_cache_ttl: 0s\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			assert.Panics(t, func() { _ = LoadFrom(p) })
		})
	}
}

func TestLoadConfig_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "flyer:\n  preset: banner\n")
	t.Setenv("CONFIG_PATH", p)
	cfg := LoadConfig()
	assert.Equal(t, "banner", cfg.Flyer.Preset)
}
