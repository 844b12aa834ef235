package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.App.Env)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 120, cfg.Server.RateLimitPerMinute)
	require.Equal(t, "memory", cfg.Cache.Kind)
	require.Equal(t, 10*time.Minute, cfg.StateTTL())
	require.Equal(t, 15*time.Second, cfg.UpstreamTimeout())
	require.Equal(t, 3, cfg.Offline.MaxRetries)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := writeYAML(t, `
app:
  env: prod
  origin: https://app.example.com
server:
  addr: ":9090"
  rate_limit_per_minute: 30
platforms:
  shopify:
    client_id: cid-yaml
    client_secret: secret-yaml
`)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("SHOPIFY_CLIENT_ID", "cid-env")
	t.Setenv("OFFLINE_APPLY_URL", "https://backend.example.com/internal/changes")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.App.Env)
	require.Equal(t, ":7070", cfg.Server.Addr, "env pisa yaml")
	require.Equal(t, 30, cfg.Server.RateLimitPerMinute)
	require.Equal(t, "cid-env", cfg.Platforms[PlatformShopify].ClientID)
	require.Equal(t, "secret-yaml", cfg.Platforms[PlatformShopify].ClientSecret)
	require.Equal(t, "https://backend.example.com/internal/changes", cfg.Offline.ApplyURL)
}

func TestRedisAddrPropagatesToQueue(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", cfg.Queue.RedisAddr)

	t.Setenv("QUEUE_REDIS_ADDR", "localhost:6380")
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", cfg.Queue.RedisAddr)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.App.Origin = "https://app.example.com"
		cfg.Auth.JWTSecret = "s3cr3t"
		cfg.Storage.Driver = "memory"
		return cfg
	}

	require.NoError(t, base().Validate(nil))

	cfg := base()
	cfg.App.Origin = ""
	require.Error(t, cfg.Validate(nil))

	cfg = base()
	cfg.Storage.Driver = "postgres"
	require.Error(t, cfg.Validate(nil), "postgres sin DSN")

	cfg = base()
	require.Error(t, cfg.Validate([]Platform{PlatformEtsy}), "plataforma activa sin credenciales")
	cfg.Platforms[PlatformEtsy] = PlatformCredentials{ClientID: "cid", ClientSecret: "sec"}
	require.NoError(t, cfg.Validate([]Platform{PlatformEtsy}))
}

func TestParsePlatform(t *testing.T) {
	p, ok := ParsePlatform(" Shopify ")
	require.True(t, ok)
	require.Equal(t, PlatformShopify, p)

	_, ok = ParsePlatform("myspace")
	require.False(t, ok)
}
