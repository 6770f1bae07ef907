package config

import (
	"os"
	"path/filepath"
	"testing"

	"chain-observer/src/models"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: "chain-observer"
host: "127.0.0.1"
port: 8080
log_level: "INFO"
grpc_host: "127.0.0.1"
grpc_port: 50051

upstream:
  url: "https://rpc.example.org"
  timeout_seconds: 15

rate_limit:
  max_per_minute: 40
  min_spacing_ms: 500

storage:
  db_type: "sqlite"
  db_path: "ledger.db"
  retention_days: 7

streams:
  - name: "gas_price"
    interval_ms: 4000
    ttl_ms: 5000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestLoadValidConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	require.Equal(t, "chain-observer", cfg.Name)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "https://rpc.example.org", cfg.Upstream.URL)
	require.Equal(t, 15, cfg.Upstream.RequestTimeout)
	require.Equal(t, 40, cfg.RateLimit.MaxPerMinute)
	require.Equal(t, 500, cfg.RateLimit.MinSpacingMs)
	require.Equal(t, "sqlite", cfg.Storage.DBType)

	require.Len(t, cfg.Streams, 1)
	require.Equal(t, "gas_price", cfg.Streams[0].Name)
	require.Equal(t, 4000, cfg.Streams[0].IntervalMs)
}

// -----------------------------------------------------------------------------

func TestMissingFileFails(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestMalformedYAMLFails(t *testing.T) {
	_, err := NewConfig(writeConfig(t, "][ not yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

// -----------------------------------------------------------------------------

func TestValidationRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{MConfig: &models.MConfig{
			Name:      "t",
			Host:      "127.0.0.1",
			Port:      8080,
			Upstream:  models.MUpstreamConfig{URL: "https://rpc.example.org", RequestTimeout: 15},
			RateLimit: models.MRateLimitConfig{MaxPerMinute: 40, MinSpacingMs: 500},
			Storage:   models.MStorageConfig{DBType: "sqlite", DBPath: "ledger.db", RetentionDays: 7},
		}}
	}
	require.NoError(t, base().Validate())

	cases := []struct {
		label  string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"empty host", func(c *Config) { c.Host = "" }},
		{"privileged port", func(c *Config) { c.Port = 80 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"empty upstream url", func(c *Config) { c.Upstream.URL = "" }},
		{"zero upstream timeout", func(c *Config) { c.Upstream.RequestTimeout = 0 }},
		{"zero rate ceiling", func(c *Config) { c.RateLimit.MaxPerMinute = 0 }},
		{"negative spacing", func(c *Config) { c.RateLimit.MinSpacingMs = -1 }},
		{"empty db type", func(c *Config) { c.Storage.DBType = "" }},
		{"sqlite without path", func(c *Config) { c.Storage.DBPath = "" }},
		{"zero retention", func(c *Config) { c.Storage.RetentionDays = 0 }},
		{"nameless override", func(c *Config) { c.Streams = []models.MStreamOverride{{IntervalMs: 1000}} }},
		{"negative override timing", func(c *Config) {
			c.Streams = []models.MStreamOverride{{Name: "gas_price", IntervalMs: -1}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	require.Equal(t, cfg.MConfig, reloaded.MConfig)
}
