package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CACHE_BUCKET_NAME", "CACHE_TTL_MINUTES", "SONAR_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoadFromBytes_Defaults(t *testing.T) {
	clearLegacyEnv(t)

	cfg, err := LoadFromBytes([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, "cost_cache", cfg.Cache.Prefix)
	assert.Equal(t, "UnblendedCost", cfg.Billing.Metric)
	assert.Equal(t, 4, cfg.Query.Parallelism)
	assert.Equal(t, 366, cfg.Query.MaxRangeDays)
	assert.Equal(t, 15*time.Minute, cfg.Prewarm.Offset)
	assert.Equal(t, "sonar-pro", cfg.Summarizer.Model)
	assert.False(t, cfg.Summarizer.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromBytes_FullFile(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("TEST_BUCKET", "acme-cost-cache")

	yml := `
server:
  port: 9090
  write_timeout: 90s
cache:
  backend: s3
  bucket: ${TEST_BUCKET}
  region: ${TEST_REGION:-eu-west-1}
  ttl_minutes: 45
query:
  parallelism: 8
  timeout: 20s
prewarm:
  enabled: true
  offset: 30m
monitoring:
  telemetry:
    enabled: true
  otlp:
    enabled: true
    endpoint: collector:4317
    insecure: true
`
	cfg, err := LoadFromBytes([]byte(yml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "acme-cost-cache", cfg.Cache.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Cache.Region)
	assert.Equal(t, 45*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 8, cfg.Query.Parallelism)
	assert.Equal(t, 20*time.Second, cfg.Query.Timeout)
	assert.True(t, cfg.Prewarm.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Prewarm.Offset)
	assert.Equal(t, DefaultTelemetryPath, cfg.Monitoring.Telemetry.LogPath)
	assert.Equal(t, "collector:4317", cfg.Monitoring.OTLP.Endpoint)
}

func TestLoadFromBytes_LegacyEnvOverrides(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("CACHE_BUCKET_NAME", "legacy-bucket")
	t.Setenv("CACHE_TTL_MINUTES", "5")
	t.Setenv("SONAR_API_KEY", "pplx-test")

	cfg, err := LoadFromBytes([]byte("cache:\n  ttl_minutes: 60\n"))
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Cache.Backend)
	assert.Equal(t, "legacy-bucket", cfg.Cache.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.True(t, cfg.Summarizer.Enabled())
}

func TestLoadFromBytes_ValidationErrors(t *testing.T) {
	clearLegacyEnv(t)

	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"s3 without bucket", "cache:\n  backend: s3\n", "cache.bucket"},
		{"unknown backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"negative ttl", "cache:\n  ttl_minutes: -1\n", "cache.ttl_minutes"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"negative parallelism", "query:\n  parallelism: -2\n", "query.parallelism"},
		{"offset past a day", "prewarm:\n  offset: 25h\n", "prewarm.offset"},
		{"otlp without endpoint", "monitoring:\n  otlp:\n    enabled: true\n", "monitoring.otlp.endpoint"},
		{"not yaml", "server: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	clearLegacyEnv(t)

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, cfg.Server.Port)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0600))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("SET_VAR", "value")
	t.Setenv("EMPTY_VAR", "")

	assert.Equal(t, "a=value", ExpandEnvWithDefaults("a=${SET_VAR}"))
	assert.Equal(t, "a=fallback", ExpandEnvWithDefaults("a=${EMPTY_VAR:-fallback}"))
	assert.Equal(t, "a=", ExpandEnvWithDefaults("a=${UNSET_VAR_FOR_TEST}"))
	assert.Equal(t, "a=$PLAIN", ExpandEnvWithDefaults("a=$PLAIN"))
}
