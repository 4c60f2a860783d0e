// Package config loads and validates service configuration.
//
// DESIGN: One YAML file, read in three passes:
//  1. .env is loaded into the process environment (missing file is fine)
//  2. ${VAR} and ${VAR:-default} references in the YAML are expanded
//  3. the deployment's legacy variables (CACHE_BUCKET_NAME, CACHE_TTL_MINUTES,
//     SONAR_API_KEY) override whatever the file says
//
// Every section validates itself; Config.Validate runs them all.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/compresr/cost-insights/internal/monitoring"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Cache      CacheConfig             `yaml:"cache"`
	Billing    BillingConfig           `yaml:"billing"`
	Query      QueryConfig             `yaml:"query"`
	Prewarm    PrewarmConfig           `yaml:"prewarm"`
	Summarizer SummarizerConfig        `yaml:"summarizer"`
	Monitoring MonitoringConfig        `yaml:"monitoring"`
	Logging    monitoring.LoggerConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // Requests/sec per client IP. 0 = default.
}

// CacheConfig selects and configures the partition blob store.
type CacheConfig struct {
	Backend    string `yaml:"backend"` // s3, sqlite, memory
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	Prefix     string `yaml:"prefix"`
	SQLitePath string `yaml:"sqlite_path"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns the validity window as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// BillingConfig configures the Cost Explorer client.
type BillingConfig struct {
	Region            string  `yaml:"region"`
	Metric            string  `yaml:"metric"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// QueryConfig tunes query execution.
type QueryConfig struct {
	Parallelism  int           `yaml:"parallelism"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRangeDays int           `yaml:"max_range_days"`
}

// PrewarmConfig controls the daily refresh of yesterday's partition.
type PrewarmConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Offset     time.Duration `yaml:"offset"` // After midnight UTC.
	RunOnStart bool          `yaml:"run_on_start"`
}

// SummarizerConfig configures the optional LLM cost summary.
type SummarizerConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxPromptTokens int           `yaml:"max_prompt_tokens"`
}

// Enabled reports whether a summarizer can be called.
func (s SummarizerConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// MonitoringConfig groups telemetry and metrics export.
type MonitoringConfig struct {
	Telemetry         monitoring.TelemetryConfig `yaml:"telemetry"`
	OTLP              monitoring.OTLPConfig      `yaml:"otlp"`
	StatsPushInterval time.Duration              `yaml:"stats_push_interval"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config file at path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if path == "" {
		cfg := Default()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML config data.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := ExpandEnvWithDefaults(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvWithDefaults replaces ${VAR} and ${VAR:-default}. Unset variables
// without a default expand to the empty string.
func ExpandEnvWithDefaults(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[3]
	})
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = DefaultRateLimit
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = DefaultCachePrefix
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = DefaultSQLitePath
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = DefaultCacheTTLMinutes
	}

	if c.Billing.Region == "" {
		c.Billing.Region = DefaultBillingRegion
	}
	if c.Billing.Metric == "" {
		c.Billing.Metric = DefaultBillingMetric
	}
	if c.Billing.RequestsPerSecond == 0 {
		c.Billing.RequestsPerSecond = DefaultBillingRequestsPerSecond
	}
	if c.Billing.Burst == 0 {
		c.Billing.Burst = DefaultBillingBurst
	}

	if c.Query.Parallelism == 0 {
		c.Query.Parallelism = DefaultQueryParallelism
	}
	if c.Query.Timeout == 0 {
		c.Query.Timeout = DefaultQueryTimeout
	}
	if c.Query.MaxRangeDays == 0 {
		c.Query.MaxRangeDays = DefaultMaxRangeDays
	}

	if c.Prewarm.Offset == 0 {
		c.Prewarm.Offset = DefaultPrewarmOffset
	}

	if c.Summarizer.Endpoint == "" {
		c.Summarizer.Endpoint = DefaultSummarizerEndpoint
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = DefaultSummarizerModel
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = DefaultSummarizerTimeout
	}
	if c.Summarizer.MaxPromptTokens == 0 {
		c.Summarizer.MaxPromptTokens = DefaultMaxPromptTokens
	}

	if c.Monitoring.StatsPushInterval == 0 {
		c.Monitoring.StatsPushInterval = DefaultStatsPushInterval
	}
	if c.Monitoring.Telemetry.Enabled && c.Monitoring.Telemetry.LogPath == "" {
		c.Monitoring.Telemetry.LogPath = DefaultTelemetryPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnvOverrides honors the variables the original deployment was driven by.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CACHE_BUCKET_NAME"); v != "" {
		c.Cache.Bucket = v
		if c.Cache.Backend == DefaultCacheBackend {
			c.Cache.Backend = "s3"
		}
	}
	if v := os.Getenv("CACHE_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLMinutes = n
		}
	}
	if v := os.Getenv("SONAR_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks every section.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Cache.Validate(),
		c.Billing.Validate(),
		c.Query.Validate(),
		c.Prewarm.Validate(),
		c.Summarizer.Validate(),
		c.Monitoring.Validate(),
	)
}

// Validate checks server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", s.Port)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %f", s.RateLimit)
	}
	return nil
}

// Validate checks cache configuration.
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "s3":
		if c.Bucket == "" {
			return fmt.Errorf("cache.bucket is required for the s3 backend")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("cache.backend must be one of s3, sqlite, memory; got %q", c.Backend)
	}
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be > 0, got %d", c.TTLMinutes)
	}
	return nil
}

// Validate checks billing configuration.
func (b *BillingConfig) Validate() error {
	if b.RequestsPerSecond < 0 {
		return fmt.Errorf("billing.requests_per_second must be >= 0, got %f", b.RequestsPerSecond)
	}
	if b.Burst < 0 {
		return fmt.Errorf("billing.burst must be >= 0, got %d", b.Burst)
	}
	return nil
}

// Validate checks query configuration.
func (q *QueryConfig) Validate() error {
	if q.Parallelism < 1 {
		return fmt.Errorf("query.parallelism must be >= 1, got %d", q.Parallelism)
	}
	if q.Timeout < 0 {
		return fmt.Errorf("query.timeout must be >= 0, got %s", q.Timeout)
	}
	if q.MaxRangeDays < 1 {
		return fmt.Errorf("query.max_range_days must be >= 1, got %d", q.MaxRangeDays)
	}
	return nil
}

// Validate checks prewarm configuration.
func (p *PrewarmConfig) Validate() error {
	if p.Offset < 0 || p.Offset >= 24*time.Hour {
		return fmt.Errorf("prewarm.offset must be within a day, got %s", p.Offset)
	}
	return nil
}

// Validate checks summarizer configuration.
func (s *SummarizerConfig) Validate() error {
	if s.MaxPromptTokens < 0 {
		return fmt.Errorf("summarizer.max_prompt_tokens must be >= 0, got %d", s.MaxPromptTokens)
	}
	return nil
}

// Validate checks monitoring configuration.
func (m *MonitoringConfig) Validate() error {
	if m.OTLP.Enabled && m.OTLP.Endpoint == "" {
		return fmt.Errorf("monitoring.otlp.endpoint is required when otlp is enabled")
	}
	return nil
}
