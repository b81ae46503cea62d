// Package config loads service configuration from a yaml file with
// DEEPRESEARCH_* environment overrides, and supports hot-reload of the
// research tuning section.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Research  ResearchConfig  `mapstructure:"research"`
	Search    SearchConfig    `mapstructure:"search"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Streaming StreamingConfig `mapstructure:"streaming"`

	sourcePath string
}

// SourcePath returns the file the configuration was loaded from, if any.
func (c *Config) SourcePath() string { return c.sourcePath }

// ServiceConfig sets up the HTTP API server.
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

// AuthConfig controls the bearer-token middleware. With an empty secret the
// API runs open, for local development.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TemporalConfig locates the workflow engine.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// ResearchConfig holds the run tuning knobs. This section is hot-reloadable.
type ResearchConfig struct {
	MaxRounds          int     `mapstructure:"max_rounds"`
	EarlyStopThreshold float64 `mapstructure:"early_stop_threshold"`
	MinCoverageScore   float64 `mapstructure:"min_coverage_score"`
	MaxResultsPerQuery int     `mapstructure:"max_results_per_query"`
	KeywordsFile       string  `mapstructure:"keywords_file"`
}

// SearchConfig locates the web search service.
type SearchConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// LLMConfig locates the LLM agent service.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig locates the optional event mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig locates the optional report store. An empty Host disables
// persistence.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LoggingConfig tunes zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig sets up the OTLP exporter.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// StreamingConfig tunes the per-run event replay buffer.
type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", 8081)
	v.SetDefault("service.read_timeout", 15*time.Second)
	v.SetDefault("service.write_timeout", 0) // streaming responses stay open
	v.SetDefault("service.graceful_timeout", 10*time.Second)
	v.SetDefault("service.metrics_enabled", true)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("tracing.enabled", false)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "deepresearch")

	v.SetDefault("research.max_rounds", 5)
	v.SetDefault("research.early_stop_threshold", 85.0)
	v.SetDefault("research.min_coverage_score", 70.0)
	v.SetDefault("research.max_results_per_query", 10)

	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.requests_per_second", 3.0)

	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	// empty defaults so environment overrides reach Unmarshal
	for _, key := range []string{
		"auth.jwt_secret",
		"search.base_url", "search.api_key",
		"llm.base_url",
		"redis.addr", "redis.password",
		"database.host", "database.user", "database.password", "database.database",
		"tracing.otlp_endpoint",
		"research.keywords_file",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("tracing.service_name", "deepresearch")

	v.SetDefault("streaming.ring_capacity", 256)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DEEPRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads configuration from path (or DEEPRESEARCH_CONFIG, or
// config/deepresearch.yaml when present) merged with environment overrides.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DEEPRESEARCH_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("config/deepresearch.yaml"); err == nil {
			path = "config/deepresearch.yaml"
		}
	}

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.sourcePath = path
	return &cfg, nil
}
