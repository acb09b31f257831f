package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Neynar    NeynarConfig
	Hub       HubConfig
	Retry     RetryConfig
	Cache     CacheConfig
	Ingest    IngestConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds the archive store configuration.
// URLs starting with postgres:// or postgresql:// use PostgreSQL, anything else is a sqlite file path.
type DatabaseConfig struct {
	URL string
}

// NeynarConfig holds feed API configuration
type NeynarConfig struct {
	URL        string
	APIKey     string
	UserAgent  string
	PageSize   int
	MaxItems   int
	ReplyDepth int
	RateLimit  float64 // requests per second, 0 disables
}

// HubConfig holds Snapchain hub configuration
type HubConfig struct {
	URL         string
	PageSize    int
	MaxMessages int
	RateLimit   float64
}

// RetryConfig holds per-page retry configuration
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// CacheConfig holds response cache configuration.
// When RedisURL is set, responses are cached in Redis instead of the sqlite file at Path.
type CacheConfig struct {
	Path     string
	RedisURL string
}

// IngestConfig holds ingestion run configuration
type IngestConfig struct {
	FID                uint64
	HydrateConcurrency int
	RequestTimeout     time.Duration
	OutDir             string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string
	Format       string // "json" or "text"
	ScalyrFormat bool   // Enable Scalyr-compatible JSON format
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// ErrMissingConfig is matched by every MissingError.
var ErrMissingConfig = errors.New("missing required configuration")

// MissingError reports a required key that has no value.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s is required (set %s)", e.Key, envPrefix+"_"+toEnvKey(e.Key))
}

// Is makes errors.Is(err, ErrMissingConfig) hold.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingConfig
}

const envPrefix = "CASTARCHIVE"

// Load loads configuration from .env, environment variables and config file
func Load() (*Config, error) {
	// A missing .env is fine; real environment always wins
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.castarchive")
	viper.AddConfigPath("/etc/castarchive")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: getString("database_url", "db/queue.db3"),
		},
		Neynar: NeynarConfig{
			URL:        getString("neynar_url", "https://api.neynar.com/v2"),
			APIKey:     getString("neynar_api_key", ""),
			UserAgent:  getString("neynar_user_agent", "curl/8.5.0"),
			PageSize:   getInt("neynar_page_size", 50),
			MaxItems:   getInt("neynar_max_items", 10000),
			ReplyDepth: getInt("neynar_reply_depth", 5),
			RateLimit:  getFloat("neynar_rate_limit", 0),
		},
		Hub: HubConfig{
			URL:         getString("hub_url", "https://snap.farcaster.xyz:3381/v1"),
			PageSize:    getInt("hub_page_size", 100),
			MaxMessages: getInt("hub_max_messages", 1000),
			RateLimit:   getFloat("hub_rate_limit", 0),
		},
		Retry: RetryConfig{
			Attempts:  getInt("retry_attempts", 5),
			BaseDelay: GetDuration("retry_base_delay", time.Second),
			MaxDelay:  GetDuration("retry_max_delay", 30*time.Second),
		},
		Cache: CacheConfig{
			Path:     getString("cache_path", "db/cache.db3"),
			RedisURL: getString("redis_url", ""),
		},
		Ingest: IngestConfig{
			FID:                uint64(getInt("fid", 0)),
			HydrateConcurrency: getInt("hydrate_concurrency", 4),
			RequestTimeout:     GetDuration("request_timeout", 30*time.Second),
			OutDir:             getString("out_dir", "out"),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Logging: LoggingConfig{
			Level:        getString("log_level", "INFO"),
			Format:       getString("log_format", "text"),
			ScalyrFormat: getBool("log_scalyr_format", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", false),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "castarchive"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("database_url", "db/queue.db3")
	viper.SetDefault("neynar_url", "https://api.neynar.com/v2")
	viper.SetDefault("hub_url", "https://snap.farcaster.xyz:3381/v1")
	viper.SetDefault("cache_path", "db/cache.db3")
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("service_name", "castarchive")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	if val := os.Getenv(envPrefix + "_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv(envPrefix + "_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	if val := os.Getenv(envPrefix + "_" + toEnvKey(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv(envPrefix + "_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// toEnvKey converts snake_case or kebab-case to UPPER_SNAKE_CASE
func toEnvKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// RequireAPIKey fails when no feed API key is configured.
// Only commands that talk to the feed API need one.
func (c *Config) RequireAPIKey() error {
	if c.Neynar.APIKey == "" {
		return &MissingError{Key: "neynar_api_key"}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return &MissingError{Key: "database_url"}
	}
	if c.Neynar.URL == "" {
		return &MissingError{Key: "neynar_url"}
	}
	if c.Hub.URL == "" {
		return &MissingError{Key: "hub_url"}
	}
	if c.Neynar.PageSize <= 0 || c.Neynar.PageSize > 150 {
		return fmt.Errorf("neynar_page_size must be between 1 and 150")
	}
	if c.Neynar.MaxItems < c.Neynar.PageSize {
		return fmt.Errorf("neynar_max_items must be at least neynar_page_size")
	}
	if c.Hub.PageSize <= 0 || c.Hub.PageSize > 1000 {
		return fmt.Errorf("hub_page_size must be between 1 and 1000")
	}
	if c.Retry.Attempts <= 0 || c.Retry.Attempts > 20 {
		return fmt.Errorf("retry_attempts must be between 1 and 20")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry_base_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry_max_delay must not be below retry_base_delay")
	}
	if c.Ingest.HydrateConcurrency <= 0 || c.Ingest.HydrateConcurrency > 64 {
		return fmt.Errorf("hydrate_concurrency must be between 1 and 64")
	}
	return nil
}

// GetDuration returns a duration from config key, with default
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv(envPrefix + "_" + toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}
