// Package config loads the pipeline configuration: environment settings via
// viper plus a YAML file describing the sources to ingest.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	PostgresURL  string `mapstructure:"POSTGRES_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	StoreBackend string `mapstructure:"STORE_BACKEND"` // "postgres" or "memory"
	CacheBackend string `mapstructure:"CACHE_BACKEND"` // "memory" or "redis"

	CacheTTLHours    int     `mapstructure:"CACHE_TTL_HOURS"`
	RatePerSecond    float64 `mapstructure:"RATE_PER_SECOND"`
	RateBurst        int     `mapstructure:"RATE_BURST"`
	MaxRetries       int     `mapstructure:"MAX_RETRIES"`
	RetryBaseDelayMS int     `mapstructure:"RETRY_BASE_DELAY_MS"`
	CrawlWorkers     int     `mapstructure:"CRAWL_WORKERS"`
	DiscoverBatch    int     `mapstructure:"DISCOVER_BATCH"`
	BatchPauseMS     int     `mapstructure:"BATCH_PAUSE_MS"`
	FetchTimeout     int     `mapstructure:"FETCH_TIMEOUT"` // seconds
	MaxURLs          int     `mapstructure:"MAX_URLS"`
	MaxArticles      int     `mapstructure:"MAX_ARTICLES"`

	SourcesFile string `mapstructure:"SOURCES_FILE"`
}

// Load reads configuration from the .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_BACKEND", "postgres")
	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_TTL_HOURS", 24)
	viper.SetDefault("RATE_PER_SECOND", 1.0)
	viper.SetDefault("RATE_BURST", 5)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_BASE_DELAY_MS", 1000)
	viper.SetDefault("CRAWL_WORKERS", 10)
	viper.SetDefault("DISCOVER_BATCH", 5)
	viper.SetDefault("BATCH_PAUSE_MS", 500)
	viper.SetDefault("FETCH_TIMEOUT", 30)
	viper.SetDefault("MAX_URLS", 100)
	viper.SetDefault("MAX_ARTICLES", 50)
	viper.SetDefault("SOURCES_FILE", "sources.yaml")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// RetryBaseDelay returns the initial retry backoff as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// BatchPause returns the inter-batch pause as a duration.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMS) * time.Millisecond
}

// FetchTimeoutDuration returns the per-fetch timeout as a duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}
