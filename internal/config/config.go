// Package config loads pipeline configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full pipeline configuration.
type Config struct {
	Lookup struct {
		URL              string  `mapstructure:"url"`
		Token            string  `mapstructure:"token"`
		MaxAttempts      int     `mapstructure:"max_attempts"`
		InitialTimeoutMs int     `mapstructure:"initial_timeout_ms"`
		MaxTimeoutMs     int     `mapstructure:"max_timeout_ms"`
		BackoffFactor    float64 `mapstructure:"backoff_factor"`
		RatePerSecond    float64 `mapstructure:"rate_per_second"`
	} `mapstructure:"lookup"`

	Breaker struct {
		FailureThreshold int     `mapstructure:"failure_threshold"`
		MinRequests      int     `mapstructure:"min_requests"`
		FailureRate      float64 `mapstructure:"failure_rate"`
		BaseResetSecs    int     `mapstructure:"base_reset_seconds"`
		MaxResetSecs     int     `mapstructure:"max_reset_seconds"`
	} `mapstructure:"breaker"`

	Verify struct {
		MaxWorkers    int `mapstructure:"max_workers"`
		BatchBudgetMs int `mapstructure:"batch_budget_ms"`
	} `mapstructure:"verify"`

	Cluster struct {
		NameThreshold    float64 `mapstructure:"name_threshold"`
		ContextThreshold float64 `mapstructure:"context_threshold"`
	} `mapstructure:"cluster"`

	Correction struct {
		SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
		CorpusDSN           string  `mapstructure:"corpus_dsn"`
	} `mapstructure:"correction"`

	Cache struct {
		RedisAddr  string `mapstructure:"redis_addr"`
		TTLSeconds int    `mapstructure:"ttl_seconds"`
	} `mapstructure:"cache"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load reads the config file from CITECHECK_CONFIG (optional) and applies
// environment overrides. Missing file yields defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("lookup.url", "https://www.courtlistener.com/api/rest/v4/citation-lookup/")
	v.SetDefault("lookup.max_attempts", 3)
	v.SetDefault("lookup.initial_timeout_ms", 2000)
	v.SetDefault("lookup.max_timeout_ms", 10000)
	v.SetDefault("lookup.backoff_factor", 2.0)
	v.SetDefault("lookup.rate_per_second", 5.0)
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.min_requests", 5)
	v.SetDefault("breaker.failure_rate", 0.5)
	v.SetDefault("breaker.base_reset_seconds", 60)
	v.SetDefault("breaker.max_reset_seconds", 300)
	v.SetDefault("verify.max_workers", 10)
	v.SetDefault("verify.batch_budget_ms", 120000)
	v.SetDefault("cluster.name_threshold", 0.95)
	v.SetDefault("cluster.context_threshold", 0.7)
	v.SetDefault("correction.similarity_threshold", 0.7)
	v.SetDefault("correction.corpus_dsn", "citecheck_corpus.db")
	v.SetDefault("cache.ttl_seconds", 86400)
	v.SetDefault("logging.level", "info")

	if path := os.Getenv("CITECHECK_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Env overrides for deployment-sensitive values.
	if u := os.Getenv("CITECHECK_LOOKUP_URL"); u != "" {
		v.Set("lookup.url", u)
	}
	if t := os.Getenv("CITECHECK_LOOKUP_TOKEN"); t != "" {
		v.Set("lookup.token", t)
	}
	if r := os.Getenv("CITECHECK_REDIS_ADDR"); r != "" {
		v.Set("cache.redis_addr", r)
	}
	if d := os.Getenv("CITECHECK_CORPUS_DSN"); d != "" {
		v.Set("correction.corpus_dsn", d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// InitialTimeout returns the lookup initial timeout as a duration.
func (c *Config) InitialTimeout() time.Duration {
	return time.Duration(c.Lookup.InitialTimeoutMs) * time.Millisecond
}

// MaxTimeout returns the lookup max timeout as a duration.
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Lookup.MaxTimeoutMs) * time.Millisecond
}

// BatchBudget returns the verification batch budget as a duration.
func (c *Config) BatchBudget() time.Duration {
	return time.Duration(c.Verify.BatchBudgetMs) * time.Millisecond
}

// CacheTTL returns the verification cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// BaseReset returns the breaker base reset timeout.
func (c *Config) BaseReset() time.Duration {
	return time.Duration(c.Breaker.BaseResetSecs) * time.Second
}

// MaxReset returns the breaker max reset timeout.
func (c *Config) MaxReset() time.Duration {
	return time.Duration(c.Breaker.MaxResetSecs) * time.Second
}
