package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CITECHECK_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.courtlistener.com/api/rest/v4/citation-lookup/", cfg.Lookup.URL)
	assert.Equal(t, 3, cfg.Lookup.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialTimeout())
	assert.Equal(t, 10*time.Second, cfg.MaxTimeout())
	assert.Equal(t, 2.0, cfg.Lookup.BackoffFactor)

	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 5, cfg.Breaker.MinRequests)
	assert.Equal(t, 0.5, cfg.Breaker.FailureRate)
	assert.Equal(t, time.Minute, cfg.BaseReset())
	assert.Equal(t, 5*time.Minute, cfg.MaxReset())

	assert.Equal(t, 10, cfg.Verify.MaxWorkers)
	assert.Equal(t, 2*time.Minute, cfg.BatchBudget())
	assert.Equal(t, 0.95, cfg.Cluster.NameThreshold)
	assert.Equal(t, 0.7, cfg.Cluster.ContextThreshold)
	assert.Equal(t, 0.7, cfg.Correction.SimilarityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citecheck.yaml")
	data := "lookup:\n" +
		"  url: https://lookup.internal/api/\n" +
		"  max_attempts: 5\n" +
		"verify:\n" +
		"  max_workers: 4\n" +
		"cache:\n" +
		"  redis_addr: localhost:6379\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("CITECHECK_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://lookup.internal/api/", cfg.Lookup.URL)
	assert.Equal(t, 5, cfg.Lookup.MaxAttempts)
	assert.Equal(t, 4, cfg.Verify.MaxWorkers)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CITECHECK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CITECHECK_CONFIG", "")
	t.Setenv("CITECHECK_LOOKUP_URL", "https://override.example/api/")
	t.Setenv("CITECHECK_LOOKUP_TOKEN", "secret")
	t.Setenv("CITECHECK_REDIS_ADDR", "redis:6379")
	t.Setenv("CITECHECK_CORPUS_DSN", ":memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://override.example/api/", cfg.Lookup.URL)
	assert.Equal(t, "secret", cfg.Lookup.Token)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, ":memory:", cfg.Correction.CorpusDSN)
}
