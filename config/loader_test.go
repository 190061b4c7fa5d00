package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Cache.L1MaxItems)
	assert.Equal(t, 5*time.Minute, cfg.Cache.L1TTL)
	assert.Equal(t, 500, cfg.Cache.L2MaxItems)
	assert.Equal(t, 0.92, cfg.Cache.L2Threshold)
	assert.True(t, cfg.Cache.EnableSemantic)
	assert.False(t, cfg.Cache.Coalesce)

	assert.Equal(t, 3, cfg.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetTimeout)
	assert.Equal(t, 1, cfg.Breaker.HalfOpenRequests)

	assert.Equal(t, 50, cfg.Queue.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Queue.Timeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Breaker, cfg.Breaker)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Queue, cfg.Queue)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
breaker:
  threshold: 5
  reset_timeout: 1m
cache:
  l2_threshold: 0.85
queue:
  max_size: 10
templates:
  queued: "position {position}"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// YAML 字段覆盖默认值
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, time.Minute, cfg.Breaker.ResetTimeout)
	assert.Equal(t, 0.85, cfg.Cache.L2Threshold)
	assert.Equal(t, 10, cfg.Queue.MaxSize)
	assert.Equal(t, "position {position}", cfg.Templates.Queued)

	// 省略的字段保留默认值
	assert.Equal(t, 1, cfg.Breaker.HalfOpenRequests)
	assert.Equal(t, 5*time.Minute, cfg.Queue.Timeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("breaker: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMAFLOW_BREAKER_THRESHOLD", "7")
	t.Setenv("OLLAMAFLOW_QUEUE_TIMEOUT", "90s")
	t.Setenv("OLLAMAFLOW_CACHE_L2_THRESHOLD", "0.8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Breaker.Threshold)
	assert.Equal(t, 90*time.Second, cfg.Queue.Timeout)
	assert.Equal(t, 0.8, cfg.Cache.L2Threshold)
}

func TestLoad_EnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("OLLAMAFLOW_BREAKER_THRESHOLD", "not-a-number")
	t.Setenv("OLLAMAFLOW_CACHE_L2_THRESHOLD", "1.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Breaker.Threshold)
	assert.Equal(t, 0.92, cfg.Cache.L2Threshold)
}
