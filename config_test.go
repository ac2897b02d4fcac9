package dynamo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "pca", cfg.Basis)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 0, cfg.BatchSize)
	assert.Equal(t, 1000, cfg.SampleSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDevelopment)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DYNAMO_BASIS", "umap")
	t.Setenv("DYNAMO_WORKERS", "4")
	t.Setenv("DYNAMO_SAMPLE_SIZE", "250")
	t.Setenv("DYNAMO_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "umap", cfg.Basis)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 250, cfg.SampleSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0, cfg.BatchSize)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("DYNAMO_WORKERS", "not a number")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, Default(), LoadOrDefault())
}

func TestConfigLogger(t *testing.T) {
	log, err := Default().Logger()
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("session configured")
}
