package dynamo

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/YanshiHu/dynamo-release/logging"
)

// Config holds the session defaults, read from DYNAMO_-prefixed
// environment variables.
type Config struct {
	// Basis is the embedding used when an operation does not name one.
	Basis string `envconfig:"BASIS" default:"pca"`
	// Workers bounds the goroutines of the parallel Jacobian paths.
	Workers int `envconfig:"WORKERS" default:"1"`
	// BatchSize bounds the rows a divergence run differentiates at
	// once; 0 differentiates everything in one batch.
	BatchSize int `envconfig:"BATCH_SIZE" default:"0"`
	// SampleSize is the subset size when an operation samples cells.
	SampleSize int `envconfig:"SAMPLE_SIZE" default:"1000"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// LogDevelopment switches to the console log encoding.
	LogDevelopment bool `envconfig:"LOG_DEV" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("dynamo", &cfg); err != nil {
		return nil, fmt.Errorf("dynamo: load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads the configuration from the environment, falling
// back to the defaults when that fails.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Basis:      "pca",
		Workers:    1,
		BatchSize:  0,
		SampleSize: 1000,
		LogLevel:   "info",
	}
}

// Logger builds a logger from the configured level and encoding.
func (c *Config) Logger() (*logging.Logger, error) {
	return logging.New(logging.Config{Level: c.LogLevel, Development: c.LogDevelopment})
}
