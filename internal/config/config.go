// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (RAE_ prefix, runtime override)
//  2. Config file (~/.rae/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Retrieval: strategy timeouts, controller tuning, cache sizing (retrieval.go)
//   - Storage: PostgreSQL connection, bleve index path, embedder model (storage.go)
//   - Observability: OTLP trace export (observability.go)
//
// Validation uses sentinel errors so callers can branch with errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidTimeout indicates a non-positive timeout or deadline.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidCache indicates an out-of-range cache setting.
	ErrInvalidCache = errors.New("invalid cache setting")

	// ErrInvalidController indicates an out-of-range controller setting.
	ErrInvalidController = errors.New("invalid controller setting")

	// ErrInvalidPostgresDSN indicates a missing or malformed DSN.
	ErrInvalidPostgresDSN = errors.New("invalid PostgreSQL DSN")

	// ErrInvalidEmbedderModel indicates an empty embedder model name.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

// Config stores the full application configuration.
type Config struct {
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Load reads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".rae")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("RAE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."},
		)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	setRetrievalDefaults(v)
	setStorageDefaults(v)
	setObservabilityDefaults(v)
}
