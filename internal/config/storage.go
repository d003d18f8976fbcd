package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// StorageConfig holds connection settings for the retrieval backends.
type StorageConfig struct {
	// PostgresDSN is the connection string for the memory store
	// (vector, facts, and entity-graph strategies).
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// BleveIndexPath is the on-disk path of the lexical index. Empty means
	// an in-memory index, which does not survive restarts.
	BleveIndexPath string `mapstructure:"bleve_index_path"`

	// EmbedderModel is the embedding model for the vector strategy.
	EmbedderModel string `mapstructure:"embedder_model"`
}

func setStorageDefaults(v *viper.Viper) {
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.bleve_index_path", "")
	v.SetDefault("storage.embedder_model", "text-embedding-004")
}

// Validate checks the section. The DSN must be present: every strategy but
// full-text reads from PostgreSQL.
func (c StorageConfig) Validate() error {
	dsn := strings.TrimSpace(c.PostgresDSN)
	if dsn == "" {
		return fmt.Errorf("%w: storage.postgres_dsn is required", ErrInvalidPostgresDSN)
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") && !strings.Contains(dsn, "=") {
		return fmt.Errorf("%w: %q is neither a URL nor a key/value DSN", ErrInvalidPostgresDSN, dsn)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: storage.embedder_model is required", ErrInvalidEmbedderModel)
	}
	return nil
}
