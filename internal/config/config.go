// Package config loads namingd configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// NAMINGD_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/namingd/internal/logging"
	"github.com/fyrsmithlabs/namingd/internal/telemetry"
)

// Config holds the complete namingd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Vocabulary  VocabularyConfig  `koanf:"vocabulary"`
	Search      SearchConfig      `koanf:"search"`
	Mirror      MirrorConfig      `koanf:"mirror"`
	Events      EventsConfig      `koanf:"events"`
	Auth        AuthConfig        `koanf:"auth"`
	Logging     logging.Config    `koanf:"logging"`
	Telemetry   telemetry.Config  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	BodyLimit       string   `koanf:"body_limit"`
	RateLimit       float64  `koanf:"rate_limit"` // public requests per second per client, 0 disables
	RateBurst       int      `koanf:"rate_burst"`
}

// DatabaseConfig holds catalog database configuration.
type DatabaseConfig struct {
	Driver          string   `koanf:"driver"` // postgres or sqlite
	DSN             Secret   `koanf:"dsn"`
	MaxOpenConns    int      `koanf:"max_open_conns"`
	MaxIdleConns    int      `koanf:"max_idle_conns"`
	ConnMaxLifetime Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool     `koanf:"auto_migrate"`
}

// VectorStoreConfig selects and configures the similarity index backend.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // qdrant or chromem
	Qdrant   QdrantConfig  `koanf:"qdrant"`
	Chromem  ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	UseTLS         bool   `koanf:"use_tls"`
	APIKey         Secret `koanf:"api_key"`
	MaxMessageSize int    `koanf:"max_message_size"`
}

// ChromemConfig holds embedded index settings. An empty path keeps the
// index in memory only.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider  string   `koanf:"provider"` // fastembed, tei or openai
	Model     string   `koanf:"model"`
	Dimension int      `koanf:"dimension"` // required for tei and openai
	CacheDir  string   `koanf:"cache_dir"`
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	Timeout   Duration `koanf:"timeout"`
	BatchSize int      `koanf:"batch_size"`
}

// VocabularyConfig configures the segmentation dictionary.
type VocabularyConfig struct {
	DictFile      string  `koanf:"dict_file"`
	Watch         bool    `koanf:"watch"`
	CatalogWeight float64 `koanf:"catalog_weight"`
}

// SearchConfig bounds the two query tiers.
type SearchConfig struct {
	LexicalLimit int `koanf:"lexical_limit"`
	SemanticK    int `koanf:"semantic_k"`
}

// MirrorConfig configures similarity index maintenance.
type MirrorConfig struct {
	PageSize      int  `koanf:"page_size"`
	ResyncOnStart bool `koanf:"resync_on_start"`
}

// EventsConfig configures NATS event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// AuthConfig holds admin API credentials. An unset token leaves the admin
// API open, which is only suitable for local use.
type AuthConfig struct {
	AdminToken Secret `koanf:"admin_token"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
			BodyLimit:       "2M",
			RateLimit:       20,
			RateBurst:       40,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			DSN:             "host=localhost user=namingd dbname=namingd sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
			AutoMigrate:     true,
		},
		VectorStore: VectorStoreConfig{
			Provider: "qdrant",
			Qdrant: QdrantConfig{
				Host:           "localhost",
				Port:           6334,
				MaxMessageSize: 50 * 1024 * 1024,
			},
			Chromem: ChromemConfig{Compress: true},
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "fastembed",
			Model:     "BAAI/bge-small-zh-v1.5",
			CacheDir:  "local_cache",
			BaseURL:   "http://localhost:8081",
			Timeout:   Duration(30 * time.Second),
			BatchSize: 256,
		},
		Vocabulary: VocabularyConfig{
			CatalogWeight: 99999,
		},
		Search: SearchConfig{
			LexicalLimit: 10,
			SemanticK:    5,
		},
		Mirror: MirrorConfig{
			PageSize:      256,
			ResyncOnStart: true,
		},
		Events: EventsConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "namingd",
		},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port %d out of range 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst < 1) {
		errs = append(errs, errors.New("server.rate_limit must be >= 0 with rate_burst >= 1"))
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if !c.Database.DSN.IsSet() {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" || c.VectorStore.Qdrant.Port <= 0 {
			errs = append(errs, errors.New("vectorstore.qdrant host and port are required"))
		}
	case "chromem":
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider must be qdrant or chromem, got %q", c.VectorStore.Provider))
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei", "openai":
		if c.Embeddings.BaseURL == "" {
			errs = append(errs, fmt.Errorf("embeddings.base_url is required for %s", c.Embeddings.Provider))
		}
		if c.Embeddings.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("embeddings.dimension is required for %s", c.Embeddings.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be fastembed, tei or openai, got %q", c.Embeddings.Provider))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, errors.New("embeddings.batch_size must be positive"))
	}

	if c.Vocabulary.CatalogWeight <= 0 {
		errs = append(errs, errors.New("vocabulary.catalog_weight must be positive"))
	}
	if c.Search.LexicalLimit < 1 || c.Search.SemanticK < 1 {
		errs = append(errs, errors.New("search.lexical_limit and search.semantic_k must be >= 1"))
	}
	if c.Mirror.PageSize < 1 {
		errs = append(errs, errors.New("mirror.page_size must be >= 1"))
	}
	if c.Events.Enabled {
		if c.Events.URL == "" {
			errs = append(errs, errors.New("events.url is required when events are enabled"))
		}
		if !subjectPattern.MatchString(c.Events.SubjectPrefix) {
			errs = append(errs, fmt.Errorf("events.subject_prefix %q is not a valid subject", c.Events.SubjectPrefix))
		}
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
