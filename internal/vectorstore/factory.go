package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/namingd/internal/config"
	"go.uber.org/zap"
)

// NewIndex creates the Index selected by cfg.Provider:
//   - "qdrant" (default): QdrantIndex, requires a Qdrant server
//   - "chromem": embedded ChromemIndex, in memory unless a path is set
//
// dims is the embedding width every collection uses.
func NewIndex(cfg config.VectorStoreConfig, dims int, logger *zap.Logger) (Index, error) {
	switch cfg.Provider {
	case "qdrant", "":
		return NewQdrantIndex(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			MaxMessageSize: cfg.Qdrant.MaxMessageSize,
		}, logger)
	case "chromem":
		return NewChromemIndex(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			VectorSize: dims,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: qdrant, chromem)", ErrInvalidConfig, cfg.Provider)
	}
}
