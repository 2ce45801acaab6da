package search

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/embeddings"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
)

// FactoryConfig selects and configures the search engine implementation.
type FactoryConfig struct {
	// Engine is "linear" (scan the store per query) or "chromem"
	// (embedded vector index mirrored from the store).
	Engine string

	// IndexPath is the chromem persistence directory (chromem only).
	IndexPath string
}

// NewEngine creates the configured search engine.
func NewEngine(cfg FactoryConfig, store equipment.Store, provider embeddings.Provider, logger *zap.Logger) (Engine, error) {
	switch cfg.Engine {
	case "linear", "":
		return NewLinearEngine(store, provider, logger)
	case "chromem":
		return NewChromemEngine(ChromemConfig{Path: cfg.IndexPath}, store, provider, logger)
	default:
		return nil, fmt.Errorf("unknown search engine %q", cfg.Engine)
	}
}
