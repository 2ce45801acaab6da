// Inventoryd is a multi-tenant equipment inventory service with a
// conversational copilot and semantic search.
//
// Usage:
//
//	# Start the server with defaults
//	inventoryd serve
//
//	# Configure via file and environment
//	inventoryd serve --config /etc/inventoryd/config.yaml
//	INVENTORYD_SERVER_PORT=9090 inventoryd serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/config"
	"github.com/fyrsmithlabs/inventoryd/internal/copilot"
	"github.com/fyrsmithlabs/inventoryd/internal/embeddings"
	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	httpserver "github.com/fyrsmithlabs/inventoryd/internal/http"
	"github.com/fyrsmithlabs/inventoryd/internal/logging"
	"github.com/fyrsmithlabs/inventoryd/internal/search"
	"github.com/fyrsmithlabs/inventoryd/internal/vectorizer"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "inventoryd",
		Short:         "Multi-tenant equipment inventory service with copilot and semantic search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the inventoryd server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("inventoryd by Fyrsmith Labs\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", gitCommit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	}

	root.AddCommand(serve, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all dependencies and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Opens the equipment store and CRUD service
//  4. Creates the embedding provider and search engine
//  5. Wires the copilot (tool registry + orchestrator)
//  6. Starts the vectorizer and HTTP server
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting inventoryd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("search_engine", cfg.Search.Engine),
	)

	store, err := equipment.NewMemoryStore(equipment.MemoryStoreConfig{
		Path: cfg.Store.Path,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	equipmentSvc, err := equipment.NewService(store, logger)
	if err != nil {
		return fmt.Errorf("creating equipment service: %w", err)
	}

	provider, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	engine, err := search.NewEngine(search.FactoryConfig{
		Engine:    cfg.Search.Engine,
		IndexPath: cfg.Search.IndexPath,
	}, store, provider, logger)
	if err != nil {
		return fmt.Errorf("creating search engine: %w", err)
	}

	// The chromem engine mirrors the store; backfill known tenants before
	// serving queries.
	if chromemEngine, ok := engine.(*search.ChromemEngine); ok {
		tenants, err := store.Tenants(ctx)
		if err != nil {
			return fmt.Errorf("listing tenants: %w", err)
		}
		if err := chromemEngine.Start(ctx, tenants); err != nil {
			return fmt.Errorf("starting search index: %w", err)
		}
		defer chromemEngine.Stop()
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.Copilot.BaseURL),
		openai.WithModel(cfg.Copilot.Model),
		openai.WithToken(cfg.Copilot.APIKey),
	)
	if err != nil {
		return fmt.Errorf("creating chat model: %w", err)
	}

	registry := copilot.NewRegistry(logger)
	createTool, err := copilot.NewCreateEquipmentTool(equipmentSvc, logger)
	if err != nil {
		return fmt.Errorf("creating copilot tool: %w", err)
	}
	registry.Register(createTool)

	orchestrator, err := copilot.NewOrchestrator(model, registry, copilot.OrchestratorConfig{
		MaxToolRounds: cfg.Copilot.MaxToolRounds,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	if cfg.Vectorizer.Enabled {
		vec, err := vectorizer.New(store, provider, vectorizer.Config{
			SweepInterval: cfg.Vectorizer.SweepInterval,
			RatePerSecond: cfg.Vectorizer.RatePerSecond,
		}, logger)
		if err != nil {
			return fmt.Errorf("creating vectorizer: %w", err)
		}
		vec.Start(ctx)
		defer vec.Stop()

		// Records written before this process started never appear on the
		// change feed; sweep them now so the index catches up.
		tenants, err := store.Tenants(ctx)
		if err != nil {
			return fmt.Errorf("listing tenants: %w", err)
		}
		for _, tenantID := range tenants {
			if err := vec.SweepTenant(ctx, tenantID); err != nil {
				logger.Warn("startup vectorize sweep had failures",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
			}
		}
	}

	srv, err := httpserver.NewServer(httpserver.Config{
		Host:                cfg.Server.Host,
		Port:                cfg.Server.Port,
		RequestTimeout:      cfg.Server.RequestTimeout,
		ShutdownTimeout:     cfg.Server.ShutdownTimeout,
		SearchMaxResults:    cfg.Search.MaxResults,
		SearchMinSimilarity: float32(cfg.Search.MinSimilarity),
	}, equipmentSvc, engine, orchestrator, copilot.NewSessions(), logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	return srv.Start(ctx)
}
