// Package bootstrap wires infrastructure into the core use cases once, for
// both entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/notegraph/graphsearch/internal/config"
	"github.com/notegraph/graphsearch/internal/core/ports"
	"github.com/notegraph/graphsearch/internal/core/usecase"
	neo4jstore "github.com/notegraph/graphsearch/internal/infrastructure/graph/neo4j"
	"github.com/notegraph/graphsearch/internal/infrastructure/llm/ollama"
	"github.com/notegraph/graphsearch/internal/infrastructure/queue/nats"
	"github.com/notegraph/graphsearch/internal/infrastructure/repository/postgres"
	"github.com/notegraph/graphsearch/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Searcher  ports.BlockSearcher
	Combiner  ports.ResultCombiner
	Hierarchy ports.HierarchyService

	closeFn func(context.Context)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	results := postgres.NewResultRepository(db)
	if err := results.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	graph, err := neo4jstore.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, executor, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init graph store: %w", err)
	}

	var progress ports.ProgressSink = nats.NoopSink{}
	var sink *nats.Sink
	if cfg.NATSEnabled {
		sink, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = graph.Close(ctx)
			_ = db.Close()
			return nil, fmt.Errorf("init progress sink: %w", err)
		}
		progress = sink
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.ExpandRatePerSec), cfg.ExpandRateBurst)
	expander := ollama.NewExpander(ollama.New(cfg.OllamaURL, cfg.OllamaModel, limiter))

	searchUC := usecase.NewSearchUseCaseWithOptions(graph, usecase.SearchOptions{
		Expander:     expander,
		Store:        results,
		Progress:     progress,
		DefaultLimit: cfg.SearchDefaultLimit,
		Logger:       logger,
	})
	combineUC := usecase.NewCombineUseCase(results, logger)
	hierarchyUC := usecase.NewHierarchyUseCase(graph, progress, logger)

	return &App{
		Config:    cfg,
		Searcher:  searchUC,
		Combiner:  combineUC,
		Hierarchy: hierarchyUC,

		closeFn: func(ctx context.Context) {
			if sink != nil {
				sink.Close()
			}
			_ = graph.Close(ctx)
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a.closeFn != nil {
		a.closeFn(ctx)
	}
}
