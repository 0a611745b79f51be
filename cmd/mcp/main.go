package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/notegraph/graphsearch/internal/adapters/mcp"
	"github.com/notegraph/graphsearch/internal/bootstrap"
	"github.com/notegraph/graphsearch/internal/config"
	"github.com/notegraph/graphsearch/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.NewJSONLogger(os.Stderr, "mcp", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress events have no subscriber in stdio mode.
	cfg.NATSEnabled = false

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close(context.Background())

	srv := mcpadapter.NewServer(app.Searcher, app.Combiner, app.Hierarchy, logger)
	logger.Info("mcp server starting", "version", version)
	if err := srv.Serve(version); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
