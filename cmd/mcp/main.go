package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcplocal "github.com/felixgeelhaar/multiocr/adapter/mcp"
	"github.com/felixgeelhaar/multiocr/internal/app"
	mcpinternal "github.com/felixgeelhaar/multiocr/internal/mcp"
	"github.com/felixgeelhaar/multiocr/pkg/config"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, version)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	deps := mcplocal.ToolDependencies{
		Service:  container.Manager,
		Checks:   container.Checks,
		Version:  version,
		MaxDepth: cfg.MaxDepth,
	}
	if err := mcpinternal.Serve(ctx, cfg, deps, container.Logger); err != nil && !errors.Is(err, context.Canceled) {
		container.Logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
