package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assetwatch/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Start(ctx); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Stop()

	server := app.NewServer(bootstrap.Config, bootstrap.Manager)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	slog.InfoContext(ctx, "✨ AssetWatch fully operational. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			slog.Error("❌ HTTP server failed", slog.Any("error", err))
		}
	}

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	if err := server.Shutdown(context.Background()); err != nil {
		slog.Warn("HTTP shutdown incomplete", slog.Any("error", err))
	}
}
