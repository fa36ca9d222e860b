// Command diamondd runs a diamond node with its HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/app"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/config"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg := logger.New("diamondd", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.WithError(err).Fatal("Failed to initialize")
	}
	if err := a.Start(ctx); err != nil {
		lg.WithError(err).Fatal("Failed to start")
	}

	<-ctx.Done()
	lg.Info("Shutting down")
	if err := a.Stop(context.Background()); err != nil {
		lg.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
