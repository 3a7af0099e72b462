package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/bankrecon-backend/internal/api"
	"github.com/ledgerline/bankrecon-backend/internal/domain/recon"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/config"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/logging"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(configPath)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "server")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	engine := recon.NewEngine(store, logger)

	serverCfg := api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if len(serverCfg.AllowedOrigins) == 0 {
		serverCfg.AllowedOrigins = api.DefaultConfig().AllowedOrigins
	}

	srv := api.NewServer(serverCfg, store, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	}
}
