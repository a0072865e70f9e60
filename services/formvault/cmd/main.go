package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formvault/formvault/libs/shared/config"
	"github.com/formvault/formvault/libs/shared/database"
	"github.com/formvault/formvault/libs/shared/httpx"
	"github.com/formvault/formvault/libs/shared/logging"
	"github.com/formvault/formvault/services/formvault/internal/app"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.ConnectWithDSN(cfg.ServiceName, cfg.DatabaseDSN)
	if err := app.Migrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	components, err := app.Build(ctx, cfg, db, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to build components", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	server := httpx.New()
	components.Mount(server.Router, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("formvault api listening", "addr", cfg.Addr(), "kafka", cfg.KafkaEnabled(), "redis", cfg.RedisEnabled())
		errCh <- server.Start(cfg.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("formvault api stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := server.Shutdown(context.Background(), cfg.ShutdownGrace); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("formvault api stopped")
}
