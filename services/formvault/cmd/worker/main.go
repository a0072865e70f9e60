package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formvault/formvault/libs/components/submission"
	"github.com/formvault/formvault/libs/shared/config"
	"github.com/formvault/formvault/libs/shared/database"
	"github.com/formvault/formvault/libs/shared/logging"
	"github.com/formvault/formvault/libs/shared/mq"
	"github.com/formvault/formvault/services/formvault/internal/app"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.ServiceName+"-worker", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.KafkaEnabled() {
		logger.Error("kafka brokers must be configured for the redelivery worker")
		os.Exit(1)
	}

	db := database.ConnectWithDSN(cfg.ServiceName+"-worker", cfg.DatabaseDSN)
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

	worker := submission.NewRedeliveryWorker(components.Pipeline, logger)
	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.RedeliveryTopic,
		GroupID:  cfg.RedeliveryGroup,
		ClientID: cfg.KafkaClientID + "-worker",
	}, worker.HandleMessage)
	if err != nil {
		logger.Error("failed to create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	logger.Info("redelivery worker consuming", "topic", cfg.RedeliveryTopic, "group", cfg.RedeliveryGroup)
	if err := worker.Run(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("redelivery worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("redelivery worker stopped")
}
