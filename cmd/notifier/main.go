// Command notifier consumes order events from Kafka and emits the WhatsApp
// summary of every new order.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wholesale_catalog/internal/config"
	"wholesale_catalog/internal/queue"
	"wholesale_catalog/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogOutput,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.StoreName, cfg.WhatsAppNumber)
	defer c.Close()

	logger.Info(ctx, "order notifier started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	if err := c.Run(ctx); err != nil {
		logger.Error(context.Background(), "order notifier stopped", "error", err)
		_ = c.Close()
		os.Exit(1)
	}
	logger.Info(context.Background(), "order notifier stopped")
}
