package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studyspace/pkg/audit"
	"studyspace/pkg/config"
	"studyspace/pkg/database"
	"studyspace/pkg/logger"
)

// auditor drains the audit exchange into the audit_records table.
func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or env)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	if cfg.RabbitURL == "" {
		log.Error("RABBIT_URL is required")
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	consumer, err := audit.NewConsumer(cfg.RabbitURL, cfg.AuditExchange, cfg.AuditQueue)
	if err != nil {
		log.Error("rabbitmq consumer", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	msgs, err := consumer.Consume()
	if err != nil {
		log.Error("consume", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("auditor consuming", "exchange", cfg.AuditExchange, "queue", cfg.AuditQueue)
	audit.NewRecorder(db, log).Run(ctx, msgs)
	log.Info("auditor stopped")
}
