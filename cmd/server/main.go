package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studyspace/pkg/api"
	"studyspace/pkg/audit"
	"studyspace/pkg/config"
	"studyspace/pkg/database"
	"studyspace/pkg/lock"
	"studyspace/pkg/logger"
	"studyspace/pkg/occupancy"
)

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
	log.Info("starting occupancy server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}
	if cfg.SeedDemoData {
		if err := seedDemoData(db, log); err != nil {
			log.Error("seed demo data", "err", err)
			os.Exit(1)
		}
	}

	opts, err := serviceOptions(cfg, log)
	if err != nil {
		log.Error("service options", "err", err)
		os.Exit(1)
	}

	if cfg.RedisAddr != "" {
		rdb := lock.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, resource locks fall back to row locks", "addr", cfg.RedisAddr, "err", err)
		}
		opts.Locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
	}

	auditDone := make(chan struct{})
	if cfg.RabbitURL == "" {
		close(auditDone)
	} else {
		pub, err := audit.NewPublisher(cfg.RabbitURL, cfg.AuditExchange)
		if err != nil {
			log.Warn("audit publisher unavailable, audit events disabled", "err", err)
			close(auditDone)
		} else {
			defer pub.Close()
			dispatcher := audit.NewDispatcher(pub, log)
			go func() {
				defer close(auditDone)
				dispatcher.Run(ctx, 10*time.Second)
			}()
			opts.Notifier = dispatcher
		}
	}

	svc := occupancy.NewService(db, opts)
	if cfg.ExpirySweepInterval > 0 {
		go svc.RunExpirySweep(ctx, cfg.ExpirySweepInterval)
	}

	router := api.NewRouter(api.NewHandler(svc, log), cfg.MetricsEnabled)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	cancel()
	<-auditDone
}

// serviceOptions builds the occupancy options that come straight from config.
func serviceOptions(cfg config.Config, log *slog.Logger) (occupancy.Options, error) {
	statuses, err := cfg.ReassignStatuses()
	if err != nil {
		return occupancy.Options{}, err
	}
	return occupancy.Options{ReassignStatuses: statuses, Logger: log}, nil
}
