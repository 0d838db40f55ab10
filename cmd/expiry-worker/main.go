package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
	"github.com/chikitsa360/telehealth-booking/internal/config"
	"github.com/chikitsa360/telehealth-booking/internal/db"
	"github.com/chikitsa360/telehealth-booking/internal/logging"
	redisclient "github.com/chikitsa360/telehealth-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("expiry-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("request_ttl", cfg.RequestTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	clk := clock.System{}
	slots := booking.NewPgSlotStore(pgPool, clk)
	appts := booking.NewPgAppointmentStore(pgPool)
	txRunner := db.NewPgxTxRunner(pgPool)

	engine := booking.NewEngine(slots, appts, txRunner, nil, redisclient.NoopLocker{}, clk, logger)

	runOnce(rootCtx, engine, cfg.RequestTTL, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, engine, cfg.RequestTTL, logger)
		}
	}
}

func runOnce(ctx context.Context, engine *booking.Engine, ttl time.Duration, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	expired, err := engine.ExpireStaleRequests(runCtx, ttl)
	if err != nil {
		logger.Error("expiry run error", zap.Error(err))
		return
	}
	logger.Info("expiry run complete",
		zap.Int("expired", expired),
		zap.Duration("elapsed", time.Since(start)),
	)
}
