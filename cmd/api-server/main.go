package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/api"
	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
	"github.com/chikitsa360/telehealth-booking/internal/config"
	"github.com/chikitsa360/telehealth-booking/internal/db"
	"github.com/chikitsa360/telehealth-booking/internal/logging"
	"github.com/chikitsa360/telehealth-booking/internal/payment"
	redisclient "github.com/chikitsa360/telehealth-booking/internal/redis"
	"github.com/chikitsa360/telehealth-booking/internal/transcription"
	"github.com/chikitsa360/telehealth-booking/internal/video"
)

const version = "1.0.0"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	clk := clock.System{}
	slots := booking.NewPgSlotStore(pgPool, clk)
	appts := booking.NewPgAppointmentStore(pgPool)
	txRunner := db.NewPgxTxRunner(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	videoProvider := video.NewDailyProvider(cfg.DailyAPIKey, cfg.DailyBaseURL)

	engine := booking.NewEngine(slots, appts, txRunner, videoProvider, locker, clk, logger)

	gateway := payment.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	payments := payment.NewService(
		payment.NewPgStore(pgPool),
		appts,
		gateway,
		clk,
		logger,
		cfg.ConsultationFee,
		cfg.Currency,
	)

	sttProvider := transcription.NewDeepgramProvider(cfg.DeepgramAPIKey, cfg.DeepgramBaseURL)
	mailer := transcription.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	transcripts := transcription.NewService(
		transcription.NewPgStore(pgPool),
		appts,
		sttProvider,
		mailer,
		logger,
	)

	router := api.NewRouter(api.RouterConfig{
		Engine:      engine,
		Payments:    payments,
		Transcripts: transcripts,
		PgPool:      pgPool,
		Redis:       rdb,
		Logger:      logger,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}

	logger.Info("api-server stopped")
}
