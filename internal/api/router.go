package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/payment"
	"github.com/chikitsa360/telehealth-booking/internal/transcription"
)

type RouterConfig struct {
	Engine      *booking.Engine
	Payments    *payment.Service
	Transcripts *transcription.Service
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      *zap.Logger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Doctor availability.
	r.Post("/slots", createSlotHandler(cfg.Engine))
	r.Get("/slots", listSlotsHandler(cfg.Engine))
	r.Delete("/slots/{id}", deleteSlotHandler(cfg.Engine))

	// Appointment lifecycle.
	r.Post("/appointments", bookAppointmentHandler(cfg.Engine))
	r.Get("/appointments", listAppointmentsHandler(cfg.Engine))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Engine))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Engine, cfg.Payments, cfg.Logger))
	r.Post("/appointments/{id}/status", transitionAppointmentHandler(cfg.Engine))
	r.Post("/appointments/{id}/join", joinAppointmentHandler(cfg.Engine))

	// Payment leg.
	r.Post("/appointments/{id}/checkout", checkoutHandler(cfg.Payments))
	r.Post("/payments/callback", paymentCallbackHandler(cfg.Payments))

	// Post-call transcription.
	r.Post("/appointments/{id}/transcription", transcribeHandler(cfg.Transcripts))

	return r
}
