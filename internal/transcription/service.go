package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
)

// Service runs the transcription lifecycle for a finished consultation:
// PENDING -> PROCESSING -> COMPLETED | FAILED. COMPLETED is terminal; a
// FAILED record is retried when the recording is submitted again.
type Service struct {
	store    Store
	appts    booking.AppointmentStore
	provider Provider
	mailer   Mailer
	logger   *zap.Logger
}

func NewService(store Store, appts booking.AppointmentStore, provider Provider, mailer Mailer, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		appts:    appts,
		provider: provider,
		mailer:   mailer,
		logger:   logger,
	}
}

// Process transcribes the recording of an appointment and emails the
// transcript to the given recipients. The caller (request layer) resolves
// party email addresses; the core only knows ids.
func (s *Service) Process(ctx context.Context, appointmentID uuid.UUID, audio []byte, mimeType string, recipients []string) (*Transcription, error) {
	ap, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	t, err := s.store.GetByAppointment(ctx, appointmentID)
	switch {
	case errors.Is(err, booking.ErrNotFound):
		t = &Transcription{
			AppointmentID: appointmentID,
			Status:        StatusPending,
		}
		if err := s.store.Create(ctx, t); err != nil {
			return nil, fmt.Errorf("create transcription: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load transcription: %w", err)
	case t.Status == StatusCompleted:
		return t, nil
	}

	t.Status = StatusProcessing
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	result, err := s.provider.Transcribe(ctx, audio, mimeType)
	if err != nil {
		t.Status = StatusFailed
		t.ErrorMessage = err.Error()
		if updErr := s.store.Update(ctx, t); updErr != nil {
			s.logger.Error("failed to record transcription failure",
				zap.String("appointment_id", appointmentID.String()),
				zap.Error(updErr))
		}
		return t, fmt.Errorf("transcribe audio: %w", err)
	}

	t.Status = StatusCompleted
	t.Content = result.Transcript
	t.ErrorMessage = ""
	t.AudioDuration = result.Duration
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("store transcript: %w", err)
	}

	if err := s.mailer.SendTranscript(ap, t, recipients); err != nil {
		// Delivery failure does not invalidate the transcript.
		s.logger.Error("transcript mail delivery failed",
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}

	s.logger.Info("transcription completed",
		zap.String("appointment_id", appointmentID.String()),
		zap.Float64("audio_seconds", result.Duration))
	return t, nil
}

// GetByAppointment exposes the transcription record for detail views.
func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transcription, error) {
	return s.store.GetByAppointment(ctx, appointmentID)
}
