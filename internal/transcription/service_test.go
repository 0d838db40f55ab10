package transcription

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

type fakeProvider struct {
	calls  int
	fail   bool
	result Result
}

func (p *fakeProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	p.calls++
	if p.fail {
		return nil, fmt.Errorf("speech service unavailable")
	}
	r := p.result
	return &r, nil
}

type recordingMailer struct {
	sent       int
	recipients []string
	fail       bool
}

func (m *recordingMailer) SendTranscript(ap *booking.Appointment, t *Transcription, recipients []string) error {
	if m.fail {
		return fmt.Errorf("smtp refused")
	}
	m.sent++
	m.recipients = recipients
	return nil
}

type transcriptionFixture struct {
	service  *Service
	store    *MemoryStore
	appts    *booking.MemoryAppointmentStore
	provider *fakeProvider
	mailer   *recordingMailer
}

func newTranscriptionFixture(t *testing.T) *transcriptionFixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)
	appts := booking.NewMemoryAppointmentStore(clk)
	provider := &fakeProvider{result: Result{Transcript: "patient reports improvement", Duration: 612.5}}
	mailer := &recordingMailer{}
	svc := NewService(store, appts, provider, mailer, zap.NewNop())
	return &transcriptionFixture{service: svc, store: store, appts: appts, provider: provider, mailer: mailer}
}

func (f *transcriptionFixture) appointment(t *testing.T) *booking.Appointment {
	t.Helper()
	slot := &booking.Availability{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		Date:        booking.Day(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
		StartMinute: 600,
		EndMinute:   630,
	}
	ap, err := f.appts.Create(context.Background(), uuid.New(), slot, "followup")
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return ap
}

func TestServiceProcess(t *testing.T) {
	audio := []byte("fake-webm-bytes")

	t.Run("transcribes and mails", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		ap := f.appointment(t)
		recipients := []string{"doctor@example.com", "patient@example.com"}

		tr, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", recipients)
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if tr.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", tr.Status)
		}
		if tr.Content != "patient reports improvement" {
			t.Errorf("content = %q", tr.Content)
		}
		if tr.AudioDuration != 612.5 {
			t.Errorf("duration = %v", tr.AudioDuration)
		}
		if f.mailer.sent != 1 || len(f.mailer.recipients) != 2 {
			t.Errorf("mailer sent %d to %v", f.mailer.sent, f.mailer.recipients)
		}
	})

	t.Run("completed record is returned without reprocessing", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		ap := f.appointment(t)

		if _, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", nil); err != nil {
			t.Fatalf("first process: %v", err)
		}
		if _, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", nil); err != nil {
			t.Fatalf("second process: %v", err)
		}
		if f.provider.calls != 1 {
			t.Errorf("provider called %d times, want 1", f.provider.calls)
		}
	})

	t.Run("provider failure is recorded as FAILED", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		ap := f.appointment(t)
		f.provider.fail = true

		tr, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if tr == nil || tr.Status != StatusFailed {
			t.Fatalf("got %+v, want FAILED record", tr)
		}
		if tr.ErrorMessage == "" {
			t.Error("expected error message to be recorded")
		}

		stored, err := f.store.GetByAppointment(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if stored.Status != StatusFailed {
			t.Errorf("persisted status = %s, want FAILED", stored.Status)
		}
		if f.mailer.sent != 0 {
			t.Error("no mail should go out on failure")
		}
	})

	t.Run("failed record is retried on resubmission", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		ap := f.appointment(t)

		f.provider.fail = true
		if _, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", nil); err == nil {
			t.Fatal("expected first process to fail")
		}

		f.provider.fail = false
		tr, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", nil)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if tr.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", tr.Status)
		}
		if tr.ErrorMessage != "" {
			t.Errorf("error message = %q, want cleared", tr.ErrorMessage)
		}
		if f.provider.calls != 2 {
			t.Errorf("provider called %d times, want 2", f.provider.calls)
		}
	})

	t.Run("mail failure does not fail the transcript", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		ap := f.appointment(t)
		f.mailer.fail = true

		tr, err := f.service.Process(context.Background(), ap.ID, audio, "audio/webm", []string{"doctor@example.com"})
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if tr.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", tr.Status)
		}
	})

	t.Run("unknown appointment", func(t *testing.T) {
		f := newTranscriptionFixture(t)
		if _, err := f.service.Process(context.Background(), uuid.New(), audio, "audio/webm", nil); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}
