package transcription

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

// Store owns Transcription rows, 1:1 with appointments.
type Store interface {
	Create(ctx context.Context, t *Transcription) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transcription, error)
	Update(ctx context.Context, t *Transcription) error
}

// MemoryStore is the in-memory Store used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Transcription // keyed by appointment id
	clock   clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Transcription),
		clock:   clk,
	}
}

func (s *MemoryStore) Create(ctx context.Context, t *Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := s.clock.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	s.records[t.AppointmentID] = &cp
	return nil
}

func (s *MemoryStore) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[appointmentID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[t.AppointmentID]; !ok {
		return booking.ErrNotFound
	}
	t.UpdatedAt = s.clock.Now()
	cp := *t
	s.records[t.AppointmentID] = &cp
	return nil
}
