package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

// Store owns Payment and Receipt rows, each 1:1 with an appointment.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentRef, signature string) (*Payment, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
	MarkRefunded(ctx context.Context, id uuid.UUID) (*Payment, error)
	CreateReceipt(ctx context.Context, r *Receipt) error
	GetReceiptByPayment(ctx context.Context, paymentID uuid.UUID) (*Receipt, error)
}

// MemoryStore is the in-memory Store used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
	receipts map[uuid.UUID]*Receipt // keyed by payment id
	clock    clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		payments: make(map[uuid.UUID]*Payment),
		receipts: make(map[uuid.UUID]*Receipt),
		clock:    clk,
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.AppointmentID == appointmentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, booking.ErrNotFound
}

func (s *MemoryStore) GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderRef == orderRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, booking.ErrNotFound
}

func (s *MemoryStore) MarkCompleted(ctx context.Context, id uuid.UUID, paymentRef, signature string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	p.PaymentRef = paymentRef
	p.Signature = signature
	p.Status = StatusCompleted
	p.UpdatedAt = s.clock.Now()
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return booking.ErrNotFound
	}
	p.Status = StatusFailed
	p.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemoryStore) MarkRefunded(ctx context.Context, id uuid.UUID) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	p.Status = StatusRefunded
	p.UpdatedAt = s.clock.Now()
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateReceipt(ctx context.Context, r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = s.clock.Now()
	cp := *r
	s.receipts[r.PaymentID] = &cp
	return nil
}

func (s *MemoryStore) GetReceiptByPayment(ctx context.Context, paymentID uuid.UUID) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[paymentID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *r
	return &cp, nil
}
