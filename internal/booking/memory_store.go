package booking

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

// In-memory store implementations. They honor the same contracts as the
// Postgres stores (including the atomic claim) and back the engine tests
// and local experimentation without a database.

type MemorySlotStore struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Availability
	clock clock.Clock
}

func NewMemorySlotStore(clk clock.Clock) *MemorySlotStore {
	return &MemorySlotStore{
		slots: make(map[uuid.UUID]*Availability),
		clock: clk,
	}
}

func (s *MemorySlotStore) Create(ctx context.Context, slot *Availability) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	slot.Date = Day(slot.Date)
	if slot.StartAt().Before(s.clock.Now()) {
		return fmt.Errorf("%w: slot is in the past", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.slots {
		if existing.DoctorID == slot.DoctorID &&
			existing.Date.Equal(slot.Date) &&
			existing.StartMinute == slot.StartMinute {
			return fmt.Errorf("%w: doctor already has a slot at this date and time", ErrValidation)
		}
	}

	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	now := s.clock.Now()
	slot.IsBooked = false
	slot.CreatedAt = now
	slot.UpdatedAt = now

	stored := *slot
	s.slots[slot.ID] = &stored
	return nil
}

func (s *MemorySlotStore) Get(ctx context.Context, id uuid.UUID) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *MemorySlotStore) Claim(ctx context.Context, id uuid.UUID) (*Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	if slot.IsBooked {
		return nil, ErrSlotUnavailable
	}
	slot.IsBooked = true
	slot.UpdatedAt = s.clock.Now()
	cp := *slot
	return &cp, nil
}

func (s *MemorySlotStore) Release(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slots[id]; ok {
		slot.IsBooked = false
		slot.UpdatedAt = s.clock.Now()
	}
	return nil
}

func (s *MemorySlotStore) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return ErrNotFound
	}
	if actor.Role == RoleDoctor && actor.ID != slot.DoctorID {
		return ErrForbidden
	}
	if actor.Role != RoleDoctor && actor.Role != RoleAdmin {
		return ErrForbidden
	}
	if slot.IsBooked {
		return fmt.Errorf("%w: cannot delete a booked slot", ErrSlotUnavailable)
	}
	delete(s.slots, id)
	return nil
}

func (s *MemorySlotStore) Find(ctx context.Context, doctorID uuid.UUID, from, to time.Time, unbookedOnly bool) iter.Seq2[*Availability, error] {
	return func(yield func(*Availability, error) bool) {
		s.mu.Lock()
		var result []Availability
		for _, slot := range s.slots {
			if slot.DoctorID != doctorID {
				continue
			}
			if slot.Date.Before(Day(from)) || slot.Date.After(Day(to)) {
				continue
			}
			if unbookedOnly && slot.IsBooked {
				continue
			}
			result = append(result, *slot)
		}
		s.mu.Unlock()

		sort.Slice(result, func(i, j int) bool {
			if !result[i].Date.Equal(result[j].Date) {
				return result[i].Date.Before(result[j].Date)
			}
			return result[i].StartMinute < result[j].StartMinute
		})

		for i := range result {
			if !yield(&result[i], nil) {
				return
			}
		}
	}
}

type MemoryAppointmentStore struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	clock clock.Clock
}

func NewMemoryAppointmentStore(clk clock.Clock) *MemoryAppointmentStore {
	return &MemoryAppointmentStore{
		appts: make(map[uuid.UUID]*Appointment),
		clock: clk,
	}
}

func (s *MemoryAppointmentStore) Create(ctx context.Context, patientID uuid.UUID, slot *Availability, reason string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// At most one live appointment may reference a slot.
	for _, existing := range s.appts {
		if existing.AvailabilityID != nil && *existing.AvailabilityID == slot.ID && existing.Status != StatusCancelled {
			return nil, fmt.Errorf("%w: slot already referenced by appointment %s", ErrSlotUnavailable, existing.ID)
		}
	}

	now := s.clock.Now()
	availabilityID := slot.ID
	ap := &Appointment{
		ID:             uuid.New(),
		PatientID:      patientID,
		DoctorID:       slot.DoctorID,
		AvailabilityID: &availabilityID,
		Date:           slot.Date,
		StartMinute:    slot.StartMinute,
		Status:         StatusRequested,
		Reason:         reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.appts[ap.ID] = ap
	cp := *ap
	return &cp, nil
}

func (s *MemoryAppointmentStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ap
	return &cp, nil
}

func (s *MemoryAppointmentStore) Transition(ctx context.Context, id uuid.UUID, target Status, actor Actor) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(ap.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ap.Status, target)
	}
	if !allowedActor(ap, ap.Status, target, actor) {
		return nil, ErrForbidden
	}
	ap.Status = target
	ap.UpdatedAt = s.clock.Now()
	cp := *ap
	return &cp, nil
}

func (s *MemoryAppointmentStore) FindByParty(ctx context.Context, userID uuid.UUID, role Role) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Appointment
	for _, ap := range s.appts {
		switch role {
		case RolePatient:
			if ap.PatientID != userID {
				continue
			}
		case RoleDoctor:
			if ap.DoctorID != userID {
				continue
			}
		case RoleAdmin:
		default:
			return nil, ErrForbidden
		}
		result = append(result, *ap)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].StartMinute > result[j].StartMinute
	})
	return result, nil
}

func (s *MemoryAppointmentStore) SetVideoRoom(ctx context.Context, id uuid.UUID, roomID string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	ap.VideoRoomID = roomID
	ap.UpdatedAt = s.clock.Now()
	cp := *ap
	return &cp, nil
}

func (s *MemoryAppointmentStore) FindStaleRequested(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Appointment
	for _, ap := range s.appts {
		if ap.Status == StatusRequested && ap.CreatedAt.Before(cutoff) {
			result = append(result, *ap)
		}
	}
	return result, nil
}

// MemoryTxRunner serializes compound operations with a mutex. It cannot
// roll back partial work the way the Postgres runner can; it exists for
// tests and local use where the stores themselves never fail mid-compound.
type MemoryTxRunner struct {
	mu sync.Mutex
}

func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (r *MemoryTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
