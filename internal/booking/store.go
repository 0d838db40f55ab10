package booking

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// SlotStore owns Availability rows. Claim is the single point where
// concurrency correctness matters: it must be an atomic conditional update
// on the is_booked flag, not a read-then-write.
type SlotStore interface {
	Create(ctx context.Context, slot *Availability) error
	Get(ctx context.Context, id uuid.UUID) (*Availability, error)

	// Claim atomically flips is_booked false -> true. Under concurrent
	// callers exactly one succeeds; the rest fail with ErrSlotUnavailable.
	Claim(ctx context.Context, id uuid.UUID) (*Availability, error)

	// Release flips is_booked back to false. Idempotent.
	Release(ctx context.Context, id uuid.UUID) error

	// Delete removes an unbooked slot owned by the acting doctor.
	Delete(ctx context.Context, id uuid.UUID, actor Actor) error

	// Find yields slots for a doctor within [from, to] ordered by
	// (date, start_time). The sequence is lazy and restartable: each
	// range re-runs the underlying query.
	Find(ctx context.Context, doctorID uuid.UUID, from, to time.Time, unbookedOnly bool) iter.Seq2[*Availability, error]
}

// AppointmentStore owns Appointment rows. Appointments are never deleted.
type AppointmentStore interface {
	// Create assigns a fresh opaque id, copies date/time from the slot
	// snapshot and starts the appointment in REQUESTED.
	Create(ctx context.Context, patientID uuid.UUID, slot *Availability, reason string) (*Appointment, error)

	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Transition enforces the status state machine. It fails with
	// ErrInvalidTransition when the edge does not exist and ErrForbidden
	// when the actor may not drive it.
	Transition(ctx context.Context, id uuid.UUID, target Status, actor Actor) (*Appointment, error)

	// FindByParty lists appointments for a patient or doctor, newest
	// first. Admin actors see everything.
	FindByParty(ctx context.Context, userID uuid.UUID, role Role) ([]Appointment, error)

	// SetVideoRoom persists the provider room id once it has been
	// confirmed created.
	SetVideoRoom(ctx context.Context, id uuid.UUID, roomID string) (*Appointment, error)

	// FindStaleRequested returns REQUESTED appointments created before
	// the cutoff, for the expiry worker.
	FindStaleRequested(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}

// TxRunner executes fn inside a single storage transaction so that compound
// operations (cancel + slot release) commit or roll back together.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
