package booking

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/clock"
	redisclient "github.com/chikitsa360/telehealth-booking/internal/redis"
	"github.com/chikitsa360/telehealth-booking/internal/video"
)

const (
	// Patients and doctors may join from 15 minutes before the scheduled
	// start until one hour after it. The lower bound is inclusive, the
	// upper bound exclusive.
	JoinEarlyWindow = 15 * time.Minute
	JoinGraceWindow = time.Hour

	// Video rooms and join tokens expire two hours after issuance.
	RoomTTL = 2 * time.Hour
)

// Engine orchestrates the slot claim and appointment lifecycle. It owns no
// state of its own; all mutations go through the stores, and external
// providers are consulted but never trusted with invariants.
type Engine struct {
	slots  SlotStore
	appts  AppointmentStore
	tx     TxRunner
	video  video.Provider
	locker redisclient.Locker
	clock  clock.Clock
	logger *zap.Logger
}

func NewEngine(slots SlotStore, appts AppointmentStore, tx TxRunner, videoProvider video.Provider, locker redisclient.Locker, clk clock.Clock, logger *zap.Logger) *Engine {
	return &Engine{
		slots:  slots,
		appts:  appts,
		tx:     tx,
		video:  videoProvider,
		locker: locker,
		clock:  clk,
		logger: logger,
	}
}

// Search yields a doctor's slots within [from, to], ordered by date and
// start time. Patients search with unbookedOnly; doctors list everything.
func (e *Engine) Search(ctx context.Context, doctorID uuid.UUID, from, to time.Time, unbookedOnly bool) iter.Seq2[*Availability, error] {
	return e.slots.Find(ctx, doctorID, from, to, unbookedOnly)
}

// Transition applies one edge of the appointment state machine on behalf
// of an actor (doctor completing or no-showing, payment confirming).
func (e *Engine) Transition(ctx context.Context, id uuid.UUID, target Status, actor Actor) (*Appointment, error) {
	return e.appts.Transition(ctx, id, target, actor)
}

// PublishSlot records a new availability window for a doctor.
func (e *Engine) PublishSlot(ctx context.Context, slot *Availability) error {
	return e.slots.Create(ctx, slot)
}

// RemoveSlot deletes an unbooked slot.
func (e *Engine) RemoveSlot(ctx context.Context, id uuid.UUID, actor Actor) error {
	return e.slots.Delete(ctx, id, actor)
}

// Book claims the slot and creates the appointment in REQUESTED. Claim and
// create run inside one storage transaction so a crash between them cannot
// leave a slot marked booked with no owning appointment; a losing claimant
// blocks on the row lock and then matches zero rows. Confirmation is a
// separate, payment-driven step.
func (e *Engine) Book(ctx context.Context, patientID, availabilityID uuid.UUID, reason string) (*Appointment, error) {
	slot, err := e.slots.Get(ctx, availabilityID)
	if err != nil {
		return nil, err
	}
	if slot.IsBooked {
		return nil, ErrSlotUnavailable
	}
	if slot.IsPast(e.clock.Now()) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrSlotUnavailable)
	}

	var ap *Appointment
	err = e.tx.WithinTx(ctx, func(txCtx context.Context) error {
		claimed, err := e.slots.Claim(txCtx, availabilityID)
		if err != nil {
			// Lost the race, or the slot vanished. Nothing to undo.
			return err
		}

		created, err := e.appts.Create(txCtx, patientID, claimed, reason)
		if err != nil {
			// The memory stores have no rollback, so undo the claim
			// in-process. On the database the rollback supersedes this.
			if relErr := e.slots.Release(txCtx, availabilityID); relErr != nil {
				e.logger.Error("compensating slot release failed",
					zap.String("slot_id", availabilityID.String()),
					zap.Error(relErr))
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		ap = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("appointment requested",
		zap.String("appointment_id", ap.ID.String()),
		zap.String("slot_id", availabilityID.String()),
		zap.String("patient_id", patientID.String()))
	return ap, nil
}

// Cancel moves the appointment to CANCELLED and frees its slot in a single
// transaction. Past appointments cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	ap, err := e.appts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ap.IsPast(e.clock.Now()) {
		return nil, fmt.Errorf("%w: cannot cancel a past appointment", ErrTooLate)
	}

	var cancelled *Appointment
	err = e.tx.WithinTx(ctx, func(txCtx context.Context) error {
		updated, err := e.appts.Transition(txCtx, id, StatusCancelled, actor)
		if err != nil {
			return err
		}
		if updated.AvailabilityID != nil {
			if err := e.slots.Release(txCtx, *updated.AvailabilityID); err != nil {
				return err
			}
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("appointment cancelled",
		zap.String("appointment_id", id.String()),
		zap.String("actor_role", string(actor.Role)))
	return cancelled, nil
}

// GetAppointment loads an appointment for a party to it, or an admin.
func (e *Engine) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	ap, err := e.appts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(ap, actor) && actor.Role != RoleAdmin && actor.Role != RoleSystem {
		return nil, ErrForbidden
	}
	return ap, nil
}

// ListAppointments returns a party's appointments, newest first.
func (e *Engine) ListAppointments(ctx context.Context, userID uuid.UUID, role Role) ([]Appointment, error) {
	return e.appts.FindByParty(ctx, userID, role)
}

// CanJoin reports whether the consultation can be entered at the given
// instant: the appointment is confirmed, scheduled for today, and now is
// within [start-15m, start+60m). With d = seconds until the scheduled
// start, the window is d in (-3600, 900].
func (e *Engine) CanJoin(ap *Appointment, now time.Time) bool {
	if ap.Status != StatusConfirmed || !ap.IsToday(now) {
		return false
	}
	d := ap.StartAt().Sub(now).Seconds()
	return d <= 900 && d > -3600
}

// Join validates that the actor is a party to the confirmed appointment and
// that the join window is open, then provisions the video room and a fresh
// token.
func (e *Engine) Join(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, string, string, error) {
	ap, err := e.appts.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if !isParty(ap, actor) {
		return nil, "", "", ErrForbidden
	}
	if !e.CanJoin(ap, e.clock.Now()) {
		return nil, "", "", fmt.Errorf("%w: outside the join window", ErrTooLate)
	}

	roomID, token, err := e.EnsureVideoRoom(ctx, ap)
	if err != nil {
		return nil, "", "", err
	}
	ap.VideoRoomID = roomID
	return ap, roomID, token, nil
}

// EnsureVideoRoom is idempotent: if a room id is already persisted only a
// fresh token is minted. Otherwise the room is created first and persisted
// only after the provider confirms it, under a per-appointment lock so
// concurrent joiners cannot provision twice.
func (e *Engine) EnsureVideoRoom(ctx context.Context, ap *Appointment) (string, string, error) {
	roomID := ap.VideoRoomID
	expiry := e.clock.Now().Add(RoomTTL)

	if roomID == "" {
		err := e.locker.WithLock(ctx, "video:appointment:"+ap.ID.String(), func(lockCtx context.Context) error {
			// Another joiner may have provisioned while we waited.
			fresh, err := e.appts.Get(lockCtx, ap.ID)
			if err != nil {
				return err
			}
			if fresh.VideoRoomID != "" {
				roomID = fresh.VideoRoomID
				return nil
			}

			hint := "consult-" + uuid.NewString()
			created, err := e.video.CreateRoom(lockCtx, hint, expiry)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrVideoProvider, err)
			}
			if _, err := e.appts.SetVideoRoom(lockCtx, ap.ID, created); err != nil {
				return err
			}
			roomID = created
			e.logger.Info("video room provisioned",
				zap.String("appointment_id", ap.ID.String()),
				zap.String("room_id", created))
			return nil
		})
		if err != nil {
			return "", "", err
		}
	}

	token, err := e.video.CreateToken(ctx, roomID, expiry)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrVideoProvider, err)
	}
	return roomID, token, nil
}

// ExpireStaleRequests cancels REQUESTED appointments that have gone unpaid
// past the TTL and frees their slots. Intended for the expiry worker.
func (e *Engine) ExpireStaleRequests(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := e.clock.Now().Add(-ttl)
	stale, err := e.appts.FindStaleRequested(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale requested: %w", err)
	}

	system := Actor{Role: RoleSystem}
	expired := 0
	for _, ap := range stale {
		err := e.tx.WithinTx(ctx, func(txCtx context.Context) error {
			if _, err := e.appts.Transition(txCtx, ap.ID, StatusCancelled, system); err != nil {
				return err
			}
			if ap.AvailabilityID != nil {
				return e.slots.Release(txCtx, *ap.AvailabilityID)
			}
			return nil
		})
		if err != nil {
			// A concurrent payment may have confirmed it since we read.
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			e.logger.Error("failed to expire appointment",
				zap.String("appointment_id", ap.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func isParty(ap *Appointment, actor Actor) bool {
	switch actor.Role {
	case RolePatient:
		return actor.ID == ap.PatientID
	case RoleDoctor:
		return actor.ID == ap.DoctorID
	}
	return false
}
