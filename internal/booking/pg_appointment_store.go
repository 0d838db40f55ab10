package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikitsa360/telehealth-booking/internal/db"
)

type PgAppointmentStore struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentStore(pool *pgxpool.Pool) *PgAppointmentStore {
	return &PgAppointmentStore{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, availability_id, date, start_minute, status, reason, notes, video_room_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var ap Appointment
	var availabilityID *uuid.UUID
	var reason, notes, roomID *string

	err := row.Scan(
		&ap.ID,
		&ap.PatientID,
		&ap.DoctorID,
		&availabilityID,
		&ap.Date,
		&ap.StartMinute,
		&ap.Status,
		&reason,
		&notes,
		&roomID,
		&ap.CreatedAt,
		&ap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ap.AvailabilityID = availabilityID
	ap.Date = Day(ap.Date)
	if reason != nil {
		ap.Reason = *reason
	}
	if notes != nil {
		ap.Notes = *notes
	}
	if roomID != nil {
		ap.VideoRoomID = *roomID
	}
	return &ap, nil
}

func (s *PgAppointmentStore) Create(ctx context.Context, patientID uuid.UUID, slot *Availability, reason string) (*Appointment, error) {
	id := uuid.New()

	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, availability_id, date, start_minute, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, patientID, slot.DoctorID, slot.ID, slot.Date, slot.StartMinute, StatusRequested, reason)

	ap, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return ap, nil
}

func (s *PgAppointmentStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// Transition validates the state machine and actor against the current row,
// then applies a conditional UPDATE keyed on the current status so a racing
// transition cannot be applied twice.
func (s *PgAppointmentStore) Transition(ctx context.Context, id uuid.UUID, target Status, actor Actor) (*Appointment, error) {
	ap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(ap.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ap.Status, target)
	}
	if !allowedActor(ap, ap.Status, target, actor) {
		return nil, ErrForbidden
	}

	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, target, ap.Status)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost a race: the row moved on since we read it.
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}
	return updated, nil
}

func (s *PgAppointmentStore) FindByParty(ctx context.Context, userID uuid.UUID, role Role) ([]Appointment, error) {
	var filter string
	args := []any{}
	switch role {
	case RolePatient:
		filter = "WHERE patient_id = $1"
		args = append(args, userID)
	case RoleDoctor:
		filter = "WHERE doctor_id = $1"
		args = append(args, userID)
	case RoleAdmin:
		filter = ""
	default:
		return nil, ErrForbidden
	}

	q := db.QuerierFrom(ctx, s.pool)
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		`+filter+`
		ORDER BY date DESC, start_minute DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		ap, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgAppointmentStore) SetVideoRoom(ctx context.Context, id uuid.UUID, roomID string) (*Appointment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET video_room_id = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, roomID)
	ap, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set video room: %w", err)
	}
	return ap, nil
}

func (s *PgAppointmentStore) FindStaleRequested(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND created_at < $2
	`, StatusRequested, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stale requested: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		ap, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
