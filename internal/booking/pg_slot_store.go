package booking

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikitsa360/telehealth-booking/internal/clock"
	"github.com/chikitsa360/telehealth-booking/internal/db"
)

const pgUniqueViolation = "23505"

type PgSlotStore struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewPgSlotStore(pool *pgxpool.Pool, clk clock.Clock) *PgSlotStore {
	return &PgSlotStore{pool: pool, clock: clk}
}

const slotColumns = `id, doctor_id, date, start_minute, end_minute, is_booked, created_at, updated_at`

func scanSlot(row pgx.Row) (*Availability, error) {
	var a Availability
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.Date,
		&a.StartMinute,
		&a.EndMinute,
		&a.IsBooked,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Date = Day(a.Date)
	return &a, nil
}

func (s *PgSlotStore) Create(ctx context.Context, slot *Availability) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	slot.Date = Day(slot.Date)
	if slot.StartAt().Before(s.clock.Now()) {
		return fmt.Errorf("%w: slot is in the past", ErrValidation)
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}

	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO availabilities (id, doctor_id, date, start_minute, end_minute, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, now(), now())
		RETURNING `+slotColumns+`
	`, slot.ID, slot.DoctorID, slot.Date, slot.StartMinute, slot.EndMinute)

	created, err := scanSlot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: doctor already has a slot at this date and time", ErrValidation)
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	*slot = *created
	return nil
}

func (s *PgSlotStore) Get(ctx context.Context, id uuid.UUID) (*Availability, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availabilities
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// Claim relies on the conditional UPDATE to serialize racing bookers: the
// row is locked by Postgres and only the caller that observes
// is_booked = FALSE gets a row back.
func (s *PgSlotStore) Claim(ctx context.Context, id uuid.UUID) (*Availability, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE availabilities
		SET is_booked = TRUE,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = FALSE
		RETURNING `+slotColumns+`
	`, id)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("claim slot: %w", err)
	}

	// No row claimed: distinguish a missing slot from a lost race.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrSlotUnavailable
}

func (s *PgSlotStore) Release(ctx context.Context, id uuid.UUID) error {
	q := db.QuerierFrom(ctx, s.pool)
	_, err := q.Exec(ctx, `
		UPDATE availabilities
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (s *PgSlotStore) Delete(ctx context.Context, id uuid.UUID, actor Actor) error {
	slot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role == RoleDoctor && actor.ID != slot.DoctorID {
		return ErrForbidden
	}
	if actor.Role != RoleDoctor && actor.Role != RoleAdmin {
		return ErrForbidden
	}

	q := db.QuerierFrom(ctx, s.pool)
	tag, err := q.Exec(ctx, `
		DELETE FROM availabilities
		WHERE id = $1
		  AND is_booked = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cannot delete a booked slot", ErrSlotUnavailable)
	}
	return nil
}

func (s *PgSlotStore) Find(ctx context.Context, doctorID uuid.UUID, from, to time.Time, unbookedOnly bool) iter.Seq2[*Availability, error] {
	return func(yield func(*Availability, error) bool) {
		q := db.QuerierFrom(ctx, s.pool)
		rows, err := q.Query(ctx, `
			SELECT `+slotColumns+`
			FROM availabilities
			WHERE doctor_id = $1
			  AND date >= $2
			  AND date <= $3
			  AND (NOT $4 OR is_booked = FALSE)
			ORDER BY date, start_minute
		`, doctorID, Day(from), Day(to), unbookedOnly)
		if err != nil {
			yield(nil, fmt.Errorf("find slots: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			slot, err := scanSlot(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(slot, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("find slots: %w", err))
		}
	}
}
