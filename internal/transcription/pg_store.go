package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const transcriptionColumns = `id, appointment_id, content, status, error_message, audio_duration, created_at, updated_at`

func scanTranscription(row pgx.Row) (*Transcription, error) {
	var t Transcription
	var errMsg *string

	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.Content,
		&t.Status,
		&errMsg,
		&t.AudioDuration,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		t.ErrorMessage = *errMsg
	}
	return &t, nil
}

func (s *PgStore) Create(ctx context.Context, t *Transcription) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO transcriptions (id, appointment_id, content, status, audio_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+transcriptionColumns+`
	`, t.ID, t.AppointmentID, t.Content, t.Status, t.AudioDuration)

	created, err := scanTranscription(row)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	*t = *created
	return nil
}

func (s *PgStore) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transcription, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT `+transcriptionColumns+`
		FROM transcriptions
		WHERE appointment_id = $1
	`, appointmentID)
	return scanTranscription(row)
}

func (s *PgStore) Update(ctx context.Context, t *Transcription) error {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE transcriptions
		SET content = $2,
		    status = $3,
		    error_message = $4,
		    audio_duration = $5,
		    updated_at = now()
		WHERE appointment_id = $1
		RETURNING `+transcriptionColumns+`
	`, t.AppointmentID, t.Content, t.Status, t.ErrorMessage, t.AudioDuration)

	updated, err := scanTranscription(row)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return booking.ErrNotFound
		}
		return fmt.Errorf("update transcription: %w", err)
	}
	*t = *updated
	return nil
}
