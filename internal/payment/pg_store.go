package payment

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

const paymentColumns = `id, appointment_id, patient_id, amount, currency, order_ref, payment_ref, signature, status, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var paymentRef, signature *string

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.PatientID,
		&p.Amount,
		&p.Currency,
		&p.OrderRef,
		&paymentRef,
		&signature,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}

	if paymentRef != nil {
		p.PaymentRef = *paymentRef
	}
	if signature != nil {
		p.Signature = *signature
	}
	return &p, nil
}

func (s *PgStore) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO payments (id, appointment_id, patient_id, amount, currency, order_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+paymentColumns+`
	`, p.ID, p.AppointmentID, p.PatientID, p.Amount, p.Currency, p.OrderRef, p.Status)

	created, err := scanPayment(row)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	*p = *created
	return nil
}

func (s *PgStore) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1
	`, appointmentID)
	return scanPayment(row)
}

func (s *PgStore) GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_ref = $1
	`, orderRef)
	return scanPayment(row)
}

func (s *PgStore) MarkCompleted(ctx context.Context, id uuid.UUID, paymentRef, signature string) (*Payment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    payment_ref = $3,
		    signature = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns+`
	`, id, StatusCompleted, paymentRef, signature)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("mark payment completed: %w", err)
	}
	return p, nil
}

func (s *PgStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	q := db.QuerierFrom(ctx, s.pool)
	_, err := q.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, StatusFailed)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

func (s *PgStore) MarkRefunded(ctx context.Context, id uuid.UUID) (*Payment, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+paymentColumns+`
	`, id, StatusRefunded)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("mark payment refunded: %w", err)
	}
	return p, nil
}

func (s *PgStore) CreateReceipt(ctx context.Context, r *Receipt) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	q := db.QuerierFrom(ctx, s.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO receipts (id, payment_id, number, appointment_date, start_minute, amount, tax_amount, total_amount, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, r.ID, r.PaymentID, r.Number, r.AppointmentDate, r.StartMinute, r.Amount, r.TaxAmount, r.TotalAmount, r.PaidAt)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *PgStore) GetReceiptByPayment(ctx context.Context, paymentID uuid.UUID) (*Receipt, error) {
	q := db.QuerierFrom(ctx, s.pool)
	row := q.QueryRow(ctx, `
		SELECT id, payment_id, number, appointment_date, start_minute, amount, tax_amount, total_amount, paid_at, created_at
		FROM receipts
		WHERE payment_id = $1
	`, paymentID)

	var r Receipt
	err := row.Scan(&r.ID, &r.PaymentID, &r.Number, &r.AppointmentDate, &r.StartMinute, &r.Amount, &r.TaxAmount, &r.TotalAmount, &r.PaidAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return &r, nil
}
