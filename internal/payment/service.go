package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

// Service drives the payment leg of the appointment lifecycle: checkout
// creates a gateway order for a REQUESTED appointment, and the verified
// callback confirms the appointment via a system actor.
type Service struct {
	payments Store
	appts    booking.AppointmentStore
	gateway  Gateway
	clock    clock.Clock
	logger   *zap.Logger
	fee      int64
	currency string
}

func NewService(payments Store, appts booking.AppointmentStore, gateway Gateway, clk clock.Clock, logger *zap.Logger, fee int64, currency string) *Service {
	return &Service{
		payments: payments,
		appts:    appts,
		gateway:  gateway,
		clock:    clk,
		logger:   logger,
		fee:      fee,
		currency: currency,
	}
}

// Checkout creates (or returns the existing) payment for an appointment.
// Idempotent per appointment: an existing order reference is reused so the
// gateway is never asked twice for the same charge.
func (s *Service) Checkout(ctx context.Context, appointmentID uuid.UUID, actor booking.Actor) (*Payment, error) {
	ap, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != booking.RolePatient || actor.ID != ap.PatientID {
		return nil, booking.ErrForbidden
	}
	if ap.Status != booking.StatusRequested {
		return nil, fmt.Errorf("%w: appointment is %s, not awaiting payment", booking.ErrInvalidTransition, ap.Status)
	}

	existing, err := s.payments.GetByAppointment(ctx, appointmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, booking.ErrNotFound) {
		return nil, fmt.Errorf("load payment: %w", err)
	}

	orderRef, err := s.gateway.CreateIntent(ctx, appointmentID, s.fee, s.currency)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	p := &Payment{
		AppointmentID: appointmentID,
		PatientID:     ap.PatientID,
		Amount:        s.fee,
		Currency:      s.currency,
		OrderRef:      orderRef,
		Status:        StatusPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.logger.Info("payment checkout created",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("order_ref", orderRef))
	return p, nil
}

// HandleCallback processes the gateway's completion callback. A verified
// payment confirms the appointment; a bad signature marks the payment
// FAILED and surfaces ErrPaymentVerification.
func (s *Service) HandleCallback(ctx context.Context, orderRef, paymentRef, signature string) (*Payment, error) {
	p, err := s.payments.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted {
		return p, nil
	}

	if !s.gateway.Verify(orderRef, paymentRef, signature) {
		if err := s.payments.MarkFailed(ctx, p.ID); err != nil {
			s.logger.Error("failed to mark payment failed",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err))
		}
		return nil, booking.ErrPaymentVerification
	}

	completed, err := s.payments.MarkCompleted(ctx, p.ID, paymentRef, signature)
	if err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	ap, err := s.appts.Transition(ctx, p.AppointmentID, booking.StatusConfirmed, booking.Actor{Role: booking.RoleSystem})
	if err != nil {
		// The money is collected but the appointment moved on (for
		// example a concurrent cancellation). Surface it; the caller
		// decides about refunding.
		return completed, fmt.Errorf("confirm appointment after payment: %w", err)
	}

	if err := s.generateReceipt(ctx, completed, ap); err != nil {
		s.logger.Error("receipt generation failed",
			zap.String("payment_id", completed.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("payment completed, appointment confirmed",
		zap.String("appointment_id", p.AppointmentID.String()),
		zap.String("order_ref", orderRef))
	return completed, nil
}

// RefundOnCancel flags a completed payment as refunded after its
// appointment was cancelled. The actual money movement is the gateway's
// concern, out of scope here.
func (s *Service) RefundOnCancel(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	p, err := s.payments.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusCompleted {
		return p, nil
	}

	refunded, err := s.payments.MarkRefunded(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("mark refunded: %w", err)
	}
	s.logger.Info("payment flagged for refund",
		zap.String("appointment_id", appointmentID.String()))
	return refunded, nil
}

// GetByAppointment exposes the payment record for detail views.
func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	return s.payments.GetByAppointment(ctx, appointmentID)
}

func (s *Service) generateReceipt(ctx context.Context, p *Payment, ap *booking.Appointment) error {
	now := s.clock.Now()
	tax := p.Amount * taxRatePercent / 100

	r := &Receipt{
		PaymentID:       p.ID,
		Number:          fmt.Sprintf("R%s-%s", now.Format("20060102"), p.ID.String()[:6]),
		AppointmentDate: ap.Date,
		StartMinute:     ap.StartMinute,
		Amount:          p.Amount,
		TaxAmount:       tax,
		TotalAmount:     p.Amount + tax,
		PaidAt:          now,
	}
	return s.payments.CreateReceipt(ctx, r)
}
