package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/clock"
)

// fakeGateway hands out sequential order refs and accepts the signature
// "valid-sig" for any order.
type fakeGateway struct {
	intents    int
	failIntent bool
}

func (g *fakeGateway) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (string, error) {
	if g.failIntent {
		return "", fmt.Errorf("gateway unreachable")
	}
	g.intents++
	return fmt.Sprintf("order_%d", g.intents), nil
}

func (g *fakeGateway) Verify(orderRef, paymentRef, signature string) bool {
	return signature == "valid-sig"
}

type paymentFixture struct {
	service *Service
	store   *MemoryStore
	appts   *booking.MemoryAppointmentStore
	gateway *fakeGateway
	clock   *clock.Fake
}

const testFee = 50000

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk)
	appts := booking.NewMemoryAppointmentStore(clk)
	gw := &fakeGateway{}
	svc := NewService(store, appts, gw, clk, zap.NewNop(), testFee, "inr")
	return &paymentFixture{service: svc, store: store, appts: appts, gateway: gw, clock: clk}
}

func (f *paymentFixture) requestedAppointment(t *testing.T) *booking.Appointment {
	t.Helper()
	slot := &booking.Availability{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		Date:        booking.Day(f.clock.Now()),
		StartMinute: 600,
		EndMinute:   630,
	}
	ap, err := f.appts.Create(context.Background(), uuid.New(), slot, "consultation")
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return ap
}

func TestServiceCheckout(t *testing.T) {
	t.Run("creates pending payment", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}

		p, err := f.service.Checkout(context.Background(), ap.ID, actor)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if p.Status != StatusPending {
			t.Errorf("status = %s, want PENDING", p.Status)
		}
		if p.Amount != testFee || p.Currency != "inr" {
			t.Errorf("amount %d %s, want %d inr", p.Amount, p.Currency, int64(testFee))
		}
		if p.OrderRef == "" {
			t.Error("empty order ref")
		}
	})

	t.Run("idempotent per appointment", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}

		p1, err := f.service.Checkout(context.Background(), ap.ID, actor)
		if err != nil {
			t.Fatalf("first checkout: %v", err)
		}
		p2, err := f.service.Checkout(context.Background(), ap.ID, actor)
		if err != nil {
			t.Fatalf("second checkout: %v", err)
		}
		if p1.OrderRef != p2.OrderRef {
			t.Errorf("order refs differ: %q vs %q", p1.OrderRef, p2.OrderRef)
		}
		if f.gateway.intents != 1 {
			t.Errorf("gateway asked for %d intents, want 1", f.gateway.intents)
		}
	})

	t.Run("only the booking patient may pay", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)

		for _, actor := range []booking.Actor{
			{ID: uuid.New(), Role: booking.RolePatient},
			{ID: ap.DoctorID, Role: booking.RoleDoctor},
		} {
			if _, err := f.service.Checkout(context.Background(), ap.ID, actor); !errors.Is(err, booking.ErrForbidden) {
				t.Errorf("actor %s: got %v, want ErrForbidden", actor.Role, err)
			}
		}
	})

	t.Run("confirmed appointment is not payable again", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		if _, err := f.appts.Transition(context.Background(), ap.ID, booking.StatusConfirmed, booking.Actor{Role: booking.RoleSystem}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}
		if _, err := f.service.Checkout(context.Background(), ap.ID, actor); !errors.Is(err, booking.ErrInvalidTransition) {
			t.Fatalf("got %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("gateway failure creates nothing", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		f.gateway.failIntent = true
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}

		if _, err := f.service.Checkout(context.Background(), ap.ID, actor); err == nil {
			t.Fatal("expected error")
		}
		if _, err := f.store.GetByAppointment(context.Background(), ap.ID); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("expected no payment record, got %v", err)
		}
	})
}

func TestServiceHandleCallback(t *testing.T) {
	checkout := func(t *testing.T, f *paymentFixture) (*booking.Appointment, *Payment) {
		t.Helper()
		ap := f.requestedAppointment(t)
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}
		p, err := f.service.Checkout(context.Background(), ap.ID, actor)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		return ap, p
	}

	t.Run("verified payment confirms the appointment", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap, p := checkout(t, f)

		completed, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "valid-sig")
		if err != nil {
			t.Fatalf("callback: %v", err)
		}
		if completed.Status != StatusCompleted {
			t.Errorf("payment status = %s, want COMPLETED", completed.Status)
		}
		if completed.PaymentRef != "pay_1" {
			t.Errorf("payment ref = %q", completed.PaymentRef)
		}

		stored, err := f.appts.Get(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("get appointment: %v", err)
		}
		if stored.Status != booking.StatusConfirmed {
			t.Errorf("appointment status = %s, want CONFIRMED", stored.Status)
		}
	})

	t.Run("receipt is generated with tax", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, p := checkout(t, f)

		completed, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "valid-sig")
		if err != nil {
			t.Fatalf("callback: %v", err)
		}

		r, err := f.store.GetReceiptByPayment(context.Background(), completed.ID)
		if err != nil {
			t.Fatalf("get receipt: %v", err)
		}
		if r.Amount != testFee {
			t.Errorf("amount = %d, want %d", r.Amount, int64(testFee))
		}
		wantTax := int64(testFee) * 18 / 100
		if r.TaxAmount != wantTax {
			t.Errorf("tax = %d, want %d", r.TaxAmount, wantTax)
		}
		if r.TotalAmount != testFee+wantTax {
			t.Errorf("total = %d, want %d", r.TotalAmount, testFee+wantTax)
		}
		if !strings.HasPrefix(r.Number, "R20260310-") {
			t.Errorf("receipt number %q lacks the date prefix", r.Number)
		}
	})

	t.Run("bad signature fails the payment", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap, p := checkout(t, f)

		_, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "forged")
		if !errors.Is(err, booking.ErrPaymentVerification) {
			t.Fatalf("got %v, want ErrPaymentVerification", err)
		}

		stored, err := f.store.GetByAppointment(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("get payment: %v", err)
		}
		if stored.Status != StatusFailed {
			t.Errorf("payment status = %s, want FAILED", stored.Status)
		}

		storedAp, err := f.appts.Get(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("get appointment: %v", err)
		}
		if storedAp.Status != booking.StatusRequested {
			t.Errorf("appointment status = %s, want REQUESTED", storedAp.Status)
		}
	})

	t.Run("duplicate callback is idempotent", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, p := checkout(t, f)

		if _, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "valid-sig"); err != nil {
			t.Fatalf("first callback: %v", err)
		}
		again, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "valid-sig")
		if err != nil {
			t.Fatalf("second callback: %v", err)
		}
		if again.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", again.Status)
		}
	})

	t.Run("unknown order ref", func(t *testing.T) {
		f := newPaymentFixture(t)
		if _, err := f.service.HandleCallback(context.Background(), "order_missing", "pay_1", "valid-sig"); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestServiceRefundOnCancel(t *testing.T) {
	t.Run("completed payment is flagged refunded", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}

		p, err := f.service.Checkout(context.Background(), ap.ID, actor)
		if err != nil {
			t.Fatalf("checkout: %v", err)
		}
		if _, err := f.service.HandleCallback(context.Background(), p.OrderRef, "pay_1", "valid-sig"); err != nil {
			t.Fatalf("callback: %v", err)
		}

		refunded, err := f.service.RefundOnCancel(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if refunded.Status != StatusRefunded {
			t.Errorf("status = %s, want REFUNDED", refunded.Status)
		}
	})

	t.Run("pending payment is left alone", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		actor := booking.Actor{ID: ap.PatientID, Role: booking.RolePatient}

		if _, err := f.service.Checkout(context.Background(), ap.ID, actor); err != nil {
			t.Fatalf("checkout: %v", err)
		}

		p, err := f.service.RefundOnCancel(context.Background(), ap.ID)
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if p.Status != StatusPending {
			t.Errorf("status = %s, want PENDING", p.Status)
		}
	})

	t.Run("no payment means not found", func(t *testing.T) {
		f := newPaymentFixture(t)
		ap := f.requestedAppointment(t)
		if _, err := f.service.RefundOnCancel(context.Background(), ap.ID); !errors.Is(err, booking.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestStripeGatewayVerify(t *testing.T) {
	g := NewStripeGateway("sk_test_x", "whsec_secret")

	sign := func(orderRef, paymentRef string) string {
		mac := hmac.New(sha256.New, []byte("whsec_secret"))
		mac.Write([]byte(orderRef + "|" + paymentRef))
		return hex.EncodeToString(mac.Sum(nil))
	}

	if !g.Verify("order_1", "pay_1", sign("order_1", "pay_1")) {
		t.Error("expected matching signature to verify")
	}
	if g.Verify("order_1", "pay_1", sign("order_1", "pay_2")) {
		t.Error("expected mismatched payload to fail")
	}
	if g.Verify("order_1", "pay_1", "deadbeef") {
		t.Error("expected garbage signature to fail")
	}
}
