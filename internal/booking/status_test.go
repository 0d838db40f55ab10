package booking

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusRequested, StatusConfirmed, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusCompleted, false},
		{StatusRequested, StatusNoShow, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusRequested, false},
		{StatusCancelled, StatusRequested, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusRequested, StatusConfirmed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestAllowedActor(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	stranger := uuid.New()

	ap := &Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    StatusConfirmed,
	}

	t.Run("patient may cancel own appointment", func(t *testing.T) {
		actor := Actor{ID: patientID, Role: RolePatient}
		if !allowedActor(ap, StatusConfirmed, StatusCancelled, actor) {
			t.Error("expected patient to be allowed")
		}
	})

	t.Run("other patient may not cancel", func(t *testing.T) {
		actor := Actor{ID: stranger, Role: RolePatient}
		if allowedActor(ap, StatusConfirmed, StatusCancelled, actor) {
			t.Error("expected stranger to be rejected")
		}
	})

	t.Run("patient may not complete", func(t *testing.T) {
		actor := Actor{ID: patientID, Role: RolePatient}
		if allowedActor(ap, StatusConfirmed, StatusCompleted, actor) {
			t.Error("expected patient to be rejected for completion")
		}
	})

	t.Run("own doctor may complete", func(t *testing.T) {
		actor := Actor{ID: doctorID, Role: RoleDoctor}
		if !allowedActor(ap, StatusConfirmed, StatusCompleted, actor) {
			t.Error("expected doctor to be allowed")
		}
	})

	t.Run("other doctor may not complete", func(t *testing.T) {
		actor := Actor{ID: stranger, Role: RoleDoctor}
		if allowedActor(ap, StatusConfirmed, StatusCompleted, actor) {
			t.Error("expected other doctor to be rejected")
		}
	})

	t.Run("system confirms requested", func(t *testing.T) {
		actor := Actor{Role: RoleSystem}
		if !allowedActor(ap, StatusRequested, StatusConfirmed, actor) {
			t.Error("expected system to confirm")
		}
	})

	t.Run("system may not cancel confirmed", func(t *testing.T) {
		actor := Actor{Role: RoleSystem}
		if allowedActor(ap, StatusConfirmed, StatusCancelled, actor) {
			t.Error("expected system to be rejected on confirmed cancellation")
		}
	})

	t.Run("admin is unrestricted on existing edges", func(t *testing.T) {
		actor := Actor{ID: stranger, Role: RoleAdmin}
		if !allowedActor(ap, StatusConfirmed, StatusNoShow, actor) {
			t.Error("expected admin to be allowed")
		}
	})
}
