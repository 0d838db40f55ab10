package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	redisclient "github.com/chikitsa360/telehealth-booking/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the core's error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrTooLate):
		writeError(w, http.StatusConflict, "too_late", err.Error())
	case errors.Is(err, booking.ErrPaymentVerification):
		writeError(w, http.StatusBadRequest, "payment_verification_failed", err.Error())
	case errors.Is(err, booking.ErrVideoProvider):
		writeError(w, http.StatusBadGateway, "video_provider_error", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "resource_busy", "operation in progress, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// actorFrom reads the acting identity from request headers. Authentication
// itself lives in the fronting layer; these headers are trusted input from
// it.
func actorFrom(r *http.Request) (booking.Actor, bool) {
	role := booking.Role(r.Header.Get("X-Actor-Role"))
	if !role.Valid() {
		return booking.Actor{}, false
	}

	actor := booking.Actor{Role: role}
	if raw := r.Header.Get("X-Actor-ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return booking.Actor{}, false
		}
		actor.ID = id
	}
	return actor, true
}
