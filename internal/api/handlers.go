package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/payment"
	"github.com/chikitsa360/telehealth-booking/internal/transcription"
)

const maxAudioBytes = 25 << 20

func createSlotHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		doctorID, _ := uuid.Parse(req.DoctorID)
		date, _ := time.Parse("2006-01-02", req.Date)
		start, err := booking.ParseMinute(req.StartTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		end, err := booking.ParseMinute(req.EndTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		slot := &booking.Availability{
			DoctorID:    doctorID,
			Date:        booking.Day(date),
			StartMinute: start,
			EndMinute:   end,
		}
		if err := engine.PublishSlot(r.Context(), slot); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSlotResponse(slot))
	}
}

func listSlotsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		from := time.Now().UTC()
		to := from.AddDate(0, 0, 7)
		if raw := r.URL.Query().Get("from"); raw != "" {
			if from, err = time.Parse("2006-01-02", raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			if to, err = time.Parse("2006-01-02", raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
		}
		unbookedOnly := r.URL.Query().Get("include_booked") != "true"

		var slots []SlotResponse
		for slot, err := range engine.Search(r.Context(), doctorID, from, to, unbookedOnly) {
			if err != nil {
				writeDomainError(w, err)
				return
			}
			slots = append(slots, newSlotResponse(slot))
		}
		if slots == nil {
			slots = []SlotResponse{}
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func deleteSlotHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}
		if err := engine.RemoveSlot(r.Context(), id, actor); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bookAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		patientID, _ := uuid.Parse(req.PatientID)
		availabilityID, _ := uuid.Parse(req.AvailabilityID)

		ap, err := engine.Book(r.Context(), patientID, availabilityID, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newAppointmentResponse(ap))
	}
}

func listAppointmentsHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}

		appts, err := engine.ListAppointments(r.Context(), actor.ID, actor.Role)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, newAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		ap, err := engine.GetAppointment(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(ap))
	}
}

func cancelAppointmentHandler(engine *booking.Engine, payments *payment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		ap, err := engine.Cancel(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		// The cancellation is committed; a refund-flagging failure must not
		// turn the response into an error, or retries would hit the
		// already-cancelled appointment.
		if _, err := payments.RefundOnCancel(r.Context(), id); err != nil && !errors.Is(err, booking.ErrNotFound) {
			logger.Error("refund flagging failed after cancellation",
				zap.String("appointment_id", id.String()),
				zap.Error(err))
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(ap))
	}
}

func transitionAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		target := booking.Status(req.Status)
		if !target.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of the appointment statuses")
			return
		}

		ap, err := engine.Transition(r.Context(), id, target, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(ap))
	}
}

func joinAppointmentHandler(engine *booking.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		_, roomID, token, err := engine.Join(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, JoinResponse{RoomID: roomID, Token: token})
	}
}

func checkoutHandler(payments *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID and X-Actor-Role headers are required")
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		p, err := payments.Checkout(r.Context(), id, actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newPaymentResponse(p))
	}
}

func paymentCallbackHandler(payments *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaymentCallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		p, err := payments.HandleCallback(r.Context(), req.OrderRef, req.PaymentRef, req.Signature)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newPaymentResponse(p))
	}
}

func transcribeHandler(transcripts *transcription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
		if err != nil || len(audio) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_audio", "request body must contain the recording")
			return
		}
		mimeType := r.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "audio/webm"
		}

		var recipients []string
		if raw := r.URL.Query().Get("notify"); raw != "" {
			recipients = strings.Split(raw, ",")
		}

		t, err := transcripts.Process(r.Context(), id, audio, mimeType, recipients)
		if err != nil {
			if t != nil && t.Status == transcription.StatusFailed {
				writeError(w, http.StatusBadGateway, "transcription_failed", t.ErrorMessage)
				return
			}
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newTranscriptionResponse(t))
	}
}
