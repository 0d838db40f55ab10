package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/chikitsa360/telehealth-booking/internal/booking"
	"github.com/chikitsa360/telehealth-booking/internal/payment"
	"github.com/chikitsa360/telehealth-booking/internal/transcription"
)

type CreateSlotRequest struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
}

func (r CreateSlotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DoctorID, validation.Required, is.UUID),
		validation.Field(&r.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&r.StartTime, validation.Required),
		validation.Field(&r.EndTime, validation.Required),
	)
}

type BookAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	AvailabilityID string `json:"availability_id"`
	Reason         string `json:"reason"`
}

func (r BookAppointmentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required, is.UUID),
		validation.Field(&r.AvailabilityID, validation.Required, is.UUID),
		validation.Field(&r.Reason, validation.Length(0, 2000)),
	)
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type PaymentCallbackRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

func (r PaymentCallbackRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrderRef, validation.Required),
		validation.Field(&r.PaymentRef, validation.Required),
		validation.Field(&r.Signature, validation.Required),
	)
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
}

func newSlotResponse(a *booking.Availability) SlotResponse {
	return SlotResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.Format("2006-01-02"),
		StartTime: booking.FormatMinute(a.StartMinute),
		EndTime:   booking.FormatMinute(a.EndMinute),
		IsBooked:  a.IsBooked,
	}
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	AvailabilityID *uuid.UUID `json:"availability_id,omitempty"`
	Date           string     `json:"date"`
	StartTime      string     `json:"start_time"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	VideoRoomID    string     `json:"video_room_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newAppointmentResponse(ap *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             ap.ID,
		PatientID:      ap.PatientID,
		DoctorID:       ap.DoctorID,
		AvailabilityID: ap.AvailabilityID,
		Date:           ap.Date.Format("2006-01-02"),
		StartTime:      booking.FormatMinute(ap.StartMinute),
		Status:         string(ap.Status),
		Reason:         ap.Reason,
		VideoRoomID:    ap.VideoRoomID,
		CreatedAt:      ap.CreatedAt,
	}
}

type JoinResponse struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

type PaymentResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	OrderRef      string    `json:"order_ref"`
	Status        string    `json:"status"`
}

func newPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		OrderRef:      p.OrderRef,
		Status:        string(p.Status),
	}
}

type TranscriptionResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Status        string    `json:"status"`
	Content       string    `json:"content,omitempty"`
	AudioDuration float64   `json:"audio_duration,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

func newTranscriptionResponse(t *transcription.Transcription) TranscriptionResponse {
	return TranscriptionResponse{
		ID:            t.ID,
		AppointmentID: t.AppointmentID,
		Status:        string(t.Status),
		Content:       t.Content,
		AudioDuration: t.AudioDuration,
		ErrorMessage:  t.ErrorMessage,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
