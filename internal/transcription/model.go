package transcription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Transcription stores the post-call transcript for one appointment.
// FAILED is terminal; retrying is not this layer's job.
type Transcription struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Content       string
	Status        Status
	ErrorMessage  string
	AudioDuration float64 // seconds
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
