package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Payment records the collection attempt for one appointment. Amounts are
// in the currency's minor unit.
type Payment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	Amount        int64
	Currency      string
	OrderRef      string
	PaymentRef    string
	Signature     string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Receipt is generated once a payment completes. Tax is charged at 18% of
// the consultation fee.
type Receipt struct {
	ID              uuid.UUID
	PaymentID       uuid.UUID
	Number          string
	AppointmentDate time.Time
	StartMinute     int
	Amount          int64
	TaxAmount       int64
	TotalAmount     int64
	PaidAt          time.Time
	CreatedAt       time.Time
}

const taxRatePercent = 18
