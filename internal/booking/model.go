package booking

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Times of day are stored as minutes since midnight against a UTC calendar
// date, which keeps the slot uniqueness key and the join-window arithmetic
// free of timezone and DST concerns.
const minutesPerDay = 24 * 60

// Availability is a bookable time window published by a doctor.
type Availability struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time // midnight UTC
	StartMinute int
	EndMinute   int
	IsBooked    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Availability) Validate() error {
	err := validation.ValidateStruct(&a,
		validation.Field(&a.DoctorID, validation.Required),
		validation.Field(&a.Date, validation.Required),
		validation.Field(&a.StartMinute, validation.Min(0), validation.Max(minutesPerDay-1)),
		validation.Field(&a.EndMinute, validation.Min(1), validation.Max(minutesPerDay)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if a.StartMinute >= a.EndMinute {
		return fmt.Errorf("%w: start time must be before end time", ErrValidation)
	}
	return nil
}

// StartAt is the absolute start of the window.
func (a *Availability) StartAt() time.Time {
	return a.Date.Add(time.Duration(a.StartMinute) * time.Minute)
}

func (a *Availability) IsPast(now time.Time) bool {
	return a.StartAt().Before(now)
}

// Appointment is a scheduled consultation between one patient and one doctor.
// The date and start time are copied from the slot at booking time and never
// change afterwards, so releasing the slot does not rewrite history.
type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	AvailabilityID *uuid.UUID
	Date           time.Time // midnight UTC
	StartMinute    int
	Status         Status
	Reason         string
	Notes          string
	VideoRoomID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ap *Appointment) StartAt() time.Time {
	return ap.Date.Add(time.Duration(ap.StartMinute) * time.Minute)
}

func (ap *Appointment) IsPast(now time.Time) bool {
	return ap.StartAt().Before(now)
}

func (ap *Appointment) IsToday(now time.Time) bool {
	ay, am, ad := ap.Date.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return ay == ny && am == nm && ad == nd
}

// Day truncates t to midnight UTC, matching the Availability/Appointment
// date representation.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinuteOfDay converts t's time of day to minutes since midnight UTC.
func MinuteOfDay(t time.Time) int {
	u := t.UTC()
	return u.Hour()*60 + u.Minute()
}

// FormatMinute renders minutes since midnight as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinute parses HH:MM into minutes since midnight.
func ParseMinute(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: time must be HH:MM", ErrValidation)
	}
	return t.Hour()*60 + t.Minute(), nil
}
