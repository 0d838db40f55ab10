package booking

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrForbidden           = errors.New("actor is not permitted to perform this action")
	ErrTooLate             = errors.New("time window for this action has passed")
	ErrVideoProvider       = errors.New("video room provider failure")
	ErrPaymentVerification = errors.New("payment verification failed")
)
