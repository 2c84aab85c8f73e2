package booking

import "errors"

// All booking failures are recoverable at the caller boundary; the handler
// layer maps them to HTTP statuses and user-facing messages.
var (
	// ErrInvalidInterval covers malformed or inverted time ranges.
	ErrInvalidInterval = errors.New("appointment end must be after start")
	// ErrNotFound covers unknown doctors, appointments, or patient references.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the interval overlaps an approved appointment.
	ErrConflict = errors.New("time slot conflicts with an approved appointment")
	// ErrOutsideAvailability means the interval falls outside the doctor's
	// hours for that date (weekly rule or date override).
	ErrOutsideAvailability = errors.New("time falls outside the doctor's availability")
	// ErrInvalidTransition marks an illegal state-machine move.
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)
