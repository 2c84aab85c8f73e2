package booking

import (
	"fmt"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

// Action is a staff- or doctor-initiated lifecycle move.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject, ActionComplete, ActionNoShow:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, s)
}

// Apply computes the status an action moves an appointment into.
// changed=false with a nil error means the action was an idempotent repeat
// (approving an already-approved appointment) and nothing should be written.
func Apply(status model.AppointmentStatus, action Action) (next model.AppointmentStatus, changed bool, err error) {
	switch action {
	case ActionApprove:
		switch status {
		case model.StatusPending:
			return model.StatusApproved, true, nil
		case model.StatusApproved:
			// Repeat approvals are reported as a no-op, not an error.
			return model.StatusApproved, false, nil
		}
	case ActionReject:
		switch status {
		case model.StatusPending:
			return model.StatusRejected, true, nil
		case model.StatusApproved:
			// An approved appointment must be cancelled or rescheduled
			// explicitly, never silently rejected.
			return "", false, fmt.Errorf("%w: approved appointments cannot be rejected; cancel or reschedule instead", ErrInvalidTransition)
		}
	case ActionComplete:
		if status == model.StatusApproved {
			return model.StatusCompleted, true, nil
		}
	case ActionNoShow:
		if status == model.StatusApproved {
			return model.StatusNoShow, true, nil
		}
	default:
		return "", false, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return "", false, fmt.Errorf("%w: cannot %s a %s appointment", ErrInvalidTransition, action, status)
}

// CanCancel gates patient-initiated cancellation: pending or approved
// appointments move to rejected; terminal states stay put.
func CanCancel(status model.AppointmentStatus) error {
	switch status {
	case model.StatusPending, model.StatusApproved:
		return nil
	}
	return fmt.Errorf("%w: cannot cancel a %s appointment", ErrInvalidTransition, status)
}

// CanReschedule restricts reschedule origins to pending and approved.
// Rejected appointments stay rejected; a new booking is required.
func CanReschedule(status model.AppointmentStatus) error {
	switch status {
	case model.StatusPending, model.StatusApproved:
		return nil
	}
	return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, status)
}

func ValidateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return ErrInvalidInterval
	}
	return nil
}
