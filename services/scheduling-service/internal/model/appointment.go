package model

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further transition is modeled from s.
// Approved is semi-terminal: it can still complete, no-show, be cancelled,
// or be rescheduled back to pending.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID        string
	DoctorID  string
	Patient   PatientRef
	StartTime time.Time
	EndTime   time.Time
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
