package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
// Stored as an integer column; formatted as "15:04" on the wire.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < 24*60
}

// On anchors the clock time to a calendar date in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, date.Location())
}

// WeeklyAvailability is a doctor's recurring working window for one weekday.
// Windows for the same doctor and weekday must not overlap.
type WeeklyAvailability struct {
	ID       string
	DoctorID string
	Weekday  time.Weekday
	Start    TimeOfDay
	End      TimeOfDay
}

// AvailabilityOverride replaces — never merges with — the weekly windows for
// its date. An override with zero bookable time still suppresses the weekly
// rule entirely.
type AvailabilityOverride struct {
	ID       string
	DoctorID string
	Date     time.Time // midnight UTC
	Start    TimeOfDay
	End      TimeOfDay
}

type Doctor struct {
	ID             string
	FullName       string
	Specialization string
	Approved       bool
}
