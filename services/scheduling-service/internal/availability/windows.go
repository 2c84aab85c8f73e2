package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

// DayWindows resolves the effective working windows for a doctor on a date.
// Any override rows for the date replace the weekly rules entirely; the
// weekly rules apply only when no override exists for that date.
func DayWindows(date time.Time, overrides []model.AvailabilityOverride, weekly []model.WeeklyAvailability) []Interval {
	day := dateOnly(date)

	var windows []Interval
	overrideFound := false
	for _, o := range overrides {
		if !dateOnly(o.Date).Equal(day) {
			continue
		}
		overrideFound = true
		if o.End > o.Start {
			windows = append(windows, Interval{Start: o.Start.On(day), End: o.End.On(day)})
		}
	}
	if overrideFound {
		sortWindows(windows)
		return windows
	}

	for _, w := range weekly {
		if w.Weekday != day.Weekday() {
			continue
		}
		if w.End > w.Start {
			windows = append(windows, Interval{Start: w.Start.On(day), End: w.End.On(day)})
		}
	}
	sortWindows(windows)
	return windows
}

// WithinWindows reports whether [start,end) fits entirely inside one of the
// windows. Used to validate booking and reschedule intervals against the
// doctor's hours.
func WithinWindows(start, end time.Time, windows []Interval) bool {
	if !end.After(start) {
		return false
	}
	for _, w := range windows {
		if !start.Before(w.Start) && !end.After(w.End) {
			return true
		}
	}
	return false
}

// ValidateWeekly checks a candidate weekly window against a doctor's existing
// rules: ordered times, and no overlap with another window on the same weekday.
func ValidateWeekly(candidate model.WeeklyAvailability, existing []model.WeeklyAvailability) error {
	if err := validateTimes(candidate.Start, candidate.End); err != nil {
		return err
	}
	for _, w := range existing {
		if w.ID == candidate.ID || w.Weekday != candidate.Weekday {
			continue
		}
		if candidate.Start < w.End && w.Start < candidate.End {
			return fmt.Errorf("window %s-%s overlaps existing %s-%s on %s",
				candidate.Start, candidate.End, w.Start, w.End, w.Weekday)
		}
	}
	return nil
}

// ValidateOverride checks a candidate date override against other overrides
// for the same date.
func ValidateOverride(candidate model.AvailabilityOverride, existing []model.AvailabilityOverride) error {
	if err := validateTimes(candidate.Start, candidate.End); err != nil {
		return err
	}
	day := dateOnly(candidate.Date)
	for _, o := range existing {
		if o.ID == candidate.ID || !dateOnly(o.Date).Equal(day) {
			continue
		}
		if candidate.Start < o.End && o.Start < candidate.End {
			return fmt.Errorf("window %s-%s overlaps existing %s-%s on %s",
				candidate.Start, candidate.End, o.Start, o.End, day.Format("2006-01-02"))
		}
	}
	return nil
}

func validateTimes(start, end model.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("times must fall within one day")
	}
	if end <= start {
		return fmt.Errorf("start %s must be before end %s", start, end)
	}
	return nil
}

func sortWindows(windows []Interval) {
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})
}
