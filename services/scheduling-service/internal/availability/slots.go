package availability

import "time"

const (
	// DefaultGranularity is the fixed bookable slot length.
	DefaultGranularity = 30 * time.Minute
	// DefaultLeadTime is the minimum notice before a same-day slot may start.
	DefaultLeadTime = time.Hour
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is an ephemeral, computed bookable window; never persisted.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Overlaps reports half-open interval intersection:
// [aStart,aEnd) overlaps [bStart,bEnd) iff aStart < bEnd && bStart < aEnd.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// SlotsInWindow walks the window in fixed-size steps, emitting one slot per
// step. A trailing partial slot is dropped. Slots overlapping any busy
// interval are marked unavailable rather than omitted.
func SlotsInWindow(window Interval, granularity time.Duration, busy []Interval) []Slot {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var slots []Slot
	for t := window.Start; !t.Add(granularity).After(window.End); t = t.Add(granularity) {
		end := t.Add(granularity)
		slots = append(slots, Slot{
			Start:     t,
			End:       end,
			Available: !overlapsAny(t, end, busy),
		})
	}
	return slots
}

// SlotsForDay generates the full slot sequence for one date. Dates before
// now's date yield nothing; on now's date, slots starting sooner than
// leadTime from now are excluded. Output is ordered by start time and
// deterministic for fixed inputs.
func SlotsForDay(date time.Time, windows []Interval, busy []Interval, granularity time.Duration, now time.Time, leadTime time.Duration) []Slot {
	day := dateOnly(date)
	today := dateOnly(now)
	if day.Before(today) {
		return nil
	}
	if leadTime < 0 {
		leadTime = DefaultLeadTime
	}

	var cutoff time.Time
	if day.Equal(today) {
		cutoff = now.Add(leadTime)
	}

	var slots []Slot
	for _, w := range windows {
		for _, s := range SlotsInWindow(w, granularity, busy) {
			if !cutoff.IsZero() && s.Start.Before(cutoff) {
				continue
			}
			slots = append(slots, s)
		}
	}
	return slots
}

// HasFreeSlot reports whether the date has at least one available slot,
// returning at the first free one without enumerating the rest. Used for
// month-at-a-glance views where walking every slot of every day would be
// wasteful.
func HasFreeSlot(date time.Time, windows []Interval, busy []Interval, granularity time.Duration, now time.Time, leadTime time.Duration) bool {
	day := dateOnly(date)
	today := dateOnly(now)
	if day.Before(today) {
		return false
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if leadTime < 0 {
		leadTime = DefaultLeadTime
	}

	var cutoff time.Time
	if day.Equal(today) {
		cutoff = now.Add(leadTime)
	}

	for _, w := range windows {
		for t := w.Start; !t.Add(granularity).After(w.End); t = t.Add(granularity) {
			if !cutoff.IsZero() && t.Before(cutoff) {
				continue
			}
			if !overlapsAny(t, t.Add(granularity), busy) {
				return true
			}
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
