package recommend

import (
	"fmt"
	"sort"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/availability"
)

// History aggregates a patient's past interactions with a doctor. It is an
// ephemeral read-model assembled per request; never persisted.
type History struct {
	// PastStarts holds start times of completed and approved appointments
	// that began before now.
	PastStarts []time.Time
	// LastCompleted is the start of the most recent completed appointment.
	LastCompleted *time.Time
	// RecentRecordCount counts medical records created in the last 90 days.
	RecentRecordCount int
	// RecordDates holds up to the five most recent medical-record dates,
	// newest first, used to estimate the patient's visit cadence.
	RecordDates []time.Time
	AllergyCount    int
	MedicationCount int
	// HasPending is true when the patient already has a pending appointment
	// with this doctor.
	HasPending bool
}

// Urgency produces a 0-100 priority score from visit recency, visit
// frequency, and chronic-care markers, discounted when a pending appointment
// already exists.
func Urgency(h History, now time.Time) (int, []string) {
	score := 0
	var reasons []string

	if h.LastCompleted != nil {
		daysSince := int(now.Sub(*h.LastCompleted).Hours() / 24)
		switch {
		case daysSince > 365:
			score += 40
			reasons = append(reasons, "No visit in over a year")
		case daysSince > 180:
			score += 25
			reasons = append(reasons, "No visit in over six months")
		case daysSince > 90:
			score += 15
			reasons = append(reasons, "No visit in over three months")
		}
	} else {
		score += 30
		reasons = append(reasons, "New patient")
	}

	switch {
	case h.RecentRecordCount >= 3:
		score += 25
		reasons = append(reasons, "Frequent recent visits suggest ongoing treatment")
	case h.RecentRecordCount >= 2:
		score += 15
		reasons = append(reasons, "Multiple recent visits")
	}

	if h.AllergyCount > 0 {
		score += 10
		reasons = append(reasons, "Recorded allergies")
	}
	if h.MedicationCount > 2 {
		score += 15
		reasons = append(reasons, "Multiple active medications")
	}

	if h.HasPending {
		score -= 30
		if score < 0 {
			score = 0
		}
		reasons = append(reasons, "A pending appointment already exists")
	}

	if score > 100 {
		score = 100
	}
	return score, reasons
}

// BusyKey identifies one doctor-hour on one date.
type BusyKey struct {
	Date string // 2006-01-02
	Hour int
}

// BusyTimes returns the date+hour buckets holding three or more approved
// appointments within the next 14 days. Recommended slots steer away from
// these.
func BusyTimes(approvedStarts []time.Time, now time.Time) []BusyKey {
	horizon := now.Add(14 * 24 * time.Hour)
	counts := map[BusyKey]int{}
	for _, start := range approvedStarts {
		if start.Before(now) || start.After(horizon) {
			continue
		}
		key := BusyKey{Date: start.Format("2006-01-02"), Hour: start.Hour()}
		counts[key]++
	}

	var busy []BusyKey
	for key, n := range counts {
		if n >= 3 {
			busy = append(busy, key)
		}
	}
	sort.Slice(busy, func(i, j int) bool {
		if busy[i].Date != busy[j].Date {
			return busy[i].Date < busy[j].Date
		}
		return busy[i].Hour < busy[j].Hour
	})
	return busy
}

type timeBucket int

const (
	bucketMorning   timeBucket = iota // before 12:00
	bucketAfternoon                   // 12:00-17:00
	bucketEvening                     // 17:00 onward
)

func bucketOf(hour int) timeBucket {
	switch {
	case hour < 12:
		return bucketMorning
	case hour < 17:
		return bucketAfternoon
	default:
		return bucketEvening
	}
}

func (b timeBucket) label() string {
	switch b {
	case bucketMorning:
		return "morning"
	case bucketAfternoon:
		return "afternoon"
	default:
		return "evening"
	}
}

// preferredWeekday returns the weekday the patient has booked most often.
// Ties resolve to the lower weekday number so the result is stable.
func preferredWeekday(starts []time.Time) (time.Weekday, bool) {
	if len(starts) == 0 {
		return 0, false
	}
	var counts [7]int
	for _, s := range starts {
		counts[s.Weekday()]++
	}
	best := time.Weekday(0)
	for d := time.Weekday(1); d <= time.Saturday; d++ {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best, counts[best] > 0
}

func preferredBucket(starts []time.Time) (timeBucket, bool) {
	if len(starts) == 0 {
		return 0, false
	}
	counts := [3]int{}
	for _, s := range starts {
		counts[bucketOf(s.Hour())]++
	}
	best := timeBucket(0)
	for b := timeBucket(1); b <= bucketEvening; b++ {
		if counts[b] > counts[best] {
			best = b
		}
	}
	return best, counts[best] > 0
}

// followUpDue estimates whether a follow-up visit is owed: the average gap
// between the patient's recent record dates, with a follow-up flagged once
// 80% of that gap has elapsed since the last one.
func followUpDue(recordDates []time.Time, now time.Time) (bool, int) {
	if len(recordDates) < 2 {
		return false, 0
	}
	dates := append([]time.Time(nil), recordDates...)
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > 5 {
		dates = dates[:5]
	}

	total := 0.0
	for i := 0; i < len(dates)-1; i++ {
		total += dates[i].Sub(dates[i+1]).Hours() / 24
	}
	avg := total / float64(len(dates)-1)
	if avg <= 0 {
		return false, 0
	}

	daysSince := now.Sub(dates[0]).Hours() / 24
	return daysSince >= 0.8*avg, int(avg)
}

// ScoredSlot is a candidate slot with its heuristic score and the
// human-readable reasons behind it.
type ScoredSlot struct {
	Slot    availability.Slot
	Score   int
	Reasons []string
}

// Rank scores the available candidate slots and sorts them best-first.
// Equal scores break on earliest start time so the ordering is deterministic.
func Rank(slots []availability.Slot, h History, busy []BusyKey, now time.Time) []ScoredSlot {
	busySet := make(map[BusyKey]struct{}, len(busy))
	for _, b := range busy {
		busySet[b] = struct{}{}
	}

	prefDay, hasPrefDay := preferredWeekday(h.PastStarts)
	prefBucket, hasPrefBucket := preferredBucket(h.PastStarts)
	due, _ := followUpDue(h.RecordDates, now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	scored := make([]ScoredSlot, 0, len(slots))
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		score := 50
		var reasons []string

		if hasPrefDay && slot.Start.Weekday() == prefDay {
			score += 15
			reasons = append(reasons, "Your preferred day")
		}
		if hasPrefBucket && bucketOf(slot.Start.Hour()) == prefBucket {
			score += 10
			reasons = append(reasons, "Your usual "+prefBucket.label()+" time")
		}

		key := BusyKey{Date: slot.Start.Format("2006-01-02"), Hour: slot.Start.Hour()}
		if _, ok := busySet[key]; ok {
			score -= 15
			reasons = append(reasons, "Doctor's busy time")
		}

		if due {
			slotDay := time.Date(slot.Start.Year(), slot.Start.Month(), slot.Start.Day(), 0, 0, 0, 0, slot.Start.Location())
			if daysAway := int(slotDay.Sub(today).Hours() / 24); daysAway >= 0 && daysAway <= 3 {
				score += 20
				reasons = append(reasons, "Follow-up recommended soon")
			}
		}

		switch slot.Start.Weekday() {
		case time.Tuesday, time.Wednesday, time.Thursday:
			score += 5
		}
		if hour := slot.Start.Hour(); hour >= 8 && hour < 11 {
			score += 5
		}

		scored = append(scored, ScoredSlot{Slot: slot, Score: score, Reasons: reasons})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Slot.Start.Before(scored[j].Slot.Start)
	})
	return scored
}

// Recommendation is the full response for one patient+doctor pairing.
type Recommendation struct {
	UrgencyScore int
	Reasons      []string
	Slots        []ScoredSlot
}

// Build assembles urgency, busy-time avoidance, and ranked slots in one pass.
// approvedStarts feeds the busy-time analysis; topN bounds the slot list
// (<=0 means all).
func Build(slots []availability.Slot, h History, approvedStarts []time.Time, now time.Time, topN int) Recommendation {
	urgency, reasons := Urgency(h, now)
	busy := BusyTimes(approvedStarts, now)
	ranked := Rank(slots, h, busy, now)
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	if due, interval := followUpDue(h.RecordDates, now); due {
		reasons = append(reasons, fmt.Sprintf("Typical visit interval is every %d days; a follow-up may be due", interval))
	}
	return Recommendation{
		UrgencyScore: urgency,
		Reasons:      reasons,
		Slots:        ranked,
	}
}
