package recommend

import (
	"testing"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/availability"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // Monday

func daysAgo(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

func TestUrgency_NewPatient(t *testing.T) {
	score, reasons := Urgency(History{}, now)
	if score != 30 {
		t.Fatalf("score = %d, want 30", score)
	}
	if len(reasons) != 1 || reasons[0] != "New patient" {
		t.Fatalf("reasons = %v", reasons)
	}
}

func TestUrgency_VisitRecency(t *testing.T) {
	cases := []struct {
		name string
		days int
		want int
	}{
		{"over a year", 400, 40},
		{"over six months", 200, 25},
		{"over three months", 100, 15},
		{"recent visit", 30, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			last := daysAgo(tc.days)
			score, _ := Urgency(History{LastCompleted: &last}, now)
			if score != tc.want {
				t.Fatalf("score = %d, want %d", score, tc.want)
			}
		})
	}
}

func TestUrgency_Markers(t *testing.T) {
	last := daysAgo(30)
	h := History{
		LastCompleted:     &last,
		RecentRecordCount: 3,
		AllergyCount:      1,
		MedicationCount:   3,
	}
	score, _ := Urgency(h, now)
	if score != 50 { // 25 records + 10 allergies + 15 meds
		t.Fatalf("score = %d, want 50", score)
	}

	h.RecentRecordCount = 2
	score, _ = Urgency(h, now)
	if score != 40 {
		t.Fatalf("score with two records = %d, want 40", score)
	}
}

func TestUrgency_PendingDiscountFloorsAtZero(t *testing.T) {
	last := daysAgo(100) // +15
	score, _ := Urgency(History{LastCompleted: &last, HasPending: true}, now)
	if score != 0 {
		t.Fatalf("score = %d, want 0", score)
	}
}

func TestUrgency_CappedAt100(t *testing.T) {
	h := History{ // new patient 30 + records 25 + allergies 10 + meds 15 = 80; force over with recency
		RecentRecordCount: 3,
		AllergyCount:      2,
		MedicationCount:   5,
	}
	last := daysAgo(400)
	h.LastCompleted = &last // 40 + 25 + 10 + 15 = 90
	score, _ := Urgency(h, now)
	if score != 90 {
		t.Fatalf("score = %d, want 90", score)
	}
	// The cap only matters if future weights push past 100; keep it exercised.
	if s, _ := Urgency(History{RecentRecordCount: 3, AllergyCount: 1, MedicationCount: 3, LastCompleted: &last}, now); s > 100 {
		t.Fatalf("score %d exceeds cap", s)
	}
}

func TestBusyTimes(t *testing.T) {
	at := func(day, hour, min int) time.Time {
		return time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
	}
	starts := []time.Time{
		at(3, 9, 0), at(3, 9, 30), at(3, 9, 45), // three in one hour -> busy
		at(4, 10, 0), at(4, 10, 30), // only two -> not busy
		at(1, 9, 0),          // before now, ignored
		at(20, 9, 0),         // beyond 14 days, ignored
		at(20, 9, 15),        //
		at(20, 9, 30),        //
		at(5, 14, 0), at(5, 14, 10), at(5, 14, 20), at(5, 14, 40),
	}
	busy := BusyTimes(starts, now)
	want := []BusyKey{
		{Date: "2026-03-03", Hour: 9},
		{Date: "2026-03-05", Hour: 14},
	}
	if len(busy) != len(want) {
		t.Fatalf("busy = %v, want %v", busy, want)
	}
	for i := range want {
		if busy[i] != want[i] {
			t.Fatalf("busy[%d] = %v, want %v", i, busy[i], want[i])
		}
	}
}

func TestFollowUpDue(t *testing.T) {
	// Visits every 30 days, last one 28 days ago: 28 >= 0.8*30.
	dates := []time.Time{daysAgo(28), daysAgo(58), daysAgo(88)}
	due, avg := followUpDue(dates, now)
	if !due {
		t.Fatalf("expected follow-up due")
	}
	if avg != 30 {
		t.Fatalf("avg = %d, want 30", avg)
	}

	// Last visit 10 days ago: 10 < 24.
	dates = []time.Time{daysAgo(10), daysAgo(40), daysAgo(70)}
	if due, _ := followUpDue(dates, now); due {
		t.Fatalf("follow-up due too early")
	}

	if due, _ := followUpDue([]time.Time{daysAgo(10)}, now); due {
		t.Fatalf("single record cannot establish cadence")
	}
}

func slot(day, hour, min int) availability.Slot {
	start := time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
	return availability.Slot{Start: start, End: start.Add(30 * time.Minute), Available: true}
}

func TestRank_BaseScoreAndStructuralBonuses(t *testing.T) {
	// Monday 2026-03-02 13:00: no history, no bonuses -> base 50.
	// Tuesday 2026-03-03 09:00: Tue-Thu +5, 08:00-11:00 +5 -> 60.
	slots := []availability.Slot{slot(2, 13, 0), slot(3, 9, 0)}
	ranked := Rank(slots, History{}, nil, now)
	if len(ranked) != 2 {
		t.Fatalf("ranked %d slots, want 2", len(ranked))
	}
	if ranked[0].Score != 60 || ranked[0].Slot.Start.Day() != 3 {
		t.Fatalf("ranked[0] = %+v, want Tuesday 09:00 at 60", ranked[0])
	}
	if ranked[1].Score != 50 {
		t.Fatalf("ranked[1].Score = %d, want 50", ranked[1].Score)
	}
}

func TestRank_PreferenceBonuses(t *testing.T) {
	// Patient history: two Friday afternoons.
	h := History{PastStarts: []time.Time{
		time.Date(2026, 2, 6, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC),
	}}
	// Friday 2026-03-06 14:00: base 50 + weekday 15 + bucket 10 = 75.
	ranked := Rank([]availability.Slot{slot(6, 14, 0)}, h, nil, now)
	if ranked[0].Score != 75 {
		t.Fatalf("score = %d, want 75", ranked[0].Score)
	}
	if len(ranked[0].Reasons) != 2 {
		t.Fatalf("reasons = %v", ranked[0].Reasons)
	}
}

func TestRank_BusyPenalty(t *testing.T) {
	busy := []BusyKey{{Date: "2026-03-02", Hour: 13}}
	ranked := Rank([]availability.Slot{slot(2, 13, 0)}, History{}, busy, now)
	if ranked[0].Score != 35 {
		t.Fatalf("score = %d, want 35", ranked[0].Score)
	}
}

func TestRank_FollowUpWindow(t *testing.T) {
	h := History{RecordDates: []time.Time{daysAgo(28), daysAgo(58), daysAgo(88)}}
	// Monday 13:00 within 3 days: base 50 + follow-up 20 = 70.
	near := Rank([]availability.Slot{slot(2, 13, 0)}, h, nil, now)
	if near[0].Score != 70 {
		t.Fatalf("near score = %d, want 70", near[0].Score)
	}
	// Monday next week, outside the 3-day window: Tue-Thu no, morning no -> 50.
	far := Rank([]availability.Slot{slot(9, 13, 0)}, h, nil, now)
	if far[0].Score != 50 {
		t.Fatalf("far score = %d, want 50", far[0].Score)
	}
}

func TestRank_SkipsUnavailableSlots(t *testing.T) {
	taken := slot(2, 13, 0)
	taken.Available = false
	ranked := Rank([]availability.Slot{taken, slot(2, 13, 30)}, History{}, nil, now)
	if len(ranked) != 1 {
		t.Fatalf("ranked %d slots, want 1", len(ranked))
	}
}

func TestRank_TieBreaksOnEarliestStart(t *testing.T) {
	// Two Monday-afternoon slots score identically; earlier start wins.
	ranked := Rank([]availability.Slot{slot(2, 14, 0), slot(2, 13, 0)}, History{}, nil, now)
	if !ranked[0].Slot.Start.Before(ranked[1].Slot.Start) {
		t.Fatalf("tie not broken by earliest start: %v before %v",
			ranked[0].Slot.Start, ranked[1].Slot.Start)
	}
}

func TestBuild_TopNAndReasons(t *testing.T) {
	h := History{RecordDates: []time.Time{daysAgo(28), daysAgo(58), daysAgo(88)}}
	slots := []availability.Slot{slot(2, 13, 0), slot(2, 13, 30), slot(2, 14, 0)}
	rec := Build(slots, h, nil, now, 2)
	if len(rec.Slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(rec.Slots))
	}
	if rec.UrgencyScore != 30 { // new patient
		t.Fatalf("urgency = %d, want 30", rec.UrgencyScore)
	}
	found := false
	for _, r := range rec.Reasons {
		if r == "Typical visit interval is every 30 days; a follow-up may be due" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing follow-up reason in %v", rec.Reasons)
	}
}
