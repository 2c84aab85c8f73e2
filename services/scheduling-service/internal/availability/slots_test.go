package availability

import (
	"testing"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

func mustTime(t *testing.T, s string) model.TimeOfDay {
	t.Helper()
	tod, err := model.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

// Monday 2026-03-02.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func weeklyMonday(t *testing.T, start, end string) model.WeeklyAvailability {
	t.Helper()
	return model.WeeklyAvailability{
		ID:       "w1",
		DoctorID: "doc1",
		Weekday:  time.Monday,
		Start:    mustTime(t, start),
		End:      mustTime(t, end),
	}
}

func TestSlotsForDay_FullMorning(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "12:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, -3)

	slots := SlotsForDay(monday, windows, nil, 30*time.Minute, now, time.Hour)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantStart := monday.Add(9*time.Hour + time.Duration(i)*30*time.Minute)
		if !s.Start.Equal(wantStart) {
			t.Fatalf("slot %d: expected start %s, got %s", i, wantStart, s.Start)
		}
		if !s.End.Equal(wantStart.Add(30 * time.Minute)) {
			t.Fatalf("slot %d: unexpected end %s", i, s.End)
		}
		if !s.Available {
			t.Fatalf("slot %d should be available", i)
		}
	}
}

func TestSlotsForDay_BookedSlotMarkedUnavailable(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "12:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, -3)

	busy := []Interval{{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)}}
	slots := SlotsForDay(monday, windows, busy, 30*time.Minute, now, time.Hour)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	for _, s := range slots {
		wantAvailable := !s.Start.Equal(monday.Add(10 * time.Hour))
		if s.Available != wantAvailable {
			t.Fatalf("slot %s: available=%v, want %v", s.Start, s.Available, wantAvailable)
		}
	}
}

func TestSlotsForDay_PartialTrailingSlotDropped(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "10:45")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, -1)

	slots := SlotsForDay(monday, windows, nil, 30*time.Minute, now, time.Hour)
	// 09:00, 09:30, 10:00; 10:30-11:00 would overrun the window.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	last := slots[len(slots)-1]
	if !last.End.Equal(monday.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("unexpected last slot end %s", last.End)
	}
}

func TestSlotsForDay_PastDateYieldsNothing(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "12:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, 2)

	if slots := SlotsForDay(monday, windows, nil, 30*time.Minute, now, time.Hour); slots != nil {
		t.Fatalf("expected no slots for a past date, got %d", len(slots))
	}
}

func TestSlotsForDay_SameDayLeadTime(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "12:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.Add(9*time.Hour + 10*time.Minute)

	slots := SlotsForDay(monday, windows, nil, 30*time.Minute, now, time.Hour)
	// Cutoff 10:10 excludes 09:00, 09:30, 10:00; leaves 10:30, 11:00, 11:30.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(monday.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected first slot 10:30, got %s", slots[0].Start)
	}
}

func TestSlotsForDay_Deterministic(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "17:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, -3)
	busy := []Interval{{Start: monday.Add(13 * time.Hour), End: monday.Add(14 * time.Hour)}}

	a := SlotsForDay(monday, windows, busy, 30*time.Minute, now, time.Hour)
	b := SlotsForDay(monday, windows, busy, 30*time.Minute, now, time.Hour)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestDayWindows_OverridePrecedence(t *testing.T) {
	// Thursday 2025-12-25 with weekly 09:00-17:00 but an 08:00-10:00 override.
	xmas := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	if xmas.Weekday() != time.Thursday {
		t.Fatalf("test date must be a Thursday")
	}
	weekly := []model.WeeklyAvailability{{
		DoctorID: "doc1",
		Weekday:  time.Thursday,
		Start:    mustTime(t, "09:00"),
		End:      mustTime(t, "17:00"),
	}}
	overrides := []model.AvailabilityOverride{{
		DoctorID: "doc1",
		Date:     xmas,
		Start:    mustTime(t, "08:00"),
		End:      mustTime(t, "10:00"),
	}}

	windows := DayWindows(xmas, overrides, weekly)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if !windows[0].Start.Equal(xmas.Add(8*time.Hour)) || !windows[0].End.Equal(xmas.Add(10*time.Hour)) {
		t.Fatalf("override window not applied: %+v", windows[0])
	}

	now := xmas.AddDate(0, 0, -7)
	slots := SlotsForDay(xmas, windows, nil, 30*time.Minute, now, time.Hour)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots (08:00-10:00), got %d", len(slots))
	}
	if !slots[0].Start.Equal(xmas.Add(8 * time.Hour)) {
		t.Fatalf("expected first slot 08:00, got %s", slots[0].Start)
	}
}

func TestDayWindows_EmptyOverrideSuppressesWeeklyRule(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "17:00")}
	// A degenerate override still replaces the weekly rule for its date.
	overrides := []model.AvailabilityOverride{{
		DoctorID: "doc1",
		Date:     monday,
		Start:    mustTime(t, "09:00"),
		End:      mustTime(t, "09:00"),
	}}

	if windows := DayWindows(monday, overrides, weekly); len(windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(windows))
	}
}

func TestDayWindows_NoRulesNoSlots(t *testing.T) {
	if windows := DayWindows(monday, nil, nil); len(windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(windows))
	}
}

func TestHasFreeSlot(t *testing.T) {
	weekly := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "10:00")}
	windows := DayWindows(monday, nil, weekly)
	now := monday.AddDate(0, 0, -1)

	if !HasFreeSlot(monday, windows, nil, 30*time.Minute, now, time.Hour) {
		t.Fatal("expected a free slot on an empty day")
	}

	busy := []Interval{
		{Start: monday.Add(9 * time.Hour), End: monday.Add(9*time.Hour + 30*time.Minute)},
		{Start: monday.Add(9*time.Hour + 30*time.Minute), End: monday.Add(10 * time.Hour)},
	}
	if HasFreeSlot(monday, windows, busy, 30*time.Minute, now, time.Hour) {
		t.Fatal("expected no free slot on a fully booked day")
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := monday.Add(10 * time.Hour)
	cases := []struct {
		name           string
		bStart, bEnd   time.Time
		expectsOverlap bool
	}{
		{"identical", base, base.Add(30 * time.Minute), true},
		{"contained", base.Add(10 * time.Minute), base.Add(20 * time.Minute), true},
		{"straddles start", base.Add(-10 * time.Minute), base.Add(10 * time.Minute), true},
		{"touching before", base.Add(-30 * time.Minute), base, false},
		{"touching after", base.Add(30 * time.Minute), base.Add(time.Hour), false},
		{"disjoint", base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(base, base.Add(30*time.Minute), tc.bStart, tc.bEnd)
			if got != tc.expectsOverlap {
				t.Fatalf("Overlaps = %v, want %v", got, tc.expectsOverlap)
			}
		})
	}
}

func TestWithinWindows(t *testing.T) {
	windows := []Interval{
		{Start: monday.Add(9 * time.Hour), End: monday.Add(12 * time.Hour)},
		{Start: monday.Add(14 * time.Hour), End: monday.Add(17 * time.Hour)},
	}

	if !WithinWindows(monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute), windows) {
		t.Fatal("interval at window start should fit")
	}
	if !WithinWindows(monday.Add(11*time.Hour+30*time.Minute), monday.Add(12*time.Hour), windows) {
		t.Fatal("interval ending at window end should fit")
	}
	if WithinWindows(monday.Add(11*time.Hour+30*time.Minute), monday.Add(12*time.Hour+30*time.Minute), windows) {
		t.Fatal("interval overrunning the window should not fit")
	}
	if WithinWindows(monday.Add(12*time.Hour+30*time.Minute), monday.Add(13*time.Hour), windows) {
		t.Fatal("interval in the gap between windows should not fit")
	}
	if WithinWindows(monday.Add(10*time.Hour), monday.Add(10*time.Hour), windows) {
		t.Fatal("empty interval should not fit")
	}
}

func TestValidateWeekly(t *testing.T) {
	existing := []model.WeeklyAvailability{weeklyMonday(t, "09:00", "12:00")}

	ok := model.WeeklyAvailability{
		ID: "w2", DoctorID: "doc1", Weekday: time.Monday,
		Start: mustTime(t, "13:00"), End: mustTime(t, "17:00"),
	}
	if err := ValidateWeekly(ok, existing); err != nil {
		t.Fatalf("non-overlapping window rejected: %v", err)
	}

	adjacent := model.WeeklyAvailability{
		ID: "w3", DoctorID: "doc1", Weekday: time.Monday,
		Start: mustTime(t, "12:00"), End: mustTime(t, "13:00"),
	}
	if err := ValidateWeekly(adjacent, existing); err != nil {
		t.Fatalf("adjacent window rejected: %v", err)
	}

	overlapping := model.WeeklyAvailability{
		ID: "w4", DoctorID: "doc1", Weekday: time.Monday,
		Start: mustTime(t, "11:00"), End: mustTime(t, "14:00"),
	}
	if err := ValidateWeekly(overlapping, existing); err == nil {
		t.Fatal("overlapping window accepted")
	}

	otherDay := model.WeeklyAvailability{
		ID: "w5", DoctorID: "doc1", Weekday: time.Tuesday,
		Start: mustTime(t, "11:00"), End: mustTime(t, "14:00"),
	}
	if err := ValidateWeekly(otherDay, existing); err != nil {
		t.Fatalf("window on another weekday rejected: %v", err)
	}

	inverted := model.WeeklyAvailability{
		ID: "w6", DoctorID: "doc1", Weekday: time.Monday,
		Start: mustTime(t, "15:00"), End: mustTime(t, "14:00"),
	}
	if err := ValidateWeekly(inverted, existing); err == nil {
		t.Fatal("inverted window accepted")
	}
}
