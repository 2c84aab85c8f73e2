package sms

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"09171234567", "639171234567", true},
		{"+639171234567", "639171234567", true},
		{"639171234567", "639171234567", true},
		{"9171234567", "639171234567", true},
		{"0917-123-4567", "639171234567", true},
		{"(0917) 123 4567", "639171234567", true},
		{"12345", "", false},
		{"091712345678", "", false}, // too long
		{"08171234567", "", false},  // not a mobile prefix
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizePhone(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizePhone(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReminderTemplateByProximity(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	today := Reminder("Ana", "Reyes", start, now)
	if !strings.Contains(today, "TODAY!") {
		t.Fatalf("same-day reminder missing TODAY marker: %q", today)
	}

	tomorrow := Reminder("Ana", "Reyes", start.AddDate(0, 0, 1), now)
	if !strings.Contains(tomorrow, "TOMORROW") {
		t.Fatalf("next-day reminder missing TOMORROW marker: %q", tomorrow)
	}

	twoDays := Reminder("Ana", "Reyes", start.AddDate(0, 0, 2), now)
	if !strings.Contains(twoDays, "2 DAYS") {
		t.Fatalf("two-day reminder missing day count: %q", twoDays)
	}
}

func TestStatusTemplatesCarryDetails(t *testing.T) {
	start := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	approved := Approved("Ana", "Reyes", start)
	for _, want := range []string{"CONFIRMED!", "Dr. Reyes", "Mar 5, 2026", "9:30 AM"} {
		if !strings.Contains(approved, want) {
			t.Fatalf("approved template missing %q: %q", want, approved)
		}
	}

	if msg := Rejected("Ana"); !strings.Contains(msg, "could not be confirmed") {
		t.Fatalf("unexpected rejection template: %q", msg)
	}
	if msg := Cancelled("Ana"); !strings.Contains(msg, "CANCELLED!") {
		t.Fatalf("unexpected cancellation template: %q", msg)
	}
	if msg := Rescheduled("Ana", "Reyes", start); !strings.Contains(msg, "RESCHEDULED!") {
		t.Fatalf("unexpected reschedule template: %q", msg)
	}
}
