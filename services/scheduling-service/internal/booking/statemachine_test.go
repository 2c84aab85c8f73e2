package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

func TestApply_Transitions(t *testing.T) {
	cases := []struct {
		name        string
		from        model.AppointmentStatus
		action      Action
		want        model.AppointmentStatus
		wantChanged bool
		wantErr     bool
	}{
		{"approve pending", model.StatusPending, ActionApprove, model.StatusApproved, true, false},
		{"approve approved is idempotent", model.StatusApproved, ActionApprove, model.StatusApproved, false, false},
		{"approve rejected", model.StatusRejected, ActionApprove, "", false, true},
		{"approve completed", model.StatusCompleted, ActionApprove, "", false, true},
		{"reject pending", model.StatusPending, ActionReject, model.StatusRejected, true, false},
		{"reject approved is blocked", model.StatusApproved, ActionReject, "", false, true},
		{"reject rejected", model.StatusRejected, ActionReject, "", false, true},
		{"complete approved", model.StatusApproved, ActionComplete, model.StatusCompleted, true, false},
		{"complete pending", model.StatusPending, ActionComplete, "", false, true},
		{"no_show approved", model.StatusApproved, ActionNoShow, model.StatusNoShow, true, false},
		{"no_show pending", model.StatusPending, ActionNoShow, "", false, true},
		{"no_show completed", model.StatusCompleted, ActionNoShow, "", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, changed, err := Apply(tc.from, tc.action)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got next=%s", next)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next != tc.want || changed != tc.wantChanged {
				t.Fatalf("Apply = (%s, %v), want (%s, %v)", next, changed, tc.want, tc.wantChanged)
			}
		})
	}
}

func TestApply_UnknownAction(t *testing.T) {
	if _, _, err := Apply(model.StatusPending, Action("archive")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"approve", "reject", "complete", "no_show"} {
		if _, err := ParseAction(raw); err != nil {
			t.Fatalf("ParseAction(%q) failed: %v", raw, err)
		}
	}
	if _, err := ParseAction("cancel"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown action, got %v", err)
	}
}

func TestCanCancel(t *testing.T) {
	if err := CanCancel(model.StatusPending); err != nil {
		t.Fatalf("pending should be cancellable: %v", err)
	}
	if err := CanCancel(model.StatusApproved); err != nil {
		t.Fatalf("approved should be cancellable: %v", err)
	}
	for _, s := range []model.AppointmentStatus{model.StatusRejected, model.StatusCompleted, model.StatusNoShow} {
		if err := CanCancel(s); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelling %s: expected ErrInvalidTransition, got %v", s, err)
		}
	}
}

func TestCanReschedule(t *testing.T) {
	if err := CanReschedule(model.StatusPending); err != nil {
		t.Fatalf("pending should be reschedulable: %v", err)
	}
	if err := CanReschedule(model.StatusApproved); err != nil {
		t.Fatalf("approved should be reschedulable: %v", err)
	}
	// No rejected->pending resurrection through reschedule.
	for _, s := range []model.AppointmentStatus{model.StatusRejected, model.StatusCompleted, model.StatusNoShow} {
		if err := CanReschedule(s); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("rescheduling %s: expected ErrInvalidTransition, got %v", s, err)
		}
	}
}

func TestValidateInterval(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if err := ValidateInterval(start, start.Add(30*time.Minute)); err != nil {
		t.Fatalf("valid interval rejected: %v", err)
	}
	if err := ValidateInterval(start, start); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("empty interval: expected ErrInvalidInterval, got %v", err)
	}
	if err := ValidateInterval(start.Add(time.Hour), start); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("inverted interval: expected ErrInvalidInterval, got %v", err)
	}
	if err := ValidateInterval(time.Time{}, start); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero start: expected ErrInvalidInterval, got %v", err)
	}
}
