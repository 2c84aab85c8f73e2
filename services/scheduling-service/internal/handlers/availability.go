package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/availability"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/storage"
)

type weeklyRuleItem struct {
	ID      string `json:"id"`
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type overrideItem struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityResponse struct {
	DoctorID  string           `json:"doctor_id"`
	Weekly    []weeklyRuleItem `json:"weekly"`
	Overrides []overrideItem   `json:"overrides"`
}

func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if !isUUID(doctorID) {
		http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	weekly, err := h.avail.WeeklyForDoctor(ctx, doctorID)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	now := h.now()
	overrides, err := h.avail.OverridesInRange(ctx, doctorID,
		time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		now.AddDate(0, 3, 0))
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	resp := availabilityResponse{
		DoctorID:  doctorID,
		Weekly:    make([]weeklyRuleItem, 0, len(weekly)),
		Overrides: make([]overrideItem, 0, len(overrides)),
	}
	for _, rule := range weekly {
		resp.Weekly = append(resp.Weekly, weeklyRuleItem{
			ID:      rule.ID,
			Weekday: int(rule.Weekday),
			Start:   rule.Start.String(),
			End:     rule.End.String(),
		})
	}
	for _, ov := range overrides {
		resp.Overrides = append(resp.Overrides, overrideItem{
			ID:    ov.ID,
			Date:  ov.Date.Format("2006-01-02"),
			Start: ov.Start.String(),
			End:   ov.End.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createWeeklyRequest struct {
	DoctorID string `json:"doctor_id"`
	Weekday  int    `json:"weekday"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

func (h *SchedulingHandler) CreateWeekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createWeeklyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if !isUUID(req.DoctorID) || req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "doctor_id and weekday (0-6) required", http.StatusBadRequest)
		return
	}
	start, err := model.ParseTimeOfDay(strings.TrimSpace(req.Start))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := model.ParseTimeOfDay(strings.TrimSpace(req.End))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := h.doctors.Get(ctx, req.DoctorID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	rule := model.WeeklyAvailability{
		DoctorID: req.DoctorID,
		Weekday:  time.Weekday(req.Weekday),
		Start:    start,
		End:      end,
	}
	existing, err := h.avail.WeeklyForDoctor(ctx, req.DoctorID)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if err := availability.ValidateWeekly(rule, existing); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	id, err := h.avail.CreateWeekly(ctx, rule)
	if err != nil {
		http.Error(w, "failed to create availability rule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, weeklyRuleItem{
		ID:      id,
		Weekday: req.Weekday,
		Start:   start.String(),
		End:     end.String(),
	})
}

type createOverrideRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// CreateOverride records a date-specific window. Start and end are optional
// together: omitting both blocks the whole day (the override still replaces
// the weekly rule, with no bookable time).
func (h *SchedulingHandler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if !isUUID(req.DoctorID) {
		http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	ov := model.AvailabilityOverride{DoctorID: req.DoctorID, Date: date}
	blocked := strings.TrimSpace(req.Start) == "" && strings.TrimSpace(req.End) == ""
	if !blocked {
		ov.Start, err = model.ParseTimeOfDay(strings.TrimSpace(req.Start))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ov.End, err = model.ParseTimeOfDay(strings.TrimSpace(req.End))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if _, err := h.doctors.Get(ctx, req.DoctorID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	existing, err := h.avail.OverridesForDate(ctx, req.DoctorID, date)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if !blocked {
		if err := availability.ValidateOverride(ov, existing); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	} else if len(existing) > 0 {
		http.Error(w, "overrides already exist for this date", http.StatusUnprocessableEntity)
		return
	}

	id, err := h.avail.CreateOverride(ctx, ov)
	if err != nil {
		http.Error(w, "failed to create override", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, overrideItem{
		ID:    id,
		Date:  date.Format("2006-01-02"),
		Start: ov.Start.String(),
		End:   ov.End.String(),
	})
}

type deleteRuleRequest struct {
	DoctorID string `json:"doctor_id"`
	RuleID   string `json:"rule_id"`
}

func (h *SchedulingHandler) DeleteWeekly(w http.ResponseWriter, r *http.Request) {
	h.deleteRule(w, r, h.avail.DeleteWeekly)
}

func (h *SchedulingHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	h.deleteRule(w, r, h.avail.DeleteOverride)
}

func (h *SchedulingHandler) deleteRule(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, doctorID, ruleID string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.RuleID = strings.TrimSpace(req.RuleID)
	if !isUUID(req.DoctorID) || !isUUID(req.RuleID) {
		http.Error(w, "doctor_id and rule_id required", http.StatusBadRequest)
		return
	}

	if err := del(r.Context(), req.DoctorID, req.RuleID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "rule not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete rule", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
