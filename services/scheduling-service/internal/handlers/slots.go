package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/availability"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/recommend"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/storage"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if !isUUID(doctorID) || dateStr == "" {
		http.Error(w, "doctor_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.ensureBookableDoctor(ctx, doctorID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	slots, err := h.slotsForDate(ctx, doctorID, date)
	if err != nil {
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Available: s.Available,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type availableDaysResponse struct {
	DoctorID string   `json:"doctor_id"`
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Days     []string `json:"days"`
}

// AvailableDays returns the dates in a month holding at least one free slot.
// Each day is decided with an early-exit scan rather than full slot
// enumeration.
func (h *SchedulingHandler) AvailableDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if !isUUID(doctorID) {
		http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
		return
	}
	now := h.now()
	year, month := now.Year(), int(now.Month())
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 2000 && n <= 2200 {
			year = n
		} else {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= 12 {
			month = n
		} else {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	ctx := r.Context()
	if err := h.ensureBookableDoctor(ctx, doctorID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	weekly, err := h.avail.WeeklyForDoctor(ctx, doctorID)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	overrides, err := h.avail.OverridesInRange(ctx, doctorID, monthStart, monthEnd)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	approved, err := h.appts.ApprovedIntervals(ctx, doctorID, monthStart, monthEnd)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}
	busy := busyIntervals(approved)

	resp := availableDaysResponse{DoctorID: doctorID, Year: year, Month: month, Days: []string{}}
	for day := monthStart; day.Before(monthEnd); day = day.AddDate(0, 0, 1) {
		windows := availability.DayWindows(day, overrides, weekly)
		if len(windows) == 0 {
			continue
		}
		if availability.HasFreeSlot(day, windows, busy, availability.DefaultGranularity, now, availability.DefaultLeadTime) {
			resp.Days = append(resp.Days, day.Format("2006-01-02"))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type recommendationResponse struct {
	DoctorID     string              `json:"doctor_id"`
	UrgencyScore int                 `json:"urgency_score"`
	Reasons      []string            `json:"reasons"`
	Slots        []recommendSlotItem `json:"slots"`
}

type recommendSlotItem struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons,omitempty"`
}

func (h *SchedulingHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	patient := model.PatientRef{
		Kind: model.PatientKind(strings.TrimSpace(r.URL.Query().Get("patient_kind"))),
		ID:   strings.TrimSpace(r.URL.Query().Get("patient_id")),
	}
	if !isUUID(doctorID) {
		http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
		return
	}
	if err := patient.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	horizonDays := 7
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 30 {
			horizonDays = n
		} else {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
	}
	topN := 10
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			topN = n
		}
	}

	ctx := r.Context()
	if err := h.ensureBookableDoctor(ctx, doctorID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	now := h.now()
	var candidates []availability.Slot
	for i := 0; i < horizonDays; i++ {
		day := now.AddDate(0, 0, i)
		slots, err := h.slotsForDate(ctx, doctorID, day)
		if err != nil {
			http.Error(w, "failed to compute slots", http.StatusInternalServerError)
			return
		}
		candidates = append(candidates, slots...)
	}

	history, err := h.history.PatientHistory(ctx, doctorID, patient, now)
	if err != nil {
		http.Error(w, "failed to load patient history", http.StatusInternalServerError)
		return
	}
	approvedStarts, err := h.appts.ApprovedStarts(ctx, doctorID, now, now.Add(14*24*time.Hour))
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	rec := recommend.Build(candidates, history, approvedStarts, now, topN)

	resp := recommendationResponse{
		DoctorID:     doctorID,
		UrgencyScore: rec.UrgencyScore,
		Reasons:      rec.Reasons,
		Slots:        make([]recommendSlotItem, 0, len(rec.Slots)),
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	for _, s := range rec.Slots {
		resp.Slots = append(resp.Slots, recommendSlotItem{
			StartTime: s.Slot.Start.UTC().Format(time.RFC3339),
			EndTime:   s.Slot.End.UTC().Format(time.RFC3339),
			Score:     s.Score,
			Reasons:   s.Reasons,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ensureBookableDoctor treats an unapproved doctor the same as a missing one:
// neither has bookable time.
func (h *SchedulingHandler) ensureBookableDoctor(ctx context.Context, doctorID string) error {
	doc, err := h.doctors.Get(ctx, doctorID)
	if err != nil {
		return err
	}
	if !doc.Approved {
		return pgx.ErrNoRows
	}
	return nil
}

func (h *SchedulingHandler) slotsForDate(ctx context.Context, doctorID string, date time.Time) ([]availability.Slot, error) {
	weekly, err := h.avail.WeeklyForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	overrides, err := h.avail.OverridesForDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	windows := availability.DayWindows(date, overrides, weekly)
	if len(windows) == 0 {
		return nil, nil
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	approved, err := h.appts.ApprovedIntervals(ctx, doctorID, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	return availability.SlotsForDay(date, windows, busyIntervals(approved), availability.DefaultGranularity, h.now(), availability.DefaultLeadTime), nil
}

func busyIntervals(appts []model.Appointment) []availability.Interval {
	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	return busy
}
