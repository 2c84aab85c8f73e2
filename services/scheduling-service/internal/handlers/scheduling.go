package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/westpoint-clinic/clinicsched/libs/outbox"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/availability"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/booking"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/directory"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/storage"
)

type SchedulingHandler struct {
	appts        *storage.AppointmentRepository
	avail        *storage.AvailabilityRepository
	doctors      *storage.DoctorRepository
	history      *storage.HistoryRepository
	outboxRepo   *outbox.Repository
	directory    directory.Provider
	logger       *slog.Logger
	reminderOffs []time.Duration
	now          func() time.Time
}

func NewSchedulingHandler(
	appts *storage.AppointmentRepository,
	avail *storage.AvailabilityRepository,
	doctors *storage.DoctorRepository,
	history *storage.HistoryRepository,
	outboxRepo *outbox.Repository,
	directoryProvider directory.Provider,
	logger *slog.Logger,
	reminderOffs []time.Duration,
) *SchedulingHandler {
	return &SchedulingHandler{
		appts:        appts,
		avail:        avail,
		doctors:      doctors,
		history:      history,
		outboxRepo:   outboxRepo,
		directory:    directoryProvider,
		logger:       logger,
		reminderOffs: reminderOffs,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type bookRequest struct {
	DoctorID    string `json:"doctor_id"`
	PatientKind string `json:"patient_kind"`
	PatientID   string `json:"patient_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientKind   string `json:"patient_kind"`
	PatientID     string `json:"patient_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
}

func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	patient := model.PatientRef{Kind: model.PatientKind(strings.TrimSpace(req.PatientKind)), ID: strings.TrimSpace(req.PatientID)}
	if !isUUID(req.DoctorID) {
		http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
		return
	}
	if err := patient.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	ctx := r.Context()
	doc, err := h.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}
	if !doc.Approved {
		http.Error(w, "doctor is not accepting appointments", http.StatusUnprocessableEntity)
		return
	}

	// Credentialing directory lookup when the gRPC provider is built in.
	// Lookup failures fall back to the local record rather than blocking.
	if h.directory != nil {
		dirCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		profile, dirErr := h.directory.GetDoctorProfile(dirCtx, req.DoctorID)
		cancel()
		if dirErr != nil {
			h.logger.Warn("directory lookup failed; using local doctor record", "doctor_id", req.DoctorID, "err", dirErr)
		} else if !profile.LicenseActive {
			http.Error(w, "doctor is not accepting appointments", http.StatusUnprocessableEntity)
			return
		}
	}

	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.checkWithinAvailability(ctx, req.DoctorID, start, end); err != nil {
		h.writeBookingError(w, err)
		return
	}

	overlapping, err := h.appts.LockApprovedOverlapping(ctx, tx, req.DoctorID, start, end, "")
	if err != nil {
		http.Error(w, "failed to check conflicts", http.StatusInternalServerError)
		return
	}
	if len(overlapping) > 0 {
		http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
		return
	}

	appt := &model.Appointment{
		DoctorID:  req.DoctorID,
		Patient:   patient,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusPending,
	}
	id, err := h.appts.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	appt.ID = id

	if err := h.insertStatusEvent(ctx, tx, appt, "scheduling.appointment.booked.v1", ""); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(appt, ""))
}

type transitionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Action        string `json:"action"`
}

func (h *SchedulingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if !isUUID(req.AppointmentID) {
		http.Error(w, "appointment_id must be a valid id", http.StatusBadRequest)
		return
	}
	action, err := booking.ParseAction(strings.TrimSpace(req.Action))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appts.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	next, changed, err := booking.Apply(appt.Status, action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if !changed {
		writeJSON(w, http.StatusOK, toResponse(&appt, "already approved"))
		return
	}

	if action == booking.ActionApprove {
		overlapping, err := h.appts.LockApprovedOverlapping(ctx, tx, appt.DoctorID, appt.StartTime, appt.EndTime, appt.ID)
		if err != nil {
			http.Error(w, "failed to check conflicts", http.StatusInternalServerError)
			return
		}
		if len(overlapping) > 0 {
			http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
			return
		}
	}

	if err := h.appts.UpdateStatus(ctx, tx, appt.ID, next); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
			return
		}
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = next

	eventType := "scheduling.appointment." + string(next) + ".v1"
	if err := h.insertStatusEvent(ctx, tx, &appt, eventType, string(action)); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if next == model.StatusApproved {
		h.enqueueReminders(ctx, tx, &appt)
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(&appt, ""))
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if !isUUID(req.AppointmentID) {
		http.Error(w, "appointment_id must be a valid id", http.StatusBadRequest)
		return
	}
	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appts.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if err := booking.CanReschedule(appt.Status); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	// The original appointment must stay untouched when the new time is
	// outside the doctor's hours, so validate before writing anything.
	if err := h.checkWithinAvailability(ctx, appt.DoctorID, start, end); err != nil {
		h.writeBookingError(w, err)
		return
	}

	overlapping, err := h.appts.LockApprovedOverlapping(ctx, tx, appt.DoctorID, start, end, appt.ID)
	if err != nil {
		http.Error(w, "failed to check conflicts", http.StatusInternalServerError)
		return
	}
	if len(overlapping) > 0 {
		http.Error(w, "time slot conflicts with an approved appointment", http.StatusConflict)
		return
	}

	if err := h.appts.UpdateSchedule(ctx, tx, appt.ID, start, end, model.StatusPending); err != nil {
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}
	appt.StartTime = start
	appt.EndTime = end
	appt.Status = model.StatusPending

	if err := h.insertStatusEvent(ctx, tx, &appt, "scheduling.appointment.rescheduled.v1", ""); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(&appt, ""))
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if !isUUID(req.AppointmentID) {
		http.Error(w, "appointment_id must be a valid id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appts.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if err := booking.CanCancel(appt.Status); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if err := h.appts.UpdateStatus(ctx, tx, appt.ID, model.StatusRejected); err != nil {
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusRejected

	if err := h.insertStatusEvent(ctx, tx, &appt, "scheduling.appointment.cancelled.v1", ""); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(&appt, ""))
}

func (h *SchedulingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var appts []model.Appointment
	var err error
	if doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id")); doctorID != "" {
		if !isUUID(doctorID) {
			http.Error(w, "doctor_id must be a valid id", http.StatusBadRequest)
			return
		}
		appts, err = h.appts.ListByDoctor(r.Context(), doctorID, limit)
	} else {
		patient := model.PatientRef{
			Kind: model.PatientKind(strings.TrimSpace(r.URL.Query().Get("patient_kind"))),
			ID:   strings.TrimSpace(r.URL.Query().Get("patient_id")),
		}
		if vErr := patient.Validate(); vErr != nil {
			http.Error(w, "doctor_id or patient_kind+patient_id required", http.StatusBadRequest)
			return
		}
		appts, err = h.appts.ListByPatient(r.Context(), patient, limit)
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, toResponse(&appts[i], ""))
	}
	writeJSON(w, http.StatusOK, items)
}

// checkWithinAvailability loads the doctor's effective windows for the
// interval's date and verifies containment. Overrides for the date replace
// the weekly rules entirely.
func (h *SchedulingHandler) checkWithinAvailability(ctx context.Context, doctorID string, start, end time.Time) error {
	if err := booking.ValidateInterval(start, end); err != nil {
		return err
	}
	weekly, err := h.avail.WeeklyForDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	overrides, err := h.avail.OverridesForDate(ctx, doctorID, start)
	if err != nil {
		return err
	}
	windows := availability.DayWindows(start, overrides, weekly)
	if !availability.WithinWindows(start, end, windows) {
		return booking.ErrOutsideAvailability
	}
	return nil
}

func (h *SchedulingHandler) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInterval):
		http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
	case errors.Is(err, booking.ErrOutsideAvailability):
		http.Error(w, "requested time is outside the doctor's availability", http.StatusUnprocessableEntity)
	default:
		http.Error(w, "failed to validate availability", http.StatusInternalServerError)
	}
}

// insertStatusEvent records a lifecycle event for downstream consumers.
// Contact and doctor-name enrichment is best effort: notification delivery
// must never block a booking write.
func (h *SchedulingHandler) insertStatusEvent(ctx context.Context, tx pgx.Tx, appt *model.Appointment, eventType, action string) error {
	var contact model.Contact
	if c, err := h.doctors.ResolveContact(ctx, appt.Patient); err != nil {
		h.logger.Warn("contact resolution failed for event", "appointment_id", appt.ID, "err", err)
	} else {
		contact = c
	}
	var doctorName string
	if doc, err := h.doctors.Get(ctx, appt.DoctorID); err != nil {
		h.logger.Warn("doctor lookup failed for event", "doctor_id", appt.DoctorID, "err", err)
	} else {
		doctorName = doc.FullName
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"patient_kind":   string(appt.Patient.Kind),
		"patient_id":     appt.Patient.ID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
		"action":         action,
		"recipient_name": contact.FullName,
		"phone":          contact.Phone,
		"doctor_name":    doctorName,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

// enqueueReminders writes one reminder request per configured offset.
// Reminder failures never block the booking transaction, so errors here are
// logged and swallowed.
func (h *SchedulingHandler) enqueueReminders(ctx context.Context, tx pgx.Tx, appt *model.Appointment) {
	contact, err := h.doctors.ResolveContact(ctx, appt.Patient)
	if err != nil {
		h.logger.Warn("contact resolution failed; skipping reminders", "appointment_id", appt.ID, "err", err)
		return
	}
	if strings.TrimSpace(contact.Phone) == "" {
		return
	}
	var doctorName string
	if doc, err := h.doctors.Get(ctx, appt.DoctorID); err == nil {
		doctorName = doc.FullName
	}

	now := h.now()
	for _, offset := range h.reminderOffs {
		remindAt := appt.StartTime.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"doctor_id":      appt.DoctorID,
			"doctor_name":    doctorName,
			"recipient_name": contact.FullName,
			"phone":          contact.Phone,
			"remind_at":      remindAt.UTC().Format(time.RFC3339),
			"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		})
		if err != nil {
			h.logger.Error("failed to build reminder payload", "err", err)
			continue
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     "scheduling.reminder.requested.v1",
			Payload:       payload,
		}); err != nil {
			h.logger.Error("failed to enqueue reminder", "appointment_id", appt.ID, "err", err)
		}
	}
}

// isUUID rejects malformed identifiers before they reach a query against a
// uuid column, where they would fail with a cryptic cast error.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func parseInterval(w http.ResponseWriter, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startStr))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(endStr))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	if err := booking.ValidateInterval(start, end); err != nil {
		http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start.UTC(), end.UTC(), true
}

func toResponse(appt *model.Appointment, note string) appointmentResponse {
	return appointmentResponse{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientKind:   string(appt.Patient.Kind),
		PatientID:     appt.Patient.ID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
		Note:          note,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
