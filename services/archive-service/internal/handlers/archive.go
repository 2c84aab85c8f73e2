package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/westpoint-clinic/clinicsched/services/archive-service/internal/archive"
)

type ArchiveHandler struct {
	repo   *archive.Repository
	logger *slog.Logger
}

func NewArchiveHandler(repo *archive.Repository, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{repo: repo, logger: logger}
}

type archivedItem struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientKind   string `json:"patient_kind"`
	PatientID     string `json:"patient_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	ArchivedAt    string `json:"archived_at"`
	Reason        string `json:"reason"`
}

func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	patientKind := strings.TrimSpace(r.URL.Query().Get("patient_kind"))
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if (patientKind == "") != (patientID == "") {
		http.Error(w, "patient_kind and patient_id must be given together", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	appts, err := h.repo.ListArchived(r.Context(), patientKind, patientID, limit)
	if err != nil {
		http.Error(w, "failed to list archived appointments", http.StatusInternalServerError)
		return
	}

	items := make([]archivedItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, archivedItem{
			AppointmentID: a.AppointmentID,
			DoctorID:      a.DoctorID,
			PatientKind:   a.PatientKind,
			PatientID:     a.PatientID,
			StartTime:     a.StartTime.UTC().Format(time.RFC3339),
			EndTime:       a.EndTime.UTC().Format(time.RFC3339),
			Status:        a.Status,
			ArchivedAt:    a.ArchivedAt.UTC().Format(time.RFC3339),
			Reason:        a.Reason,
		})
	}

	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type restoreRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *ArchiveHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if _, err := uuid.Parse(req.AppointmentID); err != nil {
		http.Error(w, "appointment_id must be a valid id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := h.repo.GetArchivedForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "archived appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load archived appointment", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Restore(ctx, tx, a); err != nil {
		http.Error(w, "failed to restore appointment", http.StatusInternalServerError)
		return
	}
	if err := h.repo.LogActivity(ctx, tx, "restore", a.AppointmentID, "restored from archive"); err != nil {
		http.Error(w, "failed to log restore", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"appointment_id": a.AppointmentID,
		"status":         a.Status,
	})
}
