package handlers

import (
	"net/http"
)

type doctorItem struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization"`
}

func (h *SchedulingHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docs, err := h.doctors.ListApproved(r.Context())
	if err != nil {
		http.Error(w, "failed to list doctors", http.StatusInternalServerError)
		return
	}

	items := make([]doctorItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, doctorItem{ID: d.ID, FullName: d.FullName, Specialization: d.Specialization})
	}
	writeJSON(w, http.StatusOK, items)
}
