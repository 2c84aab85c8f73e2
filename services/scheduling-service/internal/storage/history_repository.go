package storage

import (
	"context"
	"time"

	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/recommend"
)

// HistoryRepository assembles the per-patient read model the recommender
// consumes. Everything here is read-only.
type HistoryRepository struct {
	pool *db.Pool
}

func NewHistoryRepository(pool *db.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

func (r *HistoryRepository) PatientHistory(ctx context.Context, doctorID string, patient model.PatientRef, now time.Time) (recommend.History, error) {
	var h recommend.History

	rows, err := r.pool.Query(ctx, `
		SELECT start_time, status
		FROM appointments
		WHERE patient_kind = $1
			AND patient_id = $2
			AND status IN ('approved', 'completed')
			AND start_time < $3
		ORDER BY start_time DESC
		LIMIT 50
	`, patient.Kind, patient.ID, now)
	if err != nil {
		return recommend.History{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var start time.Time
		var status string
		if err := rows.Scan(&start, &status); err != nil {
			return recommend.History{}, err
		}
		h.PastStarts = append(h.PastStarts, start)
		if status == string(model.StatusCompleted) && h.LastCompleted == nil {
			s := start
			h.LastCompleted = &s
		}
	}
	if rows.Err() != nil {
		return recommend.History{}, rows.Err()
	}

	err = r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM medical_records
		WHERE patient_kind = $1
			AND patient_id = $2
			AND record_date >= $3
	`, patient.Kind, patient.ID, now.Add(-90*24*time.Hour)).Scan(&h.RecentRecordCount)
	if err != nil {
		return recommend.History{}, err
	}

	recordRows, err := r.pool.Query(ctx, `
		SELECT record_date
		FROM medical_records
		WHERE patient_kind = $1
			AND patient_id = $2
		ORDER BY record_date DESC
		LIMIT 5
	`, patient.Kind, patient.ID)
	if err != nil {
		return recommend.History{}, err
	}
	defer recordRows.Close()
	for recordRows.Next() {
		var d time.Time
		if err := recordRows.Scan(&d); err != nil {
			return recommend.History{}, err
		}
		h.RecordDates = append(h.RecordDates, d)
	}
	if recordRows.Err() != nil {
		return recommend.History{}, recordRows.Err()
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM patient_allergies WHERE patient_kind = $1 AND patient_id = $2),
			(SELECT count(*) FROM patient_medications WHERE patient_kind = $1 AND patient_id = $2 AND active)
	`, patient.Kind, patient.ID).Scan(&h.AllergyCount, &h.MedicationCount)
	if err != nil {
		return recommend.History{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE patient_kind = $1
				AND patient_id = $2
				AND doctor_id = $3
				AND status = 'pending'
		)
	`, patient.Kind, patient.ID, doctorID).Scan(&h.HasPending)
	if err != nil {
		return recommend.History{}, err
	}

	return h, nil
}
