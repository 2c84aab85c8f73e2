package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(doctor_id, patient_kind, patient_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, appt.DoctorID, appt.Patient.Kind, appt.Patient.ID, appt.StartTime, appt.EndTime, appt.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	err := tx.QueryRow(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID).Scan(
		&appt.ID,
		&appt.DoctorID,
		&appt.Patient.Kind,
		&appt.Patient.ID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// LockApprovedOverlapping locks every approved appointment for the doctor
// whose interval overlaps [start, end) and returns them. Intervals are
// half-open, so back-to-back appointments never collide. Callers hold the
// locks until the transaction commits, which serializes competing bookings.
func (r *AppointmentRepository) LockApprovedOverlapping(ctx context.Context, tx pgx.Tx, doctorID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
			AND status = 'approved'
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
		FOR UPDATE
	`, doctorID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID string, status model.AppointmentStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1
	`, appointmentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateSchedule moves an appointment to new times and resets its status in
// one statement, used by reschedule (status goes back to pending).
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, appointmentID string, start, end time.Time, status model.AppointmentStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2,
			end_time = $3,
			status = $4,
			updated_at = now()
		WHERE id = $1
	`, appointmentID, start, end, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ApprovedIntervals returns the approved appointments for a doctor that
// overlap [start, end), outside any transaction. Slot generation reads
// through here.
func (r *AppointmentRepository) ApprovedIntervals(ctx context.Context, doctorID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
			AND status = 'approved'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ApprovedStarts returns only the start times of approved appointments in
// [start, end), feeding the recommender's busy-time analysis.
func (r *AppointmentRepository) ApprovedStarts(ctx context.Context, doctorID string, start, end time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time
		FROM appointments
		WHERE doctor_id = $1
			AND status = 'approved'
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return starts, nil
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, doctorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patient model.PatientRef, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE patient_kind = $1 AND patient_id = $2
		ORDER BY start_time DESC
		LIMIT $3
	`, patient.Kind, patient.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.DoctorID,
			&appt.Patient.Kind,
			&appt.Patient.ID,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// IsConflict reports whether err is the exclusion-constraint violation raised
// when two approved appointments for one doctor would overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
