package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/westpoint-clinic/clinicsched/libs/db"
)

// ArchivedAppointment is a denormalized copy of a closed-out appointment.
// The original row is deleted once the copy commits.
type ArchivedAppointment struct {
	ID            int64
	AppointmentID string
	DoctorID      string
	PatientKind   string
	PatientID     string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	ArchivedAt    time.Time
	Reason        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// FetchArchivable locks a batch of terminal appointments whose end time
// predates the cutoff. SKIP LOCKED lets multiple archive workers share the
// backlog without contention.
func (r *Repository) FetchArchivable(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]ArchivedAppointment, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, doctor_id, patient_kind, patient_id, start_time, end_time, status
		FROM appointments
		WHERE status IN ('rejected', 'completed', 'no_show')
			AND end_time < $1
		ORDER BY end_time ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []ArchivedAppointment
	for rows.Next() {
		var a ArchivedAppointment
		if err := rows.Scan(&a.AppointmentID, &a.DoctorID, &a.PatientKind, &a.PatientID, &a.StartTime, &a.EndTime, &a.Status); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *Repository) InsertArchived(ctx context.Context, tx pgx.Tx, a ArchivedAppointment, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO archived_appointments
			(appointment_id, doctor_id, patient_kind, patient_id, start_time, end_time, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (appointment_id) DO NOTHING
	`, a.AppointmentID, a.DoctorID, a.PatientKind, a.PatientID, a.StartTime, a.EndTime, a.Status, reason)
	return err
}

func (r *Repository) DeleteOriginal(ctx context.Context, tx pgx.Tx, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, appointmentID)
	return err
}

func (r *Repository) LogActivity(ctx context.Context, tx pgx.Tx, actionType, objectID, description string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO activity_log (action_type, model_name, object_id, description)
		VALUES ($1, 'appointment', $2, $3)
	`, actionType, objectID, description)
	return err
}

func (r *Repository) ListArchived(ctx context.Context, patientKind, patientID string, limit int) ([]ArchivedAppointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, doctor_id, patient_kind, patient_id, start_time, end_time, status, archived_at, reason
		FROM archived_appointments
		WHERE ($1 = '' OR (patient_kind = $1 AND patient_id = $2))
		ORDER BY archived_at DESC
		LIMIT $3
	`, patientKind, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedAppointment
	for rows.Next() {
		var a ArchivedAppointment
		if err := rows.Scan(&a.ID, &a.AppointmentID, &a.DoctorID, &a.PatientKind, &a.PatientID, &a.StartTime, &a.EndTime, &a.Status, &a.ArchivedAt, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) GetArchivedForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (ArchivedAppointment, error) {
	var a ArchivedAppointment
	err := tx.QueryRow(ctx, `
		SELECT id, appointment_id, doctor_id, patient_kind, patient_id, start_time, end_time, status, archived_at, reason
		FROM archived_appointments
		WHERE appointment_id = $1
		FOR UPDATE
	`, appointmentID).Scan(&a.ID, &a.AppointmentID, &a.DoctorID, &a.PatientKind, &a.PatientID, &a.StartTime, &a.EndTime, &a.Status, &a.ArchivedAt, &a.Reason)
	if err != nil {
		return ArchivedAppointment{}, err
	}
	return a, nil
}

// Restore copies an archived appointment back into the live table with its
// original id and terminal status, then removes the archive row.
func (r *Repository) Restore(ctx context.Context, tx pgx.Tx, a ArchivedAppointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_kind, patient_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.AppointmentID, a.DoctorID, a.PatientKind, a.PatientID, a.StartTime, a.EndTime, a.Status)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM archived_appointments
		WHERE id = $1
	`, a.ID)
	return err
}
