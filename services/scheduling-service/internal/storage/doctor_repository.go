package storage

import (
	"context"

	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Get(ctx context.Context, doctorID string) (model.Doctor, error) {
	var doc model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, specialization, approved
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&doc.ID, &doc.FullName, &doc.Specialization, &doc.Approved)
	if err != nil {
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *DoctorRepository) ListApproved(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, specialization, approved
		FROM doctors
		WHERE approved
		ORDER BY full_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Doctor
	for rows.Next() {
		var doc model.Doctor
		if err := rows.Scan(&doc.ID, &doc.FullName, &doc.Specialization, &doc.Approved); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}

// ResolveContact returns the name and phone to notify for a patient
// reference. Dependents without a phone of their own fall back to their
// guardian's number.
func (r *DoctorRepository) ResolveContact(ctx context.Context, patient model.PatientRef) (model.Contact, error) {
	var contact model.Contact
	var err error
	switch patient.Kind {
	case model.PatientSelf:
		err = r.pool.QueryRow(ctx, `
			SELECT full_name, phone
			FROM patients
			WHERE id = $1
		`, patient.ID).Scan(&contact.FullName, &contact.Phone)
	case model.PatientDependent:
		err = r.pool.QueryRow(ctx, `
			SELECT d.full_name, COALESCE(NULLIF(d.phone, ''), p.phone)
			FROM dependents d
			JOIN patients p ON p.id = d.guardian_id
			WHERE d.id = $1
		`, patient.ID).Scan(&contact.FullName, &contact.Phone)
	default:
		return model.Contact{}, patient.Validate()
	}
	if err != nil {
		return model.Contact{}, err
	}
	return contact, nil
}
