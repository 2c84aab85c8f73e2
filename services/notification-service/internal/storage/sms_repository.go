package storage

import (
	"context"

	"github.com/westpoint-clinic/clinicsched/libs/db"
)

type SMSNotification struct {
	AppointmentID string
	DoctorID      string
	Phone         string
	Body          string
	Kind          string // booked, approved, rejected, rescheduled, cancelled, reminder
	Provider      string
	Status        string // sent, failed, skipped
	Error         string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n SMSNotification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sms_notifications (appointment_id, doctor_id, phone, body, kind, provider, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.AppointmentID, n.DoctorID, n.Phone, n.Body, n.Kind, n.Provider, n.Status, n.Error)
	return err
}
