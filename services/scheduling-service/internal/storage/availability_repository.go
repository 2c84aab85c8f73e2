package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/model"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) WeeklyForDoctor(ctx context.Context, doctorID string) ([]model.WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute
		FROM weekly_availability
		WHERE doctor_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.WeeklyAvailability
	for rows.Next() {
		var rule model.WeeklyAvailability
		var weekday, start, end int
		if err := rows.Scan(&rule.ID, &rule.DoctorID, &weekday, &start, &end); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rule.Start = model.TimeOfDay(start)
		rule.End = model.TimeOfDay(end)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// OverridesInRange returns date overrides with dates in [from, to).
func (r *AvailabilityRepository) OverridesInRange(ctx context.Context, doctorID string, from, to time.Time) ([]model.AvailabilityOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, on_date, start_minute, end_minute
		FROM availability_overrides
		WHERE doctor_id = $1
			AND on_date >= $2
			AND on_date < $3
		ORDER BY on_date ASC, start_minute ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.AvailabilityOverride
	for rows.Next() {
		var ov model.AvailabilityOverride
		var start, end int
		if err := rows.Scan(&ov.ID, &ov.DoctorID, &ov.Date, &start, &end); err != nil {
			return nil, err
		}
		ov.Start = model.TimeOfDay(start)
		ov.End = model.TimeOfDay(end)
		overrides = append(overrides, ov)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return overrides, nil
}

func (r *AvailabilityRepository) OverridesForDate(ctx context.Context, doctorID string, date time.Time) ([]model.AvailabilityOverride, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return r.OverridesInRange(ctx, doctorID, day, day.Add(24*time.Hour))
}

func (r *AvailabilityRepository) CreateWeekly(ctx context.Context, rule model.WeeklyAvailability) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO weekly_availability (doctor_id, weekday, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rule.DoctorID, int(rule.Weekday), int(rule.Start), int(rule.End)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AvailabilityRepository) DeleteWeekly(ctx context.Context, doctorID, ruleID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM weekly_availability
		WHERE id = $1 AND doctor_id = $2
	`, ruleID, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AvailabilityRepository) CreateOverride(ctx context.Context, ov model.AvailabilityOverride) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO availability_overrides (doctor_id, on_date, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ov.DoctorID, ov.Date, int(ov.Start), int(ov.End)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AvailabilityRepository) DeleteOverride(ctx context.Context, doctorID, overrideID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_overrides
		WHERE id = $1 AND doctor_id = $2
	`, overrideID, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
