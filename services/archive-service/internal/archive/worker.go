package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/libs/outbox"
)

type Worker struct {
	pool      *db.Pool
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	retention time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	// Retention is how long closed-out appointments stay in the live table
	// before the worker moves them.
	Retention time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 365 * 24 * time.Hour
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := w.processBatch(ctx)
			if err != nil {
				w.logger.Error("archive batch failed", "err", err)
				continue
			}
			if moved > 0 {
				w.logger.Info("archived appointments", "count", moved)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := time.Now().UTC().Add(-w.retention)
	appts, err := w.repo.FetchArchivable(ctx, tx, cutoff, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(appts) == 0 {
		return 0, tx.Commit(ctx)
	}

	reason := fmt.Sprintf("retention sweep (older than %s)", cutoff.Format("2006-01-02"))
	for _, a := range appts {
		if err := w.repo.InsertArchived(ctx, tx, a, reason); err != nil {
			return 0, err
		}
		if err := w.repo.DeleteOriginal(ctx, tx, a.AppointmentID); err != nil {
			return 0, err
		}
		if err := w.repo.LogActivity(ctx, tx, "archive", a.AppointmentID, reason); err != nil {
			return 0, err
		}

		payload, err := json.Marshal(map[string]any{
			"appointment_id": a.AppointmentID,
			"doctor_id":      a.DoctorID,
			"status":         a.Status,
			"end_time":       a.EndTime.UTC().Format(time.RFC3339),
			"archived_at":    time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return 0, err
		}
		if err := w.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   a.AppointmentID,
			EventType:     "archive.appointment.archived.v1",
			Payload:       payload,
		}); err != nil {
			return 0, err
		}
	}

	return len(appts), tx.Commit(ctx)
}
