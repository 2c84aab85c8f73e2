package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/westpoint-clinic/clinicsched/libs/config"
	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/libs/httpx"
	"github.com/westpoint-clinic/clinicsched/libs/inbox"
	"github.com/westpoint-clinic/clinicsched/libs/kafkax"
	otelx "github.com/westpoint-clinic/clinicsched/libs/otel"
	"github.com/westpoint-clinic/clinicsched/libs/outbox"
	"github.com/westpoint-clinic/clinicsched/libs/runtime"
	"github.com/westpoint-clinic/clinicsched/services/reminder-service/internal/jobs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	jobRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	backoffSeconds, err := strconv.Atoi(config.String("REMINDER_BACKOFF_SECONDS", "60"))
	if err != nil || backoffSeconds <= 0 {
		backoffSeconds = 60
	}
	jobWorker := jobs.NewWorker(pool, jobRepo, outboxRepo, logger, jobs.WorkerConfig{
		Interval:  2 * time.Second,
		BatchSize: 50,
		Backoff:   time.Duration(backoffSeconds) * time.Second,
	})
	go jobWorker.Run(ctx)

	type reminderRequest struct {
		AppointmentID string `json:"appointment_id"`
		DoctorID      string `json:"doctor_id"`
		DoctorName    string `json:"doctor_name"`
		RecipientName string `json:"recipient_name"`
		Phone         string `json:"phone"`
		RemindAt      string `json:"remind_at"`
		StartTime     string `json:"start_time"`
	}

	requestConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "reminder-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "scheduling.reminder.requested.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload reminderRequest
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid reminder request", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.Phone == "" || payload.RemindAt == "" {
			logger.Error("missing reminder fields")
			return nil
		}
		remindAt, err := time.Parse(time.RFC3339, payload.RemindAt)
		if err != nil {
			logger.Error("invalid remind_at", "err", err)
			return nil
		}
		startTime, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err)
			return nil
		}

		idempotencyKey := payload.AppointmentID + "|" + payload.RemindAt

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := jobRepo.Insert(ctx, tx, jobs.Job{
			IdempotencyKey: idempotencyKey,
			AppointmentID:  payload.AppointmentID,
			DoctorID:       payload.DoctorID,
			DoctorName:     payload.DoctorName,
			RecipientName:  payload.RecipientName,
			Phone:          payload.Phone,
			RemindAt:       remindAt,
			StartTime:      startTime,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	go requestConsumer.Run(ctx)

	// Pending reminders die with the appointment: cancellations and
	// reschedules drop any not-yet-sent jobs.
	type statusEvent struct {
		AppointmentID string `json:"appointment_id"`
	}
	cancelTopics := []string{
		config.String("KAFKA_CANCEL_TOPIC", "scheduling.appointment.cancelled.v1"),
		config.String("KAFKA_RESCHEDULE_TOPIC", "scheduling.appointment.rescheduled.v1"),
	}
	for _, topic := range cancelTopics {
		if topic == "" {
			continue
		}
		cancelConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "reminder-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload statusEvent
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid status event", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" {
				return nil
			}
			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()
			if err := jobRepo.CancelForAppointment(ctx, tx, payload.AppointmentID); err != nil {
				return err
			}
			return tx.Commit(ctx)
		})
		go cancelConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "reminder")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
