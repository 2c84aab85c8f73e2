package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
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
	"github.com/westpoint-clinic/clinicsched/services/notification-service/internal/sms"
	"github.com/westpoint-clinic/clinicsched/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	DoctorName    string `json:"doctor_name"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	StartTime     string `json:"start_time"`
}

type delivery struct {
	pool       *db.Pool
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	sender     sms.Sender
	logger     *slog.Logger
}

func (d *delivery) send(ctx context.Context, payload appointmentPayload, kind, body string) error {
	record := storage.SMSNotification{
		AppointmentID: payload.AppointmentID,
		DoctorID:      payload.DoctorID,
		Phone:         payload.Phone,
		Body:          body,
		Kind:          kind,
		Provider:      d.sender.ProviderID(),
	}

	phone, ok := sms.NormalizePhone(payload.Phone)
	if !ok {
		record.Status = "skipped"
		record.Error = "unnormalizable phone number"
		d.logger.Warn("skipping sms, bad phone", "appointment_id", payload.AppointmentID)
		return d.record(ctx, record, payload)
	}
	record.Phone = phone

	if err := d.sender.Send(ctx, phone, body); err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		d.logger.Error("sms send failed", "appointment_id", payload.AppointmentID, "err", err)
		return d.record(ctx, record, payload)
	}

	record.Status = "sent"
	return d.record(ctx, record, payload)
}

func (d *delivery) record(ctx context.Context, n storage.SMSNotification, payload appointmentPayload) error {
	if err := d.repo.Insert(ctx, n); err != nil {
		return err
	}

	eventType := "notification.sent.v1"
	if n.Status != "sent" {
		eventType = "notification.failed.v1"
	}
	eventPayload, err := json.Marshal(map[string]any{
		"appointment_id": payload.AppointmentID,
		"doctor_id":      payload.DoctorID,
		"kind":           n.Kind,
		"provider_id":    n.Provider,
		"status":         n.Status,
		"error_reason":   n.Error,
		"recorded_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := d.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     eventType,
		Payload:       eventPayload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
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
	smsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "vonage":
		smsSender = sms.NewVonageSender(
			config.String("VONAGE_API_KEY", ""),
			config.String("VONAGE_API_SECRET", ""),
			config.String("VONAGE_FROM", "WestPoint"),
		)
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sms.NewNoopSender()
	}

	d := &delivery{
		pool:       pool,
		repo:       smsRepo,
		outboxRepo: outboxRepo,
		sender:     smsSender,
		logger:     logger,
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	parse := func(msg kafka.Message) (appointmentPayload, time.Time, bool) {
		var payload appointmentPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return payload, time.Time{}, false
		}
		if payload.AppointmentID == "" || payload.Phone == "" {
			return payload, time.Time{}, false
		}
		start, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			logger.Error("invalid start_time", "err", err, "topic", msg.Topic)
			return payload, time.Time{}, false
		}
		return payload, start, true
	}

	statusTopics := map[string]func(p appointmentPayload, start time.Time) (kind, body string){
		"scheduling.appointment.booked.v1": func(p appointmentPayload, start time.Time) (string, string) {
			return "booked", sms.BookingPending(p.RecipientName, p.DoctorName, start)
		},
		"scheduling.appointment.approved.v1": func(p appointmentPayload, start time.Time) (string, string) {
			return "approved", sms.Approved(p.RecipientName, p.DoctorName, start)
		},
		"scheduling.appointment.rejected.v1": func(p appointmentPayload, start time.Time) (string, string) {
			return "rejected", sms.Rejected(p.RecipientName)
		},
		"scheduling.appointment.rescheduled.v1": func(p appointmentPayload, start time.Time) (string, string) {
			return "rescheduled", sms.Rescheduled(p.RecipientName, p.DoctorName, start)
		},
		"scheduling.appointment.cancelled.v1": func(p appointmentPayload, start time.Time) (string, string) {
			return "cancelled", sms.Cancelled(p.RecipientName)
		},
	}
	for topic, render := range statusTopics {
		render := render
		statusConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			payload, start, ok := parse(msg)
			if !ok {
				return nil
			}
			kind, body := render(payload, start)
			return d.send(ctx, payload, kind, body)
		})
		go statusConsumer.Run(ctx)
	}

	reminderConsumer := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_REMINDER_TOPIC", "reminder.due.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		payload, start, ok := parse(msg)
		if !ok {
			return nil
		}
		body := sms.Reminder(payload.RecipientName, payload.DoctorName, start, time.Now().UTC())
		return d.send(ctx, payload, "reminder", body)
	})
	go reminderConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
