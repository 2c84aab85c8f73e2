package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/westpoint-clinic/clinicsched/libs/config"
	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/libs/httpx"
	"github.com/westpoint-clinic/clinicsched/libs/kafkax"
	otelx "github.com/westpoint-clinic/clinicsched/libs/otel"
	"github.com/westpoint-clinic/clinicsched/libs/outbox"
	"github.com/westpoint-clinic/clinicsched/libs/runtime"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/directory"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/handlers"
	"github.com/westpoint-clinic/clinicsched/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8081")
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

	apptRepo := storage.NewAppointmentRepository(pool)
	availRepo := storage.NewAvailabilityRepository(pool)
	doctorRepo := storage.NewDoctorRepository(pool)
	historyRepo := storage.NewHistoryRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	directoryProvider, err := directory.NewProvider(config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory provider init failed; bookings use local records", "err", err)
		directoryProvider = nil
	}

	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	handler := handlers.NewSchedulingHandler(apptRepo, availRepo, doctorRepo, historyRepo, outboxRepo, directoryProvider, logger, offsets)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/doctors", handler.Doctors)
	mux.HandleFunc("/api/v1/slots", handler.Slots)
	mux.HandleFunc("/api/v1/available-days", handler.AvailableDays)
	mux.HandleFunc("/api/v1/recommendations", handler.Recommendations)
	mux.HandleFunc("/api/v1/appointments", handler.List)
	mux.HandleFunc("/api/v1/appointments/book", handler.Book)
	mux.HandleFunc("/api/v1/appointments/transition", handler.Transition)
	mux.HandleFunc("/api/v1/appointments/reschedule", handler.Reschedule)
	mux.HandleFunc("/api/v1/appointments/cancel", handler.Cancel)
	mux.HandleFunc("/api/v1/availability", handler.Availability)
	mux.HandleFunc("/api/v1/availability/weekly", handler.CreateWeekly)
	mux.HandleFunc("/api/v1/availability/weekly/delete", handler.DeleteWeekly)
	mux.HandleFunc("/api/v1/availability/overrides", handler.CreateOverride)
	mux.HandleFunc("/api/v1/availability/overrides/delete", handler.DeleteOverride)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL; using in-memory rate limiting", "err", err)
			rateLimitMW = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
		} else {
			rdb := redis.NewClient(redisOpts)
			defer rdb.Close()
			rateLimitMW = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
		}
	} else {
		rateLimitMW = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithBodyLimit(1<<20),
		rateLimitMW,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}),
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
