package main

import (
	"context"
	"net/http"
	"time"

	"github.com/westpoint-clinic/clinicsched/libs/config"
	"github.com/westpoint-clinic/clinicsched/libs/db"
	"github.com/westpoint-clinic/clinicsched/libs/httpx"
	"github.com/westpoint-clinic/clinicsched/libs/kafkax"
	otelx "github.com/westpoint-clinic/clinicsched/libs/otel"
	"github.com/westpoint-clinic/clinicsched/libs/outbox"
	"github.com/westpoint-clinic/clinicsched/libs/runtime"
	"github.com/westpoint-clinic/clinicsched/services/archive-service/internal/archive"
	"github.com/westpoint-clinic/clinicsched/services/archive-service/internal/handlers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "archive-service")
	port, err := config.Port("PORT", "8084")
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

	repo := archive.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	worker := archive.NewWorker(pool, repo, outboxRepo, logger, archive.WorkerConfig{
		Interval:  config.Minutes("ARCHIVE_INTERVAL_MINUTES", time.Hour),
		BatchSize: config.Int("ARCHIVE_BATCH_SIZE", 100),
		Retention: time.Duration(config.Int("ARCHIVE_RETENTION_DAYS", 365)) * 24 * time.Hour,
	})
	go worker.Run(ctx)

	archiveHandler := handlers.NewArchiveHandler(repo, logger)
	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/archived", archiveHandler.List)
	mux.HandleFunc("/api/v1/archived/restore", archiveHandler.Restore)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "archive")
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
