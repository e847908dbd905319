package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appointmentsrepo "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/repository"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendar"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendarsync"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/health"
	usersrepo "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/repository"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	kafka_config "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka/config"
	kafka_middleware "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka/middleware"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
)

const ServiceName = "calendar-sync"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.KafkaEnabled {
		cfg.Log.Fatal("calendar-sync requires KAFKA_ENABLED=true")
	}
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  ServiceName,
		OTLPEndpoint: cfg.OtelEndpoint,
		SampleRatio:  cfg.OtelSampleRatio,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			cfg.Log.Error("Failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsEnabled {
		recorder = metrics.NewCollector(reg)
	}

	gateway := calendar.NewGoogleGateway(calendar.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
		Endpoint:     cfg.GoogleCalendarEndpoint,
		Timeout:      cfg.CalendarTimeout,
	}, usersrepo.NewMongoUserRepository(cfg), recorder, cfg.Log)

	worker := calendarsync.NewWorker(appointmentsrepo.NewMongoAppointmentRepository(cfg), gateway, recorder, cfg.Log)

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	consumer, err := kafka.NewConsumer(kafkaCfg,
		cfg.KafkaTopicCalendarSync,
		cfg.KafkaGroupCalendarSync,
		cfg.KafkaTopicCalendarSyncDLQ,
		worker.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware(recorder))
	defer func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	}()

	server := opsServer(cfg, reg)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Log.Error("Ops server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			cfg.Log.Error("Ops server shutdown failed", "error", err)
		}
	}()

	cfg.Log.Info("Calendar sync worker started",
		"topic", cfg.KafkaTopicCalendarSync,
		"group", cfg.KafkaGroupCalendarSync,
		"dlq", cfg.KafkaTopicCalendarSyncDLQ,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}
	cfg.Log.Info("Calendar sync worker stopped")
}

// opsServer serves health and metrics only.
func opsServer(cfg *config.Config, reg *prometheus.Registry) *http.Server {
	router := httprouter.New()
	health.NewHandler(cfg.Log, health.MongoCheck(cfg.Client.Mongo)).RegisterRoutes(router)
	if cfg.MetricsEnabled {
		router.Handler(http.MethodGet, "/metrics", metrics.Handler(reg))
	}

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
