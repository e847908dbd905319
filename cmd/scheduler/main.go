package main

import (
	"context"

	appointmentshandler "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/handler"
	appointmentsrepo "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/repository"
	appointmentsservice "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/service"
	appointmentsvalidator "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/validator"
	availabilityhandler "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/handler"
	availabilityrepo "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/repository"
	availabilityservice "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/service"
	availabilityvalidator "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/validator"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendar"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/health"
	usershandler "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/handler"
	usersrepo "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/repository"
	usersservice "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/service"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/app"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/contracts"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	kafka_config "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka/config"
	kafka_middleware "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka/middleware"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const ServiceName = "scheduler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Scheduler service")

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  ServiceName,
		OTLPEndpoint: cfg.OtelEndpoint,
		SampleRatio:  cfg.OtelSampleRatio,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}

	recorder, gatherer := initMetrics(cfg)

	serverApp := app.NewApplication(cfg)
	handlers, resolver := initServices(cfg, recorder, serverApp)

	checks := []health.Check{health.MongoCheck(cfg.Client.Mongo)}
	if cfg.Client.Redis != nil {
		checks = append(checks, health.RedisCheck(cfg.Client.Redis))
	}

	serverApp.SetApp(handlers, app.Options{
		Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Resolver: resolver,
		Health:   health.NewHandler(cfg.Log, checks...),
		Gatherer: gatherer,
	})
	serverApp.OnShutdown(shutdownTracing)
	serverApp.Run()
}

func initMetrics(cfg *config.Config) (metrics.Recorder, prometheus.Gatherer) {
	if !cfg.MetricsEnabled {
		return metrics.Nop{}, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.NewCollector(reg), reg
}

func initServices(cfg *config.Config, recorder metrics.Recorder, serverApp *app.Application) (contracts.Handler, auth.PrincipalResolver) {
	userRepo := usersrepo.NewMongoUserRepository(cfg)
	userService := usersservice.NewUserService(userRepo, cfg)

	gateway := initCalendar(cfg, userRepo, recorder)

	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityrepo.NewMongoAvailabilityRepository(cfg),
		userService,
		gateway,
		availabilityvalidator.NewAvailabilityValidator(),
		recorder,
		cfg,
	)

	booked, syncTasks := initPublishers(cfg, recorder, serverApp)
	appointmentService := appointmentsservice.NewAppointmentService(appointmentsservice.Dependencies{
		Repo:      appointmentsrepo.NewMongoAppointmentRepository(cfg),
		Locker:    initSlotLocker(cfg),
		Users:     userService,
		Calendar:  gateway,
		Validator: appointmentsvalidator.NewAppointmentValidator(),
		Booked:    booked,
		SyncTasks: syncTasks,
		Metrics:   recorder,
	}, cfg)

	cfg.Log.Info("Scheduler services initialized",
		"database", cfg.MongoDatabaseName,
		"slot_guard", cfg.SlotGuard,
		"busy_read_policy", cfg.BusyReadPolicy,
		"kafka_enabled", cfg.KafkaEnabled,
	)

	return contracts.Compose(
		usershandler.NewUserHandler(userService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		appointmentshandler.NewAppointmentHandler(appointmentService, cfg.Log),
	), userService
}

func initCalendar(cfg *config.Config, store calendar.CredentialStore, recorder metrics.Recorder) calendar.Gateway {
	var gateway calendar.Gateway = calendar.NewGoogleGateway(calendar.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
		Endpoint:     cfg.GoogleCalendarEndpoint,
		Timeout:      cfg.CalendarTimeout,
	}, store, recorder, cfg.Log)

	if cfg.Client.Redis != nil && cfg.BusyCacheTTL > 0 {
		gateway = calendar.NewCachedGateway(gateway, cfg.Client.Redis, cfg.BusyCacheTTL, cfg.Log)
		cfg.Log.Info("Busy interval cache enabled", "ttl", cfg.BusyCacheTTL)
	}
	return gateway
}

func initSlotLocker(cfg *config.Config) appointmentsrepo.SlotLocker {
	switch cfg.SlotGuard {
	case config.SlotGuardNone:
		cfg.Log.Warn("Slot guard disabled, concurrent bookings may overlap")
		return appointmentsrepo.NopSlotLocker{}
	case config.SlotGuardRedis:
		if cfg.Client.Redis == nil {
			cfg.Log.Fatal("SLOT_GUARD=redis requires REDIS_ADDR")
		}
		return appointmentsrepo.NewRedisSlotLocker(cfg.Client.Redis)
	default:
		return appointmentsrepo.NewMongoSlotLocker(cfg)
	}
}

func initPublishers(cfg *config.Config, recorder metrics.Recorder, serverApp *app.Application) (kafka.Publisher, kafka.Publisher) {
	if !cfg.KafkaEnabled {
		return kafka.NopPublisher{}, kafka.NopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	newProducer := func(topic string) *kafka.Producer {
		p, err := kafka.NewProducer(kafkaCfg, topic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
		}
		p.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		p.Use(kafka_middleware.MetricsProducerMiddleware(recorder))
		serverApp.OnShutdown(func(context.Context) error { return p.Close() })
		return p
	}

	return newProducer(cfg.KafkaTopicBooked), newProducer(cfg.KafkaTopicCalendarSync)
}
