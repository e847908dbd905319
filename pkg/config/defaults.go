package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "scheduler"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 20

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 35 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotDuration    = 60 * time.Minute
	DefaultCalendarTimeout = 10 * time.Second
	DefaultSlotLockTTL     = 30 * time.Second
	DefaultSlotLockWait    = 2 * time.Second

	DefaultGoogleTokenURL = "https://oauth2.googleapis.com/token"

	DefaultJWTIssuer = "scheduler"

	DefaultRedisDB      = 0
	DefaultBusyCacheTTL = 30 * time.Second

	DefaultKafkaBroker               = "localhost:9092"
	DefaultKafkaTopicBooked          = "appointments.booked"
	DefaultKafkaTopicCalendarSync    = "appointments.calendar-sync"
	DefaultKafkaTopicCalendarSyncDLQ = "appointments.calendar-sync.dlq"
	DefaultKafkaGroupCalendarSync    = "calendar-sync"

	DefaultOtelEndpoint    = "localhost:4317"
	DefaultOtelSampleRatio = 1.0
)

const (
	BusyReadFailOpen   = "fail_open"
	BusyReadFailClosed = "fail_closed"

	SlotGuardMongo = "mongo"
	SlotGuardRedis = "redis"
	SlotGuardNone  = "none"
)
