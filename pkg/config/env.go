package config

const (
	EnvConfigFile = "CONFIG_FILE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotDuration    = "SLOT_DURATION"
	EnvCalendarTimeout = "CALENDAR_TIMEOUT"
	EnvBusyReadPolicy  = "BUSY_READ_POLICY"
	EnvSlotGuard       = "SLOT_GUARD"
	EnvSlotLockTTL     = "SLOT_LOCK_TTL"
	EnvSlotLockWait    = "SLOT_LOCK_WAIT"

	EnvGoogleClientID         = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret     = "GOOGLE_CLIENT_SECRET"
	EnvGoogleTokenURL         = "GOOGLE_TOKEN_URL"
	EnvGoogleCalendarEndpoint = "GOOGLE_CALENDAR_ENDPOINT"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTIssuer = "JWT_ISSUER"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
	EnvBusyCacheTTL  = "BUSY_CACHE_TTL"

	EnvKafkaEnabled              = "KAFKA_ENABLED"
	EnvKafkaBrokers              = "KAFKA_BROKERS"
	EnvKafkaTopicBooked          = "KAFKA_TOPIC_BOOKED"
	EnvKafkaTopicCalendarSync    = "KAFKA_TOPIC_CALENDAR_SYNC"
	EnvKafkaTopicCalendarSyncDLQ = "KAFKA_TOPIC_CALENDAR_SYNC_DLQ"
	EnvKafkaGroupCalendarSync    = "KAFKA_GROUP_CALENDAR_SYNC"

	EnvOtelEnabled     = "OTEL_ENABLED"
	EnvOtelEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtelSampleRatio = "OTEL_SAMPLING_RATIO"

	EnvMetricsEnabled = "METRICS_ENABLED"
)
