package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/client"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	LogLevel string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotDuration    time.Duration
	CalendarTimeout time.Duration
	BusyReadPolicy  string
	SlotGuard       string
	SlotLockTTL     time.Duration
	SlotLockWait    time.Duration

	GoogleClientID         string
	GoogleClientSecret     string
	GoogleTokenURL         string
	GoogleCalendarEndpoint string

	JWTSecret string
	JWTIssuer string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BusyCacheTTL  time.Duration

	KafkaEnabled              bool
	KafkaBrokers              []string
	KafkaTopicBooked          string
	KafkaTopicCalendarSync    string
	KafkaTopicCalendarSyncDLQ string
	KafkaGroupCalendarSync    string

	OtelEnabled     bool
	OtelEndpoint    string
	OtelSampleRatio float64

	MetricsEnabled bool

	Log    *logger.Logger
	Client *client.Client

	fileErr error
}

// LookupFunc resolves a configuration key. It has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration from the environment, falling back to the YAML file
// named by CONFIG_FILE and then to defaults. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	cfg := LoadFrom(serviceName, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// LoadFrom builds a Config from lookup without validating it.
func LoadFrom(serviceName string, lookup LookupFunc) *Config {
	src := newSource(lookup)

	cfg := &Config{
		MongoURI:          src.str(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: src.str(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  src.duration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     src.str(EnvPort, DefaultPort),
		LogLevel: src.str(EnvLogLevel, DefaultLogLevel),

		RateLimitRPS:   src.float(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: src.num(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: src.duration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: src.duration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: src.num(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     src.duration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    src.duration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     src.duration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: src.duration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotDuration:    src.duration(EnvSlotDuration, DefaultSlotDuration),
		CalendarTimeout: src.duration(EnvCalendarTimeout, DefaultCalendarTimeout),
		BusyReadPolicy:  strings.ToLower(src.str(EnvBusyReadPolicy, BusyReadFailOpen)),
		SlotGuard:       strings.ToLower(src.str(EnvSlotGuard, SlotGuardMongo)),
		SlotLockTTL:     src.duration(EnvSlotLockTTL, DefaultSlotLockTTL),
		SlotLockWait:    src.duration(EnvSlotLockWait, DefaultSlotLockWait),

		GoogleClientID:         src.str(EnvGoogleClientID, ""),
		GoogleClientSecret:     src.str(EnvGoogleClientSecret, ""),
		GoogleTokenURL:         src.str(EnvGoogleTokenURL, DefaultGoogleTokenURL),
		GoogleCalendarEndpoint: src.str(EnvGoogleCalendarEndpoint, ""),

		JWTSecret: src.str(EnvJWTSecret, ""),
		JWTIssuer: src.str(EnvJWTIssuer, DefaultJWTIssuer),

		RedisAddr:     src.str(EnvRedisAddr, ""),
		RedisPassword: src.str(EnvRedisPassword, ""),
		RedisDB:       src.num(EnvRedisDB, DefaultRedisDB),
		BusyCacheTTL:  src.duration(EnvBusyCacheTTL, DefaultBusyCacheTTL),

		KafkaEnabled:              src.boolean(EnvKafkaEnabled, false),
		KafkaBrokers:              src.list(EnvKafkaBrokers, []string{DefaultKafkaBroker}),
		KafkaTopicBooked:          src.str(EnvKafkaTopicBooked, DefaultKafkaTopicBooked),
		KafkaTopicCalendarSync:    src.str(EnvKafkaTopicCalendarSync, DefaultKafkaTopicCalendarSync),
		KafkaTopicCalendarSyncDLQ: src.str(EnvKafkaTopicCalendarSyncDLQ, DefaultKafkaTopicCalendarSyncDLQ),
		KafkaGroupCalendarSync:    src.str(EnvKafkaGroupCalendarSync, DefaultKafkaGroupCalendarSync),

		OtelEnabled:     src.boolean(EnvOtelEnabled, false),
		OtelEndpoint:    src.str(EnvOtelEndpoint, DefaultOtelEndpoint),
		OtelSampleRatio: src.float(EnvOtelSampleRatio, DefaultOtelSampleRatio),

		MetricsEnabled: src.boolean(EnvMetricsEnabled, true),

		Client:  client.NewClient(),
		fileErr: src.fileErr,
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects to Redis when an address is configured. It reports whether a
// connection was made.
func (cfg *Config) SetRedis() bool {
	if cfg.RedisAddr == "" {
		return false
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
	return true
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func (cfg *Config) Validate() error {
	var errors []string

	if cfg.fileErr != nil {
		errors = append(errors, fmt.Sprintf("Config file could not be read: %v", cfg.fileErr))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"SlotDuration", cfg.SlotDuration},
		{"CalendarTimeout", cfg.CalendarTimeout},
		{"SlotLockTTL", cfg.SlotLockTTL},
		{"BusyCacheTTL", cfg.BusyCacheTTL},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.SlotLockWait < 0 {
		errors = append(errors, fmt.Sprintf("SlotLockWait must not be negative, got: %s", cfg.SlotLockWait))
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRPS must be positive, got: %g", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	switch cfg.BusyReadPolicy {
	case BusyReadFailOpen, BusyReadFailClosed:
	default:
		errors = append(errors, fmt.Sprintf("BusyReadPolicy must be %q or %q, got: %s", BusyReadFailOpen, BusyReadFailClosed, cfg.BusyReadPolicy))
	}

	switch cfg.SlotGuard {
	case SlotGuardMongo, SlotGuardNone:
	case SlotGuardRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr is required when SlotGuard is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("SlotGuard must be one of mongo, redis, none, got: %s", cfg.SlotGuard))
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	} else if len(cfg.JWTSecret) < 32 {
		errors = append(errors, "JWTSecret must be at least 32 characters")
	}

	if cfg.GoogleTokenURL == "" {
		errors = append(errors, "GoogleTokenURL cannot be empty")
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		errors = append(errors, "KafkaBrokers cannot be empty when Kafka is enabled")
	}

	if cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1 {
		errors = append(errors, fmt.Sprintf("OtelSampleRatio must be between 0 and 1, got: %g", cfg.OtelSampleRatio))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_duration", cfg.SlotDuration,
		"calendar_timeout", cfg.CalendarTimeout,
		"busy_read_policy", cfg.BusyReadPolicy,
		"slot_guard", cfg.SlotGuard,
		"slot_lock_ttl", cfg.SlotLockTTL,
		"slot_lock_wait", cfg.SlotLockWait,
		"google_client_id_set", cfg.GoogleClientID != "",
		"google_client_secret_set", cfg.GoogleClientSecret != "",
		"google_token_url", cfg.GoogleTokenURL,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_issuer", cfg.JWTIssuer,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"busy_cache_ttl", cfg.BusyCacheTTL,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_brokers", cfg.KafkaBrokers,
		"otel_enabled", cfg.OtelEnabled,
		"otel_endpoint", cfg.OtelEndpoint,
		"otel_sample_ratio", cfg.OtelSampleRatio,
		"metrics_enabled", cfg.MetricsEnabled,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// source layers the environment over an optional YAML file. File keys use the same
// names as the environment variables.
type source struct {
	lookup  LookupFunc
	file    map[string]string
	fileErr error
}

func newSource(lookup LookupFunc) *source {
	s := &source{lookup: lookup, file: map[string]string{}}
	path, ok := lookup(EnvConfigFile)
	if !ok || path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.fileErr = err
		return s
	}
	s.file, s.fileErr = parseFile(data)
	return s
}

func parseFile(data []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return map[string]string{}, err
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(tv))
			for _, item := range tv {
				parts = append(parts, fmt.Sprint(item))
			}
			values[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			values[strings.ToUpper(k)] = fmt.Sprint(tv)
		}
	}
	return values, nil
}

func (s *source) get(key string) (string, bool) {
	if value, ok := s.lookup(key); ok && value != "" {
		return value, true
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value, true
	}
	return "", false
}

func (s *source) str(key, fallback string) string {
	if value, ok := s.get(key); ok {
		return value
	}
	return fallback
}

func (s *source) num(key string, fallback int) int {
	if value, ok := s.get(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func (s *source) float(key string, fallback float64) float64 {
	if value, ok := s.get(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s *source) duration(key string, fallback time.Duration) time.Duration {
	if value, ok := s.get(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (s *source) boolean(key string, fallback bool) bool {
	if value, ok := s.get(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func (s *source) list(key string, fallback []string) []string {
	value, ok := s.get(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
