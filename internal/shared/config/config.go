package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTIssuer string

	EmailProvider string
	EmailAPIKey   string
	EmailFrom     string
	EmailFromName string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	WorkflowActionTimeout time.Duration
	WorkflowConcurrency   int
	WorkflowPollInterval  time.Duration

	RetentionSchedule  string
	ExecutionRetention time.Duration
	JobRetention       time.Duration
	AuditRetention     time.Duration

	TracingEnabled bool
	ServiceName    string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using system environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: os.Getenv("JWT_ISSUER"),

		EmailProvider: getEnv("EMAIL_PROVIDER", "resend"),
		EmailAPIKey:   os.Getenv("EMAIL_API_KEY"),
		EmailFrom:     getEnv("EMAIL_FROM", "no-reply@localhost"),
		EmailFromName: os.Getenv("EMAIL_FROM_NAME"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		WorkflowActionTimeout: getDuration("WORKFLOW_ACTION_TIMEOUT", 30*time.Second),
		WorkflowConcurrency:   getInt("WORKFLOW_WORKER_CONCURRENCY", 4),
		WorkflowPollInterval:  getDuration("WORKFLOW_POLL_INTERVAL", time.Second),

		RetentionSchedule:  getEnv("RETENTION_SCHEDULE", "0 0 3 * * *"),
		ExecutionRetention: getDuration("EXECUTION_RETENTION", 90*24*time.Hour),
		JobRetention:       getDuration("JOB_RETENTION", 7*24*time.Hour),
		AuditRetention:     getDuration("AUDIT_RETENTION", 365*24*time.Hour),

		TracingEnabled: getBool("OTEL_ENABLED", false),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "crm-api"),
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
