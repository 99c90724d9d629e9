package config

import (
	"time"

	"github.com/joho/godotenv"
)

const (
	SecretsSourceAWS = "aws"
	SecretsSourceEnv = "env"
)

// Config holds the runtime configuration for the lakefs-adapter.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Per-client credentials (access_key_id, secret_access_key, base_url) are
	// resolved at runtime from SecretsSource. See internal/secrets.
	SecretsSource string
	AWSRegion     string
	// LocalClientID names the single client served when SecretsSource is "env".
	LocalClientID string
	CacheTTL      time.Duration
	CleanupFreq   time.Duration

	// LakeFSBaseURL is used when a client secret does not carry base_url.
	LakeFSBaseURL     string
	HTTPClientTimeout time.Duration
	HTTPRetryMax      int
	RateLimitRPS      int
	RateLimitBurst    int

	SessionRefreshInterval time.Duration
	SessionRefreshBuffer   time.Duration
	DefaultTokenTTL        time.Duration

	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	NATSURL      string
	EventSubject string
	EventStream  string

	RedisAddr string
	RedisDB   int
	RedisPass string

	// DatabaseURL enables the login audit trail when set.
	DatabaseURL         string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:            GetEnv("SERVICE_NAME", "lakefs-adapter"),
		Env:                    GetEnv("ENV", "dev"),
		LogLevel:               GetEnv("LOG_LEVEL", "info"),
		SecretsSource:          GetEnv("SECRETS_SOURCE", SecretsSourceAWS),
		AWSRegion:              GetEnv("AWS_REGION", "us-east-2"),
		LocalClientID:          GetEnv("LAKEFS_LOCAL_CLIENT_ID", "local"),
		CacheTTL:               GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq:            GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
		LakeFSBaseURL:          GetEnv("LAKEFS_BASE_URL", "http://localhost:8000/api/v1"),
		HTTPClientTimeout:      GetEnvDuration("LAKEFS_HTTP_TIMEOUT", 30*time.Second),
		HTTPRetryMax:           GetEnvInt("LAKEFS_HTTP_RETRY_MAX", 2),
		RateLimitRPS:           GetEnvInt("LAKEFS_RATE_LIMIT_RPS", 10),
		RateLimitBurst:         GetEnvInt("LAKEFS_RATE_LIMIT_BURST", 20),
		SessionRefreshInterval: GetEnvDuration("SESSION_REFRESH_INTERVAL", 5*time.Minute),
		SessionRefreshBuffer:   GetEnvDuration("SESSION_REFRESH_BUFFER", 5*time.Minute),
		DefaultTokenTTL:        GetEnvDuration("SESSION_DEFAULT_TTL", time.Hour),
		Port:                   GetEnvInt("LAKEFS_ADAPTER_PORT", 9040),
		HTTPReadTimeout:        GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:       GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:        GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:          GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		NATSURL:                GetEnv("NATS_URL", "nats://localhost:4222"),
		EventSubject:           GetEnv("EVENT_SUBJECT", "evt.lakefs"),
		EventStream:            GetEnv("EVENT_STREAM", "LAKEFS_EVENTS"),
		RedisAddr:              GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                GetEnvInt("REDIS_DB", 0),
		RedisPass:              GetEnv("REDIS_PASS", ""),
		DatabaseURL:            GetEnv("DATABASE_URL", ""),
		PGMaxConns:             GetEnvInt("PG_MAX_CONNS", 4),
		PGMinConns:             GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:      GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:      GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod:    GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
	}
}
