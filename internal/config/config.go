package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required identifiers and secrets abort startup
// when missing; the reservation, retry and batch tunables fall back to
// defaults and are clamped to their documented ranges.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	AMQPURL   string // broker connection URL
	JWTSecret string // secret used to verify bearer tokens

	DBMaxConns              int // connection pool size (open and idle)
	ReservationTTLSeconds   int // how long a hold stays exclusive, in seconds [10, 3600]
	MaxRetryAttempts        int // store-conflict retry budget per operation
	InitialRetryDelayMs     int // first backoff delay in milliseconds
	RetryBackoffMultiplier  int // backoff growth factor between attempts
	MaxRetryDelayMs         int // backoff ceiling in milliseconds
	ExpirationBatchSize     int // max messages per expiration batch
	ExpirationFlushInterval int // max milliseconds a partial batch waits before flushing
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		AMQPURL:   must("RABBITMQ_URL"),
		JWTSecret: must("JWT_SECRET"),

		DBMaxConns:              envInt("DB_MAX_CONNS", 25),
		ReservationTTLSeconds:   envInt("RESERVATION_TTL_SECONDS", 30),
		MaxRetryAttempts:        envInt("MAX_RETRY_ATTEMPTS", 3),
		InitialRetryDelayMs:     envInt("INITIAL_RETRY_DELAY_MS", 100),
		RetryBackoffMultiplier:  envInt("RETRY_BACKOFF_MULTIPLIER", 2),
		MaxRetryDelayMs:         envInt("MAX_RETRY_DELAY_MS", 2000),
		ExpirationBatchSize:     envInt("EXPIRATION_BATCH_SIZE", 10),
		ExpirationFlushInterval: envInt("EXPIRATION_FLUSH_INTERVAL_MS", 2000),
	}
	return clamp(cfg)
}

// clamp enforces the documented ranges on the tunables so a bad env file
// cannot configure a hold that expires instantly or never.
func clamp(cfg Config) Config {
	if cfg.DBMaxConns < 1 {
		cfg.DBMaxConns = 1
	}
	if cfg.ReservationTTLSeconds < 10 {
		cfg.ReservationTTLSeconds = 10
	}
	if cfg.ReservationTTLSeconds > 3600 {
		cfg.ReservationTTLSeconds = 3600
	}
	if cfg.MaxRetryAttempts < 1 {
		cfg.MaxRetryAttempts = 1
	}
	if cfg.InitialRetryDelayMs < 1 {
		cfg.InitialRetryDelayMs = 1
	}
	if cfg.RetryBackoffMultiplier < 1 {
		cfg.RetryBackoffMultiplier = 1
	}
	if cfg.MaxRetryDelayMs < cfg.InitialRetryDelayMs {
		cfg.MaxRetryDelayMs = cfg.InitialRetryDelayMs
	}
	if cfg.ExpirationBatchSize < 1 {
		cfg.ExpirationBatchSize = 1
	}
	if cfg.ExpirationFlushInterval < 1 {
		cfg.ExpirationFlushInterval = 1
	}
	return cfg
}

// ReservationTTL returns the hold lifetime as a duration.
func (c Config) ReservationTTL() time.Duration {
	return time.Duration(c.ReservationTTLSeconds) * time.Second
}

// ExpirationFlush returns the batch flush interval as a duration.
func (c Config) ExpirationFlush() time.Duration {
	return time.Duration(c.ExpirationFlushInterval) * time.Millisecond
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
