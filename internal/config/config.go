// Package config loads runtime configuration from environment variables.
// Required values halt startup when missing; operational knobs carry the
// defaults the service ships with.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret     string // secret used to sign session JWTs
	SessionTTLMin int    // lifetime of the JWT envelope in minutes

	// Rate-limit budgets: events per rolling window.
	ActorLimit  int
	ActorWindow time.Duration
	DestLimit   int
	DestWindow  time.Duration
	IntakeLimit int // per-IP guard on the public intake endpoint

	// Comma-separated administrator destinations for the intake fan-out,
	// each "sms:+15551234567" or "email:ops@example.com".
	AdminDestinations []string

	RedisAddr string // empty disables the shared limiter
	AMQPURL   string // empty disables the broker handoff
}

// Load reads configuration from the environment. Required variables cause a
// fatal log when absent.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		SessionTTLMin: envInt("SESSION_TTL_MIN", 12*60),

		ActorLimit:  envInt("ACTOR_RATE_LIMIT", 10),
		ActorWindow: envDur("ACTOR_RATE_WINDOW", time.Minute),
		DestLimit:   envInt("DEST_RATE_LIMIT", 3),
		DestWindow:  envDur("DEST_RATE_WINDOW", time.Minute),
		IntakeLimit: envInt("INTAKE_RATE_LIMIT", 20),

		AdminDestinations: envList("ADMIN_DESTINATIONS"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		AMQPURL:   os.Getenv("RABBITMQ_URL"),
	}
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
