package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	BankBasePath string // filesystem bank store

	// Bearer tokens are required when a secret is set.
	AuthHMACSecret string
	AuthIssuer     string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// RabbitMQ is optional; sessions are only published when a URI is set.
	RabbitMQURI      string
	RabbitMQExchange string

	// Multi-choice partial credit and numeric tolerance.
	PartialMulti     bool
	NumericTolerance float64

	// Live attempts idle longer than AttemptIdleTTL are evicted; idle
	// practice attempts are recorded as abandoned.
	AttemptIdleTTL time.Duration
	SweepInterval  time.Duration
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		SiteID:             envOr("SITE_ID", "local"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		BankBasePath:       envOr("BANK_BASE_PATH", "./data/banks"),
		AuthHMACSecret:     os.Getenv("AUTH_HMAC_SECRET"),
		AuthIssuer:         envOr("AUTH_ISSUER", ""),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://lms.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010,http://localhost:3020"),
		RabbitMQURI:        os.Getenv("RABBITMQ_URI"),
		RabbitMQExchange:   envOr("RABBITMQ_EXCHANGE", "assessment.events"),
		PartialMulti:       envBool("PARTIAL_MULTI", true),
		NumericTolerance:   envFloat("NUMERIC_TOLERANCE", 1e-5),
		AttemptIdleTTL:     envDuration("ATTEMPT_IDLE_TTL", 2*time.Hour),
		SweepInterval:      envDuration("SWEEP_INTERVAL", time.Minute),
	}
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envFloat(k string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
