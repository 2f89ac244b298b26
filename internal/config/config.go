package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	MetricsAddr     string
	DBPath          string
	NATSURL         string
	EventSubject    string
	TraceStdout     bool
	LogLevel        string
	LogJSON         bool
	ShutdownTimeout time.Duration
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		MetricsAddr:     ":9090",
		DBPath:          "./data/badger",
		EventSubject:    "vm.events",
		LogLevel:        "info",
		LogJSON:         true,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads VMF_* environment variables over the defaults and validates
// the result.
func Load() (Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads VMF_* environment variables over the defaults without
// validating, so later overrides such as flags can still correct them.
func FromEnv() Config {
	d := Default()
	return Config{
		HTTPAddr:        env("VMF_HTTP_ADDR", d.HTTPAddr),
		GRPCAddr:        env("VMF_GRPC_ADDR", d.GRPCAddr),
		MetricsAddr:     envAllowEmpty("VMF_METRICS_ADDR", d.MetricsAddr),
		DBPath:          env("VMF_DB_PATH", d.DBPath),
		NATSURL:         env("VMF_NATS_URL", d.NATSURL),
		EventSubject:    env("VMF_EVENT_SUBJECT", d.EventSubject),
		TraceStdout:     envBool("VMF_TRACE_STDOUT", d.TraceStdout),
		LogLevel:        strings.ToLower(env("VMF_LOG_LEVEL", d.LogLevel)),
		LogJSON:         envBool("VMF_LOG_JSON", d.LogJSON),
		ShutdownTimeout: envDuration("VMF_SHUTDOWN_TIMEOUT", d.ShutdownTimeout),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("VMF_HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return errors.New("VMF_GRPC_ADDR is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("VMF_DB_PATH is required")
	}
	if c.NATSURL != "" && strings.TrimSpace(c.EventSubject) == "" {
		return errors.New("VMF_EVENT_SUBJECT is required when VMF_NATS_URL is set")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("VMF_SHUTDOWN_TIMEOUT must be > 0")
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envAllowEmpty lets an explicitly empty variable override the fallback.
func envAllowEmpty(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
