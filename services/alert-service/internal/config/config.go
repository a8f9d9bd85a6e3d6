// Package config provides configuration parsing and validation for the alert-service.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds the infrastructure parameters of the alert-service, set from flags or environment.
type Config struct {
	KafkaBrokers    string
	LogsTopic       string
	ConsumerGroupID string
	DLQTopic        string // empty disables dead-lettering
	Concurrency     int

	RedisAddr   string
	PostgresDSN string
	HTTPPort    string
	RulesFile   string
	LogLevel    string

	IdempotencyTTL time.Duration
	WindowKeyTTL   time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
	HandleTimeout  time.Duration
	EvaluatorLocks bool
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.LogsTopic == "" {
		return fmt.Errorf("logs-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.DLQTopic != "" && c.DLQTopic == c.LogsTopic {
		return fmt.Errorf("dlq-topic must differ from logs-topic")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.RulesFile == "" {
		return fmt.Errorf("rules-file cannot be empty")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency-ttl must be > 0")
	}
	if c.WindowKeyTTL <= 0 {
		return fmt.Errorf("window-key-ttl must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max-attempts must be > 0")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry-backoff must be >= 0")
	}
	if c.HandleTimeout <= 0 {
		return fmt.Errorf("handle-timeout must be > 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level %q unknown: want debug|info|warn|error", level)
	}
}
