package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/events"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/rules"
)

// Defaults applied when the alert file omits a field.
const (
	DefaultEvaluationIntervalMs = 5000
	DefaultCooldownSeconds      = 60
)

// AlertsConfig is the alert rule file: evaluation cadence, global cooldown and the ordered rule list.
type AlertsConfig struct {
	EvaluationIntervalMs int               `yaml:"evaluationIntervalMs"`
	CooldownSeconds      int               `yaml:"cooldownSeconds"`
	Rules                []rules.AlertRule `yaml:"rules"`
}

// EvaluationInterval returns the evaluator tick period.
func (a *AlertsConfig) EvaluationInterval() time.Duration {
	return time.Duration(a.EvaluationIntervalMs) * time.Millisecond
}

// Cooldown returns the minimum gap between two alerts of the same rule.
func (a *AlertsConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

// LoadAlerts reads, parses and validates the alert file at path.
func LoadAlerts(path string) (*AlertsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("alerts config: read %q: %w", path, err)
	}
	return ParseAlerts(data)
}

// ParseAlerts parses and validates alert file contents. Missing fields take their defaults.
func ParseAlerts(data []byte) (*AlertsConfig, error) {
	cfg := alertDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("alerts config: parse yaml: %w", err)
	}

	for i := range cfg.Rules {
		cfg.Rules[i].Name = strings.TrimSpace(cfg.Rules[i].Name)
		cfg.Rules[i].ServiceName = strings.TrimSpace(cfg.Rules[i].ServiceName)
		cfg.Rules[i].Severity = strings.ToUpper(strings.TrimSpace(cfg.Rules[i].Severity))
	}

	if err := validateAlerts(cfg); err != nil {
		return nil, fmt.Errorf("alerts config: %w", err)
	}
	return cfg, nil
}

func alertDefaults() *AlertsConfig {
	return &AlertsConfig{
		EvaluationIntervalMs: DefaultEvaluationIntervalMs,
		CooldownSeconds:      DefaultCooldownSeconds,
	}
}

func validateAlerts(cfg *AlertsConfig) error {
	if cfg.EvaluationIntervalMs <= 0 {
		return fmt.Errorf("evaluationIntervalMs must be > 0, got %d", cfg.EvaluationIntervalMs)
	}
	if cfg.CooldownSeconds < 0 {
		return fmt.Errorf("cooldownSeconds must not be negative, got %d", cfg.CooldownSeconds)
	}

	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required", i)
		}
		if strings.Contains(r.Name, ":") {
			return fmt.Errorf("rules[%d] %q: name must not contain ':'", i, r.Name)
		}
		// Rules may share a name (and with it a cooldown) but not a window.
		// Service names match case-insensitively, so they compare that way here too.
		scope := r.Name + "\x00" + strings.ToLower(r.ServiceName) + "\x00" + r.Severity
		if _, dup := seen[scope]; dup {
			return fmt.Errorf("rules[%d]: duplicate rule %q with the same scope", i, r.Name)
		}
		seen[scope] = struct{}{}

		if r.Threshold <= 0 {
			return fmt.Errorf("rule %q: threshold must be > 0, got %d", r.Name, r.Threshold)
		}
		if r.WindowSeconds <= 0 {
			return fmt.Errorf("rule %q: windowSeconds must be > 0, got %d", r.Name, r.WindowSeconds)
		}
		if r.Severity != "" && !events.IsValidSeverity(r.Severity) {
			return fmt.Errorf("rule %q: severity %q must be one of INFO, WARN, ERROR", r.Name, r.Severity)
		}
	}
	return nil
}
