// Package rules holds the configured alert rules and decides which of them a log event applies to.
package rules

import (
	"fmt"
	"strings"
)

// AllScope stands in for an unset filter in window keys.
const AllScope = "ALL"

// WindowKeyPrefix prefixes every sliding-window key in Redis.
const WindowKeyPrefix = "alert:window:"

// AlertRule counts matching events in a trailing window and fires when the count reaches Threshold.
// An empty ServiceName or Severity leaves that dimension unfiltered.
type AlertRule struct {
	Name          string `json:"name" yaml:"name"`
	ServiceName   string `json:"serviceName,omitempty" yaml:"serviceName"`
	Severity      string `json:"severity,omitempty" yaml:"severity"`
	Threshold     int    `json:"threshold" yaml:"threshold"`
	WindowSeconds int    `json:"windowSeconds" yaml:"windowSeconds"`
}

// Matches reports whether an event with the given service and severity falls under the rule.
// Comparison is case-insensitive.
func (r AlertRule) Matches(serviceName, severity string) bool {
	if r.Severity != "" && !strings.EqualFold(r.Severity, severity) {
		return false
	}
	if r.ServiceName != "" && !strings.EqualFold(r.ServiceName, serviceName) {
		return false
	}
	return true
}

// IsCatchAll reports whether the rule has no filters at all.
func (r AlertRule) IsCatchAll() bool {
	return r.ServiceName == "" && r.Severity == ""
}

// WindowKey returns the Redis key of the rule's window.
// It depends only on the rule, so a rule without a service filter keeps one window across all services.
func (r AlertRule) WindowKey() string {
	return fmt.Sprintf("%s%s:%s:%s", WindowKeyPrefix, r.Name, scope(r.ServiceName), scope(r.Severity))
}

func scope(filter string) string {
	if filter == "" {
		return AllScope
	}
	return filter
}
