package rules

import "time"

// MatchingRules returns every rule in rules that matches the event, in configuration order.
func MatchingRules(serviceName, severity string, rules []AlertRule) []AlertRule {
	var matched []AlertRule
	for _, r := range rules {
		if r.Matches(serviceName, severity) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Matcher wraps the rule set loaded at startup. The set never changes afterwards,
// so Matcher is safe for concurrent use without locking.
type Matcher struct {
	rules []AlertRule
}

// NewMatcher copies rules into a new matcher.
func NewMatcher(rules []AlertRule) *Matcher {
	cp := make([]AlertRule, len(rules))
	copy(cp, rules)
	return &Matcher{rules: cp}
}

// MatchingRules returns the rules that apply to an event with the given service and severity.
func (m *Matcher) MatchingRules(serviceName, severity string) []AlertRule {
	return MatchingRules(serviceName, severity, m.rules)
}

// Rules returns a copy of the configured rules in configuration order.
func (m *Matcher) Rules() []AlertRule {
	cp := make([]AlertRule, len(m.rules))
	copy(cp, m.rules)
	return cp
}

// RuleCount returns the number of configured rules.
func (m *Matcher) RuleCount() int {
	return len(m.rules)
}

// LongestWindow returns the largest window among the rules, or 0 when there are none.
func (m *Matcher) LongestWindow() time.Duration {
	var longest int
	for _, r := range m.rules {
		if r.WindowSeconds > longest {
			longest = r.WindowSeconds
		}
	}
	return time.Duration(longest) * time.Second
}
