// Package events defines the log event consumed from the logs topic and its wire decoders.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Severity levels accepted on inbound log events.
const (
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityError = "ERROR"
)

// IdempotencyHeader is the Kafka header carrying the producer-supplied idempotency key.
const IdempotencyHeader = "X-Idempotency-Key"

// ErrInvalidEvent marks events that can never be processed, no matter how often they are retried.
var ErrInvalidEvent = errors.New("invalid log event")

var validSeverities = map[string]struct{}{
	SeverityInfo:  {},
	SeverityWarn:  {},
	SeverityError: {},
}

// IsValidSeverity reports whether s is one of INFO, WARN or ERROR (case-insensitive).
func IsValidSeverity(s string) bool {
	_, ok := validSeverities[strings.ToUpper(s)]
	return ok
}

// LogEvent is a single service log line.
type LogEvent struct {
	ServiceName string            `json:"serviceName"`
	Severity    string            `json:"severity"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	TraceID     string            `json:"traceId,omitempty"`
	Host        string            `json:"host,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate checks required fields and normalizes severity to upper case.
func (e *LogEvent) Validate() error {
	if strings.TrimSpace(e.ServiceName) == "" {
		return fmt.Errorf("%w: serviceName is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidEvent)
	}
	if !IsValidSeverity(e.Severity) {
		return fmt.Errorf("%w: severity %q must be one of INFO, WARN, ERROR", ErrInvalidEvent, e.Severity)
	}
	e.Severity = strings.ToUpper(e.Severity)
	return nil
}

// wireEvent mirrors LogEvent with a raw timestamp so both RFC 3339 strings and epoch milliseconds decode.
type wireEvent struct {
	ServiceName string          `json:"serviceName"`
	Severity    string          `json:"severity"`
	Message     string          `json:"message"`
	Timestamp   json.RawMessage `json:"timestamp"`
	TraceID     string          `json:"traceId"`
	Host        string          `json:"host"`
	Metadata    json.RawMessage `json:"metadata"`
}

// DecodeJSON decodes and validates a JSON log event.
// A missing timestamp defaults to receivedAt.
func DecodeJSON(data []byte, receivedAt time.Time) (*LogEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ts.IsZero() {
		ts = receivedAt
	}

	event := &LogEvent{
		ServiceName: w.ServiceName,
		Severity:    w.Severity,
		Message:     w.Message,
		Timestamp:   ts.UTC(),
		TraceID:     w.TraceID,
		Host:        w.Host,
		Metadata:    flattenMetadata(w.Metadata),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// flattenMetadata turns a metadata object into string values. Strings are kept as-is;
// numbers, booleans, arrays and objects keep their compact JSON text. Metadata is
// opaque: anything that is not a JSON object is dropped rather than rejected.
func flattenMetadata(raw json.RawMessage) map[string]string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil
	}

	out := make(map[string]string, len(fields))
	for k, v := range fields {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		if v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[k] = s
				continue
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			out[k] = string(v)
			continue
		}
		out[k] = buf.String()
	}
	return out
}

// parseTimestamp accepts null, an RFC 3339 string, or a number of epoch milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		if s == "" {
			return time.Time{}, nil
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q is not RFC 3339", s)
		}
		return ts, nil
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s is neither a string nor epoch millis", raw)
	}
	return time.UnixMilli(ms), nil
}
