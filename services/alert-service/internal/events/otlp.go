package events

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/protobuf/proto"
)

// ContentTypeProtobuf marks a message whose value is an OTLP ExportLogsServiceRequest.
const ContentTypeProtobuf = "application/x-protobuf"

// Resource attribute keys mapped onto LogEvent fields.
const (
	attrServiceName = "service.name"
	attrHostName    = "host.name"
)

// DecodeOTLP decodes an OTLP log export batch into log events.
// Records missing a service name, body or recognizable severity are dropped with a warning.
// Only an unparsable payload is an error.
func DecodeOTLP(data []byte, receivedAt time.Time) ([]*LogEvent, error) {
	var req collogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal OTLP logs: %v", ErrInvalidEvent, err)
	}

	var out []*LogEvent
	for _, rl := range req.GetResourceLogs() {
		resourceAttrs := attributesToMap(rl.GetResource().GetAttributes())
		service := resourceAttrs[attrServiceName]
		host := resourceAttrs[attrHostName]

		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				event := recordToEvent(rec, service, host, receivedAt)
				if err := event.Validate(); err != nil {
					slog.Warn("Skipping OTLP log record", "service", service, "error", err)
					continue
				}
				out = append(out, event)
			}
		}
	}
	return out, nil
}

func recordToEvent(rec *logspb.LogRecord, service, host string, receivedAt time.Time) *LogEvent {
	ts := receivedAt
	if n := rec.GetTimeUnixNano(); n > 0 {
		ts = time.Unix(0, int64(n))
	} else if n := rec.GetObservedTimeUnixNano(); n > 0 {
		ts = time.Unix(0, int64(n))
	}

	severity := rec.GetSeverityText()
	if !IsValidSeverity(severity) {
		severity = severityFromNumber(rec.GetSeverityNumber())
	}

	var traceID string
	if id := rec.GetTraceId(); len(id) > 0 {
		traceID = hex.EncodeToString(id)
	}

	metadata := attributesToMap(rec.GetAttributes())
	if len(metadata) == 0 {
		metadata = nil
	}

	return &LogEvent{
		ServiceName: service,
		Severity:    severity,
		Message:     anyValueString(rec.GetBody()),
		Timestamp:   ts.UTC(),
		TraceID:     traceID,
		Host:        host,
		Metadata:    metadata,
	}
}

// severityFromNumber folds the OTLP severity ranges onto INFO, WARN and ERROR.
// TRACE and DEBUG count as INFO; FATAL counts as ERROR.
func severityFromNumber(n logspb.SeverityNumber) string {
	switch {
	case n == logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED:
		return ""
	case n < logspb.SeverityNumber_SEVERITY_NUMBER_WARN:
		return SeverityInfo
	case n < logspb.SeverityNumber_SEVERITY_NUMBER_ERROR:
		return SeverityWarn
	default:
		return SeverityError
	}
}

func attributesToMap(kvs []*commonpb.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[kv.GetKey()] = anyValueString(kv.GetValue())
	}
	return m
}

func anyValueString(v *commonpb.AnyValue) string {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(val.BytesValue)
	default:
		return ""
	}
}
