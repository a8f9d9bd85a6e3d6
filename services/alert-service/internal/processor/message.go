package processor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	kafkautil "github.com/dikpaal/Distributed-Logging-and-Monitoring-System/pkg/kafka"
	"github.com/dikpaal/Distributed-Logging-and-Monitoring-System/services/alert-service/internal/events"
)

// ContentTypeHeader selects the payload decoder. JSON is assumed when it is absent.
const ContentTypeHeader = "content-type"

// ErrPermanent marks failures that no retry can fix, such as an undecodable payload.
var ErrPermanent = errors.New("permanent failure")

// decodeMessage turns a Kafka record into log events. A JSON record yields one event,
// an OTLP record yields every valid entry of the batch.
func decodeMessage(msg *kafka.Message, receivedAt time.Time) ([]*events.LogEvent, error) {
	contentType := strings.ToLower(kafkautil.HeaderValue(*msg, ContentTypeHeader))

	if strings.HasPrefix(contentType, events.ContentTypeProtobuf) {
		batch, err := events.DecodeOTLP(msg.Value, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return batch, nil
	}

	event, err := events.DecodeJSON(msg.Value, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return []*events.LogEvent{event}, nil
}

// idempotencyKey returns the producer-assigned key, or "" when the record has none.
func idempotencyKey(msg *kafka.Message) string {
	return strings.TrimSpace(kafkautil.HeaderValue(*msg, events.IdempotencyHeader))
}

// entryID names the window entry for the idx-th event of msg. It is stable across
// redeliveries, so a re-append overwrites instead of double counting.
func entryID(msg *kafka.Message, key string, idx int) string {
	if key != "" {
		return fmt.Sprintf("%s:%d", key, idx)
	}
	return fmt.Sprintf("%s:%d:%d:%d", msg.Topic, msg.Partition, msg.Offset, idx)
}
