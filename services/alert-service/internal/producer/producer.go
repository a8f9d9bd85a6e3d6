// Package producer publishes undeliverable log messages to the dead-letter topic.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	kafkautil "github.com/dikpaal/Distributed-Logging-and-Monitoring-System/pkg/kafka"
)

// Headers added to every dead-lettered message on top of the original ones.
const (
	HeaderReason          = "x-dlq-reason"
	HeaderSourceTopic     = "x-dlq-source-topic"
	HeaderSourcePartition = "x-dlq-source-partition"
	HeaderSourceOffset    = "x-dlq-source-offset"
	HeaderFailedAt        = "x-dlq-failed-at"
)

// DefaultTopicPartitions is used when EnsureTopic has to create the DLQ topic.
const DefaultTopicPartitions = 3

// Producer wraps a Kafka writer for the dead-letter topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	now     func() time.Time
}

// NewProducer creates a DLQ producer for topic.
// Writes are synchronous and wait for the leader ack.
func NewProducer(brokers, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"async", false,
		"partition_key", "original message key",
	)

	return &Producer{
		writer:  writer,
		brokers: brokerList,
		topic:   topic,
		now:     time.Now,
	}, nil
}

// Topic returns the dead-letter topic name.
func (p *Producer) Topic() string {
	return p.topic
}

// EnsureTopic creates the dead-letter topic if it does not exist.
// Failures are logged; the topic may need to be created manually.
func (p *Producer) EnsureTopic(partitions int) {
	conn, err := kafka.Dial("tcp", p.brokers[0])
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", p.brokers[0],
			"topic", p.topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	existing, err := conn.ReadPartitions(p.topic)
	if err == nil && len(existing) > 0 {
		slog.Info("Topic already exists", "topic", p.topic, "partitions", len(existing))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             p.topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", p.topic,
			"error", err,
		)
		return
	}
	slog.Info("Created topic", "topic", p.topic, "partitions", partitions)
}

// PublishDeadLetter copies msg to the dead-letter topic, tagged with reason and its origin.
func (p *Producer) PublishDeadLetter(ctx context.Context, msg *kafka.Message, reason string) error {
	out := buildMessage(msg, reason, p.now())

	if err := p.writer.WriteMessages(ctx, out); err != nil {
		slog.Error("Failed to write dead letter to Kafka",
			"topic", p.topic,
			"source_partition", msg.Partition,
			"source_offset", msg.Offset,
			"error", err,
		)
		return fmt.Errorf("failed to write dead letter to Kafka: %w", err)
	}
	return nil
}

func buildMessage(msg *kafka.Message, reason string, failedAt time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderReason, Value: []byte(reason)},
		kafka.Header{Key: HeaderSourceTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderSourcePartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderSourceOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderFailedAt, Value: []byte(failedAt.UTC().Format(time.RFC3339Nano))},
	)

	return kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}
