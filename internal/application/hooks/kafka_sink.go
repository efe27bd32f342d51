package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/pkg/logger"
)

// KafkaSink publishes lifecycle events to a Kafka topic for downstream
// audit consumers.
type KafkaSink struct {
	writer *kafka.Writer
	logger logger.Logger
}

var _ EventSink = (*KafkaSink)(nil)

// NewKafkaSink builds a sink for the configured brokers and topic.
func NewKafkaSink(cfg config.KafkaConfig, log logger.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: log.WithComponent("kafka_sink"),
	}
}

// Publish writes one event. Tokens are redacted before serialization;
// the audit stream records that an event happened, not the credential.
func (s *KafkaSink) Publish(ctx context.Context, event *models.HookEvent) error {
	redacted := *event
	redacted.Token = ""
	redacted.OldToken = ""
	redacted.NewToken = ""

	data, err := json.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("encode hook event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Name),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
