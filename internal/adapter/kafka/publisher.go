package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/habitat-suitability-service/internal/config"
	"github.com/couchcryptid/habitat-suitability-service/internal/domain"
)

// Publisher produces applied result summaries to a Kafka topic.
// It implements pipeline.ResultPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured results topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes the grid-free summary of res and writes it to the
// results topic.
func (p *Publisher) Publish(ctx context.Context, res domain.SuitabilityResult) error {
	msg, err := serializeToMessage(res)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish result %d: %w", res.RequestID, err)
	}
	p.logger.Debug("result published", "request_id", res.RequestID, "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals the summary of res into a Kafka message keyed
// by request id.
func serializeToMessage(res domain.SuitabilityResult) (kafkago.Message, error) {
	data, err := json.Marshal(res.Summary())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize suitability summary: %w", err)
	}
	id := strconv.FormatUint(res.RequestID, 10)
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "request_id", Value: []byte(id)},
			{Key: "degraded", Value: []byte(strconv.FormatBool(res.Degraded))},
			{Key: "computed_at", Value: []byte(res.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
