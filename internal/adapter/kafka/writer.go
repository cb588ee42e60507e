package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/adsb-aircraft-db/internal/config"
	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier publishes build summaries to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured build topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes one message describing a finished build.
func (n *Notifier) Notify(ctx context.Context, summary domain.BuildSummary) error {
	msg, err := serializeToMessage(summary)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish build summary: %w", err)
	}
	n.logger.Debug("build summary published", "topic", n.writer.Topic, "run_id", summary.RunID)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a BuildSummary into a Kafka message keyed by run ID.
func serializeToMessage(summary domain.BuildSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize build summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(summary.RunID)},
			{Key: "finished_at", Value: []byte(summary.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
