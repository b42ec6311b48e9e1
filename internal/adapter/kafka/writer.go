package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/grid-frequency-etl/internal/config"
	"github.com/couchcryptid/grid-frequency-etl/internal/domain"
)

// Writer publishes weekly summary rows to a Kafka topic.
// It implements threshold.Publisher.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured summary topic. runID
// is attached to every message.
func NewWriter(cfg *config.Config, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSummaryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, runID: runID, logger: logger}
}

// PublishSummaries sends one message per week in a single WriteMessages call.
// Messages are keyed by week so a topic compacted on key keeps the latest row.
func (w *Writer) PublishSummaries(ctx context.Context, rows []domain.WeeklySummary) error {
	if len(rows) == 0 {
		return nil
	}
	producedAt := domain.Now()
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], w.runID, producedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write summary messages: %w", err)
	}
	w.logger.Info("summary published", "topic", w.writer.Topic, "weeks", len(rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a summary row into a Kafka message.
func serializeToMessage(row domain.WeeklySummary, runID string, producedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize weekly summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Key().String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "produced_at", Value: []byte(producedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
