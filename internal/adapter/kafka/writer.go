// Package kafka publishes import reports to a Kafka topic so downstream
// consumers learn when fresh forecasts land.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sellinios/aethra/internal/config"
	"github.com/sellinios/aethra/internal/domain"
)

// EventImportCompleted is the event_type header on every report.
const EventImportCompleted = "gfs.import.completed"

// messageWriter is the subset of *kafkago.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier produces one message per imported file.
// It implements pipeline.Notifier.
type Notifier struct {
	writer messageWriter
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured import topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes the reports in a single WriteMessages call. Reports of
// one cycle share a key so they land on the same partition in order.
func (n *Notifier) Notify(ctx context.Context, reports []domain.ImportReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d import reports: %w", len(msgs), err)
	}
	n.logger.Debug("import reports published", "count", len(msgs))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals an ImportReport into a Kafka message.
func serializeToMessage(rep domain.ImportReport) (kafkago.Message, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize import report: %w", err)
	}
	at := rep.ImportedAt
	if at.IsZero() {
		at = domain.Now()
	}
	return kafkago.Message{
		Key:   []byte(rep.Cycle),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventImportCompleted)},
			{Key: "imported_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}, nil
}
