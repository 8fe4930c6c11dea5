package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/config"
	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces news records and disaster reports to their own topics.
// It implements pipeline.RecordLoader and inbox.ReportSink.
type Writer struct {
	news    *kafkago.Writer
	reports *kafkago.Writer
	logger  *slog.Logger
}

// NewWriter creates Kafka producers for the configured news and report topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{
		news:    newTopicWriter(cfg.KafkaBrokers, cfg.KafkaNewsTopic),
		reports: newTopicWriter(cfg.KafkaBrokers, cfg.KafkaReportsTopic),
		logger:  logger,
	}
}

func newTopicWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
}

// LoadRecords serializes and publishes a scrape batch in a single
// WriteMessages call. Records are keyed by ID so re-scrapes of the same
// article land on the same partition.
func (w *Writer) LoadRecords(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := recordToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.news.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write news records: %w", err)
	}
	return nil
}

// SaveReport publishes one disaster report.
func (w *Writer) SaveReport(ctx context.Context, report domain.DisasterReport) error {
	msg, err := reportToMessage(report)
	if err != nil {
		return err
	}
	if err := w.reports.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write disaster report: %w", err)
	}
	w.logger.Debug("disaster report published", "report_id", report.ID, "topic", w.reports.Topic)
	return nil
}

func (w *Writer) Close() error {
	return errors.Join(w.news.Close(), w.reports.Close())
}

// recordToMessage marshals a NormalizedRecord into a Kafka message.
func recordToMessage(record domain.NormalizedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize news record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(record.SourceName)},
			{Key: "ingested_at", Value: []byte(record.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}

// reportToMessage marshals a DisasterReport into a Kafka message.
func reportToMessage(report domain.DisasterReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize disaster report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "disaster_type", Value: []byte(report.DisasterType)},
			{Key: "received_at", Value: []byte(report.ReceivedAt.Format(time.RFC3339))},
		},
	}, nil
}
