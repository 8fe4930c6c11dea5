// Package logsink writes news records and disaster reports to the process
// logger. It is the default sink when no external store is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) LoadRecords(ctx context.Context, records []domain.NormalizedRecord) error {
	for _, r := range records {
		s.logger.InfoContext(ctx, "news record",
			"id", r.ID,
			"title", r.Title,
			"source_url", r.SourceURL,
			"source_name", r.SourceName,
			"published_at", r.PublishedAt,
			"body_length", len([]rune(r.Body)),
		)
	}
	return nil
}

func (s *Sink) SaveReport(ctx context.Context, report domain.DisasterReport) error {
	attrs := []any{
		"id", report.ID,
		"sender", report.Sender,
		"subject", report.Subject,
		"disaster_type", report.DisasterType,
		"address", report.RawAddress,
		"received_at", report.ReceivedAt,
	}
	if loc := report.Location; loc != nil {
		attrs = append(attrs, "latitude", loc.Latitude, "longitude", loc.Longitude)
	}
	s.logger.InfoContext(ctx, "disaster report", attrs...)
	return nil
}

func (s *Sink) Close() error { return nil }
