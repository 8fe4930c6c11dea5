package inbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
)

// ReportTransformer builds disaster reports from parsed mails, with
// optional geocoding enrichment.
type ReportTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewReportTransformer creates a ReportTransformer. Pass a nil geocoder to
// disable geocoding enrichment.
func NewReportTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ReportTransformer {
	return &ReportTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform classifies the mail and geocodes its address. Reports are
// stamped with the processing time, not the mail's Date header.
func (t *ReportTransformer) Transform(ctx context.Context, mail ParsedMail) domain.DisasterReport {
	report := domain.NewDisasterReport(mail.From, mail.Subject, mail.Text, time.Time{})
	return domain.EnrichReportWithGeocoding(ctx, report, t.geocoder, t.logger)
}
