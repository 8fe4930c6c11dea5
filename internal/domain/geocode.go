package domain

import (
	"context"
	"log/slog"
)

// EnrichReportWithGeocoding attaches coordinates to a report whose address
// was extracted. A nil geocoder, the AddressUnknown sentinel, or a geocoding
// failure leave the report unchanged (graceful degradation).
func EnrichReportWithGeocoding(ctx context.Context, report DisasterReport, geocoder Geocoder, logger *slog.Logger) DisasterReport {
	if geocoder == nil || !report.HasAddress() {
		return report
	}

	coords, err := geocoder.Geocode(ctx, report.RawAddress)
	if err != nil {
		logger.Warn("geocoding failed",
			"report_id", report.ID,
			"address", report.RawAddress,
			"error", err,
		)
		return report
	}
	if coords == nil {
		logger.Debug("address not resolvable",
			"report_id", report.ID,
			"address", report.RawAddress,
		)
		return report
	}

	report.Location = coords
	return report
}
