package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result *Coordinates
	err    error
	calls  int
	last   string
}

func (m *mockGeocoder) Geocode(_ context.Context, address string) (*Coordinates, error) {
	m.calls++
	m.last = address
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReport(body string) DisasterReport {
	return NewDisasterReport("fire@example.jp", "出動情報", body, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
}

// --- tests ---

func TestEnrichReportWithGeocoding_NilGeocoder(t *testing.T) {
	report := testReport("火災出動 中央区天神2丁目3番付近")

	result := EnrichReportWithGeocoding(context.Background(), report, nil, discardLogger())

	assert.Nil(t, result.Location)
}

func TestEnrichReportWithGeocoding_Success(t *testing.T) {
	geo := &mockGeocoder{result: &Coordinates{Latitude: 33.5902, Longitude: 130.3989, FormattedAddress: "福岡県福岡市中央区天神2丁目3"}}
	report := testReport("火災出動 中央区天神2丁目3番付近")

	result := EnrichReportWithGeocoding(context.Background(), report, geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, "中央区天神2丁目3番付近", geo.last)
	if assert.NotNil(t, result.Location) {
		assert.InEpsilon(t, 33.5902, result.Location.Latitude, 0.0001)
		assert.Equal(t, "福岡県福岡市中央区天神2丁目3", result.Location.FormattedAddress)
	}
}

func TestEnrichReportWithGeocoding_SkipsUnknownAddress(t *testing.T) {
	geo := &mockGeocoder{result: &Coordinates{Latitude: 1, Longitude: 1}}
	report := testReport("救急出動 場所不明")

	result := EnrichReportWithGeocoding(context.Background(), report, geo, discardLogger())

	assert.Equal(t, 0, geo.calls)
	assert.Nil(t, result.Location)
}

func TestEnrichReportWithGeocoding_ErrorDegrades(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("boom")}
	report := testReport("火災 博多区博多駅前3丁目")

	result := EnrichReportWithGeocoding(context.Background(), report, geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Nil(t, result.Location)
	assert.Equal(t, report.RawAddress, result.RawAddress)
}

func TestEnrichReportWithGeocoding_Unresolvable(t *testing.T) {
	geo := &mockGeocoder{}
	report := testReport("警戒 東区香椎付近")

	result := EnrichReportWithGeocoding(context.Background(), report, geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Nil(t, result.Location)
}
