package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestSink_LoadRecords(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := s.LoadRecords(context.Background(), []domain.NormalizedRecord{
		{ID: "a", Title: "住宅火災", Body: "本文です", SourceName: "RKB毎日放送"},
		{ID: "b", Title: "冠水"},
	})
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "news record", lines[0]["msg"])
	assert.Equal(t, "a", lines[0]["id"])
	assert.Equal(t, float64(4), lines[0]["body_length"])
	assert.Equal(t, "b", lines[1]["id"])
}

func TestSink_SaveReport(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := s.SaveReport(context.Background(), domain.DisasterReport{
		ID:           "r1",
		DisasterType: domain.DisasterRescue,
		RawAddress:   "博多区博多駅前",
		ReceivedAt:   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Location:     &domain.Coordinates{Latitude: 33.59, Longitude: 130.42},
	})
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "RESCUE", lines[0]["disaster_type"])
	assert.Equal(t, 33.59, lines[0]["latitude"])
}

func TestSink_SaveReportWithoutLocation(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.SaveReport(context.Background(), domain.DisasterReport{ID: "r2", RawAddress: domain.AddressUnknown}))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "latitude")
}
