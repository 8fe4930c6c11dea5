//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-ingest-service/internal/config"
	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/couchcryptid/incident-ingest-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNewsTopic    = "test-news"
	testReportsTopic = "test-reports"
)

type publishedMessage struct {
	Value   []byte
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read published message")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return publishedMessage{Value: msg.Value, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker, topic string) *kafkago.Reader {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-%s-%d", topic, time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaBrokers:      []string{broker},
		KafkaNewsTopic:    testNewsTopic,
		KafkaReportsTopic: testReportsTopic,
	}
}

func TestKafkaWriter_ReportRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testNewsTopic)
	createTopic(t, broker, testReportsTopic)

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	received := time.Date(2024, 5, 10, 8, 15, 0, 0, time.UTC)
	report := domain.NewDisasterReport("fukushosaigai@m119.city.fukuoka.lg.jp", "出動情報", "火災出動 中央区天神2丁目3番付近\n詳細は続報", received)
	require.NoError(t, writer.SaveReport(ctx, report))

	msg := readPublished(ctx, t, newConsumer(t, broker, testReportsTopic))
	assert.Equal(t, report.ID, msg.Key)
	assert.Equal(t, "FIRE", msg.Headers["disaster_type"])
	assert.Equal(t, received.Format(time.RFC3339), msg.Headers["received_at"])

	var got domain.DisasterReport
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "中央区天神2丁目3番付近", got.RawAddress)
	assert.Equal(t, domain.DisasterFire, got.DisasterType)
}

type staticScraper struct {
	records []domain.NormalizedRecord
}

func (s staticScraper) Run(context.Context) []domain.NormalizedRecord { return s.records }

// TestPipelineToKafka runs the scheduled pipeline against a real broker and
// checks that one scrape batch lands on the news topic.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testNewsTopic)
	createTopic(t, broker, testReportsTopic)

	published := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	candidates := []domain.ArticleCandidate{
		{Title: "住宅火災", URL: "https://newsdig.example.jp/articles/rkb/1001", PublishedAt: published, Description: "福岡市で住宅火災", SourceName: "RKB毎日放送"},
		{Title: "冠水", URL: "https://newsdig.example.jp/articles/rkb/1002", PublishedAt: published, Description: "博多区で冠水", SourceName: "RKB毎日放送"},
	}
	records := make([]domain.NormalizedRecord, len(candidates))
	for i, c := range candidates {
		records[i] = domain.PromoteCandidate(c, "")
	}

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(staticScraper{records: records}, writer, discardLogger(), observability.NewMetricsForTesting(), time.Hour)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newConsumer(t, broker, testNewsTopic)
	got := make(map[string]domain.NormalizedRecord, len(records))
	for len(got) < len(records) {
		msg := readPublished(ctx, t, consumer)
		assert.Equal(t, "RKB毎日放送", msg.Headers["source"])

		var rec domain.NormalizedRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, rec.ID, msg.Key)
		got[rec.ID] = rec
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	for _, want := range records {
		rec, ok := got[want.ID]
		require.True(t, ok, "missing record %s", want.ID)
		assert.Equal(t, want.Title, rec.Title)
		assert.Equal(t, want.Body, rec.Body)
	}
	assert.True(t, p.Ready())
}
