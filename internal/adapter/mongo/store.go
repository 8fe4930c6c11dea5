// Package mongo persists news records and disaster reports as MongoDB
// documents.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	newsCollection    = "news_records"
	reportsCollection = "disaster_reports"
)

type newsDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Body        string    `bson:"body"`
	SourceURL   string    `bson:"source_url"`
	ImageURL    string    `bson:"image_url,omitempty"`
	PublishedAt time.Time `bson:"published_at"`
	IngestedAt  time.Time `bson:"ingested_at"`
	SourceName  string    `bson:"source_name"`
}

type reportDocument struct {
	ID           string            `bson:"_id"`
	Sender       string            `bson:"sender"`
	Subject      string            `bson:"subject"`
	FirstLine    string            `bson:"first_line"`
	DisasterType string            `bson:"disaster_type"`
	RawAddress   string            `bson:"raw_address"`
	ReceivedAt   time.Time         `bson:"received_at"`
	Location     *locationDocument `bson:"location,omitempty"`
}

type locationDocument struct {
	Latitude         float64 `bson:"latitude"`
	Longitude        float64 `bson:"longitude"`
	FormattedAddress string  `bson:"formatted_address,omitempty"`
}

// Store writes to the news_records and disaster_reports collections.
// Documents use the record ID as _id; duplicates are skipped.
// It implements pipeline.RecordLoader and inbox.ReportSink.
type Store struct {
	client  *mongo.Client
	news    *mongo.Collection
	reports *mongo.Collection
	logger  *slog.Logger
}

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := newStore(db.Collection(newsCollection), db.Collection(reportsCollection), logger)
	s.client = client

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(news, reports *mongo.Collection, logger *slog.Logger) *Store {
	return &Store{news: news, reports: reports, logger: logger}
}

func (s *Store) createIndexes(ctx context.Context) error {
	if _, err := s.news.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create news index: %w", err)
	}
	if _, err := s.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "disaster_type", Value: 1}, {Key: "received_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create reports index: %w", err)
	}
	return nil
}

func (s *Store) LoadRecords(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = newsDocument{
			ID:          r.ID,
			Title:       r.Title,
			Body:        r.Body,
			SourceURL:   r.SourceURL,
			ImageURL:    r.ImageURL,
			PublishedAt: r.PublishedAt,
			IngestedAt:  r.IngestedAt,
			SourceName:  r.SourceName,
		}
	}

	res, err := s.news.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert news records: %w", err)
	}
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	s.logger.Debug("news records inserted", "count", len(docs), "new", inserted)
	return nil
}

func (s *Store) SaveReport(ctx context.Context, report domain.DisasterReport) error {
	doc := reportDocument{
		ID:           report.ID,
		Sender:       report.Sender,
		Subject:      report.Subject,
		FirstLine:    report.FirstLine,
		DisasterType: string(report.DisasterType),
		RawAddress:   report.RawAddress,
		ReceivedAt:   report.ReceivedAt,
	}
	if loc := report.Location; loc != nil {
		doc.Location = &locationDocument{
			Latitude:         loc.Latitude,
			Longitude:        loc.Longitude,
			FormattedAddress: loc.FormattedAddress,
		}
	}

	if _, err := s.reports.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.Debug("disaster report already stored", "report_id", report.ID)
			return nil
		}
		return fmt.Errorf("insert disaster report: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
