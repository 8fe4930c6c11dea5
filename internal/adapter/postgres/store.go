// Package postgres persists news records and disaster reports with gorm.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const defaultBatchSize = 100

// Store writes to the news_records and disaster_reports tables. Rows are
// keyed by their deterministic IDs, so a re-ingested item is ignored.
// It implements pipeline.RecordLoader and inbox.ReportSink.
type Store struct {
	db        *gorm.DB
	batchSize int
	logger    *slog.Logger
}

// Open connects to dsn.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewStore(db, defaultBatchSize, logger), nil
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB, batchSize int, logger *slog.Logger) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize, logger: logger}
}

// Migrate creates or updates both tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&newsRecord{}, &disasterReport{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) LoadRecords(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]newsRecord, len(records))
	for i, r := range records {
		rows[i] = toNewsRecord(r)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, s.batchSize)
	if res.Error != nil {
		return fmt.Errorf("insert news records: %w", res.Error)
	}
	s.logger.Debug("news records inserted", "count", len(rows), "new", res.RowsAffected)
	return nil
}

func (s *Store) SaveReport(ctx context.Context, report domain.DisasterReport) error {
	row := toDisasterReport(report)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("insert disaster report: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
