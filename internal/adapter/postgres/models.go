package postgres

import (
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
)

// newsRecord is the news_records row for a NormalizedRecord.
type newsRecord struct {
	ID          string    `gorm:"primaryKey;type:text"`
	Title       string    `gorm:"type:text;not null"`
	Body        string    `gorm:"type:text;not null"`
	SourceURL   string    `gorm:"type:text;not null;index:idx_news_records_source_url"`
	ImageURL    string    `gorm:"type:text"`
	PublishedAt time.Time `gorm:"type:timestamp with time zone;not null;index"`
	IngestedAt  time.Time `gorm:"type:timestamp with time zone;not null"`
	SourceName  string    `gorm:"type:text;not null"`
}

// TableName overrides the table name
func (newsRecord) TableName() string {
	return "news_records"
}

// disasterReport is the disaster_reports row for a DisasterReport. The
// location columns are null when the address was not geocoded.
type disasterReport struct {
	ID               string    `gorm:"primaryKey;type:text"`
	Sender           string    `gorm:"type:text;not null"`
	Subject          string    `gorm:"type:text;not null"`
	FirstLine        string    `gorm:"type:text;not null"`
	DisasterType     string    `gorm:"type:text;not null;index"`
	RawAddress       string    `gorm:"type:text;not null"`
	ReceivedAt       time.Time `gorm:"type:timestamp with time zone;not null;index"`
	Latitude         *float64
	Longitude        *float64
	FormattedAddress *string `gorm:"type:text"`
}

// TableName overrides the table name
func (disasterReport) TableName() string {
	return "disaster_reports"
}

func toNewsRecord(r domain.NormalizedRecord) newsRecord {
	return newsRecord{
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

func toDisasterReport(r domain.DisasterReport) disasterReport {
	row := disasterReport{
		ID:           r.ID,
		Sender:       r.Sender,
		Subject:      r.Subject,
		FirstLine:    r.FirstLine,
		DisasterType: string(r.DisasterType),
		RawAddress:   r.RawAddress,
		ReceivedAt:   r.ReceivedAt,
	}
	if r.Location != nil {
		lat, lng, addr := r.Location.Latitude, r.Location.Longitude, r.Location.FormattedAddress
		row.Latitude, row.Longitude, row.FormattedAddress = &lat, &lng, &addr
	}
	return row
}
