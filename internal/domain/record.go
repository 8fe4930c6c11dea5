package domain

import "time"

// NormalizedRecord is a fully enriched news article ready for persistence.
type NormalizedRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	SourceURL   string    `json:"source_url"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	IngestedAt  time.Time `json:"ingested_at"`
	SourceName  string    `json:"source_name"`
}

// ArticleCandidate is a listing-page summary awaiting detail enrichment.
type ArticleCandidate struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Description string    `json:"description"`
	SourceName  string    `json:"source_name"`
}

// DisasterReport is the structured form of one disaster-alert mail.
type DisasterReport struct {
	ID           string       `json:"id"`
	Sender       string       `json:"sender"`
	Subject      string       `json:"subject"`
	FirstLine    string       `json:"first_line"`
	DisasterType DisasterType `json:"disaster_type"`
	RawAddress   string       `json:"raw_address"`
	ReceivedAt   time.Time    `json:"received_at"`
	Location     *Coordinates `json:"location,omitempty"`
}

// Coordinates is a geocoded point. FormattedAddress is empty when the
// provider returned no usable address components.
type Coordinates struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
}

// HasAddress reports whether the report carries an extracted address.
func (r DisasterReport) HasAddress() bool {
	return r.RawAddress != "" && r.RawAddress != AddressUnknown
}
