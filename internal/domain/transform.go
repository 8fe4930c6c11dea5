package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSender is stored when an alert mail has no From header.
	DefaultSender = "unknown"
	// DefaultSubject is stored when an alert mail has no Subject header.
	DefaultSubject = "No Subject"
)

// NewDisasterReport derives a DisasterReport from a mail's headers and body
// text. The body is classified and searched for an address as a whole; only
// its first line is kept.
func NewDisasterReport(sender, subject, text string, receivedAt time.Time) DisasterReport {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = DefaultSender
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	if receivedAt.IsZero() {
		receivedAt = clock.Now()
	}

	firstLine := ExtractFirstLine(text)
	return DisasterReport{
		ID:           generateID("mail", sender, subject, firstLine, receivedAt.UTC().Format(time.RFC3339)),
		Sender:       sender,
		Subject:      subject,
		FirstLine:    firstLine,
		DisasterType: ClassifyDisasterType(text),
		RawAddress:   ExtractAddress(text),
		ReceivedAt:   receivedAt,
	}
}

// PromoteCandidate turns an enriched candidate into a NormalizedRecord. An
// empty body falls back to the listing description, then the title, so the
// record body is never blank.
func PromoteCandidate(c ArticleCandidate, body string) NormalizedRecord {
	body = strings.TrimSpace(body)
	if body == "" {
		body = strings.TrimSpace(c.Description)
	}
	if body == "" {
		body = c.Title
	}

	now := clock.Now()
	published := c.PublishedAt
	if published.IsZero() {
		published = now
	}

	return NormalizedRecord{
		ID:          generateID("news", c.URL, c.Title),
		Title:       c.Title,
		Body:        body,
		SourceURL:   c.URL,
		ImageURL:    c.ImageURL,
		PublishedAt: published,
		IngestedAt:  now,
		SourceName:  c.SourceName,
	}
}

// generateID produces a deterministic ID from a record's identifying fields.
// The first part doubles as a readable prefix.
func generateID(kind string, parts ...string) string {
	input := fmt.Sprintf("%s|%s", kind, strings.Join(parts, "|"))
	hash := sha256.Sum256([]byte(input))
	return kind + "-" + hex.EncodeToString(hash[:8])
}
