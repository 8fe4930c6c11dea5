// Package inbox turns fire-bureau alert mails into disaster reports. A
// Listener owns one mailbox connection and runs every fetch cycle on its
// own goroutine.
package inbox

import (
	"context"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
)

// EventKind distinguishes mailbox notifications.
type EventKind int

const (
	// EventNewMail reports that the selected mailbox gained messages.
	EventNewMail EventKind = iota
	// EventClosed reports that the connection ended. Err is nil for a
	// clean logout.
	EventClosed
)

// Event is a notification pushed by a Mailbox.
type Event struct {
	Kind EventKind
	Err  error
}

// Message is one raw RFC 5322 message.
type Message struct {
	UID uint32
	Raw []byte
}

// Mailbox is a persistent connection to a selected inbox.
type Mailbox interface {
	// Connect dials, authenticates and opens the inbox read-write.
	Connect(ctx context.Context) error
	// SearchUnseenFrom returns the UIDs of unread messages from sender.
	SearchUnseenFrom(ctx context.Context, sender string) ([]uint32, error)
	// FetchAndMarkSeen returns the full messages and flags them \Seen.
	FetchAndMarkSeen(ctx context.Context, uids []uint32) ([]Message, error)
	// Events delivers new-mail and connection-closed notifications.
	Events() <-chan Event
	Close() error
}

// ReportSink persists disaster reports.
type ReportSink interface {
	SaveReport(ctx context.Context, report domain.DisasterReport) error
}
