package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/incident-ingest-service/internal/observability"
)

// Listener watches one mailbox for alert mails from a single sender.
type Listener struct {
	mailbox     Mailbox
	sink        ReportSink
	transformer *ReportTransformer
	sender      string
	metrics     *observability.Metrics
	logger      *slog.Logger
	state       atomic.Int32
}

// NewListener creates a Listener in the connecting state.
func NewListener(mailbox Mailbox, sink ReportSink, transformer *ReportTransformer, sender string, metrics *observability.Metrics, logger *slog.Logger) *Listener {
	l := &Listener{
		mailbox:     mailbox,
		sink:        sink,
		transformer: transformer,
		sender:      sender,
		metrics:     metrics,
		logger:      logger.With("component", "inbox", "sender", sender),
	}
	l.setState(StateConnecting)
	return l
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// CheckReadiness returns nil while the mailbox connection is usable.
func (l *Listener) CheckReadiness(_ context.Context) error {
	switch s := l.State(); s {
	case StateReady, StateProcessing:
		return nil
	default:
		return fmt.Errorf("mail listener is %s", s)
	}
}

// Run connects, scans once, then runs a fetch cycle per new-mail event
// until ctx is cancelled or the connection ends. There is no reconnection:
// a lost connection is returned as an error.
func (l *Listener) Run(ctx context.Context) error {
	l.setState(StateConnecting)
	if err := l.mailbox.Connect(ctx); err != nil {
		l.setState(StateError)
		return fmt.Errorf("connect mailbox: %w", err)
	}
	defer func() {
		if err := l.mailbox.Close(); err != nil {
			l.logger.Warn("mailbox close failed", "error", err)
		}
	}()

	l.setState(StateReady)
	l.metrics.MailboxConnected.Set(1)
	defer l.metrics.MailboxConnected.Set(0)
	l.logger.Info("mailbox connected, watching for alerts")

	l.fetchCycle(ctx)

	events := l.mailbox.Events()
	for {
		select {
		case <-ctx.Done():
			l.setState(StateEnded)
			l.logger.Info("mail listener stopping", "reason", ctx.Err())
			return nil
		case ev, ok := <-events:
			if !ok {
				l.setState(StateEnded)
				l.logger.Info("mailbox event stream ended")
				return nil
			}
			switch ev.Kind {
			case EventNewMail:
				l.logger.Info("new mail detected")
				l.fetchCycle(ctx)
			case EventClosed:
				if ev.Err != nil {
					l.setState(StateError)
					l.logger.Error("mailbox connection lost", "error", ev.Err)
					return fmt.Errorf("mailbox connection: %w", ev.Err)
				}
				l.setState(StateEnded)
				l.logger.Info("mailbox connection ended")
				return nil
			}
		}
	}
}

// fetchCycle processes every unread mail from the sender. Search and fetch
// failures end the cycle; per-message failures do not.
func (l *Listener) fetchCycle(ctx context.Context) {
	l.setState(StateProcessing)
	defer func() {
		if !l.State().Terminal() {
			l.setState(StateReady)
		}
		l.metrics.MailCycles.Inc()
	}()

	uids, err := l.mailbox.SearchUnseenFrom(ctx, l.sender)
	if err != nil {
		l.logger.Error("mail search failed", "error", err)
		return
	}
	if len(uids) == 0 {
		l.logger.Info("no unread alerts")
		return
	}

	msgs, err := l.mailbox.FetchAndMarkSeen(ctx, uids)
	if err != nil {
		l.logger.Error("mail fetch failed", "error", err, "count", len(uids))
		return
	}

	saved := 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		if l.process(ctx, msg) {
			saved++
		}
	}
	l.logger.Info("alert mails processed", "fetched", len(msgs), "saved", saved)
}

func (l *Listener) process(ctx context.Context, msg Message) bool {
	logger := l.logger.With("uid", msg.UID)

	parsed, err := ParseMessage(bytes.NewReader(msg.Raw))
	if err != nil {
		logger.Error("mail parse failed", "error", err)
		l.metrics.MailMessages.WithLabelValues("parse_error").Inc()
		return false
	}

	report := l.transformer.Transform(ctx, parsed)
	logger = logger.With("report_id", report.ID, "disaster_type", report.DisasterType, "address", report.RawAddress)

	if err := l.sink.SaveReport(ctx, report); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("report save interrupted", "error", err)
		} else {
			logger.Error("report save failed", "error", err)
		}
		l.metrics.MailMessages.WithLabelValues("sink_error").Inc()
		return false
	}

	l.metrics.MailMessages.WithLabelValues("saved").Inc()
	logger.Info("disaster report saved", "subject", parsed.Subject)
	return true
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
}
