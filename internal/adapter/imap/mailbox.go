// Package imap implements inbox.Mailbox on an IMAP4rev1 connection.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/inbox"
	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ErrConnectionClosed is reported when the server drops the connection.
var ErrConnectionClosed = errors.New("imap connection closed by server")

// Config holds connection settings.
type Config struct {
	Addr               string
	Username           string
	Password           string
	TLS                bool
	InsecureSkipVerify bool
	// PollInterval is used when the server does not support IDLE.
	PollInterval time.Duration
}

// Mailbox keeps one authenticated connection with INBOX selected. The
// connection idles between commands so the server can push new mail.
type Mailbox struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	c        *client.Client
	idleStop chan struct{}
	idleDone chan error

	updates   chan client.Update
	events    chan inbox.Event
	closing   chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates an unconnected Mailbox.
func NewMailbox(cfg Config, logger *slog.Logger) *Mailbox {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Mailbox{
		cfg:     cfg,
		logger:  logger,
		updates: make(chan client.Update, 16),
		// One slot: new-mail notifications coalesce while a cycle runs.
		events:  make(chan inbox.Event, 1),
		closing: make(chan struct{}),
	}
}

func (m *Mailbox) Connect(ctx context.Context) error {
	c, err := m.dial()
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.Addr, err)
	}
	if err := ctx.Err(); err != nil {
		_ = c.Logout()
		return err
	}

	if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("login: %w", err)
	}

	c.Updates = m.updates
	mbox, err := c.Select("INBOX", false)
	if err != nil {
		_ = c.Logout()
		return fmt.Errorf("select INBOX: %w", err)
	}
	m.logger.Info("imap inbox selected", "messages", mbox.Messages, "unseen", mbox.Unseen)

	m.mu.Lock()
	m.c = c
	m.startIdle()
	m.mu.Unlock()

	go m.watch(c.LoggedOut())
	return nil
}

func (m *Mailbox) dial() (*client.Client, error) {
	if !m.cfg.TLS {
		return client.Dial(m.cfg.Addr)
	}
	return client.DialTLS(m.cfg.Addr, &tls.Config{
		InsecureSkipVerify: m.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed test servers
		MinVersion:         tls.VersionTLS12,
	})
}

// watch turns unilateral server data into inbox events until the
// connection ends.
func (m *Mailbox) watch(loggedOut <-chan struct{}) {
	for {
		select {
		case u := <-m.updates:
			if _, ok := u.(*client.MailboxUpdate); ok {
				select {
				case m.events <- inbox.Event{Kind: inbox.EventNewMail}:
				default:
				}
			}
		case <-loggedOut:
			select {
			case <-m.closing:
				// Closed by us; nobody is listening.
				return
			default:
			}
			select {
			case m.events <- inbox.Event{Kind: inbox.EventClosed, Err: ErrConnectionClosed}:
			case <-m.closing:
			}
			return
		case <-m.closing:
			return
		}
	}
}

func (m *Mailbox) Events() <-chan inbox.Event {
	return m.events
}

func (m *Mailbox) SearchUnseenFrom(_ context.Context, sender string) ([]uint32, error) {
	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	criteria.Header.Add("From", sender)

	var uids []uint32
	err := m.command(func(c *client.Client) error {
		var err error
		uids, err = c.UidSearch(criteria)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	return uids, nil
}

// FetchAndMarkSeen fetches BODY[] without PEEK, so the server sets \Seen.
func (m *Mailbox) FetchAndMarkSeen(_ context.Context, uids []uint32) ([]inbox.Message, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)
	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{goimap.FetchUid, section.FetchItem()}

	var out []inbox.Message
	err := m.command(func(c *client.Client) error {
		ch := make(chan *goimap.Message, len(uids))
		done := make(chan error, 1)
		go func() { done <- c.UidFetch(seqset, items, ch) }()

		for msg := range ch {
			body := msg.GetBody(section)
			if body == nil {
				m.logger.Warn("imap message without body", "uid", msg.Uid)
				continue
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				m.logger.Warn("imap body read failed", "uid", msg.Uid, "error", err)
				continue
			}
			out = append(out, inbox.Message{UID: msg.Uid, Raw: raw})
		}
		return <-done
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

// Close leaves IDLE and logs out.
func (m *Mailbox) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closing)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.c == nil {
			return
		}
		m.stopIdle()
		err = m.c.Logout()
	})
	if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// command runs fn with IDLE suspended. Commands are serialized.
func (m *Mailbox) command(fn func(*client.Client) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return errors.New("not connected")
	}

	m.stopIdle()
	defer m.startIdle()
	return fn(m.c)
}

// startIdle must be called with mu held.
func (m *Mailbox) startIdle() {
	select {
	case <-m.closing:
		return
	default:
	}
	stop := make(chan struct{})
	done := make(chan error, 1)
	m.idleStop, m.idleDone = stop, done

	c := m.c
	opts := &client.IdleOptions{PollInterval: m.cfg.PollInterval}
	go func() { done <- c.Idle(stop, opts) }()
}

// stopIdle must be called with mu held.
func (m *Mailbox) stopIdle() {
	if m.idleStop == nil {
		return
	}
	close(m.idleStop)
	if err := <-m.idleDone; err != nil {
		m.logger.Debug("imap idle ended", "error", err)
	}
	m.idleStop, m.idleDone = nil, nil
}
