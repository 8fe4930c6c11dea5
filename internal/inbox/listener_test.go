package inbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSender = "fukushosaigai@m119.city.fukuoka.lg.jp"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alertMail(body string) []byte {
	return []byte("From: " + testSender + "\r\n" +
		"Subject: 出動情報\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body + "\r\n")
}

// fakeMailbox serves queued unread messages. Fetching marks them seen.
type fakeMailbox struct {
	mu         sync.Mutex
	unread     map[uint32][]byte
	connectErr error
	searchErr  error
	searches   []string
	closed     bool
	events     chan Event
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{unread: map[uint32][]byte{}, events: make(chan Event, 4)}
}

func (f *fakeMailbox) deliver(uid uint32, raw []byte) {
	f.mu.Lock()
	f.unread[uid] = raw
	f.mu.Unlock()
}

func (f *fakeMailbox) Connect(context.Context) error { return f.connectErr }

func (f *fakeMailbox) SearchUnseenFrom(_ context.Context, sender string) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, sender)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var uids []uint32
	for uid := uint32(1); uid <= 100; uid++ {
		if _, ok := f.unread[uid]; ok {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (f *fakeMailbox) FetchAndMarkSeen(_ context.Context, uids []uint32) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]Message, 0, len(uids))
	for _, uid := range uids {
		msgs = append(msgs, Message{UID: uid, Raw: f.unread[uid]})
		delete(f.unread, uid)
	}
	return msgs, nil
}

func (f *fakeMailbox) Events() <-chan Event { return f.events }

func (f *fakeMailbox) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type memSink struct {
	mu      sync.Mutex
	reports []domain.DisasterReport
	err     error
	saved   chan struct{}
}

func newMemSink() *memSink { return &memSink{saved: make(chan struct{}, 16)} }

func (s *memSink) SaveReport(_ context.Context, r domain.DisasterReport) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	s.saved <- struct{}{}
	return nil
}

func (s *memSink) snapshot() []domain.DisasterReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DisasterReport(nil), s.reports...)
}

type stubGeocoder struct{ coords *domain.Coordinates }

func (g stubGeocoder) Geocode(context.Context, string) (*domain.Coordinates, error) {
	return g.coords, nil
}

func newTestListener(mb Mailbox, sink ReportSink, geocoder domain.Geocoder) (*Listener, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewListener(mb, sink, NewReportTransformer(geocoder, discardLogger()), testSender, m, discardLogger()), m
}

func waitSaved(t *testing.T, s *memSink, n int) {
	t.Helper()
	for range n {
		select {
		case <-s.saved:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d saved reports", n)
		}
	}
}

func TestListener_InitialScanAndNewMail(t *testing.T) {
	mb := newFakeMailbox()
	mb.deliver(1, alertMail("火災出動 中央区天神2丁目3番付近\n詳細は追って連絡します"))
	sink := newMemSink()
	coords := &domain.Coordinates{Latitude: 33.59, Longitude: 130.40, FormattedAddress: "福岡県福岡市中央区"}
	l, m := newTestListener(mb, sink, stubGeocoder{coords: coords})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	waitSaved(t, sink, 1)

	mb.deliver(2, alertMail("救急出動 博多区博多駅前3丁目付近"))
	mb.events <- Event{Kind: EventNewMail}
	waitSaved(t, sink, 1)

	cancel()
	require.NoError(t, <-done)

	reports := sink.snapshot()
	require.Len(t, reports, 2)

	first := reports[0]
	assert.Equal(t, testSender, first.Sender)
	assert.Equal(t, "出動情報", first.Subject)
	assert.Equal(t, "火災出動 中央区天神2丁目3番付近", first.FirstLine)
	assert.Equal(t, domain.DisasterFire, first.DisasterType)
	assert.Equal(t, "中央区天神2丁目3番付近", first.RawAddress)
	assert.Equal(t, coords, first.Location)

	assert.Equal(t, domain.DisasterEmergency, reports[1].DisasterType)

	assert.Equal(t, StateEnded, l.State())
	assert.True(t, mb.closed)
	assert.Equal(t, []string{testSender, testSender}, mb.searches)
	assert.InDelta(t, 2, testutil.ToFloat64(m.MailMessages.WithLabelValues("saved")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.MailboxConnected), 0)
}

func TestListener_UnknownAddressSkipsGeocoding(t *testing.T) {
	mb := newFakeMailbox()
	mb.deliver(1, alertMail("警戒情報 大雨に注意してください"))
	sink := newMemSink()
	l, _ := newTestListener(mb, sink, stubGeocoder{coords: &domain.Coordinates{Latitude: 1}})

	mb.events <- Event{Kind: EventClosed}
	require.NoError(t, l.Run(context.Background()))

	reports := sink.snapshot()
	require.Len(t, reports, 1)
	assert.Equal(t, domain.AddressUnknown, reports[0].RawAddress)
	assert.Equal(t, domain.DisasterAlert, reports[0].DisasterType)
	assert.Nil(t, reports[0].Location)
}

func TestListener_ConnectError(t *testing.T) {
	mb := newFakeMailbox()
	mb.connectErr = errors.New("authentication failed")
	l, _ := newTestListener(mb, newMemSink(), nil)

	err := l.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Equal(t, StateError, l.State())
	assert.Error(t, l.CheckReadiness(context.Background()))
}

func TestListener_ConnectionLost(t *testing.T) {
	mb := newFakeMailbox()
	mb.events <- Event{Kind: EventClosed, Err: errors.New("connection reset")}
	l, _ := newTestListener(mb, newMemSink(), nil)

	err := l.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, StateError, l.State())
	assert.True(t, mb.closed)
}

func TestListener_SearchErrorKeepsListening(t *testing.T) {
	mb := newFakeMailbox()
	mb.searchErr = errors.New("BAD command")
	mb.events <- Event{Kind: EventNewMail}
	mb.events <- Event{Kind: EventClosed}
	l, m := newTestListener(mb, newMemSink(), nil)

	require.NoError(t, l.Run(context.Background()))

	assert.Len(t, mb.searches, 2)
	assert.InDelta(t, 2, testutil.ToFloat64(m.MailCycles), 0)
	assert.Equal(t, StateEnded, l.State())
}

func TestListener_PerMessageFailuresDoNotAbortCycle(t *testing.T) {
	mb := newFakeMailbox()
	mb.deliver(1, alertMail("火災出動 東区箱崎3丁目付近"))
	mb.deliver(2, alertMail("救助出動 南区高宮1丁目付近"))
	mb.events <- Event{Kind: EventClosed}
	sink := newMemSink()
	sink.err = errors.New("database unavailable")
	l, m := newTestListener(mb, sink, nil)

	require.NoError(t, l.Run(context.Background()))

	assert.InDelta(t, 2, testutil.ToFloat64(m.MailMessages.WithLabelValues("sink_error")), 0)
	// Both were fetched, so both are now seen even though neither was saved.
	assert.Empty(t, mb.unread)
}

func TestListener_Readiness(t *testing.T) {
	l, _ := newTestListener(newFakeMailbox(), newMemSink(), nil)
	assert.Equal(t, StateConnecting, l.State())
	assert.Error(t, l.CheckReadiness(context.Background()))

	l.setState(StateReady)
	assert.NoError(t, l.CheckReadiness(context.Background()))
	l.setState(StateProcessing)
	assert.NoError(t, l.CheckReadiness(context.Background()))
	l.setState(StateEnded)
	assert.EqualError(t, l.CheckReadiness(context.Background()), "mail listener is ended")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateError.Terminal())
	assert.False(t, StateProcessing.Terminal())
}
