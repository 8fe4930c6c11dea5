package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxLoadAttempts = 5
)

// RecordScraper produces one batch of news records per call. It reports its
// own failures and never returns an error.
type RecordScraper interface {
	Run(ctx context.Context) []domain.NormalizedRecord
}

// RecordLoader writes a batch of records to the destination.
type RecordLoader interface {
	LoadRecords(ctx context.Context, records []domain.NormalizedRecord) error
}

// Pipeline runs the scraper on a fixed interval and loads each batch.
type Pipeline struct {
	scraper  RecordScraper
	loader   RecordLoader
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	interval time.Duration
	ready    atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for the interval and load backoff.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline that scrapes every interval.
func New(s RecordScraper, l RecordLoader, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		scraper:  s,
		loader:   l,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		interval: interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready reports whether at least one scrape run has completed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once the first scrape run has completed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a scrape run yet")
	}
	return nil
}

// Run scrapes immediately, then once per interval, until the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		p.runOnce(ctx)

		if !sleepWithContext(ctx, p.clock, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runOnce performs one scrape and load.
func (p *Pipeline) runOnce(ctx context.Context) {
	records := p.scraper.Run(ctx)
	p.metrics.BatchSize.Observe(float64(len(records)))

	switch {
	case ctx.Err() != nil:
		p.logger.Warn("scrape interrupted, batch not loaded", "records", len(records))
		return
	case len(records) == 0:
		p.logger.Info("scrape produced no records")
	default:
		p.load(ctx, records)
	}
	p.ready.Store(true)
}

// load writes the batch, backing off between failed attempts. The batch is
// dropped after maxLoadAttempts failures or on cancellation.
func (p *Pipeline) load(ctx context.Context, records []domain.NormalizedRecord) {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		err := p.loader.LoadRecords(ctx, records)
		if err == nil {
			p.metrics.RecordsLoaded.Add(float64(len(records)))
			p.logger.Info("records loaded", "count", len(records))
			return
		}

		p.metrics.LoadErrors.Inc()
		p.logger.Error("load records failed", "error", err, "batch_size", len(records), "attempt", attempt)

		if attempt >= maxLoadAttempts {
			p.logger.Error("dropping batch after repeated load failures", "batch_size", len(records))
			return
		}
		if !sleepWithContext(ctx, p.clock, backoff) {
			return
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
