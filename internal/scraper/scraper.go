// Package scraper collects recent news articles from listing pages and
// enriches them with their full body text.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/couchcryptid/incident-ingest-service/internal/retry"
	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-runewidth"
)

// logTitleWidth is the display width titles are truncated to in logs.
const logTitleWidth = 40

// Scraper runs the two-phase listing and enrichment pipeline.
type Scraper struct {
	browser     Browser
	sources     []Source
	store       ScreenshotStore
	listing     *retry.Executor
	detail      *retry.Executor
	clock       clockwork.Clock
	loc         *time.Location
	maxArticles int
	detailDelay time.Duration
	recencyDays int
	readability bool
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithSources replaces the default source list.
func WithSources(sources ...Source) Option {
	return func(s *Scraper) { s.sources = sources }
}

// WithScreenshotStore captures a screenshot of every listing page.
func WithScreenshotStore(store ScreenshotStore) Option {
	return func(s *Scraper) { s.store = store }
}

// WithClock sets the clock used for recency cutoffs and detail delays.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scraper) { s.clock = c }
}

// WithLocation sets the calendar used for the recency window.
func WithLocation(loc *time.Location) Option {
	return func(s *Scraper) { s.loc = loc }
}

// WithMaxArticles bounds how many candidates are revisited for their body.
func WithMaxArticles(n int) Option {
	return func(s *Scraper) { s.maxArticles = n }
}

// WithDetailDelay sets the pause between consecutive detail visits.
func WithDetailDelay(d time.Duration) Option {
	return func(s *Scraper) { s.detailDelay = d }
}

// WithRecencyDays widens the recency window to n previous calendar days.
func WithRecencyDays(n int) Option {
	return func(s *Scraper) { s.recencyDays = n }
}

// WithReadabilityFallback tries readability when the body selectors find nothing.
func WithReadabilityFallback(enabled bool) Option {
	return func(s *Scraper) { s.readability = enabled }
}

// WithPolicies overrides the retry policies for listing and detail pages.
func WithPolicies(listing, detail retry.Policy) Option {
	return func(s *Scraper) {
		s.listing = s.listing.WithPolicy(listing)
		s.detail = s.detail.WithPolicy(detail)
	}
}

// New creates a Scraper for the default source. The executor supplies the
// logger, clock and metrics for retries; its policy is replaced by the
// listing (3 retries from 2s) and detail (2 retries from 1.5s) policies.
func New(browser Browser, retrier *retry.Executor, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		browser:     browser,
		sources:     []Source{DefaultSource()},
		listing:     retrier.WithPolicy(retry.Policy{MaxRetries: 3, InitialDelay: 2 * time.Second}),
		detail:      retrier.WithPolicy(retry.Policy{MaxRetries: 2, InitialDelay: 1500 * time.Millisecond}),
		clock:       clockwork.NewRealClock(),
		loc:         time.UTC,
		maxArticles: 10,
		detailDelay: time.Second,
		recencyDays: 1,
		metrics:     metrics,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes every source and returns the resulting records. Failures are
// logged and never returned; a run that cannot start a browser yields an
// empty list.
func (s *Scraper) Run(ctx context.Context) []domain.NormalizedRecord {
	start := s.clock.Now()

	records, err := s.scrape(ctx)
	if err != nil {
		s.logger.Error("scrape failed", "error", err)
		s.metrics.ScrapeRuns.WithLabelValues("failed").Inc()
		return []domain.NormalizedRecord{}
	}

	s.metrics.ScrapeRuns.WithLabelValues("success").Inc()
	s.metrics.ScrapeDuration.Observe(s.clock.Since(start).Seconds())
	s.logger.Info("scrape complete", "records", len(records), "duration", s.clock.Since(start))
	return records
}

func (s *Scraper) scrape(ctx context.Context) ([]domain.NormalizedRecord, error) {
	session, err := retry.Do(ctx, s.listing, "browser_launch", s.browser.Open)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("browser close failed", "error", err)
		}
	}()

	now := s.clock.Now()
	cutoff := domain.RecencyCutoff(now, s.loc, s.recencyDays)

	records := []domain.NormalizedRecord{}
	for _, src := range s.sources {
		candidates := s.collectCandidates(ctx, session, src, now, cutoff)
		records = append(records, s.enrich(ctx, session, src, candidates)...)
	}
	return records, nil
}

// collectCandidates runs phase A for one source. A page that cannot be
// loaded or read is skipped.
func (s *Scraper) collectCandidates(ctx context.Context, session Session, src Source, now, cutoff time.Time) []domain.ArticleCandidate {
	var all []domain.ArticleCandidate

	for i, pageURL := range src.ListingURLs {
		if ctx.Err() != nil {
			break
		}
		logger := s.logger.With("source", src.Name, "page", i+1, "url", pageURL)

		err := retry.Run(ctx, s.listing, "listing_navigate", func(ctx context.Context) error {
			return session.Navigate(ctx, pageURL)
		})
		if err != nil {
			logger.Error("listing page unavailable, skipping", "error", err)
			continue
		}

		s.captureScreenshot(ctx, session, fmt.Sprintf("%s-page-%d.png", sourceSlug(src), i+1), logger)

		res, err := retry.Do(ctx, s.listing, "listing_extract", func(ctx context.Context) (ListingResult, error) {
			page, err := session.HTML(ctx)
			if err != nil {
				return ListingResult{}, err
			}
			return ExtractCandidates(page, src, now, s.loc)
		})
		if err != nil {
			logger.Error("listing extraction failed, skipping", "error", err)
			continue
		}

		recent := domain.FilterRecent(res.Candidates, cutoff)
		logger.Info("listing page read",
			"found", len(res.Candidates),
			"recent", len(recent),
			"unparsable_time", res.Skipped,
		)
		all = append(all, recent...)
	}

	s.metrics.ArticlesListed.Add(float64(len(all)))
	return all
}

// enrich runs phase B: the first maxArticles candidates are visited in
// order, one at a time, with detailDelay between visits.
func (s *Scraper) enrich(ctx context.Context, session Session, src Source, candidates []domain.ArticleCandidate) []domain.NormalizedRecord {
	visits := min(len(candidates), s.maxArticles)
	records := make([]domain.NormalizedRecord, 0, len(candidates))

	for i, c := range candidates {
		if i >= visits || ctx.Err() != nil {
			records = append(records, domain.PromoteCandidate(c, ""))
			s.metrics.ArticlesEnriched.WithLabelValues("fallback").Inc()
			continue
		}

		body := s.fetchBody(ctx, session, src, c, i+1, visits)
		result := "detail"
		if body == "" {
			result = "fallback"
		}
		s.metrics.ArticlesEnriched.WithLabelValues(result).Inc()
		records = append(records, domain.PromoteCandidate(c, body))

		if i+1 < visits {
			// A cancelled wait leaves the remaining candidates on their fallback body.
			s.sleep(ctx, s.detailDelay)
		}
	}
	return records
}

// fetchBody returns the article text for one candidate, or "" when the
// detail page cannot be loaded or yields nothing.
func (s *Scraper) fetchBody(ctx context.Context, session Session, src Source, c domain.ArticleCandidate, n, total int) string {
	logger := s.logger.With(
		"article", fmt.Sprintf("%d/%d", n, total),
		"title", runewidth.Truncate(c.Title, logTitleWidth, "…"),
		"url", c.URL,
	)

	err := retry.Run(ctx, s.detail, "detail_navigate", func(ctx context.Context) error {
		return session.Navigate(ctx, c.URL)
	})
	if err != nil {
		logger.Error("article page unavailable, using listing description", "error", err)
		return ""
	}

	var page string
	body, err := retry.Do(ctx, s.detail, "detail_extract", func(ctx context.Context) (string, error) {
		html, err := session.HTML(ctx)
		if err != nil {
			return "", err
		}
		page = html
		return ExtractArticleBody(html, src.Selectors)
	})
	if err != nil {
		logger.Error("article extraction failed, using listing description", "error", err)
		return ""
	}

	if body == "" && s.readability && page != "" {
		text, err := ExtractReadableText(page, c.URL)
		if err != nil {
			logger.Debug("readability fallback failed", "error", err)
		}
		body = text
	}

	if body == "" {
		logger.Warn("article body empty, using listing description")
		return ""
	}
	logger.Debug("article body extracted", "chars", len([]rune(body)))
	return body
}

func (s *Scraper) captureScreenshot(ctx context.Context, session Session, name string, logger *slog.Logger) {
	if s.store == nil {
		return
	}
	png, err := session.Screenshot(ctx)
	if err != nil {
		if !errors.Is(err, ErrScreenshotUnsupported) {
			logger.Warn("screenshot failed", "error", err)
		}
		return
	}
	location, err := s.store.Save(ctx, name, png)
	if err != nil {
		logger.Warn("screenshot save failed", "error", err)
		return
	}
	logger.Debug("screenshot saved", "location", location)
}

func (s *Scraper) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.Chan():
	}
}

// sourceSlug names screenshot files after the source host.
func sourceSlug(src Source) string {
	u, err := url.Parse(src.BaseURL)
	if err != nil || u.Hostname() == "" {
		return "source"
	}
	return strings.ReplaceAll(u.Hostname(), ".", "-")
}
