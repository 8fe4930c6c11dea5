package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/scraper"
	"github.com/gocolly/colly"
)

// HTTP fetches pages without executing scripts. It cannot take screenshots.
type HTTP struct {
	userAgent string
	timeout   time.Duration
}

// NewHTTP returns an engine that fetches pages with colly.
func NewHTTP(userAgent string, timeout time.Duration) *HTTP {
	return &HTTP{userAgent: userAgent, timeout: timeout}
}

// Open prepares a collector; nothing is fetched until Navigate.
func (h *HTTP) Open(context.Context) (scraper.Session, error) {
	c := colly.NewCollector(
		colly.UserAgent(h.userAgent),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(h.timeout)

	return &httpSession{collector: c}, nil
}

type httpSession struct {
	collector *colly.Collector

	mu   sync.Mutex
	body string
}

// Navigate fetches url synchronously. Non-2xx responses are errors.
func (s *httpSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body []byte
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	if err := c.Visit(url); err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	c.Wait()

	s.mu.Lock()
	s.body = string(body)
	s.mu.Unlock()
	return nil
}

func (s *httpSession) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, nil
}

func (s *httpSession) Screenshot(context.Context) ([]byte, error) {
	return nil, scraper.ErrScreenshotUnsupported
}

func (s *httpSession) Close() error { return nil }
