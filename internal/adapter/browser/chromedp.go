// Package browser provides scraper.Browser implementations: a headless
// Chrome driven over the DevTools protocol, and a plain HTTP engine for
// sites that render server-side.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/couchcryptid/incident-ingest-service/internal/scraper"
)

// idleEvent is the lifecycle event fired once at most two connections
// have been in flight for 500ms.
const idleEvent = "networkAlmostIdle"

// Chrome launches headless Chrome instances.
type Chrome struct {
	userAgent  string
	navTimeout time.Duration
	execPath   string
}

// NewChrome returns a Chrome engine. An empty execPath lets chromedp find
// the browser on PATH.
func NewChrome(userAgent string, navTimeout time.Duration, execPath string) *Chrome {
	return &Chrome{userAgent: userAgent, navTimeout: navTimeout, execPath: execPath}
}

// Open starts a browser process with one tab. The process lives until the
// session is closed or ctx is cancelled.
func (c *Chrome) Open(ctx context.Context) (scraper.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(c.userAgent),
		chromedp.WindowSize(1280, 1024),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  c.navTimeout,
	}, nil
}

type chromeSession struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	navTimeout  time.Duration
}

// scoped derives a tab context that ends with ctx or after timeout.
func (s *chromeSession) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.scoped(ctx, s.navTimeout)
	defer cancel()

	mainFrame := mainFrameID(runCtx)
	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(runCtx, func(ev any) {
		if isMainFrameIdle(ev, mainFrame) {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	if err := chromedp.Run(runCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	select {
	case <-idle:
		return nil
	case <-runCtx.Done():
		return fmt.Errorf("navigate %s: waiting for network idle: %w", url, runCtx.Err())
	}
}

// mainFrameID returns the top-level frame of the tab, whose ID equals the
// target ID.
func mainFrameID(ctx context.Context) cdp.FrameID {
	if c := chromedp.FromContext(ctx); c != nil && c.Target != nil {
		return cdp.FrameID(c.Target.TargetID)
	}
	return ""
}

// isMainFrameIdle reports whether ev is the idle lifecycle event of the main
// frame. Idle events from iframes are ignored; with an unknown main frame any
// frame is accepted.
func isMainFrameIdle(ev any, mainFrame cdp.FrameID) bool {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || e.Name != idleEvent {
		return false
	}
	return mainFrame == "" || e.FrameID == mainFrame
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.scoped(ctx, s.navTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.scoped(ctx, s.navTimeout)
	defer cancel()

	var buf []byte
	// Quality 100 encodes PNG.
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the browser down gracefully, then releases the allocator.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.cancelTab()
	s.cancelAlloc()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
