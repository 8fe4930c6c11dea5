package scraper

import (
	"context"
	"errors"
)

// ErrScreenshotUnsupported is returned by sessions that cannot render pages.
var ErrScreenshotUnsupported = errors.New("screenshots are not supported by this engine")

// Browser launches scoped browsing sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one live browser instance. Calls are sequential; a session is
// not safe for concurrent use.
type Session interface {
	// Navigate loads url and waits until the page has settled.
	Navigate(ctx context.Context, url string) error
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	// Screenshot captures the current page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// ScreenshotStore persists diagnostic screenshots.
type ScreenshotStore interface {
	// Save stores png under name and returns where it was written.
	Save(ctx context.Context, name string, png []byte) (string, error)
}
