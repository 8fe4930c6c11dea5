package browser

import (
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
)

func TestIsMainFrameIdle(t *testing.T) {
	const main cdp.FrameID = "MAIN"

	tests := []struct {
		name      string
		ev        any
		mainFrame cdp.FrameID
		want      bool
	}{
		{"main frame idle", &page.EventLifecycleEvent{FrameID: main, Name: idleEvent}, main, true},
		{"iframe idle", &page.EventLifecycleEvent{FrameID: "AD-IFRAME", Name: idleEvent}, main, false},
		{"main frame load", &page.EventLifecycleEvent{FrameID: main, Name: "load"}, main, false},
		{"unknown main frame", &page.EventLifecycleEvent{FrameID: "ANY", Name: idleEvent}, "", true},
		{"other event", &network.EventLoadingFinished{}, main, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMainFrameIdle(tt.ev, tt.mainFrame))
		})
	}
}
