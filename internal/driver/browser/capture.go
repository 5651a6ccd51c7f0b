package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/colonyops/farepilot/internal/core/uitree"
)

// captureJS clones the document and stamps every element of the clone with
// its on-screen bounds, so the live page is never modified.
const captureJS = `() => {
	const clone = document.documentElement.cloneNode(true);
	const live = document.documentElement.querySelectorAll('*');
	const copy = clone.querySelectorAll('*');
	for (let i = 0; i < live.length && i < copy.length; i++) {
		const r = live[i].getBoundingClientRect();
		copy[i].setAttribute('data-bounds',
			[Math.round(r.left), Math.round(r.top), Math.round(r.right), Math.round(r.bottom)].join(','));
	}
	return {
		html: clone.outerHTML,
		href: location.href,
		width: window.innerWidth,
		height: window.innerHeight,
	};
}`

// capture is the raw result of captureJS.
type capture struct {
	HTML   string `json:"html"`
	Href   string `json:"href"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Capture snapshots the page.
func (d *Driver) Capture(ctx context.Context) (*uitree.Snapshot, error) {
	page, err := d.current()
	if err != nil {
		return nil, err
	}

	res, err := page.Context(ctx).Eval(captureJS)
	if err != nil {
		return nil, fmt.Errorf("browser: capture: %w", err)
	}

	var c capture
	if err := res.Value.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("browser: decode capture: %w", err)
	}
	return c.snapshot(d.cfg.Context, time.Now())
}

// snapshot parses the capture. The context is, in order: the override, the
// farepilot-context meta tag, the page host.
func (c capture) snapshot(override string, at time.Time) (*uitree.Snapshot, error) {
	snap, err := uitree.ParseHTML(strings.NewReader(c.HTML), override)
	if err != nil {
		return nil, err
	}

	if snap.Context == "" {
		if u, err := url.Parse(c.Href); err == nil {
			snap.Context = u.Host
		}
	}
	if c.Width > 0 && c.Height > 0 {
		snap.Screen = uitree.Size{Width: c.Width, Height: c.Height}
	}
	snap.CapturedAt = at
	return snap, nil
}
