// Package browser drives the target through a Chrome instance: it captures
// the page as a uitree snapshot and delivers clicks and taps back to it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"github.com/colonyops/farepilot/internal/core/engine"
	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

// Config configures the driver.
type Config struct {
	// URL is opened after the page is created. Empty keeps the current page
	// when attaching to a remote browser.
	URL string

	// RemoteURL is the DevTools websocket of a running browser. Empty
	// launches a local one.
	RemoteURL string

	Headless bool
	Stealth  bool

	// Context overrides the snapshot context. Empty reads the
	// farepilot-context meta tag, then the page host.
	Context string

	Screen uitree.Size

	// Privileged enables touch injection for PrivilegedTap. When false the
	// channel reports engine.ErrPrivilegedDenied.
	Privileged bool

	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
}

func (c *Config) defaults() {
	if c.Screen.Width == 0 || c.Screen.Height == 0 {
		c.Screen = uitree.Size{Width: 1080, Height: 2400}
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 2 * time.Second
	}
}

// Driver owns the browser and the page the engine works on. It implements
// engine.Device.
type Driver struct {
	cfg  Config
	log  zerolog.Logger
	lnch *launcher.Launcher

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

var _ engine.Device = (*Driver)(nil)

// Open launches or attaches to a browser and prepares the page.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	cfg.defaults()
	d := &Driver{cfg: cfg, log: logging.Component("browser")}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		d.lnch = l
		d.log.Info().Str("url", wsURL).Bool("headless", cfg.Headless).Msg("launched local browser")
	} else {
		d.log.Info().Str("url", wsURL).Msg("attaching to remote browser")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	d.browser = b

	page, err := d.openPage(b)
	if err != nil {
		d.cleanup()
		return nil, err
	}
	d.page = page

	if err := d.prepare(ctx); err != nil {
		d.cleanup()
		return nil, err
	}
	return d, nil
}

func (d *Driver) openPage(b *rod.Browser) (*rod.Page, error) {
	if d.cfg.RemoteURL != "" && d.cfg.URL == "" {
		pages, err := b.Pages()
		if err == nil && len(pages) > 0 {
			return pages.First(), nil
		}
	}

	var (
		page *rod.Page
		err  error
	)
	if d.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	return page, nil
}

func (d *Driver) prepare(ctx context.Context) error {
	err := d.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.Screen.Width,
		Height:            d.cfg.Screen.Height,
		DeviceScaleFactor: 1,
		Mobile:            true,
	})
	if err != nil {
		return fmt.Errorf("browser: set viewport: %w", err)
	}

	if d.cfg.Privileged {
		if err := (proto.EmulationSetTouchEmulationEnabled{Enabled: true}).Call(d.page); err != nil {
			return fmt.Errorf("browser: enable touch: %w", err)
		}
	}

	if d.cfg.URL == "" {
		return nil
	}

	navCtx, cancel := context.WithTimeout(ctx, d.cfg.NavigateTimeout)
	defer cancel()

	if err := d.page.Context(navCtx).Navigate(d.cfg.URL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", d.cfg.URL, err)
	}
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.log.Warn().Err(err).Str("url", d.cfg.URL).Msg("wait load timeout")
	}
	return nil
}

// Close shuts the page and the browser down. An attached remote browser is
// left running.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup()
	return nil
}

func (d *Driver) cleanup() {
	if d.browser != nil && d.lnch != nil {
		_ = d.browser.Close()
	}
	d.browser = nil
	d.page = nil
	if d.lnch != nil {
		d.lnch.Cleanup()
		d.lnch = nil
	}
}

func (d *Driver) current() (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, errors.New("browser: closed")
	}
	return d.page, nil
}

// ScreenSize reports the emulated viewport.
func (d *Driver) ScreenSize() uitree.Size { return d.cfg.Screen }

// Activate clicks the element a snapshot node was captured from. A node
// whose element is gone reports engine.ErrSnapshotInvalidated.
func (d *Driver) Activate(ctx context.Context, node *uitree.Node) error {
	if node == nil || node.Handle == "" {
		return errors.New("browser: node has no handle")
	}
	page, err := d.current()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()
	p := page.Context(ctx)

	has, el, err := p.Has(node.Handle)
	if err != nil {
		return fmt.Errorf("browser: locate %s: %w", node.Handle, err)
	}
	if !has {
		return fmt.Errorf("browser: %s: %w", node.Handle, engine.ErrSnapshotInvalidated)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", node.Handle, err)
	}
	return nil
}

// SyntheticTap sends a mouse click at page coordinates.
func (d *Driver) SyntheticTap(ctx context.Context, x, y int) error {
	page, err := d.current()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()
	p := page.Context(ctx)

	if err := p.Mouse.MoveTo(proto.Point{X: float64(x), Y: float64(y)}); err != nil {
		return fmt.Errorf("browser: move to %d,%d: %w", x, y, err)
	}
	if err := p.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %d,%d: %w", x, y, err)
	}
	return nil
}

// PrivilegedTap injects a touch tap. It is refused unless the driver was
// opened with Privileged set.
func (d *Driver) PrivilegedTap(ctx context.Context, x, y int) error {
	if !d.cfg.Privileged {
		return engine.ErrPrivilegedDenied
	}
	page, err := d.current()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()

	if err := page.Context(ctx).Touch.Tap(float64(x), float64(y)); err != nil {
		return fmt.Errorf("browser: touch %d,%d: %w", x, y, err)
	}
	return nil
}

// NavigateBack goes one step back in the page history.
func (d *Driver) NavigateBack(ctx context.Context) error {
	page, err := d.current()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()

	if err := page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("browser: back: %w", err)
	}
	return nil
}
