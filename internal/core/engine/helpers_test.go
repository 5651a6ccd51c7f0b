package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/colonyops/farepilot/internal/core/extract"
	"github.com/colonyops/farepilot/internal/core/filter"
	"github.com/colonyops/farepilot/internal/core/uitree"
)

const testContext = "com.example.driver"

var screens = map[string]string{
	"list": `<body data-bounds="0,0,1080,2400">
  <div id="toolbar"><span>Call list</span><button id="btn_refresh" data-bounds="900,40,1060,120">Refresh</button></div>
  <ul id="call_list" data-bounds="0,200,1080,1200">
    <li id="call_0" data-clickable="true" data-bounds="0,200,1080,400">
      <span id="tv_schedule">14:30 · Reservation</span>
      <span id="tv_route">Gangnam Station → Airport Terminal 2</span>
      <span id="tv_fare">Fare ₩16,000</span>
    </li>
    <li id="call_1" data-clickable="true" data-bounds="0,400,1080,600">
      <span id="tv_schedule">15:00 · Reservation</span>
      <span id="tv_route">Seoul Station → Airport Terminal 1</span>
      <span id="tv_fare">Fare ₩42,000</span>
    </li>
    <li id="call_2" data-clickable="true" data-bounds="0,600,1080,800">
      <span id="tv_schedule">15:10 · Hourly</span>
      <span id="tv_route">Jamsil → Airport Terminal 1</span>
      <span id="tv_fare">Fare ₩90,000</span>
    </li>
  </ul>
</body>`,
	"detail": `<body data-bounds="0,0,1080,2400">
  <h1>Call detail</h1>
  <button id="btn_accept" data-bounds="100,2000,980,2200">Accept</button>
</body>`,
	"confirm": `<body data-bounds="0,0,1080,2400">
  <h1>Call detail</h1>
  <div role="dialog"><span>Take this call?</span>
    <button id="btn_confirm" data-bounds="600,1300,900,1400">Confirm</button>
  </div>
</body>`,
	"waiting": `<body data-bounds="0,0,1080,2400"><h1>Call detail</h1><span>Connecting</span></body>`,
	"taken": `<body data-bounds="0,0,1080,2400">
  <h1>Call detail</h1>
  <div role="dialog"><span>This call was already assigned</span>
    <button id="btn_dismiss" data-bounds="400,1300,700,1400">Close</button>
  </div>
</body>`,
	"other": `<body data-bounds="0,0,1080,2400"><span>Settings</span></body>`,
	"rows": `<body data-bounds="0,0,1080,2400">
  <div id="toolbar"><span>Call list</span></div>
  <ul id="call_list" data-bounds="0,200,1080,1200">
    <li id="row" data-clickable="true" data-bounds="0,200,1080,400">
      <span id="tv_schedule">15:20 · Reservation</span>
      <span id="tv_route">Jamsil → Downtown</span>
      <span id="tv_fare">Fare ₩5,000</span>
    </li>
    <li id="row" data-clickable="true" data-bounds="0,400,1080,600">
      <span id="tv_schedule">15:00 · Reservation</span>
      <span id="tv_route">Seoul Station → Airport Terminal 1</span>
      <span id="tv_fare">Fare ₩42,000</span>
    </li>
  </ul>
</body>`,
	"rows-swapped": `<body data-bounds="0,0,1080,2400">
  <div id="toolbar"><span>Call list</span></div>
  <ul id="call_list" data-bounds="0,200,1080,1200">
    <li id="row" data-clickable="true" data-bounds="0,200,1080,400">
      <span id="tv_schedule">15:00 · Reservation</span>
      <span id="tv_route">Seoul Station → Airport Terminal 1</span>
      <span id="tv_fare">Fare ₩42,000</span>
    </li>
    <li id="row" data-clickable="true" data-bounds="0,400,1080,600">
      <span id="tv_schedule">15:20 · Reservation</span>
      <span id="tv_route">Jamsil → Downtown</span>
      <span id="tv_fare">Fare ₩5,000</span>
    </li>
  </ul>
</body>`,
	"rows-gone": `<body data-bounds="0,0,1080,2400">
  <div id="toolbar"><span>Call list</span></div>
  <ul id="call_list" data-bounds="0,200,1080,1200">
    <li id="row" data-clickable="true" data-bounds="0,200,1080,400">
      <span id="tv_schedule">15:20 · Reservation</span>
      <span id="tv_route">Jamsil → Downtown</span>
      <span id="tv_fare">Fare ₩5,000</span>
    </li>
  </ul>
</body>`,
}

func screen(t *testing.T, name string) *uitree.Snapshot {
	t.Helper()
	src, ok := screens[name]
	require.True(t, ok, "unknown screen %s", name)
	snap, err := uitree.ParseHTML(strings.NewReader("<html>"+src+"</html>"), testContext)
	require.NoError(t, err)
	return snap
}

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, running due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errSoft = errors.New("input not delivered")

// fakeDevice delivers input against a set of named screens. Clicking a
// node whose ID is in routes swaps the submitted snapshot.
type fakeDevice struct {
	t      *testing.T
	submit func(*uitree.Snapshot)
	routes map[string]string
	back   string
	cur    *uitree.Snapshot

	activateErr error
	tapErr      error
	privErr     error
	backErr     error

	activations int
	taps        int
	privTaps    int
	backs       int
	clicked     []string
	activated   []*uitree.Node
}

func (d *fakeDevice) show(name string) {
	d.cur = screen(d.t, name)
	if d.submit != nil {
		d.submit(d.cur)
	}
}

func (d *fakeDevice) hit(id string) {
	d.clicked = append(d.clicked, id)
	if next, ok := d.routes[id]; ok {
		d.show(next)
	}
}

func (d *fakeDevice) Activate(_ context.Context, n *uitree.Node) error {
	d.activations++
	if d.activateErr != nil {
		return d.activateErr
	}
	d.activated = append(d.activated, n)
	d.hit(n.ID)
	return nil
}

func (d *fakeDevice) SyntheticTap(_ context.Context, x, y int) error {
	d.taps++
	if d.tapErr != nil {
		return d.tapErr
	}
	if d.cur != nil {
		if n := nodeAt(d.cur.Root, x, y); n != nil {
			d.hit(n.ID)
		}
	}
	return nil
}

func (d *fakeDevice) PrivilegedTap(_ context.Context, x, y int) error {
	d.privTaps++
	if d.privErr != nil {
		return d.privErr
	}
	return d.SyntheticTap(context.Background(), x, y)
}

func (d *fakeDevice) NavigateBack(context.Context) error {
	d.backs++
	if d.backErr != nil {
		return d.backErr
	}
	if d.back != "" {
		d.show(d.back)
	}
	return nil
}

func (d *fakeDevice) ScreenSize() uitree.Size { return uitree.Size{Width: 1080, Height: 2400} }

// nodeAt returns the deepest actionable node containing the point.
func nodeAt(root *uitree.Node, x, y int) *uitree.Node {
	var found *uitree.Node
	root.Walk(func(n *uitree.Node) bool {
		b := n.Bounds
		if n.Actionable() && x >= b.Left && x < b.Right && y >= b.Top && y < b.Bottom {
			found = n
		}
		return true
	})
	return found
}

func testFilters() filter.Config {
	cfg := filter.Default()
	cfg.Keywords = []string{"Airport"}
	return cfg
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Context = testContext
	opts.ConfirmWaitTicks = 3
	return opts
}

func newTestEnv(t *testing.T, opts Options) *env {
	t.Helper()
	chain, err := extract.New(extract.DefaultRules(), extract.ModeFirst)
	require.NoError(t, err)
	return &env{
		opts:        opts,
		chain:       chain,
		filters:     StaticFilters(testFilters()),
		instruments: nopInstruments{},
		rand:        func() float64 { return 0 },
		clock:       newFakeClock(),
		log:         zerolog.Nop(),
		refreshLog:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}
