// Package extract turns a list item subtree into a record. Strategies are
// tried in priority order; each reports its own confidence tier.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules configures where and how fields are read from an item.
type Rules struct {
	ScheduleID string
	RouteID    string
	FareID     string

	Delimiter string // separates time and category in the schedule field
	Arrow     string // separates origin and destination

	PricePattern string // first capture group (or whole match) holds the digits
	TimePattern  string
	RoutePattern string // two capture groups: origin, destination

	CurrencyMarkers []string
	FeeMarkers      []string

	MinSegmentLength int
}

// DefaultRules returns rules matching the stock list layout.
func DefaultRules() Rules {
	return Rules{
		ScheduleID:       "tv_schedule",
		RouteID:          "tv_route",
		FareID:           "tv_fare",
		Delimiter:        "·",
		Arrow:            "→",
		PricePattern:     `([0-9][0-9,]*)`,
		TimePattern:      `\b(?:[01]?\d|2[0-3]):[0-5]\d\b`,
		RoutePattern:     `^\s*(.+?)\s*(?:→|->|➝|~)\s*(.+?)\s*$`,
		CurrencyMarkers:  []string{"₩", "원", "KRW"},
		FeeMarkers:       []string{"Fare", "요금", "fee"},
		MinSegmentLength: 2,
	}
}

// compiled holds the parsed patterns shared by the strategies.
type compiled struct {
	Rules
	price *regexp.Regexp
	time  *regexp.Regexp
	route *regexp.Regexp
}

func compile(r Rules) (*compiled, error) {
	c := &compiled{Rules: r}

	var err error
	if c.price, err = regexp.Compile(r.PricePattern); err != nil {
		return nil, fmt.Errorf("price pattern: %w", err)
	}
	if c.time, err = regexp.Compile(r.TimePattern); err != nil {
		return nil, fmt.Errorf("time pattern: %w", err)
	}
	if c.route, err = regexp.Compile(r.RoutePattern); err != nil {
		return nil, fmt.Errorf("route pattern: %w", err)
	}
	if c.route.NumSubexp() < 2 {
		return nil, fmt.Errorf("route pattern needs two capture groups, has %d", c.route.NumSubexp())
	}

	return c, nil
}

// Validate compiles the patterns and reports the first problem.
func (r Rules) Validate() error {
	_, err := compile(r)
	return err
}

// parsePrice extracts an integer amount from s. It returns 0 when nothing
// numeric matches.
func (c *compiled) parsePrice(s string) int {
	m := c.price.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	raw := m[0]
	if len(m) > 1 && m[1] != "" {
		raw = m[1]
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// splitSchedule separates the time from the category label. The time is
// whatever the time pattern matches; the category is the remaining
// delimiter-separated text.
func (c *compiled) splitSchedule(s string) (at, category string) {
	at = c.time.FindString(s)

	var rest []string
	parts := []string{s}
	if c.Delimiter != "" {
		parts = strings.Split(s, c.Delimiter)
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if at != "" {
			p = strings.TrimSpace(strings.Replace(p, at, "", 1))
		}
		if p != "" {
			rest = append(rest, p)
		}
	}
	return at, strings.Join(rest, " ")
}

// splitRoute reads origin and destination from s, first on the arrow glyph
// and then with the route pattern.
func (c *compiled) splitRoute(s string) (origin, dest, via string, ok bool) {
	if origin, dest, ok = c.splitArrow(s); ok {
		return origin, dest, "arrow", true
	}
	if origin, dest, ok = c.matchRoute(s); ok {
		return origin, dest, "pattern", true
	}
	return "", "", "", false
}

func (c *compiled) splitArrow(s string) (string, string, bool) {
	if c.Arrow == "" {
		return "", "", false
	}
	o, d, found := strings.Cut(s, c.Arrow)
	o, d = strings.TrimSpace(o), strings.TrimSpace(d)
	if !found || o == "" || d == "" {
		return "", "", false
	}
	return o, d, true
}

func (c *compiled) matchRoute(s string) (string, string, bool) {
	m := c.route.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	o, d := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if o == "" || d == "" {
		return "", "", false
	}
	return o, d, true
}

// isFareSegment reports whether s carries both a currency and a fee marker.
func (c *compiled) isFareSegment(s string) bool {
	return containsAny(s, c.CurrencyMarkers) && containsAny(s, c.FeeMarkers)
}

// qualifies reports whether s can stand in as a place name: long enough,
// has letters and is not a time.
func (c *compiled) qualifies(s string) bool {
	if utf8.RuneCountInString(s) < c.MinSegmentLength {
		return false
	}
	if c.time.MatchString(s) {
		return false
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func containsAny(s string, subs []string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(ls, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
