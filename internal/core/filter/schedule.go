package filter

import (
	"fmt"
	"strings"
	"time"
)

// rollover is how far in the past a bare time of day may be before it is
// read as tomorrow.
const rollover = 12 * time.Hour

var scheduleLayouts = []struct {
	layout  string
	hasYear bool
	hasDate bool
}{
	{"2006-01-02 15:04", true, true},
	{"2006/01/02 15:04", true, true},
	{"01/02 15:04", false, true},
	{"01-02 15:04", false, true},
	{"01.02 15:04", false, true},
	{"15:04", false, false},
}

// ResolveScheduled turns a scheduled time string into an absolute time in
// now's location. Missing date parts come from now; a bare time of day more
// than 12h in the past is taken as the next day.
func ResolveScheduled(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := now.Location()

	for _, l := range scheduleLayouts {
		t, err := time.ParseInLocation(l.layout, s, loc)
		if err != nil {
			continue
		}

		switch {
		case l.hasYear:
			return t, nil
		case l.hasDate:
			return time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
		default:
			at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
			if at.Before(now.Add(-rollover)) {
				at = at.AddDate(0, 0, 1)
			}
			return at, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised scheduled time %q", s)
}
