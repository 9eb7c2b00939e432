package rotate

import (
	"fmt"
	"strings"
	"time"

	"github.com/raoulx24/log-archiver/internal/naming"
)

// When is a time-based rotation rule.
type When struct {
	name  string
	every time.Duration
}

var (
	Midnight = When{name: "midnight"}
	Hourly   = When{name: "hourly"}
	Never    = When{name: "never"}
)

// ParseWhen accepts "midnight", "daily", "hourly", "never" or a Go duration
// of at least one second. Empty means midnight.
func ParseWhen(s string) (When, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "midnight", "daily":
		return Midnight, nil
	case "hourly":
		return Hourly, nil
	case "never", "none", "off":
		return Never, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return When{}, fmt.Errorf("unknown rotation interval %q", s)
	}
	// rotated names carry seconds at most
	if d < time.Second {
		return When{}, fmt.Errorf("rotation interval %s is below one second", d)
	}
	return When{name: d.String(), every: d}, nil
}

func (w When) String() string { return w.name }

// Next returns the first boundary after t, or the zero time for Never.
func (w When) Next(t time.Time) time.Time {
	y, m, d := t.Date()
	switch {
	case w.every > 0:
		return t.Add(w.every)
	case w == Midnight:
		return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	case w == Hourly:
		return time.Date(y, m, d, t.Hour()+1, 0, 0, 0, t.Location())
	default:
		return time.Time{}
	}
}

// Granularity is the timestamp resolution of names produced by time-based
// rotation. One file per day only needs the date.
func (w When) Granularity() naming.Granularity {
	if w == Midnight {
		return naming.Date
	}
	return naming.DateTime
}
