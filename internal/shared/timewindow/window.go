// Package timewindow holds the inclusive [From, To] range used to scope
// feedback aggregation and analysis runs.
package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWindow is returned when To precedes From or either bound is missing.
var ErrInvalidWindow = errors.New("invalid window")

const dateLayout = "2006-01-02"

// Window is an inclusive time range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects zero bounds and ranges where To is before From.
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidWindow)
	}
	if w.To.Before(w.From) {
		return fmt.Errorf("%w: to %s is before from %s", ErrInvalidWindow, w.To.Format(time.RFC3339), w.From.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Key identifies the window for single-flight bookkeeping.
func (w Window) Key() string {
	return w.From.UTC().Format(time.RFC3339Nano) + "/" + w.To.UTC().Format(time.RFC3339Nano)
}

// UTC returns the window with both bounds converted to UTC.
func (w Window) UTC() Window {
	return Window{From: w.From.UTC(), To: w.To.UTC()}
}

// Parse builds a window from query-string bounds. Each bound is RFC3339 or a
// plain date; a plain-date upper bound covers that whole day.
func Parse(from, to string) (Window, error) {
	start, _, err := parseBound(from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: from: %v", ErrInvalidWindow, err)
	}
	end, dateOnly, err := parseBound(to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: to: %v", ErrInvalidWindow, err)
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	w := Window{From: start, To: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, errors.New("missing")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unrecognized time %q", raw)
	}
	return t.UTC(), true, nil
}
