// Package dates provides day-granularity date ranges for expanding a
// requested download window into individual partition days.
package dates

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// Layout is the ISO calendar date form used in partition paths and on
// the command line.
const Layout = "2006-01-02"

// ErrInvalidRange reports a range whose start falls after its end.
var ErrInvalidRange = errors.New("invalid date range: start after end")

// ParseDay parses an ISO calendar date into a UTC-midnight time.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Day truncates a time to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds an inclusive day range, failing with ErrInvalidRange
// when start is after end.
func NewRange(start, end time.Time) (Range, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			start.Format(Layout), end.Format(Layout))
	}
	return Range{Start: start, End: end}, nil
}

// SingleDay is the one-day range for d.
func SingleDay(d time.Time) Range {
	d = Day(d)
	return Range{Start: d, End: d}
}

// Days iterates every calendar day in the range, ascending. The
// sequence is finite and restartable: each call to range over it
// starts again from Start.
func (r Range) Days() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

// DayCount is the number of days Days yields.
func (r Range) DayCount() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// OutsideAvailable reports whether the range extends beyond the
// available [min, max] span. Advisory only: callers proceed anyway and
// let individual day misses surface per target.
func (r Range) OutsideAvailable(min, max time.Time) bool {
	return r.Start.Before(Day(min)) || r.End.After(Day(max))
}

func (r Range) String() string {
	return r.Start.Format(Layout) + ".." + r.End.Format(Layout)
}
