// Package existence describes the time interval during which a body is defined.
package existence

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// J2000 is the epoch simulation time is counted from.
var J2000 = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// ErrInvalidWindow is returned when a window's start lies after its end.
var ErrInvalidWindow = errors.New("existence start is after end")

var layouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339Nano,
}

// Window is the closed interval [Start, End] in seconds past J2000.
type Window struct {
	Start float64
	End   float64
}

// New returns a window, rejecting start > end.
func New(start, end float64) (Window, error) {
	if start > end {
		return Window{}, fmt.Errorf("%w: %v > %v", ErrInvalidWindow, start, end)
	}
	return Window{Start: start, End: end}, nil
}

// Unbounded returns a window covering all of time.
func Unbounded() Window {
	return Window{Start: math.Inf(-1), End: math.Inf(1)}
}

// Parse builds a window from two UTC timestamps.
func Parse(start, end string) (Window, error) {
	s, err := ParseTime(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid existence start: %w", err)
	}
	e, err := ParseTime(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid existence end: %w", err)
	}
	return New(s, e)
}

// Contains reports whether t lies strictly inside the window.
func (w Window) Contains(t float64) bool {
	return w.Start < t && t < w.End
}

// ExtendedContains reports whether t lies inside (Start, End+length). A trail
// keeps fading for one trail length after its body stops existing.
func (w Window) ExtendedContains(t, length float64) bool {
	return w.Start < t && t < w.End+length
}

// Clamp restricts t to [Start, End].
func (w Window) Clamp(t float64) float64 {
	return math.Max(w.Start, math.Min(t, w.End))
}

// ParseTime converts a UTC timestamp to seconds past J2000.
func ParseTime(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "UTC"))
	for _, layout := range layouts {
		if tm, err := time.Parse(layout, s); err == nil {
			return FromTime(tm), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time format: %q", s)
}

// FromTime converts a wall-clock time to seconds past J2000.
func FromTime(t time.Time) float64 {
	return t.Sub(J2000).Seconds()
}

// ToTime converts seconds past J2000 to a UTC time.
func ToTime(sec float64) time.Time {
	return J2000.Add(time.Duration(sec * float64(time.Second))).UTC()
}
