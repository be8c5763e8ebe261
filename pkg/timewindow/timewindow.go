// Package timewindow turns named rolling window lengths into absolute ranges
// anchored to a single instant.
package timewindow

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// hoursPerDay converts day counts into durations.
const hoursPerDay = 24

// ErrInvalidDays indicates a window with a non-positive day count.
var ErrInvalidDays = errors.New("time window days must be positive")

// DefaultDefinitions returns the built-in window set used when none is configured.
func DefaultDefinitions() map[string]int {
	return map[string]int{
		"last_30_days":  30,
		"last_90_days":  90,
		"last_365_days": 365,
		"last_3_years":  1095,
	}
}

// Window is a named, closed interval ending at the run's anchor instant.
type Window struct {
	Name           string    `json:"name"            yaml:"name"`
	Days           int       `json:"days"            yaml:"days"`
	Start          time.Time `json:"start_date"      yaml:"start_date"`
	End            time.Time `json:"end_date"        yaml:"end_date"`
	StartTimestamp int64     `json:"start_timestamp" yaml:"start_timestamp"`
	EndTimestamp   int64     `json:"end_timestamp"   yaml:"end_timestamp"`
}

// Contains reports whether t lies in [Start, End], both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Set is an immutable collection of windows sharing one end instant.
type Set struct {
	windows []Window
	byName  map[string]int
	now     time.Time
}

// Compute builds windows for every definition, all anchored at now.
// An empty definition map selects DefaultDefinitions.
func Compute(defs map[string]int, now time.Time) (Set, error) {
	if len(defs) == 0 {
		defs = DefaultDefinitions()
	}

	now = now.UTC()

	windows := make([]Window, 0, len(defs))

	for name, days := range defs {
		if days <= 0 {
			return Set{}, fmt.Errorf("%w: %s=%d", ErrInvalidDays, name, days)
		}

		start := now.Add(-time.Duration(days) * hoursPerDay * time.Hour)

		windows = append(windows, Window{
			Name:           name,
			Days:           days,
			Start:          start,
			End:            now,
			StartTimestamp: start.Unix(),
			EndTimestamp:   now.Unix(),
		})
	}

	return newSet(windows, now), nil
}

// FromWindows rebuilds a Set from stored windows, such as those of a saved
// report. The anchor is the latest window end.
func FromWindows(stored map[string]Window) Set {
	windows := make([]Window, 0, len(stored))

	var now time.Time

	for name, w := range stored {
		w.Name = name
		windows = append(windows, w)

		if w.End.After(now) {
			now = w.End
		}
	}

	return newSet(windows, now.UTC())
}

func newSet(windows []Window, now time.Time) Set {
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Days != windows[j].Days {
			return windows[i].Days < windows[j].Days
		}

		return windows[i].Name < windows[j].Name
	})

	byName := make(map[string]int, len(windows))
	for i, w := range windows {
		byName[w.Name] = i
	}

	return Set{windows: windows, byName: byName, now: now}
}

// Now returns the shared anchor instant.
func (s Set) Now() time.Time {
	return s.now
}

// Len returns the number of windows.
func (s Set) Len() int {
	return len(s.windows)
}

// Names returns window names, shortest window first, ties by name.
func (s Set) Names() []string {
	names := make([]string, len(s.windows))
	for i, w := range s.windows {
		names[i] = w.Name
	}

	return names
}

// Windows returns a copy of the windows in Names order.
func (s Set) Windows() []Window {
	out := make([]Window, len(s.windows))
	copy(out, s.windows)

	return out
}

// Get returns the named window.
func (s Set) Get(name string) (Window, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return Window{}, false
	}

	return s.windows[idx], true
}

// Matching returns the names of every window containing t. A commit fans out
// into all of them; windows are not mutually exclusive buckets.
func (s Set) Matching(t time.Time) []string {
	var names []string

	for _, w := range s.windows {
		if w.Contains(t) {
			names = append(names, w.Name)
		}
	}

	return names
}

// Definitions returns the name -> days map the set was built from.
func (s Set) Definitions() map[string]int {
	defs := make(map[string]int, len(s.windows))
	for _, w := range s.windows {
		defs[w.Name] = w.Days
	}

	return defs
}

// ByName returns the windows keyed by name, the shape stored in the JSON snapshot.
func (s Set) ByName() map[string]Window {
	out := make(map[string]Window, len(s.windows))
	for _, w := range s.windows {
		out[w.Name] = w
	}

	return out
}
