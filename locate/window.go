package locate

import (
	"sort"
	"time"
)

// Window is the sliding set of live measurements keyed by source id. It
// holds at most one measurement per source; a newer reading replaces the
// older one.
type Window struct {
	span    time.Duration
	entries map[string]Measurement
}

// NewWindow creates an empty window retaining measurements for span
func NewWindow(span time.Duration) *Window {
	return &Window{
		span:    span,
		entries: make(map[string]Measurement),
	}
}

// Put inserts m unless the window already holds a later reading from the
// same source. It reports whether m was stored.
func (w *Window) Put(m Measurement) bool {
	if cur, ok := w.entries[m.Source.ID]; ok && cur.Timestamp.After(m.Timestamp) {
		return false
	}
	w.entries[m.Source.ID] = m
	return true
}

// Evict removes measurements older than the window span and returns how
// many were dropped.
func (w *Window) Evict(now time.Time) int {
	cutoff := now.Add(-w.span)
	removed := 0
	for id, m := range w.entries {
		if m.Timestamp.Before(cutoff) {
			delete(w.entries, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns an owned copy of the live measurements sorted by source id
func (w *Window) Snapshot() []Measurement {
	out := make([]Measurement, 0, len(w.entries))
	for _, m := range w.entries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Source.ID < out[j].Source.ID
	})
	return out
}

// Len returns the number of live measurements
func (w *Window) Len() int {
	return len(w.entries)
}

// Span returns the retention duration
func (w *Window) Span() time.Duration {
	return w.span
}
