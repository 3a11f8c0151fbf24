package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks sampling statistics per trail.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*TrailStats
}

// TrailStats holds counters for a specific trail.
// Fields are accessed atomically.
type TrailStats struct {
	Lookups        int64 `json:"lookups"`
	LookupFailures int64 `json:"lookup_failures"`
	Resets         int64 `json:"resets"`
	GuardSkips     int64 `json:"guard_skips"`
	Uploads        int64 `json:"uploads"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*TrailStats),
	}
}

// getStats returns the stats object for a trail, creating it if needed.
func (t *Tracker) getStats(name string) *TrailStats {
	t.mu.RLock()
	s, ok := t.stats[name]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[name]; ok {
		return s
	}
	s = &TrailStats{}
	t.stats[name] = s
	return s
}

// TrackLookup counts an ephemeris lookup and whether it succeeded.
func (t *Tracker) TrackLookup(name string, ok bool) {
	s := t.getStats(name)
	atomic.AddInt64(&s.Lookups, 1)
	if !ok {
		atomic.AddInt64(&s.LookupFailures, 1)
	}
}

func (t *Tracker) TrackReset(name string) {
	atomic.AddInt64(&t.getStats(name).Resets, 1)
}

func (t *Tracker) TrackGuardSkip(name string) {
	atomic.AddInt64(&t.getStats(name).GuardSkips, 1)
}

func (t *Tracker) TrackUpload(name string) {
	atomic.AddInt64(&t.getStats(name).Uploads, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]TrailStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]TrailStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = TrailStats{
			Lookups:        atomic.LoadInt64(&v.Lookups),
			LookupFailures: atomic.LoadInt64(&v.LookupFailures),
			Resets:         atomic.LoadInt64(&v.Resets),
			GuardSkips:     atomic.LoadInt64(&v.GuardSkips),
			Uploads:        atomic.LoadInt64(&v.Uploads),
		}
	}
	return result
}

// Reset zeroes all counters but keeps the known trails.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.stats {
		t.stats[k] = &TrailStats{}
	}
}
