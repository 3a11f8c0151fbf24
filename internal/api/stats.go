package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"trailgo/pkg/tracker"
)

// StatsHandler reports per-trail sampling counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	started time.Time
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		started: time.Now(),
	}
}

type TrailStatsDTO struct {
	tracker.TrailStats
	FailureRate int64 `json:"failure_rate"` // percent of lookups that failed
}

type Diagnostics struct {
	UptimeSec  float64 `json:"uptime_sec"`
	Goroutines int     `json:"goroutines"`
	MemoryMB   uint64  `json:"memory_mb"`
	SysMB      uint64  `json:"sys_mb"`
	NumGC      uint32  `json:"num_gc"`
}

type StatsResponse struct {
	Diagnostics Diagnostics              `json:"diagnostics"`
	Trails      map[string]TrailStatsDTO `json:"trails"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Diagnostics: Diagnostics{
			UptimeSec:  time.Since(h.started).Seconds(),
			Goroutines: runtime.NumGoroutine(),
			MemoryMB:   mem.Alloc / 1024 / 1024,
			SysMB:      mem.Sys / 1024 / 1024,
			NumGC:      mem.NumGC,
		},
		Trails: make(map[string]TrailStatsDTO, len(snapshot)),
	}

	for name, stats := range snapshot {
		rate := int64(0)
		if stats.Lookups > 0 {
			rate = (stats.LookupFailures * 100) / stats.Lookups
		}
		resp.Trails[name] = TrailStatsDTO{TrailStats: stats, FailureRate: rate}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode stats response", "error", err)
	}
}
