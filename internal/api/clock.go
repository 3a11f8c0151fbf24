package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"trailgo/pkg/config"
	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/logging"
	"trailgo/pkg/sim"
	"trailgo/pkg/store"
)

// ClockControl is the simulation clock as seen by the API.
type ClockControl interface {
	Status() sim.Status
	SetSpeed(speed float64)
	Pause()
	Resume()
	Jump(t float64)
}

// ObserverSetter changes the anchor frames are rendered from.
type ObserverSetter interface {
	SetObserver(a ephemeris.Anchor)
}

// ClockHandler exposes the simulation clock and the observer.
type ClockHandler struct {
	clock   ClockControl
	sched   ObserverSetter
	anchors map[string]config.AnchorConfig
	store   store.StateStore

	mu       sync.RWMutex
	observer string
}

// NewClockHandler creates a handler. observer is the name of the current
// observer anchor. st may be nil.
func NewClockHandler(clock ClockControl, sched ObserverSetter, cfg config.Provider, st store.StateStore, observer string) *ClockHandler {
	return &ClockHandler{
		clock:    clock,
		sched:    sched,
		anchors:  cfg.AppConfig().Anchors,
		store:    st,
		observer: observer,
	}
}

// ClockResponse is the response of GET /api/clock.
type ClockResponse struct {
	sim.Status
	Observer string `json:"observer"`
}

// ClockRequest changes the clock. All fields are optional.
// Time is UTC ("2000-01-01 12:00:00") or seconds past J2000.
type ClockRequest struct {
	State    string   `json:"state,omitempty"` // "running" or "paused"
	Speed    *float64 `json:"speed,omitempty"`
	Time     string   `json:"time,omitempty"`
	Observer string   `json:"observer,omitempty"`
}

// HandleClock dispatches GET and POST.
// GET|POST /api/clock
func (h *ClockHandler) HandleClock(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeStatus(w)
	case http.MethodPost:
		h.handleSet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ClockHandler) writeStatus(w http.ResponseWriter) {
	h.mu.RLock()
	resp := ClockResponse{Status: h.clock.Status(), Observer: h.observer}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode clock response", "error", err)
	}
}

func (h *ClockHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate everything before changing anything.
	var state sim.State
	if req.State != "" {
		st, err := sim.ParseState(req.State)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		state = st
	}
	if req.Speed != nil && (math.IsNaN(*req.Speed) || math.IsInf(*req.Speed, 0)) {
		http.Error(w, "Invalid speed", http.StatusBadRequest)
		return
	}
	var jumpTo float64
	if req.Time != "" {
		t, err := parseSimTime(req.Time)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid time: %v", err), http.StatusBadRequest)
			return
		}
		jumpTo = t
	}
	var anchor config.AnchorConfig
	if req.Observer != "" {
		a, ok := h.anchors[req.Observer]
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown observer: %q", req.Observer), http.StatusBadRequest)
			return
		}
		anchor = a
	}

	ctx := r.Context()
	var changes []string

	switch state {
	case sim.StatePaused:
		h.clock.Pause()
		changes = append(changes, "paused")
	case sim.StateRunning:
		h.clock.Resume()
		changes = append(changes, "resumed")
	}
	if req.Speed != nil {
		h.clock.SetSpeed(*req.Speed)
		h.persist(ctx, config.KeyClockSpeed, strconv.FormatFloat(*req.Speed, 'g', -1, 64))
		changes = append(changes, fmt.Sprintf("speed=%g", *req.Speed))
	}
	if req.Time != "" {
		h.clock.Jump(jumpTo)
		changes = append(changes, "time="+existence.ToTime(jumpTo).Format("2006-01-02 15:04:05"))
	}
	if req.Observer != "" {
		h.sched.SetObserver(anchor.Anchor())
		h.mu.Lock()
		h.observer = req.Observer
		h.mu.Unlock()
		h.persist(ctx, config.KeyObserver, req.Observer)
		changes = append(changes, "observer="+req.Observer)
	}

	if len(changes) > 0 {
		logging.LogEvent(&logging.Event{
			Type:    "clock",
			Title:   "Clock changed",
			Summary: strings.Join(changes, " "),
		})
	}

	h.writeStatus(w)
}

func (h *ClockHandler) persist(ctx context.Context, key, val string) {
	if h.store == nil {
		return
	}
	if err := h.store.SetState(ctx, key, val); err != nil {
		slog.Error("Failed to persist clock setting", "key", key, "error", err)
	}
}

// parseSimTime accepts UTC timestamps or seconds past J2000.
func parseSimTime(s string) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not finite: %s", s)
		}
		return f, nil
	}
	return existence.ParseTime(s)
}
