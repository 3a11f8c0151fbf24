package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"trailgo/pkg/config"
	"trailgo/pkg/logging"
	"trailgo/pkg/marker"
	"trailgo/pkg/sim"
	"trailgo/pkg/store"
	"trailgo/pkg/trail"
)

// TrailControl is the part of a sampler the API may change.
// Setters are only ever called from the frame goroutine via Enqueuer.
type TrailControl interface {
	Name() string
	Length() float64
	SampleCount() int
	SetLength(seconds float64) error
	SetSampleCount(n int) error
	SetVisible(v bool)
}

// Enqueuer runs functions on the frame goroutine.
type Enqueuer interface {
	Enqueue(fn func())
}

// trailSettings mirrors what was last applied to a sampler so readers never
// touch sampler state.
type trailSettings struct {
	Length  float64 `json:"length"`
	Samples int     `json:"samples"`
	Visible bool    `json:"visible"`
}

// TrailHandler collects the frames and markers published during a frame and
// serves the latest complete set.
type TrailHandler struct {
	mu       sync.RWMutex
	frames   map[string]*trail.Frame
	markers  map[string]*marker.State
	status   sim.Status
	settings map[string]trailSettings
	controls map[string]TrailControl

	queue Enqueuer
	store store.StateStore
}

// NewTrailHandler creates a handler. queue and st may be nil, in which case
// settings are applied immediately and not persisted.
func NewTrailHandler(queue Enqueuer, st store.StateStore) *TrailHandler {
	return &TrailHandler{
		frames:   make(map[string]*trail.Frame),
		markers:  make(map[string]*marker.State),
		settings: make(map[string]trailSettings),
		controls: make(map[string]TrailControl),
		queue:    queue,
		store:    st,
	}
}

// Register makes a sampler configurable. Call before the scheduler starts.
func (h *TrailHandler) Register(c TrailControl) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controls[c.Name()] = c
	h.settings[c.Name()] = trailSettings{Length: c.Length(), Samples: c.SampleCount(), Visible: true}
}

// Upload implements trail.Uploader.
func (h *TrailHandler) Upload(f *trail.Frame) {
	cp := *f
	cp.Samples = append([]trail.Sample(nil), f.Samples...)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames[f.Name] = &cp
}

// UploadMarker implements marker.Sink.
func (h *TrailHandler) UploadMarker(s *marker.State) {
	cp := *s

	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers[s.Name] = &cp
}

// EndFrame drops everything not published for the frame at st.Time.
func (h *TrailHandler) EndFrame(st sim.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = st
	for name, f := range h.frames {
		if f.Time != st.Time {
			delete(h.frames, name)
		}
	}
	for name, m := range h.markers {
		if m.Time != st.Time {
			delete(h.markers, name)
		}
	}
}

// Snapshot returns copies of the current frames and markers, sorted by name.
func (h *TrailHandler) Snapshot() (sim.Status, []trail.Frame, []marker.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frames := make([]trail.Frame, 0, len(h.frames))
	for _, f := range h.frames {
		frames = append(frames, *f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Name < frames[j].Name })

	markers := make([]marker.State, 0, len(h.markers))
	for _, m := range h.markers {
		markers = append(markers, *m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].Name < markers[j].Name })

	return h.status, frames, markers
}

// TrailSummary is one entry of GET /api/trails.
type TrailSummary struct {
	Name      string  `json:"name"`
	Length    float64 `json:"length"`
	Samples   int     `json:"samples"`
	Visible   bool    `json:"visible"`
	Active    bool    `json:"active"`
	Valid     int     `json:"valid"`
	MaxRadius float64 `json:"max_radius"`
}

// TrailDetail is the response of GET /api/trails/{name}.
type TrailDetail struct {
	TrailSummary
	Frame    *trail.Frame   `json:"frame,omitempty"`
	Polyline []trail.Vertex `json:"polyline,omitempty"`
}

// TrailRequest changes a trail. Length uses the config duration syntax ("27d", "1y").
type TrailRequest struct {
	Length  string `json:"length,omitempty"`
	Samples *int   `json:"samples,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

func (h *TrailHandler) summary(name string, s trailSettings) TrailSummary {
	sum := TrailSummary{
		Name:    name,
		Length:  s.Length,
		Samples: s.Samples,
		Visible: s.Visible,
	}
	if f, ok := h.frames[name]; ok {
		sum.Active = true
		sum.MaxRadius = f.MaxRadius
		for _, smp := range f.Samples {
			if smp.Valid {
				sum.Valid++
			}
		}
	}
	return sum
}

// HandleList returns a summary of every configured trail.
// GET /api/trails
func (h *TrailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := make([]TrailSummary, 0, len(h.settings))
	for name, s := range h.settings {
		resp = append(resp, h.summary(name, s))
	}
	h.mu.RUnlock()
	sort.Slice(resp, func(i, j int) bool { return resp[i].Name < resp[j].Name })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode trails response", "error", err)
	}
}

// HandleGet returns the latest frame of one trail and its renderable line.
// GET /api/trails/{name}
func (h *TrailHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	h.mu.RLock()
	s, ok := h.settings[name]
	var resp TrailDetail
	if ok {
		resp.TrailSummary = h.summary(name, s)
		if f, found := h.frames[name]; found {
			cp := *f
			resp.Frame = &cp
		}
	}
	h.mu.RUnlock()

	if !ok {
		http.Error(w, "Unknown trail", http.StatusNotFound)
		return
	}
	if resp.Frame != nil {
		resp.Polyline = resp.Frame.Polyline()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode trail response", "error", err)
	}
}

// HandleSet changes length, sample count or visibility of one trail.
// Length and sample count are persisted and survive restarts.
// POST /api/trails/{name}
func (h *TrailHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	h.mu.RLock()
	_, ok := h.controls[name]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "Unknown trail", http.StatusNotFound)
		return
	}

	var req TrailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var length time.Duration
	if req.Length != "" {
		d, err := config.ParseDuration(req.Length)
		if err != nil || d <= 0 {
			http.Error(w, fmt.Sprintf("Invalid length: %q", req.Length), http.StatusBadRequest)
			return
		}
		length = d
	}
	if req.Samples != nil && *req.Samples < 1 {
		http.Error(w, "Samples must be at least 1", http.StatusBadRequest)
		return
	}

	// The settings entry and the queued apply must change together so that
	// concurrent requests never lose each other's fields.
	h.mu.Lock()
	ctrl := h.controls[name]
	cur := h.settings[name]
	next := cur
	if req.Length != "" {
		next.Length = length.Seconds()
	}
	if req.Samples != nil {
		next.Samples = *req.Samples
	}
	if req.Visible != nil {
		next.Visible = *req.Visible
	}
	apply := func() {
		if next.Length != cur.Length {
			if err := ctrl.SetLength(next.Length); err != nil {
				slog.Warn("Failed to set trail length", "trail", name, "error", err)
			}
		}
		if next.Samples != cur.Samples {
			if err := ctrl.SetSampleCount(next.Samples); err != nil {
				slog.Warn("Failed to set trail samples", "trail", name, "error", err)
			}
		}
		if next.Visible != cur.Visible {
			ctrl.SetVisible(next.Visible)
		}
	}
	if h.queue != nil {
		h.queue.Enqueue(apply)
	} else {
		apply()
	}
	h.settings[name] = next
	h.mu.Unlock()

	if h.store != nil {
		ctx := r.Context()
		if req.Length != "" {
			if err := h.store.SetState(ctx, config.TrailLengthKey(name), length.String()); err != nil {
				slog.Error("Failed to persist trail length", "trail", name, "error", err)
			}
		}
		if req.Samples != nil {
			if err := h.store.SetState(ctx, config.TrailSamplesKey(name), strconv.Itoa(next.Samples)); err != nil {
				slog.Error("Failed to persist trail samples", "trail", name, "error", err)
			}
		}
	}

	logging.LogEvent(&logging.Event{
		Type:    "trail",
		Title:   fmt.Sprintf("%s trail changed", name),
		Summary: fmt.Sprintf("length=%.0fs samples=%d visible=%t", next.Length, next.Samples, next.Visible),
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(next); err != nil {
		slog.Error("Failed to encode trail settings", "error", err)
	}
}

// HandleMarkers returns the markers drawn in the latest frame.
// GET /api/markers
func (h *TrailHandler) HandleMarkers(w http.ResponseWriter, r *http.Request) {
	_, _, markers := h.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(markers); err != nil {
		slog.Error("Failed to encode markers response", "error", err)
	}
}
