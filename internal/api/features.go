package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"trailgo/pkg/features"
	"trailgo/pkg/logging"
)

// FeaturesHandler exposes the runtime toggles for trails and markers.
type FeaturesHandler struct {
	flags *features.Flags
}

// NewFeaturesHandler creates a new handler. Returns nil if flags is nil.
func NewFeaturesHandler(flags *features.Flags) *FeaturesHandler {
	if flags == nil {
		return nil
	}
	return &FeaturesHandler{flags: flags}
}

// FeaturesRequest flips toggles. Missing fields are left alone.
type FeaturesRequest struct {
	Trajectories *bool `json:"trajectories,omitempty"`
	PlanetMarks  *bool `json:"planet_marks,omitempty"`
	SunFlares    *bool `json:"sun_flares,omitempty"`
}

// HandleFeatures dispatches GET and POST.
// GET|POST /api/features
func (h *FeaturesHandler) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeState(w)
	case http.MethodPost:
		h.handleSet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FeaturesHandler) writeState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.flags.Snapshot()); err != nil {
		slog.Error("Failed to encode features response", "error", err)
	}
}

func (h *FeaturesHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req FeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := []struct {
		name string
		val  *bool
	}{
		{features.Trajectories, req.Trajectories},
		{features.PlanetMarks, req.PlanetMarks},
		{features.SunFlares, req.SunFlares},
	}

	var changes []string
	for _, u := range updates {
		if u.val == nil {
			continue
		}
		if err := h.flags.Set(r.Context(), u.name, *u.val); err != nil {
			// The toggle itself is applied; only persisting failed.
			slog.Error("Failed to set feature", "feature", u.name, "error", err)
		}
		changes = append(changes, fmt.Sprintf("%s=%t", u.name, *u.val))
	}

	if len(changes) > 0 {
		logging.LogEvent(&logging.Event{
			Type:    "feature",
			Title:   "Features changed",
			Summary: strings.Join(changes, " "),
		})
	}

	h.writeState(w)
}
