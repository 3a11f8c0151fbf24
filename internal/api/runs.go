package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"trailgo/pkg/store"
)

const defaultRunLimit = 20

// RunsHandler lists ephemeris imports and generations.
type RunsHandler struct {
	store store.EphemerisStore
}

// NewRunsHandler creates a new RunsHandler. Returns nil if st is nil.
func NewRunsHandler(st store.EphemerisStore) *RunsHandler {
	if st == nil {
		return nil
	}
	return &RunsHandler{store: st}
}

// HandleList returns the most recent runs first.
// GET /api/ephemeris/runs?limit=N
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list ephemeris runs", "error", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		slog.Error("Failed to encode runs response", "error", err)
	}
}
