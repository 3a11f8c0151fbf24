package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trailgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
// The optional features and runs handlers are skipped when nil.
func NewServer(addr string, trails *TrailHandler, stream *StreamHub, clock *ClockHandler, feats *FeaturesHandler, stats *StatsHandler, runs *RunsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Trail Endpoints
	mux.HandleFunc("GET /api/trails", trails.HandleList)
	mux.HandleFunc("GET /api/trails/{name}", trails.HandleGet)
	mux.HandleFunc("POST /api/trails/{name}", trails.HandleSet)
	mux.HandleFunc("GET /api/markers", trails.HandleMarkers)

	// 3b. Frame Stream
	mux.HandleFunc("GET /api/stream", stream.HandleStream)

	// 4. Clock Endpoint
	mux.HandleFunc("/api/clock", clock.HandleClock)

	// 5. Features Endpoint
	if feats != nil {
		mux.HandleFunc("/api/features", feats.HandleFeatures)
	}

	// 6. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 6b. Ephemeris Runs Endpoint
	if runs != nil {
		mux.HandleFunc("GET /api/ephemeris/runs", runs.HandleList)
	}

	// 7. Logs Endpoints
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/event", handleLatestEvent)

	// 8. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
