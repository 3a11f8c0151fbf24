package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trailgo/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "SortsAndFiltersParams",
			input:    `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Recalculating trajectory" trail=Earth samples="360 " target=Earth path=/this/value/is/far/too/long/to/show`,
			expected: "06:50:46 Recalculating trajectory (samples=360, target=Earth, trail=Earth)",
		},
		{
			name:     "NoParams",
			input:    `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Scheduler started"`,
			expected: "06:50:46 Scheduler started",
		},
		{
			name:     "Unstructured",
			input:    "plain text line",
			expected: "plain text line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestHandleLatestEvent(t *testing.T) {
	seq := logging.EventCapture.Last().Seq
	_, _ = logging.EventCapture.Write([]byte("[2026-01-18 06:50:46] [clock] Clock changed - paused\n"))

	w := httptest.NewRecorder()
	handleLatestEvent(w, httptest.NewRequest(http.MethodGet, "/api/log/event", http.NoBody))

	var got LatestEventResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if want := "[2026-01-18 06:50:46] [clock] Clock changed - paused"; got.Event != want {
		t.Errorf("event = %q, want %q", got.Event, want)
	}
	if got.Seq != seq+1 {
		t.Errorf("seq = %d, want %d", got.Seq, seq+1)
	}
	if got.At == nil {
		t.Error("event time missing")
	}
}

func TestHandleLatestLog(t *testing.T) {
	_, _ = logging.LogCapture.Write([]byte(`time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Scheduler started"` + "\n"))

	w := httptest.NewRecorder()
	handleLatestLog(w, httptest.NewRequest(http.MethodGet, "/api/log/latest", http.NoBody))

	var got LatestLogResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if got.Log != "06:50:46 Scheduler started" {
		t.Errorf("log = %q", got.Log)
	}
	if got.Seq == 0 {
		t.Error("seq not reported")
	}
}
