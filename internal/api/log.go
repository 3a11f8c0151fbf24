package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"trailgo/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// LatestLogResponse is the response of GET /api/log/latest.
type LatestLogResponse struct {
	Log string `json:"log"`
	Seq uint64 `json:"seq"`
}

// LatestEventResponse is the response of GET /api/log/event.
type LatestEventResponse struct {
	Event string     `json:"event"`
	At    *time.Time `json:"at,omitempty"`
	Seq   uint64     `json:"seq"`
}

// handleLatestLog returns the last captured log line.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	last := logging.LogCapture.Last()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(LatestLogResponse{
		Log: formatLogLine(last.Text),
		Seq: last.Seq,
	}); err != nil {
		slog.Error("Failed to encode log response", "error", err)
	}
}

// handleLatestEvent returns the last line written to the event log.
func handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	last := logging.EventCapture.Last()
	resp := LatestEventResponse{Event: last.Text, Seq: last.Seq}
	if !last.At.IsZero() {
		resp.At = &last.At
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode event response", "error", err)
	}
}

// formatLogLine parses the raw log line and applies filtering rules.
// Rules: Format time to HH:MM:SS, unwrap msg, sort other params, remove params > 20 chars.
// Output: HH:MM:SS MsgValue (key=value, key=value)
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg string
	var timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		if key == "time" {
			// Parse RFC3339 time (default for slog)
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
			continue
		}

		if key == "level" {
			continue
		}

		if key == "msg" {
			msg = val
			continue
		}

		// Filter long values (User request: remove params longer than 20 chars)
		// We treat value length as the constraint.
		if len(val) > 20 {
			continue
		}

		params = append(params, fmt.Sprintf("%s=%s", key, val))
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params) // deterministic output

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}

	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
