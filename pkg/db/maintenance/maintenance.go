package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trailgo/pkg/db"
	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/store"
)

const ephemerisCSVStateKey = "ephemeris_csv_mtime"

// Run executes all maintenance tasks: CSV import and optimization.
// It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, csvPath string) error {
	slog.Info("Starting database maintenance...")

	if csvPath != "" {
		if err := importEphemeris(ctx, s, csvPath); err != nil {
			// Startup continues with whatever rows are already stored.
			slog.Error("Ephemeris import failed", "error", err)
		} else {
			slog.Info("Ephemeris import check completed")
		}
	}

	if err := d.Optimize(); err != nil {
		slog.Error("Database optimize failed", "error", err)
	}

	return nil
}

// importEphemeris imports tabulated positions from a CSV file conditional on
// modification time. Columns: Body,Parent,Time,X,Y,Z where Time is either
// seconds past J2000 or a UTC timestamp.
func importEphemeris(ctx context.Context, s store.Store, csvPath string) error {
	info, err := os.Stat(csvPath)
	if os.IsNotExist(err) {
		return nil // File doesn't exist, nothing to import
	}
	if err != nil {
		return fmt.Errorf("failed to stat csv: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)

	// Check stored state
	storedMTime, found := s.GetState(ctx, ephemerisCSVStateKey)
	if found && storedMTime == fileMTime {
		return nil // Up to date
	}

	slog.Info("Importing ephemeris from CSV...", "path", csvPath)

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	// Handle potential BOM (Byte Order Mark) at start of file
	if len(headers) > 0 && strings.HasPrefix(headers[0], "\xef\xbb\xbf") {
		headers[0] = headers[0][3:]
	}

	idxMap := make(map[string]int)
	for i, h := range headers {
		idxMap[strings.TrimSpace(h)] = i
	}
	for _, col := range []string{"Body", "Parent", "Time", "X", "Y", "Z"} {
		if _, ok := idxMap[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	tracks, err := readRows(reader, idxMap)
	if err != nil {
		return err
	}

	for body, tr := range tracks {
		// The file is the source of truth for the bodies it lists.
		if err := s.DeleteEphemeris(ctx, body); err != nil {
			return fmt.Errorf("failed to clear %s: %w", body, err)
		}
		if err := s.SaveEphemerisRows(ctx, body, tr.Parent, tr.Rows); err != nil {
			return err
		}
		run := store.Run{ID: uuid.NewString(), Body: body, Source: "csv", Rows: len(tr.Rows)}
		if err := s.RecordRun(ctx, run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		slog.Info("Imported ephemeris", "body", body, "parent", tr.Parent, "rows", len(tr.Rows), "run", run.ID)
	}

	if err := s.SetState(ctx, ephemerisCSVStateKey, fileMTime); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	return nil
}

func readRows(reader *csv.Reader, idxMap map[string]int) (map[string]ephemeris.Track, error) {
	get := func(row []string, col string) string {
		if i, ok := idxMap[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	tracks := make(map[string]ephemeris.Track)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}

		body, parent := get(record, "Body"), get(record, "Parent")
		if body == "" || parent == "" {
			slog.Warn("Skipping ephemeris row without body or parent", "line", line)
			continue
		}

		t, err := parseTime(get(record, "Time"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var r ephemeris.Row
		r.Time = t
		for _, c := range []struct {
			col string
			dst *float64
		}{{"X", &r.Position.X}, {"Y", &r.Position.Y}, {"Z", &r.Position.Z}} {
			v, err := strconv.ParseFloat(get(record, c.col), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, c.col, err)
			}
			*c.dst = v
		}

		tr := tracks[body]
		if tr.Parent != "" && tr.Parent != parent {
			return nil, fmt.Errorf("line %d: %s has parents %s and %s", line, body, tr.Parent, parent)
		}
		tr.Parent = parent
		tr.Rows = append(tr.Rows, r)
		tracks[body] = tr
	}
	return tracks, nil
}

func parseTime(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	return existence.ParseTime(s)
}
