package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"trailgo/pkg/config"
	"trailgo/pkg/db"
	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/store"
)

// maxRows bounds a single run so a tiny step cannot fill the disk.
const maxRows = 5_000_000

var (
	configPath = flag.String("config", "configs/trailgo.yaml", "Path to the config file")
	body       = flag.String("body", "", "Body to tabulate (must have orbital elements in the config)")
	from       = flag.String("from", "2000-01-01 12:00:00", "First sample, UTC")
	to         = flag.String("to", "2001-01-01 12:00:00", "Last sample, UTC")
	step       = flag.String("step", "1d", "Sample spacing (d, w, y supported)")
	dbPath     = flag.String("db", "", "Database path (defaults to db.path from the config)")
)

func main() {
	flag.Parse()

	if *body == "" {
		log.Fatal("--body is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.DB.Path
	}

	start, err := existence.ParseTime(*from)
	if err != nil {
		log.Fatalf("Invalid --from: %v", err)
	}
	end, err := existence.ParseTime(*to)
	if err != nil {
		log.Fatalf("Invalid --to: %v", err)
	}
	d, err := config.ParseDuration(*step)
	if err != nil {
		log.Fatalf("Invalid --step: %v", err)
	}

	oc, ok := cfg.Ephemeris.Bodies[*body]
	if !ok {
		log.Fatalf("No orbital elements for %q in %s", *body, *configPath)
	}
	orbit, err := oc.Orbit()
	if err != nil {
		log.Fatalf("Invalid orbit for %s: %v", *body, err)
	}

	log.Printf("Sampling %s from %s to %s every %s...", *body, *from, *to, d)
	parent, rows, err := generate(ephemeris.NewKepler(map[string]ephemeris.Orbit{*body: orbit}), *body, start, end, d.Seconds())
	if err != nil {
		log.Fatalf("Failed to sample: %v", err)
	}

	dbConn, err := db.Init(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	runID, err := save(context.Background(), st, *body, parent, rows)
	if err != nil {
		log.Fatalf("Failed to save rows: %v", err)
	}
	log.Printf("Done! Wrote %d rows for %s relative to %s (run %s)", len(rows), *body, parent, runID)
}

// generate samples body every step seconds over [start, end]. The last row is
// always at end.
func generate(src ephemeris.Source, body string, start, end, step float64) (string, []ephemeris.Row, error) {
	if end < start {
		return "", nil, fmt.Errorf("end %v before start %v", end, start)
	}
	if step <= 0 || math.IsNaN(step) {
		return "", nil, errors.New("step must be positive")
	}
	if n := (end - start) / step; n > maxRows {
		return "", nil, fmt.Errorf("%.0f rows exceed the limit of %d", n, maxRows)
	}

	var parent string
	var rows []ephemeris.Row
	for i := 0; ; i++ {
		t := math.Min(start+float64(i)*step, end)
		p, pos, err := src.Relative(body, t)
		if err != nil {
			return "", nil, fmt.Errorf("sample at %v: %w", t, err)
		}
		parent = p
		rows = append(rows, ephemeris.Row{Time: t, Position: pos})
		if t >= end {
			break
		}
	}
	return parent, rows, nil
}

// save replaces the stored rows of body and records the run.
func save(ctx context.Context, st store.EphemerisStore, body, parent string, rows []ephemeris.Row) (string, error) {
	if err := st.DeleteEphemeris(ctx, body); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", body, err)
	}
	if err := st.SaveEphemerisRows(ctx, body, parent, rows); err != nil {
		return "", err
	}
	run := store.Run{
		ID:        uuid.NewString(),
		Body:      body,
		Source:    "kepler",
		Rows:      len(rows),
		CreatedAt: time.Now().UTC(),
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return run.ID, nil
}
