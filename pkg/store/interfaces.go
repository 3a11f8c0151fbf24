package store

import (
	"context"
	"time"

	"trailgo/pkg/ephemeris"
)

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Run records one ephemeris generation or import.
type Run struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// EphemerisStore handles tabulated body positions.
type EphemerisStore interface {
	// SaveEphemerisRows upserts rows of body relative to parent.
	SaveEphemerisRows(ctx context.Context, body, parent string, rows []ephemeris.Row) error
	// LoadEphemerisTracks returns every stored body keyed by name.
	LoadEphemerisTracks(ctx context.Context) (map[string]ephemeris.Track, error)
	DeleteEphemeris(ctx context.Context, body string) error
	RecordRun(ctx context.Context, r Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
