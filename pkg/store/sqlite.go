package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trailgo/pkg/db"
	"trailgo/pkg/ephemeris"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	StateStore
	EphemerisStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Ephemeris ---

func (s *SQLiteStore) SaveEphemerisRows(ctx context.Context, body, parent string, rows []ephemeris.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO ephemeris_samples (body, parent, t, x, y, z) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, body, parent, r.Time, r.Position.X, r.Position.Y, r.Position.Z); err != nil {
			return fmt.Errorf("failed to save %s at %.3f: %w", body, r.Time, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadEphemerisTracks(ctx context.Context) (map[string]ephemeris.Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body, parent, t, x, y, z FROM ephemeris_samples ORDER BY body, t`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := make(map[string]ephemeris.Track)
	for rows.Next() {
		var body, parent string
		var r ephemeris.Row
		if err := rows.Scan(&body, &parent, &r.Time, &r.Position.X, &r.Position.Y, &r.Position.Z); err != nil {
			return nil, err
		}
		tr := tracks[body]
		tr.Parent = parent
		tr.Rows = append(tr.Rows, r)
		tracks[body] = tr
	}
	return tracks, rows.Err()
}

func (s *SQLiteStore) DeleteEphemeris(ctx context.Context, body string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM ephemeris_samples WHERE body = ?", body)
	return err
}

func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ephemeris_runs (id, body, source, rows, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Body, r.Source, r.Rows, createdAt)
	return err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, source, rows, created_at FROM ephemeris_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var source sql.NullString
		if err := rows.Scan(&r.ID, &r.Body, &source, &r.Rows, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Source = source.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	return val, err == nil
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
