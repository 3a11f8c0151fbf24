package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/store"
)

type fakeRunStore struct {
	runs      []store.Run
	err       error
	lastLimit int
}

func (f *fakeRunStore) SaveEphemerisRows(ctx context.Context, body, parent string, rows []ephemeris.Row) error {
	return nil
}

func (f *fakeRunStore) LoadEphemerisTracks(ctx context.Context) (map[string]ephemeris.Track, error) {
	return nil, nil
}

func (f *fakeRunStore) DeleteEphemeris(ctx context.Context, body string) error { return nil }

func (f *fakeRunStore) RecordRun(ctx context.Context, r store.Run) error { return nil }

func (f *fakeRunStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	f.lastLimit = limit
	return f.runs, f.err
}

func TestRunsHandler(t *testing.T) {
	created := time.Date(2026, 1, 18, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		query        string
		store        *fakeRunStore
		expectedCode int
		wantLimit    int
		wantRuns     int
	}{
		{
			name:         "Default",
			store:        &fakeRunStore{runs: []store.Run{{ID: "a", Body: "Earth", Source: "csv", Rows: 10, CreatedAt: created}}},
			expectedCode: http.StatusOK,
			wantLimit:    defaultRunLimit,
			wantRuns:     1,
		},
		{
			name:         "Empty",
			query:        "?limit=5",
			store:        &fakeRunStore{},
			expectedCode: http.StatusOK,
			wantLimit:    5,
			wantRuns:     0,
		},
		{
			name:         "BadLimit",
			query:        "?limit=-1",
			store:        &fakeRunStore{},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "StoreError",
			store:        &fakeRunStore{err: errors.New("db closed")},
			expectedCode: http.StatusInternalServerError,
			wantLimit:    defaultRunLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRunsHandler(tt.store)
			w := httptest.NewRecorder()
			h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/ephemeris/runs"+tt.query, http.NoBody))

			if w.Code != tt.expectedCode {
				t.Fatalf("StatusCode: got %v, want %v", w.Code, tt.expectedCode)
			}
			if tt.store.lastLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", tt.store.lastLimit, tt.wantLimit)
			}
			if w.Code != http.StatusOK {
				return
			}
			var got []store.Run
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if got == nil || len(got) != tt.wantRuns {
				t.Errorf("runs = %v, want %d entries", got, tt.wantRuns)
			}
		})
	}
}
