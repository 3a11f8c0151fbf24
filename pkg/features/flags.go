// Package features holds the runtime toggles for trails and markers.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
)

// Feature names double as persistent state keys.
const (
	Trajectories = "enable_trajectories"
	PlanetMarks  = "enable_planet_marks"
	SunFlares    = "enable_sun_flares"
)

// StateStore persists toggles across restarts.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// Flags holds the toggles. Reads are lock-free so the frame loop can check
// them every frame while the API flips them.
type Flags struct {
	trajectories atomic.Bool
	planetMarks  atomic.Bool
	sunFlares    atomic.Bool
	store        StateStore
}

// State is a serializable copy of all toggles.
type State struct {
	Trajectories bool `json:"trajectories"`
	PlanetMarks  bool `json:"planet_marks"`
	SunFlares    bool `json:"sun_flares"`
}

// New creates flags from defaults. If st is non-nil, persisted values override
// the defaults and later changes are written back.
func New(ctx context.Context, defaults State, st StateStore) *Flags {
	f := &Flags{store: st}
	f.trajectories.Store(defaults.Trajectories)
	f.planetMarks.Store(defaults.PlanetMarks)
	f.sunFlares.Store(defaults.SunFlares)

	if st == nil {
		return f
	}
	for _, name := range []string{Trajectories, PlanetMarks, SunFlares} {
		val, ok := st.GetState(ctx, name)
		if !ok || val == "" {
			continue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			slog.Warn("Ignoring invalid persisted feature flag", "key", name, "value", val)
			continue
		}
		f.flag(name).Store(b)
	}
	return f
}

// TrajectoriesEnabled reports whether trails are drawn.
func (f *Flags) TrajectoriesEnabled() bool { return f.trajectories.Load() }

// PlanetMarksEnabled reports whether deep-space dots are drawn.
func (f *Flags) PlanetMarksEnabled() bool { return f.planetMarks.Load() }

// SunFlaresEnabled reports whether flares are drawn.
func (f *Flags) SunFlaresEnabled() bool { return f.sunFlares.Load() }

// Snapshot returns the current toggles.
func (f *Flags) Snapshot() State {
	return State{
		Trajectories: f.trajectories.Load(),
		PlanetMarks:  f.planetMarks.Load(),
		SunFlares:    f.sunFlares.Load(),
	}
}

// Set flips one toggle and persists it.
func (f *Flags) Set(ctx context.Context, name string, enabled bool) error {
	b := f.flag(name)
	if b == nil {
		return fmt.Errorf("unknown feature: %s", name)
	}
	b.Store(enabled)
	if f.store == nil {
		return nil
	}
	if err := f.store.SetState(ctx, name, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", name, err)
	}
	return nil
}

func (f *Flags) flag(name string) *atomic.Bool {
	switch name {
	case Trajectories:
		return &f.trajectories
	case PlanetMarks:
		return &f.planetMarks
	case SunFlares:
		return &f.sunFlares
	}
	return nil
}
