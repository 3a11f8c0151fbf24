package core

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// ClockTimeKey is the persistent_state key holding the last saved simulation time.
const ClockTimeKey = "clock_time"

// StateStore is the subset of the store used for clock persistence.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// Jumper moves the simulation clock.
type Jumper interface {
	Jump(t float64)
}

// NewClockPersistenceJob saves the simulation time every interval so a restart
// resumes where the previous run stopped.
func NewClockPersistenceJob(st StateStore, interval time.Duration) *TimeJob {
	var last string
	return NewTimeJob("ClockPersistence", interval, func(ctx context.Context, t float64) {
		val := strconv.FormatFloat(t, 'f', 3, 64)
		if val == last {
			return
		}
		if err := st.SetState(ctx, ClockTimeKey, val); err != nil {
			slog.Error("Persistence: Failed to save clock time", "error", err)
			return
		}
		last = val
		slog.Debug("Persistence: Clock time saved", "time", val)
	})
}

// RestoreClock jumps the clock to the persisted simulation time, if any.
// It reports whether a value was restored.
func RestoreClock(ctx context.Context, st StateStore, c Jumper) bool {
	val, ok := st.GetState(ctx, ClockTimeKey)
	if !ok {
		return false
	}
	t, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("Persistence: Ignoring invalid clock time", "value", val, "error", err)
		return false
	}
	c.Jump(t)
	slog.Info("Persistence: Clock restored", "time", t)
	return true
}
