package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/sim"
)

// Updater is anything that advances once per frame (trail samplers, markers).
type Updater interface {
	Update(t float64, observer ephemeris.Anchor)
}

// Clock provides the simulation time for each frame.
type Clock interface {
	Status() sim.Status
}

// FrameSink is notified after every frame has been computed.
type FrameSink interface {
	EndFrame(st sim.Status)
}

// Scheduler manages the frame heartbeat and scheduled jobs.
type Scheduler struct {
	interval time.Duration
	clock    Clock

	mu       sync.RWMutex
	observer ephemeris.Anchor
	updaters []Updater
	sinks    []FrameSink
	jobs     []Job
	pending  []func()
}

// NewScheduler creates a new Scheduler.
func NewScheduler(interval time.Duration, clock Clock, observer ephemeris.Anchor) *Scheduler {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Scheduler{
		interval: interval,
		clock:    clock,
		observer: observer,
	}
}

// AddUpdater registers a per-frame updater. Updaters run in registration order.
func (s *Scheduler) AddUpdater(u Updater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updaters = append(s.updaters, u)
}

// AddSink registers a consumer notified after all updaters ran.
func (s *Scheduler) AddSink(sink FrameSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
}

// Observer returns the anchor frames are rendered from.
func (s *Scheduler) Observer() ephemeris.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observer
}

// SetObserver changes the anchor frames are rendered from.
func (s *Scheduler) SetObserver(a ephemeris.Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = a
}

// Enqueue schedules fn to run on the frame goroutine before the next frame's
// updaters. Use it for changes to updaters that are not safe for concurrent use.
func (s *Scheduler) Enqueue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
}

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick computes one frame.
func (s *Scheduler) Tick(ctx context.Context) {
	st := s.clock.Status()

	s.mu.Lock()
	observer := s.observer
	updaters := s.updaters
	sinks := s.sinks
	jobs := s.jobs
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}

	for _, u := range updaters {
		u.Update(st.Time, observer)
	}

	for _, sink := range sinks {
		sink.EndFrame(st)
	}

	for _, job := range jobs {
		if job.ShouldFire(st.Time) {
			go job.Run(ctx, st.Time)
		}
	}
}
