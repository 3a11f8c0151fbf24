package sim

import (
	"sync"
	"time"

	"trailgo/pkg/existence"
)

// Clock maps wall time to simulation time (seconds past J2000) at an
// adjustable speed. It is safe for concurrent use.
type Clock struct {
	mu     sync.Mutex
	now    func() time.Time
	wall   time.Time // wall time at the last rebase
	base   float64   // simulation time at the last rebase
	speed  float64
	paused bool
}

// Status is a snapshot of the clock.
type Status struct {
	Time  float64 `json:"time"`
	UTC   string  `json:"utc"`
	Speed float64 `json:"speed"`
	State State   `json:"state"`
}

// NewClock creates a running clock starting at start. A nil now uses time.Now.
func NewClock(start, speed float64, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{
		now:   now,
		wall:  now(),
		base:  start,
		speed: speed,
	}
}

// Now returns the current simulation time.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at(c.now())
}

func (c *Clock) at(w time.Time) float64 {
	if c.paused {
		return c.base
	}
	return c.base + w.Sub(c.wall).Seconds()*c.speed
}

func (c *Clock) rebase() {
	w := c.now()
	c.base = c.at(w)
	c.wall = w
}

// SetSpeed changes how many simulation seconds pass per wall second.
// Negative speeds run time backwards.
func (c *Clock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.speed = speed
}

// Pause freezes simulation time.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.paused = true
}

// Resume continues simulation time from where it was paused.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.paused = false
}

// Jump sets the simulation time.
func (c *Clock) Jump(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = t
	c.wall = c.now()
}

// State returns whether the clock is running.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return StatePaused
	}
	return StateRunning
}

// Status returns a snapshot of the clock.
func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.at(c.now())
	st := StateRunning
	if c.paused {
		st = StatePaused
	}
	return Status{
		Time:  t,
		UTC:   existence.ToTime(t).Format("2006-01-02 15:04:05.000"),
		Speed: c.speed,
		State: st,
	}
}
