// Package trail keeps a rolling window of historical positions behind a body.
package trail

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/logging"
	"trailgo/pkg/vmath"
)

var (
	// ErrInvalidLength is returned for non-positive trail lengths.
	ErrInvalidLength = errors.New("trail length must be positive")
	// ErrInvalidSampleCount is returned for sample counts below one.
	ErrInvalidSampleCount = errors.New("trail sample count must be at least 1")
)

// Features reports whether trails are globally enabled.
type Features interface {
	TrajectoriesEnabled() bool
}

// Stats receives per-trail counters.
type Stats interface {
	TrackLookup(name string, ok bool)
	TrackReset(name string)
	TrackGuardSkip(name string)
	TrackUpload(name string)
}

// Config describes one trail.
type Config struct {
	Name    string
	Target  ephemeris.Anchor // the body leaving the trail
	Parent  ephemeris.Anchor // samples are expressed relative to this anchor
	Length  float64          // seconds covered behind the current time
	Samples int
	Color   Color
	Window  existence.Window
}

// Snapshot is a read-only copy of the sampler's buffer.
type Snapshot struct {
	Samples []Sample
	Cursor  int
	Tip     vmath.Vec3
	HasTip  bool // false when the last visible frame could not be published
}

// Sampler resamples a body's recent history once per frame.
// It is not safe for concurrent use; only the frame loop calls Update.
type Sampler struct {
	name     string
	target   ephemeris.Anchor
	parent   ephemeris.Anchor
	window   existence.Window
	provider ephemeris.Provider
	features Features
	uploader Uploader
	stats    Stats
	logger   *slog.Logger

	length   float64
	samples  int
	gradient Gradient
	visible  bool

	ring  *Ring
	stale bool

	lastSampleTime float64
	lastUpdateTime float64
	lastFrameTime  float64
	hadFrame       bool

	time      float64
	active    bool
	tip       vmath.Vec3
	hasTip    bool
	maxRadius float64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithUploader sets the frame consumer.
func WithUploader(u Uploader) Option {
	return func(s *Sampler) { s.uploader = u }
}

// WithStats sets the counter sink.
func WithStats(st Stats) Option {
	return func(s *Sampler) { s.stats = st }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler creates a sampler. The buffer is filled lazily by Update.
func NewSampler(cfg Config, p ephemeris.Provider, f Features, opts ...Option) (*Sampler, error) {
	if cfg.Length <= 0 || math.IsNaN(cfg.Length) || math.IsInf(cfg.Length, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLength, cfg.Length)
	}
	if cfg.Samples < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, cfg.Samples)
	}

	s := &Sampler{
		name:           cfg.Name,
		target:         cfg.Target,
		parent:         cfg.Parent,
		window:         cfg.Window,
		provider:       p,
		features:       f,
		logger:         slog.Default(),
		length:         cfg.Length,
		samples:        cfg.Samples,
		gradient:       GradientFor(cfg.Color),
		visible:        true,
		ring:           NewRing(cfg.Samples),
		stale:          true,
		lastUpdateTime: math.Inf(-1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("trail", cfg.Name)
	return s, nil
}

// Name returns the trail name.
func (s *Sampler) Name() string { return s.name }

// Length returns the trail span in seconds.
func (s *Sampler) Length() float64 { return s.length }

// SampleCount returns the ring capacity.
func (s *Sampler) SampleCount() int { return s.samples }

// SetLength changes the trail span and forces a full refill.
func (s *Sampler) SetLength(seconds float64) error {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidLength, seconds)
	}
	s.length = seconds
	s.ring.Reset(s.samples)
	s.stale = true
	return nil
}

// SetSampleCount resizes the ring, discarding all samples.
func (s *Sampler) SetSampleCount(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}
	s.samples = n
	s.ring.Reset(n)
	s.stale = true
	return nil
}

// SetColor changes the trail gradient.
func (s *Sampler) SetColor(c Color) {
	s.gradient = GradientFor(c)
}

// SetVisible sets whether frames are published.
func (s *Sampler) SetVisible(v bool) {
	s.visible = v
}

// Visible reports the host visibility flag.
func (s *Sampler) Visible() bool {
	return s.visible
}

// IsTrailActive reports whether the last Update found the trail enabled and in existence.
func (s *Sampler) IsTrailActive() bool {
	return s.active
}

// MaxRadius returns the largest sample distance from the parent seen so far.
func (s *Sampler) MaxRadius() float64 {
	return s.maxRadius
}

// Snapshot returns a copy of the buffer, its cursor and the last tip.
func (s *Sampler) Snapshot() Snapshot {
	return Snapshot{
		Samples: s.ring.Raw(),
		Cursor:  s.ring.Cursor(),
		Tip:     s.tip,
		HasTip:  s.hasTip,
	}
}

// Update advances the trail to time t and publishes a frame when visible.
// Lookup failures are absorbed; the affected slots keep their old contents.
func (s *Sampler) Update(t float64, observer ephemeris.Anchor) {
	s.time = t
	s.active = s.features.TrajectoriesEnabled() && s.window.ExtendedContains(t, s.length)
	if !s.active {
		return
	}

	// Recompute only when the step since the last frame is at most a tenth of
	// the trail; otherwise the previous buffer is kept as is.
	if !s.hadFrame || math.Abs(s.lastFrameTime-t) <= s.length/10 {
		s.recompute(t)
	} else if s.stats != nil {
		s.stats.TrackGuardSkip(s.name)
	}
	s.lastFrameTime = t
	s.hadFrame = true

	if s.visible {
		s.publish(t, observer)
	}
}

func (s *Sampler) recompute(t float64) {
	step := s.length / float64(s.samples)

	reset := s.stale || s.ring.Len() != s.samples
	if t > s.lastSampleTime+s.length || t < s.lastSampleTime-s.length {
		reset = true
	}
	if reset {
		s.ring.Reset(s.samples)
		s.stale = false
	}

	// Each direction needs at most samples+1 steps; the cap only matters when
	// step falls below the float resolution of t.
	maxSteps := 2*s.samples + 2

	if s.lastUpdateTime < t {
		if reset {
			s.lastSampleTime = t - s.length - step
		}
		for i := 0; s.lastSampleTime < t && i < maxSteps; i++ {
			s.lastSampleTime += step
			sampleTime := s.window.Clamp(s.lastSampleTime)
			if pos, ok := s.lookup(sampleTime); ok {
				s.ring.PushNewest(Sample{Position: pos, Time: sampleTime})
			}
		}
	} else {
		if reset {
			s.lastSampleTime = t + s.length + step
		}
		for i := 0; s.lastSampleTime-step > t && i < maxSteps; i++ {
			s.lastSampleTime -= step
			sampleTime := s.window.Clamp(s.lastSampleTime - s.length)
			if pos, ok := s.lookup(sampleTime); ok {
				s.ring.PushOldest(Sample{Position: pos, Time: sampleTime})
			}
		}
	}

	s.lastUpdateTime = t

	if reset {
		s.logger.Debug("Recalculating trajectory", "target", s.target.Center, "samples", s.samples)
		if s.stats != nil {
			s.stats.TrackReset(s.name)
		}
	}
}

func (s *Sampler) lookup(sampleTime float64) (vmath.Vec3, bool) {
	pos, err := s.provider.Position(s.target, s.parent, sampleTime)
	if s.stats != nil {
		s.stats.TrackLookup(s.name, err == nil)
	}
	if err != nil {
		logging.Trace(s.logger, "Trail sample unavailable", "time", sampleTime, "error", err)
		return vmath.Vec3{}, false
	}
	s.maxRadius = math.Max(s.maxRadius, vmath.Length(pos))
	return pos, true
}

func (s *Sampler) publish(t float64, observer ephemeris.Anchor) {
	tip, err := s.provider.Position(s.target, s.parent, s.window.Clamp(t))
	if err != nil {
		s.hasTip = false
		logging.Trace(s.logger, "Trail tip unavailable", "time", t, "error", err)
		return
	}

	var origin vmath.Vec3
	if observer.Center != "" {
		origin, err = s.provider.Position(s.parent, observer, t)
		if err != nil {
			s.hasTip = false
			logging.Trace(s.logger, "Trail origin unavailable", "time", t, "error", err)
			return
		}
	}
	s.tip = tip
	s.hasTip = true

	if s.uploader == nil {
		return
	}
	s.uploader.Upload(&Frame{
		Name:      s.name,
		Time:      t,
		Length:    s.length,
		Samples:   s.ring.Raw(),
		Cursor:    s.ring.Cursor(),
		Tip:       tip,
		Origin:    origin,
		Gradient:  s.gradient,
		MaxRadius: s.maxRadius,
	})
	if s.stats != nil {
		s.stats.TrackUpload(s.name)
	}
}
