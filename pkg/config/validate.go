package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks references between sections and the trail parameters.
func (c *Config) Validate() error {
	if c.Ticker.FrameInterval <= 0 {
		return fmt.Errorf("%w: ticker.frame_interval must be positive", ErrInvalid)
	}
	if c.Clock.Start != "" {
		if _, err := existence.ParseTime(c.Clock.Start); err != nil {
			return fmt.Errorf("%w: clock.start: %v", ErrInvalid, err)
		}
	}
	if _, ok := c.Anchors[c.Observer]; !ok {
		return fmt.Errorf("%w: observer %q is not an anchor", ErrInvalid, c.Observer)
	}
	for _, s := range c.Ephemeris.Sources {
		if s != "table" && s != "kepler" {
			return fmt.Errorf("%w: unknown ephemeris source %q", ErrInvalid, s)
		}
	}
	for name, o := range c.Ephemeris.Bodies {
		if _, err := o.Orbit(); err != nil {
			return fmt.Errorf("%w: ephemeris.bodies.%s: %v", ErrInvalid, name, err)
		}
	}
	for name, a := range c.Anchors {
		if a.Center == "" {
			return fmt.Errorf("%w: anchors.%s: center is required", ErrInvalid, name)
		}
		if !c.knownFrame(a.Frame) {
			return fmt.Errorf("%w: anchors.%s: unknown frame %q", ErrInvalid, name, a.Frame)
		}
		if _, err := a.Window(); err != nil {
			return fmt.Errorf("%w: anchors.%s: %v", ErrInvalid, name, err)
		}
	}
	for name, tc := range c.Trajectories {
		if _, ok := c.Anchors[name]; !ok {
			return fmt.Errorf("%w: trajectories.%s has no anchor", ErrInvalid, name)
		}
		if tc.Trail == nil {
			continue
		}
		if tc.Trail.Length <= 0 {
			return fmt.Errorf("%w: trajectories.%s: trail length must be positive", ErrInvalid, name)
		}
		if tc.Trail.Samples < 1 {
			return fmt.Errorf("%w: trajectories.%s: trail samples must be at least 1", ErrInvalid, name)
		}
		if tc.Trail.ParentCenter == "" {
			return fmt.Errorf("%w: trajectories.%s: parent_center is required", ErrInvalid, name)
		}
		if !c.knownFrame(tc.Trail.ParentFrame) {
			return fmt.Errorf("%w: trajectories.%s: unknown parent frame %q", ErrInvalid, name, tc.Trail.ParentFrame)
		}
	}
	return nil
}

func (c *Config) knownFrame(f string) bool {
	return len(c.Ephemeris.Frames) == 0 || slices.Contains(c.Ephemeris.Frames, f)
}

// ObserverAnchor returns the anchor of the configured observer.
func (c *Config) ObserverAnchor() ephemeris.Anchor {
	return c.Anchors[c.Observer].Anchor()
}

// StartTime returns the configured clock start in seconds past J2000,
// falling back to now when unset.
func (c *ClockConfig) StartTime(now time.Time) (float64, error) {
	if c.Start == "" {
		return existence.FromTime(now), nil
	}
	return existence.ParseTime(c.Start)
}

// Anchor returns the ephemeris anchor.
func (a AnchorConfig) Anchor() ephemeris.Anchor {
	return ephemeris.Anchor{Center: a.Center, Frame: a.Frame}
}

// Window returns the existence window, unbounded when unset.
func (a AnchorConfig) Window() (existence.Window, error) {
	return parseWindow(a.Existence)
}

// Parent returns the anchor trail samples are expressed against.
func (t *TrailConfig) Parent() ephemeris.Anchor {
	return ephemeris.Anchor{Center: t.ParentCenter, Frame: t.ParentFrame}
}

// Seconds returns the trail length in seconds.
func (t *TrailConfig) Seconds() float64 {
	return time.Duration(t.Length).Seconds()
}

// Orbit converts the elements to the units used by the Kepler source.
func (o OrbitConfig) Orbit() (ephemeris.Orbit, error) {
	if o.Parent == "" {
		return ephemeris.Orbit{}, errors.New("parent is required")
	}
	if o.SemiMajorAxis <= 0 {
		return ephemeris.Orbit{}, errors.New("semi_major_axis must be positive")
	}
	if o.Eccentricity < 0 || o.Eccentricity >= 1 {
		return ephemeris.Orbit{}, fmt.Errorf("eccentricity %v outside [0, 1)", o.Eccentricity)
	}
	if o.Period <= 0 {
		return ephemeris.Orbit{}, errors.New("period must be positive")
	}
	cov, err := parseWindow(o.Coverage)
	if err != nil {
		return ephemeris.Orbit{}, fmt.Errorf("coverage: %w", err)
	}
	return ephemeris.Orbit{
		Parent:        o.Parent,
		SemiMajorAxis: float64(o.SemiMajorAxis) / 1000,
		Eccentricity:  o.Eccentricity,
		Inclination:   deg2rad(o.Inclination),
		AscendingNode: deg2rad(o.AscendingNode),
		Period:        time.Duration(o.Period).Seconds(),
		MeanAnomaly:   deg2rad(o.MeanAnomaly),
		Coverage:      cov,
	}, nil
}

func parseWindow(bounds []string) (existence.Window, error) {
	switch len(bounds) {
	case 0:
		return existence.Unbounded(), nil
	case 2:
		return existence.Parse(bounds[0], bounds[1])
	}
	return existence.Window{}, fmt.Errorf("expected [start, end], got %d values", len(bounds))
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
