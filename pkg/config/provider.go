package config

import (
	"context"
	"strconv"
	"time"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Clock
	ClockSpeed(ctx context.Context) float64
	FrameInterval(ctx context.Context) time.Duration

	// Scene
	Observer(ctx context.Context) (string, ephemeris.Anchor)
	TrailLength(ctx context.Context, name string) time.Duration
	TrailSamples(ctx context.Context, name string) int

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) ClockSpeed(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyClockSpeed, p.base.Clock.Speed)
}

func (p *UnifiedProvider) FrameInterval(ctx context.Context) time.Duration {
	return time.Duration(p.base.Ticker.FrameInterval)
}

// Observer returns the observer name and anchor. A persisted observer that is
// no longer a configured anchor falls back to the static one.
func (p *UnifiedProvider) Observer(ctx context.Context) (string, ephemeris.Anchor) {
	name := p.getString(ctx, KeyObserver, p.base.Observer)
	a, ok := p.base.Anchors[name]
	if !ok {
		name = p.base.Observer
		a = p.base.Anchors[name]
	}
	return name, a.Anchor()
}

func (p *UnifiedProvider) TrailLength(ctx context.Context, name string) time.Duration {
	var fallback time.Duration
	if tc, ok := p.base.Trajectories[name]; ok && tc.Trail != nil {
		fallback = time.Duration(tc.Trail.Length)
	}
	d := p.getDuration(ctx, TrailLengthKey(name), fallback)
	if d <= 0 {
		return fallback
	}
	return d
}

func (p *UnifiedProvider) TrailSamples(ctx context.Context, name string) int {
	var fallback int
	if tc, ok := p.base.Trajectories[name]; ok && tc.Trail != nil {
		fallback = tc.Trail.Samples
	}
	n := p.getInt(ctx, TrailSamplesKey(name), fallback)
	if n < 1 {
		return fallback
	}
	return n
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}
