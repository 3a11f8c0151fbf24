// Package marker tracks the screen markers drawn for bodies: a small colored
// dot for distant planets and a glare sprite for stars.
package marker

import (
	"log/slog"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/logging"
	"trailgo/pkg/trail"
	"trailgo/pkg/vmath"
)

// Kind selects how a marker is drawn.
type Kind string

const (
	KindDot   Kind = "dot"
	KindFlare Kind = "flare"
)

// Features reports the global marker toggles.
type Features interface {
	PlanetMarksEnabled() bool
	SunFlaresEnabled() bool
}

// TrailState is implemented by the trail a dot belongs to.
type TrailState interface {
	IsTrailActive() bool
	Visible() bool
}

// Sink receives marker states every frame they are drawn.
type Sink interface {
	UploadMarker(s *State)
}

// State is the per-frame marker payload.
type State struct {
	Name     string      `json:"name"`
	Kind     Kind        `json:"kind"`
	Time     float64     `json:"time"`
	Position vmath.Vec3  `json:"position"`
	Color    trail.Color `json:"color"`
}

// Config describes one marker.
type Config struct {
	Name   string
	Kind   Kind
	Target ephemeris.Anchor
	Color  trail.Color
	Window existence.Window
}

// Marker decides once per frame whether its body should be marked and where.
type Marker struct {
	cfg      Config
	provider ephemeris.Provider
	features Features
	trail    TrailState
	sink     Sink
	logger   *slog.Logger

	visible bool
	drawn   bool
}

// Option configures a Marker.
type Option func(*Marker)

// WithSink sets the marker consumer.
func WithSink(s Sink) Option {
	return func(m *Marker) { m.sink = s }
}

// WithTrail ties a dot's visibility to a trail.
func WithTrail(t TrailState) Option {
	return func(m *Marker) { m.trail = t }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Marker) { m.logger = l }
}

// New creates a marker.
func New(cfg Config, p ephemeris.Provider, f Features, opts ...Option) *Marker {
	m := &Marker{
		cfg:      cfg,
		provider: p,
		features: f,
		logger:   slog.Default(),
		visible:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("marker", cfg.Name, "kind", cfg.Kind)
	return m
}

// Name returns the marker name.
func (m *Marker) Name() string { return m.cfg.Name }

// Kind returns the marker kind.
func (m *Marker) Kind() Kind { return m.cfg.Kind }

// SetVisible sets the host visibility flag.
func (m *Marker) SetVisible(v bool) { m.visible = v }

// Drawn reports whether the last Update published the marker.
func (m *Marker) Drawn() bool { return m.drawn }

func (m *Marker) enabled() bool {
	switch m.cfg.Kind {
	case KindDot:
		return m.features.PlanetMarksEnabled()
	case KindFlare:
		return m.features.SunFlaresEnabled()
	}
	return false
}

func (m *Marker) shown() bool {
	if m.trail != nil {
		return m.trail.IsTrailActive() && m.trail.Visible()
	}
	return m.visible
}

// Update publishes the marker position relative to observer when the body
// exists at t, its toggle is on and it is shown.
func (m *Marker) Update(t float64, observer ephemeris.Anchor) {
	m.drawn = false
	if !m.enabled() || !m.cfg.Window.Contains(t) || !m.shown() {
		return
	}

	pos, err := m.provider.Position(m.cfg.Target, observer, t)
	if err != nil {
		logging.Trace(m.logger, "Marker position unavailable", "time", t, "error", err)
		return
	}
	m.drawn = true

	if m.sink == nil {
		return
	}
	m.sink.UploadMarker(&State{
		Name:     m.cfg.Name,
		Kind:     m.cfg.Kind,
		Time:     t,
		Position: pos,
		Color:    m.cfg.Color,
	})
}
