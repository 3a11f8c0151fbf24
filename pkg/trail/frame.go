package trail

import (
	"math"

	"trailgo/pkg/vmath"
)

// Color is an RGB triple in [0, 1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
}

// RGBA is a color with alpha.
type RGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Gradient fades a trail from its head (Start) to its tail (End).
type Gradient struct {
	Start RGBA `json:"start"`
	End   RGBA `json:"end"`
}

// GradientFor returns an opaque-to-transparent gradient of c.
func GradientFor(c Color) Gradient {
	return Gradient{
		Start: RGBA{R: c.R, G: c.G, B: c.B, A: 1},
		End:   RGBA{R: c.R, G: c.G, B: c.B, A: 0},
	}
}

// At blends the gradient, f=0 being the head.
func (g Gradient) At(f float64) RGBA {
	f = math.Max(0, math.Min(1, f))
	mix := func(a, b float32) float32 { return a + (b-a)*float32(f) }
	return RGBA{
		R: mix(g.Start.R, g.End.R),
		G: mix(g.Start.G, g.End.G),
		B: mix(g.Start.B, g.End.B),
		A: mix(g.Start.A, g.End.A),
	}
}

// Frame is what a sampler hands to its uploader every visible frame.
// Samples are in storage order; iteration starts at Cursor (oldest) and
// wraps around to Cursor-1 (newest).
type Frame struct {
	Name      string     `json:"name"`
	Time      float64    `json:"time"`
	Length    float64    `json:"length"`
	Samples   []Sample   `json:"samples"`
	Cursor    int        `json:"cursor"`
	Tip       vmath.Vec3 `json:"tip"`
	Origin    vmath.Vec3 `json:"origin"`
	Gradient  Gradient   `json:"gradient"`
	MaxRadius float64    `json:"max_radius"`
}

// Uploader consumes frames. Implementations must copy what they keep.
type Uploader interface {
	Upload(f *Frame)
}

// Vertex is one point of the renderable trail line.
type Vertex struct {
	Position vmath.Vec3 `json:"position"`
	Color    RGBA       `json:"color"`
}

// Polyline returns the valid samples from oldest to newest followed by the tip,
// colored by age relative to the frame time.
func (f *Frame) Polyline() []Vertex {
	n := len(f.Samples)
	out := make([]Vertex, 0, n+1)
	for i := 0; i < n; i++ {
		s := f.Samples[(f.Cursor+i)%n]
		if !s.Valid {
			continue
		}
		age := 0.0
		if f.Length > 0 {
			age = (f.Time - s.Time) / f.Length
		}
		out = append(out, Vertex{Position: s.Position, Color: f.Gradient.At(age)})
	}
	return append(out, Vertex{Position: f.Tip, Color: f.Gradient.Start})
}
