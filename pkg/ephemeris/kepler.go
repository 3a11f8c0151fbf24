package ephemeris

import (
	"fmt"
	"math"

	"trailgo/pkg/existence"
	"trailgo/pkg/vmath"
)

// Orbit holds classical elements of an elliptical orbit around Parent.
type Orbit struct {
	Parent        string
	SemiMajorAxis float64 // km
	Eccentricity  float64
	Inclination   float64 // radians
	AscendingNode float64 // radians
	Period        float64 // seconds
	MeanAnomaly   float64 // radians at J2000
	Coverage      existence.Window
}

// Kepler is an analytic two-body Source.
type Kepler struct {
	orbits map[string]Orbit
}

// NewKepler creates a Kepler source from the given orbits.
func NewKepler(orbits map[string]Orbit) *Kepler {
	return &Kepler{orbits: orbits}
}

// Has implements Source.
func (k *Kepler) Has(body string) bool {
	_, ok := k.orbits[body]
	return ok
}

// Relative implements Source.
func (k *Kepler) Relative(body string, t float64) (string, vmath.Vec3, error) {
	o, ok := k.orbits[body]
	if !ok {
		return "", vmath.Vec3{}, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	if t < o.Coverage.Start || t > o.Coverage.End {
		return "", vmath.Vec3{}, fmt.Errorf("%w: %s at %.0f", ErrDataUnavailable, body, t)
	}
	return o.Parent, o.position(t), nil
}

func (o *Orbit) position(t float64) vmath.Vec3 {
	if o.Period <= 0 {
		return vmath.Vec3{X: o.SemiMajorAxis}
	}
	m := math.Mod(o.MeanAnomaly+2*math.Pi*t/o.Period, 2*math.Pi)
	e := o.Eccentricity
	ea := solveKepler(m, e)

	p := vmath.Vec3{
		X: o.SemiMajorAxis * (math.Cos(ea) - e),
		Y: o.SemiMajorAxis * math.Sqrt(1-e*e) * math.Sin(ea),
	}
	return vmath.RotateZ(vmath.RotateX(p, o.Inclination), o.AscendingNode)
}

// solveKepler returns the eccentric anomaly for mean anomaly m.
func solveKepler(m, e float64) float64 {
	ea := m
	if e > 0.8 {
		ea = math.Pi
	}
	for i := 0; i < 32; i++ {
		d := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	return ea
}
