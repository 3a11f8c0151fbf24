// Package vmath holds the small amount of 3-D vector math shared by providers and trails.
package vmath

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a Cartesian position in kilometers.
type Vec3 = r3.Vec

// Length returns the Euclidean norm of v.
func Length(v Vec3) float64 {
	return r3.Norm(v)
}

// Lerp interpolates linearly between a and b. f is not clamped.
func Lerp(a, b Vec3, f float64) Vec3 {
	return r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
}

// RotateX rotates v around the X axis by angle radians.
func RotateX(v Vec3, angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{X: v.X, Y: v.Y*c - v.Z*s, Z: v.Y*s + v.Z*c}
}

// RotateZ rotates v around the Z axis by angle radians.
func RotateZ(v Vec3, angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}
