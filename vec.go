package solarroof

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minLength is the shortest vector the geometry code will normalize, in
// metres.
const minLength = 1e-9

// eps is the absolute tolerance of containment tests, in metres.
const eps = 1e-9

var up = r3.Vec{Z: 1}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// unit returns v scaled to length 1. It fails if v is not finite or is
// shorter than minLength.
func unit(v r3.Vec) (r3.Vec, bool) {
	if !finite(v) {
		return r3.Vec{}, false
	}
	n := r3.Norm(v)
	if !(n > minLength) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

func finite(v r3.Vec) bool {
	for _, x := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// rotateZ rotates p by deg degrees counter-clockwise (seen from above)
// about the vertical axis through pivot.
func rotateZ(p, pivot r3.Vec, deg float64) r3.Vec {
	s, c := math.Sincos(deg * deg2rad)
	d := r3.Sub(p, pivot)
	return r3.Add(pivot, r3.Vec{X: d.X*c - d.Y*s, Y: d.X*s + d.Y*c, Z: d.Z})
}

// bearing returns the compass bearing of the horizontal projection of v,
// in degrees clockwise from north (+Y), in [0, 360). It returns NaN if v
// is vertical.
func bearing(v r3.Vec) float64 {
	if math.Hypot(v.X, v.Y) < minLength {
		return math.NaN()
	}
	return normDeg(math.Atan2(v.X, v.Y) * rad2deg)
}

// normDeg reduces an angle in degrees to [0, 360).
func normDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
