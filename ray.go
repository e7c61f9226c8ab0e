package solarroof

import "gonum.org/v1/gonum/spatial/r3"

// A Ray is a half-line used to pick roof surfaces.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec // Unit length
}

// A hit is where a ray meets a mesh.
type hit struct {
	tri   int     // Index into Mesh.Tris
	dist  float64 // Along the ray
	point r3.Vec
}

// triangle returns triangle i of m.
func (m *Mesh) triangle(i int) r3.Triangle {
	var t r3.Triangle
	for k, idx := range m.Tris[i] {
		t[k] = m.vert(idx)
	}
	return t
}

// nearestHit returns the first triangle of m along r. Triangles count
// from either side.
func (r Ray) nearestHit(m *Mesh) (hit, bool) {
	best := hit{tri: -1}
	for i := range m.Tris {
		tri := m.triangle(i)
		d, ok := r.crossTriangle(&tri)
		if ok && (best.tri < 0 || d < best.dist) {
			best = hit{tri: i, dist: d}
		}
	}
	if best.tri < 0 {
		return best, false
	}
	best.point = r.at(best.dist)
	return best, true
}

// crossTriangle returns the distance along r to tri, using the
// Möller–Trumbore test.
func (r Ray) crossTriangle(tri *r3.Triangle) (float64, bool) {
	const eps = 1e-7
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])
	p := r3.Cross(r.Dir, e2)
	det := r3.Dot(e1, p)
	if det > -eps && det < eps {
		// Parallel to the triangle's plane.
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(r.Origin, tri[0])
	u := inv * r3.Dot(s, p)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := inv * r3.Dot(r.Dir, q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	d := inv * r3.Dot(e2, q)
	if d < eps {
		// Behind the origin.
		return 0, false
	}
	return d, true
}

func (r Ray) at(d float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(d, r.Dir))
}
