package solarroof

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Shape is the overall form of a roof.
type Shape uint8

const (
	Flat Shape = iota + 1
	Gable
	Hip
	Pyramid
)

func (s Shape) String() string {
	switch s {
	case Flat:
		return "flat"
	case Gable:
		return "gable"
	case Hip:
		return "hip"
	case Pyramid:
		return "pyramid"
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// ParseShape parses the name of a roof shape.
func ParseShape(s string) (Shape, error) {
	for _, sh := range []Shape{Flat, Gable, Hip, Pyramid} {
		if sh.String() == s {
			return sh, nil
		}
	}
	return 0, newError(ErrCodeInvalidScene, "unknown roof shape %q", s)
}

// Roof is a set of face descriptors plus the rotation applied to them.
// The roof's local frame has X east, Y north and Z up before rotation.
type Roof struct {
	Shape Shape

	base     []FaceDescriptor
	faces    []FaceDescriptor
	pivot    r3.Vec
	rotation float64
	mesh     *Mesh
	meshFace []FaceID
}

// NewRoof returns a roof with the given faces. Face IDs must be unique
// and every face must have the corner count of its topology.
func NewRoof(shape Shape, faces []FaceDescriptor) (*Roof, error) {
	if len(faces) == 0 {
		return nil, newError(ErrCodeInvalidFace, "roof has no faces")
	}
	seen := make(map[FaceID]bool)
	var sum r3.Vec
	var n int
	for _, d := range faces {
		if d.ID == "" {
			return nil, newError(ErrCodeInvalidFace, "face with empty ID")
		}
		if seen[d.ID] {
			return nil, newError(ErrCodeInvalidFace, "duplicate face %q", d.ID)
		}
		seen[d.ID] = true
		want := map[TopologyKind]int{Rectangle: 4, Triangle: 3, Trapezoid: 4}[d.Kind]
		if want == 0 || len(d.Corners) != want {
			return nil, newError(ErrCodeInvalidFace, "face %q: %v with %d corners", d.ID, d.Kind, len(d.Corners))
		}
		for _, c := range d.Corners {
			sum = r3.Add(sum, c)
			n++
		}
	}
	r := &Roof{
		Shape: shape,
		base:  cloneDescriptors(faces),
		pivot: r3.Scale(1/float64(n), sum),
	}
	r.apply()
	return r, nil
}

func cloneDescriptors(ds []FaceDescriptor) []FaceDescriptor {
	out := make([]FaceDescriptor, len(ds))
	for i, d := range ds {
		d.Corners = append([]r3.Vec(nil), d.Corners...)
		out[i] = d
	}
	return out
}

// Faces returns the current, rotated face descriptors.
func (r *Roof) Faces() []FaceDescriptor {
	return cloneDescriptors(r.faces)
}

// FaceIDs returns the IDs of the roof's faces in order.
func (r *Roof) FaceIDs() []FaceID {
	ids := make([]FaceID, len(r.faces))
	for i, d := range r.faces {
		ids[i] = d.ID
	}
	return ids
}

// Descriptor returns the current descriptor of face id.
func (r *Roof) Descriptor(id FaceID) (FaceDescriptor, bool) {
	for _, d := range r.faces {
		if d.ID == id {
			d.Corners = append([]r3.Vec(nil), d.Corners...)
			return d, true
		}
	}
	return FaceDescriptor{}, false
}

// MaxActive returns how many faces may carry panels at once. The areas
// of a flat roof overlap, so only one of them may be active.
func (r *Roof) MaxActive() int {
	if r.Shape == Flat {
		return 1
	}
	return 2
}

// Rotation returns the current rotation in degrees.
func (r *Roof) Rotation() float64 {
	return r.rotation
}

// Rotate sets the roof's rotation about the vertical axis through its
// centroid, in degrees counter-clockwise seen from above. It replaces
// any earlier rotation.
func (r *Roof) Rotate(deg float64) {
	r.rotation = deg
	r.apply()
}

// Pivot returns the point the roof rotates about.
func (r *Roof) Pivot() r3.Vec {
	return r.pivot
}

func (r *Roof) apply() {
	r.faces = cloneDescriptors(r.base)
	for i := range r.faces {
		d := &r.faces[i]
		for j, c := range d.Corners {
			d.Corners[j] = rotateZ(c, r.pivot, r.rotation)
		}
		if d.NormalHint != (r3.Vec{}) {
			d.NormalHint = rotateZ(d.NormalHint, r3.Vec{}, r.rotation)
		}
	}
	r.mesh, r.meshFace = roofMesh(r.faces)
}

func rect(id FaceID, a, b, c, d r3.Vec) FaceDescriptor {
	return FaceDescriptor{ID: id, Kind: Rectangle, Corners: []r3.Vec{a, b, c, d}}
}

func tri(id FaceID, a, b, apex r3.Vec) FaceDescriptor {
	return FaceDescriptor{ID: id, Kind: Triangle, Corners: []r3.Vec{a, b, apex}}
}

func trap(id FaceID, a, b, c, d r3.Vec) FaceDescriptor {
	return FaceDescriptor{ID: id, Kind: Trapezoid, Corners: []r3.Vec{a, b, c, d}}
}

func mustRoof(shape Shape, faces []FaceDescriptor) *Roof {
	r, err := NewRoof(shape, faces)
	if err != nil {
		panic(err)
	}
	return r
}

// FlatRoof returns a flat roof of the given width (east-west) and length
// (north-south) at the given height. Its faces are the "center" area and
// the "north", "south", "east" and "west" halves, all on one surface.
func FlatRoof(width, length, height float64) *Roof {
	c := []r3.Vec{{X: 0, Y: 0, Z: height}, {X: width, Y: 0, Z: height}, {X: width, Y: length, Z: height}, {X: 0, Y: length, Z: height}}
	area := func(id FaceID, split SubArea) FaceDescriptor {
		d := rect(id, c[0], c[1], c[2], c[3])
		d.Surface, d.Flat, d.Split = "center", true, split
		return d
	}
	return mustRoof(Flat, []FaceDescriptor{
		area("center", WholeArea),
		area("north", NorthHalf),
		area("south", SouthHalf),
		area("east", EastHalf),
		area("west", WestHalf),
	})
}

// GableRoof returns a gable roof whose ridge runs north-south along the
// middle of the width, height above the eaves. Its faces are the "left"
// (west) and "right" (east) slopes.
func GableRoof(width, length, height float64) *Roof {
	var (
		ridgeFront = r3.Vec{X: width / 2, Y: 0, Z: height}
		ridgeBack  = r3.Vec{X: width / 2, Y: length, Z: height}
		leftFront  = r3.Vec{X: 0, Y: 0}
		leftBack   = r3.Vec{X: 0, Y: length}
		rightFront = r3.Vec{X: width, Y: 0}
		rightBack  = r3.Vec{X: width, Y: length}
	)
	return mustRoof(Gable, []FaceDescriptor{
		rect("left", leftFront, leftBack, ridgeBack, ridgeFront),
		rect("right", rightFront, rightBack, ridgeBack, ridgeFront),
	})
}

// HipRoof returns a hip roof with a north-south ridge spanning the middle
// half of the length. Its faces are the triangular "front" (south) and
// "back" (north) ends and the trapezoidal "left" and "right" sides.
func HipRoof(width, length, height float64) *Roof {
	var (
		frontLeft  = r3.Vec{X: 0, Y: 0}
		frontRight = r3.Vec{X: width, Y: 0}
		backLeft   = r3.Vec{X: 0, Y: length}
		backRight  = r3.Vec{X: width, Y: length}
		ridgeFront = r3.Vec{X: width / 2, Y: 0.25 * length, Z: height}
		ridgeBack  = r3.Vec{X: width / 2, Y: 0.75 * length, Z: height}
	)
	return mustRoof(Hip, []FaceDescriptor{
		tri("front", frontLeft, frontRight, ridgeFront),
		tri("back", backRight, backLeft, ridgeBack),
		trap("left", backLeft, frontLeft, ridgeFront, ridgeBack),
		trap("right", frontRight, backRight, ridgeBack, ridgeFront),
	})
}

// PyramidRoof returns a pyramid roof with its apex above the centre of
// the base. Its faces are "front" (south), "right" (east), "back"
// (north) and "left" (west).
func PyramidRoof(width, length, height float64) *Roof {
	var (
		fl   = r3.Vec{X: 0, Y: 0}
		fr   = r3.Vec{X: width, Y: 0}
		br   = r3.Vec{X: width, Y: length}
		bl   = r3.Vec{X: 0, Y: length}
		apex = r3.Vec{X: width / 2, Y: length / 2, Z: height}
	)
	return mustRoof(Pyramid, []FaceDescriptor{
		tri("front", fl, fr, apex),
		tri("right", fr, br, apex),
		tri("back", br, bl, apex),
		tri("left", bl, fl, apex),
	})
}

// roofMesh triangulates the faces for ray casting. The second result
// maps each triangle to its face's surface.
func roofMesh(faces []FaceDescriptor) (*Mesh, []FaceID) {
	m := new(Mesh)
	var owner []FaceID
	seen := make(map[FaceID]bool)
	for _, d := range faces {
		s := d.Surface
		if s == "" {
			s = d.ID
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		base := len(m.Verts)
		for _, c := range d.Corners {
			m.Verts = append(m.Verts, [3]float64{c.X, c.Y, c.Z})
		}
		for i := 1; i+1 < len(d.Corners); i++ {
			m.Tris = append(m.Tris, [3]int{base, base + i, base + i + 1})
			owner = append(owner, s)
		}
	}
	return m, owner
}

// FaceAt returns the surface directly below or above p, casting a
// vertical ray. Where surfaces overlap in plan view it returns the
// highest one.
func (r *Roof) FaceAt(p r3.Vec) (FaceID, bool) {
	top := math.Inf(-1)
	for _, v := range r.mesh.Verts {
		top = math.Max(top, v[2])
	}
	ray := Ray{Origin: r3.Vec{X: p.X, Y: p.Y, Z: math.Max(top, p.Z) + 1}, Dir: r3.Vec{Z: -1}}
	h, ok := ray.nearestHit(r.mesh)
	if !ok {
		return "", false
	}
	return r.meshFace[h.tri], true
}
