package solarroof

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/spatial/r3"
)

// FaceID names a roof face, such as "left" or "north".
type FaceID string

type TopologyKind uint8

const (
	Rectangle TopologyKind = iota + 1
	Triangle
	Trapezoid
)

func (k TopologyKind) String() string {
	switch k {
	case Rectangle:
		return "rectangle"
	case Triangle:
		return "triangle"
	case Trapezoid:
		return "trapezoid"
	}
	return fmt.Sprintf("TopologyKind(%d)", uint8(k))
}

// Topology is a region of a face in the face's (u, v) frame, where u
// runs along the eave and v up the slope. Every supported region has a
// bottom edge at v = V0 and a top edge at v = V1, both parallel to the
// eave; a triangle's top edge has zero length.
type Topology struct {
	Kind                    TopologyKind
	V0, V1                  float64
	BottomLeft, BottomRight float64 // u range of the bottom edge
	TopLeft, TopRight       float64 // u range of the top edge
}

func (t Topology) Height() float64 {
	return t.V1 - t.V0
}

// Empty reports whether the region has no interior.
func (t Topology) Empty() bool {
	if !(t.Height() > eps) {
		return true
	}
	return !(t.BottomRight-t.BottomLeft > eps || t.TopRight-t.TopLeft > eps)
}

func (t Topology) frac(v float64) float64 {
	return (v - t.V0) / t.Height()
}

// Left returns the u coordinate of the region's left side at height v.
func (t Topology) Left(v float64) float64 {
	f := t.frac(v)
	return t.BottomLeft + f*(t.TopLeft-t.BottomLeft)
}

// Right returns the u coordinate of the region's right side at height v.
func (t Topology) Right(v float64) float64 {
	f := t.frac(v)
	return t.BottomRight + f*(t.TopRight-t.BottomRight)
}

// Ring returns the region as a closed counter-clockwise polygon ring.
func (t Topology) Ring() orb.Ring {
	r := orb.Ring{{t.BottomLeft, t.V0}, {t.BottomRight, t.V0}, {t.TopRight, t.V1}}
	if t.TopLeft != t.TopRight {
		r = append(r, orb.Point{t.TopLeft, t.V1})
	}
	return append(r, r[0])
}

// Area returns the region's area in square metres.
func (t Topology) Area() float64 {
	if t.Empty() {
		return 0
	}
	return math.Abs(planar.Area(orb.Polygon{t.Ring()}))
}

// Contains reports whether the point (u, v) lies in the region, within
// the containment tolerance.
func (t Topology) Contains(u, v float64) bool {
	if t.Empty() || v < t.V0-eps || v > t.V1+eps {
		return false
	}
	return u >= t.Left(v)-eps && u <= t.Right(v)+eps
}

// SubArea selects part of a flat roof.
type SubArea uint8

const (
	WholeArea SubArea = iota
	NorthHalf
	SouthHalf
	EastHalf
	WestHalf
)

// FaceDescriptor is the input geometry of one roof face.
//
// Corners are given eave first. For a Rectangle they are the two eave
// corners followed by the ridge corner above the second and the ridge
// corner above the first. For a Triangle they are the two eave corners
// and the apex. For a Trapezoid they are the two eave corners followed
// by the ridge corner nearer the second and the one nearer the first.
type FaceDescriptor struct {
	ID      FaceID
	Kind    TopologyKind
	Corners []r3.Vec

	// Surface names the physical roof surface the face lies on. Faces
	// carved from the same surface, like the areas of a flat roof,
	// share it. It defaults to ID.
	Surface FaceID

	// Flat faces are horizontal and get tilted mounts; pitched faces
	// get panels flush with the roof.
	Flat  bool
	Split SubArea

	// NormalHint, if non-zero, selects which side of the face is
	// outside. Otherwise the normal points up.
	NormalHint r3.Vec
}

// RoofFace is a face resolved into a planar frame and a usable region.
type RoofFace struct {
	ID      FaceID
	Surface FaceID
	Flat    bool
	Corners []r3.Vec

	// Origin, U and V define the face frame: a point (u, v) is at
	// Origin + u·U + v·V. U and V are orthonormal and Normal is the
	// outward unit normal.
	Origin     r3.Vec
	U, V       r3.Vec
	Normal     r3.Vec
	RidgeDir   r3.Vec // Unit direction of a trapezoid's ridge edge
	Outline    Topology
	Region     Topology
	Degenerate bool
}

// Point returns the 3D point at (u, v) in the face frame.
func (f *RoofFace) Point(u, v float64) r3.Vec {
	return r3.Add(f.Origin, r3.Add(r3.Scale(u, f.U), r3.Scale(v, f.V)))
}

// Local returns the face frame coordinates of p projected onto the
// face plane.
func (f *RoofFace) Local(p r3.Vec) (u, v float64) {
	d := r3.Sub(p, f.Origin)
	return r3.Dot(d, f.U), r3.Dot(d, f.V)
}

// Pitch returns the angle between the face and horizontal, in degrees.
func (f *RoofFace) Pitch() float64 {
	return math.Acos(clamp(math.Abs(r3.Dot(f.Normal, up)), 0, 1)) * rad2deg
}

// Azimuth returns the compass bearing the face looks toward, in degrees
// clockwise from north, or NaN for a horizontal face.
func (f *RoofFace) Azimuth() float64 {
	return bearing(f.Normal)
}

// Area returns the area of the whole face (or flat sub-area), ignoring
// margins, in square metres.
func (f *RoofFace) Area() float64 {
	return f.Outline.Area()
}

// ResolveFace computes the frame and usable region of a face. Margins
// come from spec for flat roofs and the eaves of triangles and
// trapezoids. Pitched rectangles keep the larger of spec's margin and
// tuning's insets. Other edges use tuning.
//
// A descriptor with the wrong number of corners is an ErrCodeInvalidFace
// error. Degenerate geometry (coincident corners, zero-length edges or
// an unusable normal) is not an error: the face comes back marked
// Degenerate with an empty region.
func ResolveFace(d FaceDescriptor, spec PanelSpec, tuning FaceTuning) (*RoofFace, error) {
	want := map[TopologyKind]int{Rectangle: 4, Triangle: 3, Trapezoid: 4}[d.Kind]
	if want == 0 {
		return nil, newError(ErrCodeInvalidFace, "face %q: unknown topology %v", d.ID, d.Kind)
	}
	if len(d.Corners) != want {
		return nil, newError(ErrCodeInvalidFace, "face %q: %v needs %d corners, got %d", d.ID, d.Kind, want, len(d.Corners))
	}
	f := &RoofFace{
		ID:      d.ID,
		Surface: d.Surface,
		Flat:    d.Flat,
		Corners: append([]r3.Vec(nil), d.Corners...),
	}
	if f.Surface == "" {
		f.Surface = d.ID
	}
	if !f.frame(d) {
		f.Degenerate = true
		return f, nil
	}
	m := spec.metres()
	switch d.Kind {
	case Rectangle:
		f.resolveRectangle(d, m, tuning)
	case Triangle:
		f.resolveTriangle(m, tuning)
	case Trapezoid:
		f.resolveTrapezoid(m, tuning)
	}
	return f, nil
}

// frame sets Origin, U, V and Normal from the first corners: U along the
// eave and V toward the ridge or apex, orthogonal to U.
func (f *RoofFace) frame(d FaceDescriptor) bool {
	c := f.Corners
	for _, p := range c {
		if !finite(p) {
			return false
		}
	}
	u, ok := unit(r3.Sub(c[1], c[0]))
	if !ok {
		return false
	}
	// Use the far corner(s) to find the upslope direction.
	var far r3.Vec
	switch d.Kind {
	case Triangle:
		far = c[2]
	default:
		far = r3.Scale(0.5, r3.Add(c[2], c[3]))
	}
	toFar := r3.Sub(far, c[0])
	v, ok := unit(r3.Sub(toFar, r3.Scale(r3.Dot(toFar, u), u)))
	if !ok {
		return false
	}
	n, ok := unit(r3.Cross(u, v))
	if !ok {
		return false
	}
	hint := d.NormalHint
	if hint == (r3.Vec{}) || !finite(hint) {
		hint = up
	}
	if r3.Dot(n, hint) < 0 {
		n = r3.Scale(-1, n)
	}
	f.Origin, f.U, f.V, f.Normal = c[0], u, v, n
	return true
}

func (f *RoofFace) resolveRectangle(d FaceDescriptor, m metres, tuning FaceTuning) {
	width := r3.Norm(r3.Sub(f.Corners[1], f.Corners[0]))
	_, length := f.Local(r3.Scale(0.5, r3.Add(f.Corners[2], f.Corners[3])))
	f.Outline = Topology{Kind: Rectangle, V0: 0, V1: length, BottomLeft: 0, BottomRight: width, TopLeft: 0, TopRight: width}

	var hm, vm float64
	if d.Flat {
		hm = math.Min(m.edge, 0.2*math.Min(width, length))
		vm = hm
	} else {
		hm = math.Max(m.edge, tuning.Horizontal.For(width))
		vm = math.Max(m.edge, tuning.Vertical.For(length))
	}
	u0, u1, v0, v1 := hm, width-hm, vm, length-vm
	if d.Flat {
		midU, midV := width/2, length/2
		switch d.Split {
		case NorthHalf:
			v0 = midV
			f.Outline.V0 = midV
		case SouthHalf:
			v1 = midV
			f.Outline.V1 = midV
		case EastHalf:
			u0 = midU
			f.Outline.BottomLeft, f.Outline.TopLeft = midU, midU
		case WestHalf:
			u1 = midU
			f.Outline.BottomRight, f.Outline.TopRight = midU, midU
		}
	}
	f.Region = Topology{Kind: Rectangle, V0: v0, V1: v1, BottomLeft: u0, BottomRight: u1, TopLeft: u0, TopRight: u1}
}

func (f *RoofFace) resolveTriangle(m metres, tuning FaceTuning) {
	base := r3.Norm(r3.Sub(f.Corners[1], f.Corners[0]))
	apexU, height := f.Local(f.Corners[2])
	f.Outline = Topology{Kind: Triangle, V0: 0, V1: height, BottomLeft: 0, BottomRight: base, TopLeft: apexU, TopRight: apexU}

	hOff := tuning.Horizontal.For(base)
	vOff := tuning.Vertical.For(height)
	// Shrink the insets if they leave no room for a single panel.
	if base-2*hOff < m.width+2*m.gap {
		hOff = math.Max(tuning.MinInset, (base-m.width-2*m.gap)/2)
	}
	if height-vOff-m.edge < m.length+2*m.gap {
		vOff = math.Max(tuning.MinInset, height-m.edge-m.length-2*m.gap)
	}

	v0, v1 := m.edge, height-vOff
	if !(v1 > v0) {
		f.Region = Topology{Kind: Triangle}
		return
	}
	// Keep the corners inside the face's sloped sides.
	left := math.Max(hOff, f.Outline.Left(v0))
	right := math.Min(base-hOff, f.Outline.Right(v0))
	top := clamp(apexU, f.Outline.Left(v1), f.Outline.Right(v1))
	f.Region = Topology{Kind: Triangle, V0: v0, V1: v1, BottomLeft: left, BottomRight: right, TopLeft: top, TopRight: top}
	if right <= left {
		f.Region = Topology{Kind: Triangle}
	}
}

func (f *RoofFace) resolveTrapezoid(m metres, tuning FaceTuning) {
	eave := r3.Norm(r3.Sub(f.Corners[1], f.Corners[0]))
	rightU, rightV := f.Local(f.Corners[2])
	leftU, leftV := f.Local(f.Corners[3])
	height := (rightV + leftV) / 2
	f.Outline = Topology{Kind: Trapezoid, V0: 0, V1: height, BottomLeft: 0, BottomRight: eave, TopLeft: leftU, TopRight: rightU}
	if d, ok := unit(r3.Sub(f.Corners[2], f.Corners[3])); ok {
		f.RidgeDir = d
	} else {
		f.RidgeDir = f.U
	}

	eaveOff := tuning.Horizontal.For(eave)
	ridgeOff := tuning.Ridge.For(rightU - leftU)
	vOff := tuning.Vertical.For(height)

	v0, v1 := m.edge, height-vOff
	if !(v1 > v0) {
		f.Region = Topology{Kind: Trapezoid}
		return
	}
	bl := math.Max(eaveOff, f.Outline.Left(v0))
	br := math.Min(eave-eaveOff, f.Outline.Right(v0))
	tl := math.Max(leftU+ridgeOff, f.Outline.Left(v1))
	tr := math.Min(rightU-ridgeOff, f.Outline.Right(v1))
	if tl > tr {
		// The ridge inset swallowed the ridge: close the region to
		// a point above the ridge midpoint.
		mid := (leftU + rightU) / 2
		tl, tr = mid, mid
	}
	f.Region = Topology{Kind: Trapezoid, V0: v0, V1: v1, BottomLeft: bl, BottomRight: br, TopLeft: tl, TopRight: tr}
	if br <= bl {
		f.Region = Topology{Kind: Trapezoid}
	}
}
