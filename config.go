package solarroof

import (
	"math"
)

// PanelSpec describes the panels to lay out. Lengths are in millimetres,
// angles in degrees and power in watts.
type PanelSpec struct {
	Width        float64 // Along the row
	Length       float64 // Up the slope
	Gap          float64 // Between adjacent panels
	EdgeMargin   float64 // Clear border kept along roof edges
	HeightOffset float64 // Standoff above the roof surface

	// Tilt and Azimuth apply to flat roofs only. Tilt is the angle of
	// the panel above horizontal. Azimuth is the compass direction the
	// panel faces, clockwise from north, so 180 faces south.
	Tilt    float64
	Azimuth float64

	Power float64 // Rated power of one panel
}

// DefaultPanelSpec returns a typical 400 W residential panel mounted
// flush with a 300 mm edge margin.
func DefaultPanelSpec() PanelSpec {
	return PanelSpec{
		Width:        1000,
		Length:       1600,
		Gap:          50,
		EdgeMargin:   300,
		HeightOffset: 50,
		Tilt:         0,
		Azimuth:      180,
		Power:        400,
	}
}

// Plausibility limits for PanelSpec, in millimetres.
const (
	maxPanelDim   = 5000
	maxPanelGap   = 1000
	maxEdgeMargin = 5000
	maxHeight     = 2000
)

// Validate reports whether every field is in range. It returns an
// ErrCodeConfigOutOfRange error naming the first bad field.
func (s PanelSpec) Validate() error {
	check := func(name string, v, lo, hi float64, loOpen bool) error {
		bad := math.IsNaN(v) || v > hi || v < lo || (loOpen && v == lo)
		if !bad {
			return nil
		}
		if loOpen {
			return newError(ErrCodeConfigOutOfRange, "%s = %v, want in (%v, %v]", name, v, lo, hi)
		}
		return newError(ErrCodeConfigOutOfRange, "%s = %v, want in [%v, %v]", name, v, lo, hi)
	}
	for _, c := range []struct {
		name       string
		v, lo, hi  float64
		openAtZero bool
	}{
		{"panel width", s.Width, 0, maxPanelDim, true},
		{"panel length", s.Length, 0, maxPanelDim, true},
		{"panel gap", s.Gap, 0, maxPanelGap, true},
		{"edge margin", s.EdgeMargin, 0, maxEdgeMargin, true},
		{"height offset", s.HeightOffset, 0, maxHeight, false},
		{"tilt", s.Tilt, 0, 90, false},
		{"power", s.Power, 0, math.MaxFloat64, true},
	} {
		if err := check(c.name, c.v, c.lo, c.hi, c.openAtZero); err != nil {
			return err
		}
	}
	if math.IsNaN(s.Azimuth) || math.IsInf(s.Azimuth, 0) {
		return newError(ErrCodeConfigOutOfRange, "azimuth = %v, want a finite angle", s.Azimuth)
	}
	return nil
}

// PanelUpdate is a partial PanelSpec. Nil fields keep their current
// value.
type PanelUpdate struct {
	Width        *float64
	Length       *float64
	Gap          *float64
	EdgeMargin   *float64
	HeightOffset *float64
	Tilt         *float64
	Azimuth      *float64
	Power        *float64
}

// Merge returns s with the non-nil fields of u applied. It does not
// validate the result.
func (s PanelSpec) Merge(u PanelUpdate) PanelSpec {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Width, u.Width)
	set(&s.Length, u.Length)
	set(&s.Gap, u.Gap)
	set(&s.EdgeMargin, u.EdgeMargin)
	set(&s.HeightOffset, u.HeightOffset)
	set(&s.Tilt, u.Tilt)
	set(&s.Azimuth, u.Azimuth)
	set(&s.Power, u.Power)
	return s
}

// metres holds the lengths of a PanelSpec converted to metres.
type metres struct {
	width, length, gap, edge, height float64
}

func (s PanelSpec) metres() metres {
	return metres{s.Width / 1000, s.Length / 1000, s.Gap / 1000, s.EdgeMargin / 1000, s.HeightOffset / 1000}
}

// OffsetRule computes an inset from an edge as the larger of a fixed
// floor and a fraction of the edge length. Lengths are in metres.
type OffsetRule struct {
	Floor    float64
	Fraction float64
}

// For returns the inset for an edge of the given length.
func (r OffsetRule) For(edge float64) float64 {
	return math.Max(r.Floor, r.Fraction*edge)
}

// FaceTuning holds the insets used to derive a face's usable region.
//
// For rectangles, Horizontal applies at both ends of the eave and
// Vertical at the eave and the ridge, neither less than the panel spec's
// EdgeMargin. For triangles and trapezoids,
// Horizontal applies at each eave corner, Vertical below the apex or
// ridge, and Ridge at each ridge corner of a trapezoid; the eave itself
// keeps the panel spec's EdgeMargin.
type FaceTuning struct {
	Horizontal OffsetRule
	Vertical   OffsetRule
	Ridge      OffsetRule

	// MinInset is the smallest inset a triangle's offsets may shrink
	// to when the full offsets leave no room for a panel.
	MinInset float64
}

// ChimneyParams controls the chimney shading yield factor.
type ChimneyParams struct {
	PerChimney      float64 // Flat loss per chimney
	Multiplier      float64 // Weight of the shaded area ratio
	ReferenceHeight float64 // Height in metres at which the height factor is 1
	MaxHeightFactor float64
	MaxImpact       float64 // Upper bound of the total loss

	// Default chimney size in metres, for chimneys without dimensions.
	DefaultWidth, DefaultLength, DefaultHeight float64
}

// ShapeTuning collects the per-shape tuning of a roof.
type ShapeTuning struct {
	Rectangle FaceTuning
	Triangle  FaceTuning
	Trapezoid FaceTuning
	Chimney   ChimneyParams
}

func (t ShapeTuning) face(k TopologyKind) FaceTuning {
	switch k {
	case Triangle:
		return t.Triangle
	case Trapezoid:
		return t.Trapezoid
	}
	return t.Rectangle
}

var (
	triangleTuning = FaceTuning{
		Horizontal: OffsetRule{Floor: 0.3, Fraction: 0.15},
		Vertical:   OffsetRule{Floor: 0.3, Fraction: 0.20},
		MinInset:   0.1,
	}
	trapezoidTuning = FaceTuning{
		Horizontal: OffsetRule{Floor: 0.3, Fraction: 0.10},
		Vertical:   OffsetRule{Floor: 0.3, Fraction: 0.10},
		Ridge:      OffsetRule{Floor: 0.3, Fraction: 0.10},
		MinInset:   0.1,
	}
	slopeTuning = FaceTuning{
		Horizontal: OffsetRule{Floor: 0.3},
		Vertical:   OffsetRule{Floor: 0.3},
	}

	gableChimney = ChimneyParams{
		PerChimney: 0.02, Multiplier: 2.0,
		ReferenceHeight: 1, MaxHeightFactor: 1.5, MaxImpact: 0.25,
		DefaultWidth: 0.6, DefaultLength: 0.6, DefaultHeight: 1.2,
	}
	hipChimney = ChimneyParams{
		PerChimney: 0.01, Multiplier: 2.5,
		ReferenceHeight: 1, MaxHeightFactor: 1.5, MaxImpact: 0.25,
		DefaultWidth: 0.6, DefaultLength: 0.6, DefaultHeight: 1.2,
	}
)

// DefaultTuning returns the tuning used for a roof shape.
func DefaultTuning(shape Shape) ShapeTuning {
	t := ShapeTuning{
		Rectangle: slopeTuning,
		Triangle:  triangleTuning,
		Trapezoid: trapezoidTuning,
		Chimney:   gableChimney,
	}
	if shape == Hip {
		t.Chimney = hipChimney
	}
	return t
}
