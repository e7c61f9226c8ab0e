package solarroof

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func ptr[T any](v T) *T { return &v }

// gableEnd returns a triangular face with the given base and slant
// height, pitched 30° and facing south.
func gableEnd(base, height float64) FaceDescriptor {
	s, c := math.Sincos(30 * deg2rad)
	return FaceDescriptor{
		ID:   "gable-end",
		Kind: Triangle,
		Corners: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: base, Y: 0, Z: 0},
			{X: base / 2, Y: height * c, Z: height * s},
		},
	}
}

func vecNear(t *testing.T, want, got r3.Vec, msg string) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, msg+" X")
	assert.InDelta(t, want.Y, got.Y, 1e-9, msg+" Y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, msg+" Z")
}

func topologyNear(t *testing.T, want, got Topology, msg string) {
	t.Helper()
	assert.Equal(t, want.Kind, got.Kind, msg)
	for _, f := range []struct {
		name      string
		want, got float64
	}{
		{"V0", want.V0, got.V0},
		{"V1", want.V1, got.V1},
		{"BottomLeft", want.BottomLeft, got.BottomLeft},
		{"BottomRight", want.BottomRight, got.BottomRight},
		{"TopLeft", want.TopLeft, got.TopLeft},
		{"TopRight", want.TopRight, got.TopRight},
	} {
		assert.InDelta(t, f.want, f.got, 1e-9, "%s %s", msg, f.name)
	}
}

func TestResolveGableSlopes(t *testing.T) {
	roof := GableRoof(10, 12, 5)
	spec := DefaultPanelSpec()
	for _, tc := range []struct {
		id      FaceID
		azimuth float64
	}{
		{"left", 270},
		{"right", 90},
	} {
		d, ok := roof.Descriptor(tc.id)
		require.True(t, ok)
		f, err := ResolveFace(d, spec, DefaultTuning(Gable).Rectangle)
		require.NoError(t, err)
		require.False(t, f.Degenerate)

		assert.InDelta(t, 45, f.Pitch(), 1e-9, "%s pitch", tc.id)
		assert.InDelta(t, tc.azimuth, f.Azimuth(), 1e-9, "%s azimuth", tc.id)
		assert.Greater(t, f.Normal.Z, 0.0)
		assert.InDelta(t, 12*5*math.Sqrt2, f.Area(), 1e-9)

		// 300 mm in from every edge.
		slope := 5 * math.Sqrt2
		topologyNear(t, Topology{Kind: Rectangle, V0: 0.3, V1: slope - 0.3, BottomLeft: 0.3, BottomRight: 11.7, TopLeft: 0.3, TopRight: 11.7}, f.Region, string(tc.id))
	}
}

func TestResolveGableSlopeMargin(t *testing.T) {
	d, _ := GableRoof(10, 12, 5).Descriptor("left")
	spec := DefaultPanelSpec()
	slope := 5 * math.Sqrt2

	// A margin wider than the slope insets wins.
	spec.EdgeMargin = 800
	f, err := ResolveFace(d, spec, slopeTuning)
	require.NoError(t, err)
	topologyNear(t, Topology{Kind: Rectangle, V0: 0.8, V1: slope - 0.8, BottomLeft: 0.8, BottomRight: 11.2, TopLeft: 0.8, TopRight: 11.2}, f.Region, "wide margin")

	// A narrower one keeps the insets.
	spec.EdgeMargin = 100
	f, err = ResolveFace(d, spec, slopeTuning)
	require.NoError(t, err)
	topologyNear(t, Topology{Kind: Rectangle, V0: 0.3, V1: slope - 0.3, BottomLeft: 0.3, BottomRight: 11.7, TopLeft: 0.3, TopRight: 11.7}, f.Region, "narrow margin")
}

func TestResolveFlatSplit(t *testing.T) {
	roof := FlatRoof(10, 8, 3)
	spec := DefaultPanelSpec()
	want := map[FaceID]Topology{
		"center": {Kind: Rectangle, V0: 0.3, V1: 7.7, BottomLeft: 0.3, BottomRight: 9.7, TopLeft: 0.3, TopRight: 9.7},
		"north":  {Kind: Rectangle, V0: 4, V1: 7.7, BottomLeft: 0.3, BottomRight: 9.7, TopLeft: 0.3, TopRight: 9.7},
		"south":  {Kind: Rectangle, V0: 0.3, V1: 4, BottomLeft: 0.3, BottomRight: 9.7, TopLeft: 0.3, TopRight: 9.7},
		"east":   {Kind: Rectangle, V0: 0.3, V1: 7.7, BottomLeft: 5, BottomRight: 9.7, TopLeft: 5, TopRight: 9.7},
		"west":   {Kind: Rectangle, V0: 0.3, V1: 7.7, BottomLeft: 0.3, BottomRight: 5, TopLeft: 0.3, TopRight: 5},
	}
	for _, d := range roof.Faces() {
		f, err := ResolveFace(d, spec, DefaultTuning(Flat).Rectangle)
		require.NoError(t, err)
		assert.Equal(t, FaceID("center"), f.Surface)
		assert.True(t, f.Flat)
		assert.InDelta(t, 0, f.Pitch(), 1e-9)
		assert.True(t, math.IsNaN(f.Azimuth()))
		topologyNear(t, want[d.ID], f.Region, string(d.ID))
	}
}

func TestResolveFlatMarginCap(t *testing.T) {
	// The margin is capped at 20% of the shorter side.
	d, _ := FlatRoof(4, 1, 0).Descriptor("center")
	spec := DefaultPanelSpec()
	spec.EdgeMargin = 500
	f, err := ResolveFace(d, spec, FaceTuning{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, f.Region.V0, 1e-12)
	assert.InDelta(t, 0.2, f.Region.BottomLeft, 1e-12)
}

func TestResolveTriangle(t *testing.T) {
	spec := PanelSpec{Width: 400, Length: 690, Gap: 50, EdgeMargin: 300, Azimuth: 180, Power: 400}
	f, err := ResolveFace(gableEnd(8, 4), spec, triangleTuning)
	require.NoError(t, err)

	assert.InDelta(t, 8*4/2.0, f.Area(), 1e-9)
	// Base insets are max(0.3, 15% of 8), the apex inset max(0.3, 20%
	// of 4) and the eave keeps the edge margin.
	r := f.Region
	assert.Equal(t, Triangle, r.Kind)
	assert.InDelta(t, 0.3, r.V0, 1e-9)
	assert.InDelta(t, 3.2, r.V1, 1e-9)
	assert.InDelta(t, 1.2, r.BottomLeft, 1e-9)
	assert.InDelta(t, 6.8, r.BottomRight, 1e-9)
	assert.InDelta(t, 4, r.TopLeft, 1e-9)
	assert.InDelta(t, 4, r.TopRight, 1e-9)
}

func TestResolveTriangleShrinksInsets(t *testing.T) {
	// A 1.5 m base leaves 0.9 m after 0.3 m insets, less than a 1 m
	// panel plus two gaps, so the insets shrink to (1.5-1-0.1)/2.
	spec := DefaultPanelSpec()
	spec.Width = 1000
	spec.Length = 1000
	f, err := ResolveFace(gableEnd(1.5, 5), spec, triangleTuning)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, f.Region.BottomLeft, 1e-9)
	assert.InDelta(t, 1.3, f.Region.BottomRight, 1e-9)

	// Never below the floor.
	f, err = ResolveFace(gableEnd(1, 5), spec, triangleTuning)
	require.NoError(t, err)
	assert.InDelta(t, triangleTuning.MinInset, f.Region.BottomLeft, 1e-9)
}

func TestResolveHipTrapezoid(t *testing.T) {
	roof := HipRoof(8, 16, 3)
	for _, id := range []FaceID{"left", "right"} {
		d, _ := roof.Descriptor(id)
		f, err := ResolveFace(d, DefaultPanelSpec(), trapezoidTuning)
		require.NoError(t, err)
		o, r := f.Outline, f.Region
		assert.Equal(t, Trapezoid, r.Kind)
		assert.InDelta(t, 4, o.TopLeft, 1e-9, id)
		assert.InDelta(t, 12, o.TopRight, 1e-9, id)
		vecNear(t, f.U, f.RidgeDir, "ridge parallel to eave")
		// The region lies inside the face.
		for _, p := range r.Ring() {
			assert.True(t, o.Contains(p[0], p[1]), "%s: %v outside %v", id, p, o)
		}
		assert.InDelta(t, 1.6, r.BottomLeft, 1e-9)
		assert.InDelta(t, 14.4, r.BottomRight, 1e-9)
	}
}

func TestResolveDegenerate(t *testing.T) {
	for name, d := range map[string]FaceDescriptor{
		"coincident": {ID: "a", Kind: Triangle, Corners: []r3.Vec{{}, {}, {Z: 1}}},
		"collinear":  {ID: "b", Kind: Triangle, Corners: []r3.Vec{{}, {X: 1}, {X: 2}}},
		"nan":        {ID: "c", Kind: Rectangle, Corners: []r3.Vec{{}, {X: math.NaN()}, {X: 1, Y: 1}, {Y: 1}}},
	} {
		f, err := ResolveFace(d, DefaultPanelSpec(), triangleTuning)
		require.NoError(t, err, name)
		assert.True(t, f.Degenerate, name)
		assert.True(t, f.Region.Empty(), name)
		res := layoutFace(f, DefaultPanelSpec(), nil)
		assert.Equal(t, 0, res.Count(), name)
		assert.Equal(t, EmptyTooSmall, res.Empty, name)
	}
}

func TestResolveBadDescriptor(t *testing.T) {
	_, err := ResolveFace(FaceDescriptor{ID: "x", Kind: Triangle, Corners: make([]r3.Vec, 4)}, DefaultPanelSpec(), triangleTuning)
	assert.True(t, Is(err, ErrCodeInvalidFace))
	_, err = ResolveFace(FaceDescriptor{ID: "x"}, DefaultPanelSpec(), triangleTuning)
	assert.True(t, Is(err, ErrCodeInvalidFace))
}
