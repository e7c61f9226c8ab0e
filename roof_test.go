package solarroof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseShape(t *testing.T) {
	for _, s := range []Shape{Flat, Gable, Hip, Pyramid} {
		got, err := ParseShape(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseShape("mansard")
	assert.True(t, Is(err, ErrCodeInvalidScene))
}

func TestNewRoofRejects(t *testing.T) {
	tri := FaceDescriptor{ID: "a", Kind: Triangle, Corners: []r3.Vec{{}, {X: 1}, {Y: 1, Z: 1}}}
	for name, faces := range map[string][]FaceDescriptor{
		"none":      nil,
		"no id":     {{Kind: Triangle, Corners: tri.Corners}},
		"duplicate": {tri, tri},
		"corners":   {{ID: "b", Kind: Rectangle, Corners: tri.Corners}},
		"kind":      {{ID: "c", Corners: tri.Corners}},
	} {
		_, err := NewRoof(Gable, faces)
		assert.True(t, Is(err, ErrCodeInvalidFace), name)
	}
}

func TestRoofFaces(t *testing.T) {
	for _, tc := range []struct {
		roof *Roof
		ids  []FaceID
		max  int
	}{
		{FlatRoof(10, 8, 3), []FaceID{"center", "north", "south", "east", "west"}, 1},
		{GableRoof(10, 12, 4), []FaceID{"left", "right"}, 2},
		{HipRoof(10, 16, 4), []FaceID{"front", "back", "left", "right"}, 2},
		{PyramidRoof(10, 10, 4), []FaceID{"front", "right", "back", "left"}, 2},
	} {
		assert.Equal(t, tc.ids, tc.roof.FaceIDs(), tc.roof.Shape.String())
		assert.Equal(t, tc.max, tc.roof.MaxActive())
	}
}

func TestPitchedFacesLookOutward(t *testing.T) {
	for _, roof := range []*Roof{GableRoof(10, 12, 4), HipRoof(10, 16, 4), PyramidRoof(10, 10, 4)} {
		spec := DefaultPanelSpec()
		tuning := DefaultTuning(roof.Shape)
		want := map[FaceID]float64{"front": 180, "back": 0, "left": 270, "right": 90}
		for _, d := range roof.Faces() {
			f, err := ResolveFace(d, spec, tuning.face(d.Kind))
			require.NoError(t, err)
			assert.InDelta(t, want[d.ID], f.Azimuth(), 1e-9, "%v %s", roof.Shape, d.ID)
			assert.Greater(t, f.Pitch(), 0.0)
		}
	}
}

func TestFaceAt(t *testing.T) {
	roof := HipRoof(10, 16, 4)
	for _, tc := range []struct {
		p    r3.Vec
		want FaceID
	}{
		{r3.Vec{X: 5, Y: 1}, "front"},
		{r3.Vec{X: 5, Y: 15}, "back"},
		{r3.Vec{X: 1, Y: 8}, "left"},
		{r3.Vec{X: 9, Y: 8, Z: 20}, "right"},
	} {
		got, ok := roof.FaceAt(tc.p)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "at %v", tc.p)
	}
	_, ok := roof.FaceAt(r3.Vec{X: -1, Y: 8})
	assert.False(t, ok)

	// The areas of a flat roof are one surface.
	got, ok := FlatRoof(10, 8, 3).FaceAt(r3.Vec{X: 9, Y: 7})
	assert.True(t, ok)
	assert.Equal(t, FaceID("center"), got)
}

func TestRoofRotate(t *testing.T) {
	roof := GableRoof(10, 12, 4)
	pivot := roof.Pivot()
	assert.InDelta(t, 5, pivot.X, 1e-12)
	assert.InDelta(t, 6, pivot.Y, 1e-12)

	roof.Rotate(90)
	assert.Equal(t, 90.0, roof.Rotation())
	d, _ := roof.Descriptor("left")
	// The west eave turns to face south.
	vecNear(t, r3.Vec{X: 11, Y: 1}, d.Corners[0], "rotated corner")
	f, err := ResolveFace(d, DefaultPanelSpec(), slopeTuning)
	require.NoError(t, err)
	assert.InDelta(t, 180, f.Azimuth(), 1e-9)

	// Rotations replace each other.
	roof.Rotate(0)
	d, _ = roof.Descriptor("left")
	vecNear(t, r3.Vec{}, d.Corners[0], "unrotated corner")

	got, ok := roof.FaceAt(r3.Vec{X: 2, Y: 5})
	assert.True(t, ok)
	assert.Equal(t, FaceID("left"), got)
}
