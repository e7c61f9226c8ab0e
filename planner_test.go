package solarroof

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newPlanner(t *testing.T, roof *Roof, opts ...Option) *Planner {
	t.Helper()
	p, err := NewPlanner(roof, opts...)
	require.NoError(t, err)
	return p
}

func activate(t *testing.T, p *Planner, ids ...FaceID) {
	t.Helper()
	for _, id := range ids {
		_, err := p.Activate(id)
		require.NoError(t, err)
	}
}

func counts(p *Planner) map[FaceID]int {
	out := make(map[FaceID]int)
	for _, l := range p.Layouts() {
		out[l.Face] = l.Count()
	}
	return out
}

func TestScenarioFlatRoof(t *testing.T) {
	spec := PanelSpec{Width: 1000, Length: 1700, Gap: 50, EdgeMargin: 300, HeightOffset: 50, Tilt: 0, Azimuth: 180, Power: 400}
	p := newPlanner(t, FlatRoof(10, 8, 3), WithPanelSpec(spec))
	activate(t, p, "center")

	l, ok := p.Layout("center")
	require.True(t, ok)
	assert.Equal(t, 8*4, l.Count())

	rep := p.Report()
	require.Len(t, rep.Faces, 1)
	y := rep.Faces[0].Yield
	assert.Equal(t, FlatModel, y.Model)
	assert.Equal(t, 0.85, y.AngleFactor)
	assert.Equal(t, 1.0, y.OrientationFactor)
	assert.Equal(t, 1.0, y.ChimneyFactor)
	assert.InDelta(t, 12.8*0.8*0.85*1360, y.AnnualKWh, 1e-6)
	assert.True(t, math.IsNaN(rep.Faces[0].Azimuth))
	assert.Nil(t, rep.Faces[0].ClearSky)
	assert.Equal(t, 32, rep.Total.PanelCount)
}

func TestActivateEvictsOldest(t *testing.T) {
	p := newPlanner(t, HipRoof(9, 14, 3))
	ev, err := p.Activate("front")
	require.NoError(t, err)
	assert.Empty(t, ev)
	activate(t, p, "back")

	ev, err = p.Activate("left")
	require.NoError(t, err)
	assert.Equal(t, FaceID("front"), ev)
	assert.Equal(t, []FaceID{"back", "left"}, p.Active())
	_, ok := p.Layout("front")
	assert.False(t, ok)

	// Reactivating is a no-op.
	ev, err = p.Activate("back")
	require.NoError(t, err)
	assert.Empty(t, ev)
	assert.Equal(t, []FaceID{"back", "left"}, p.Active())

	id, ok := p.Evict()
	assert.True(t, ok)
	assert.Equal(t, FaceID("back"), id)
	assert.Equal(t, []FaceID{"left"}, p.Active())

	p.ClearFaces()
	assert.Empty(t, p.Active())
	assert.Empty(t, p.Layouts())
	_, ok = p.Evict()
	assert.False(t, ok)
}

func TestFlatRoofOneActiveArea(t *testing.T) {
	p := newPlanner(t, FlatRoof(10, 8, 3))
	activate(t, p, "north")
	ev, err := p.Activate("south")
	require.NoError(t, err)
	assert.Equal(t, FaceID("north"), ev)
	assert.Equal(t, []FaceID{"south"}, p.Active())
}

func TestToggle(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	on, _, err := p.Toggle("left")
	require.NoError(t, err)
	assert.True(t, on)
	on, _, err = p.Toggle("left")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, p.Active())

	_, _, err = p.Toggle("attic")
	assert.True(t, Is(err, ErrCodeInvalidFace))
}

func TestUnknownFaceLeavesStateAlone(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	activate(t, p, "left")
	before := p.Layouts()

	_, err := p.Activate("attic")
	assert.True(t, Is(err, ErrCodeInvalidFace))
	assert.Equal(t, GetCode(err), ErrCodeInvalidFace)
	err = p.Deactivate("attic")
	assert.True(t, Is(err, ErrCodeInvalidFace))

	assert.Equal(t, []FaceID{"left"}, p.Active())
	assert.Equal(t, before, p.Layouts())
}

func TestUpdatePanelConfig(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	activate(t, p, "left", "right")
	before := p.Layouts()

	err := p.UpdatePanelConfig(PanelUpdate{Width: ptr(-1.0)})
	assert.True(t, Is(err, ErrCodeConfigOutOfRange))
	err = p.UpdatePanelConfig(PanelUpdate{Gap: ptr(50.0), Tilt: ptr(91.0)})
	assert.True(t, Is(err, ErrCodeConfigOutOfRange))
	assert.Equal(t, DefaultPanelSpec(), p.PanelSpec())
	assert.Equal(t, before, p.Layouts())

	// Smaller panels fit more.
	require.NoError(t, p.UpdatePanelConfig(PanelUpdate{Width: ptr(500.0), Length: ptr(800.0)}))
	spec := p.PanelSpec()
	assert.Equal(t, 500.0, spec.Width)
	assert.Equal(t, 800.0, spec.Length)
	assert.Equal(t, DefaultPanelSpec().Gap, spec.Gap)
	for _, l := range p.Layouts() {
		assert.Greater(t, l.Count(), before[0].Count())
		assert.InDelta(t, 0.5, l.PanelWidth, 1e-12)
	}
}

func TestPanelSpecValidate(t *testing.T) {
	assert.NoError(t, DefaultPanelSpec().Validate())
	for name, mod := range map[string]func(s *PanelSpec){
		"zero width":   func(s *PanelSpec) { s.Width = 0 },
		"huge length":  func(s *PanelSpec) { s.Length = 6000 },
		"zero gap":     func(s *PanelSpec) { s.Gap = 0 },
		"nan margin":   func(s *PanelSpec) { s.EdgeMargin = math.NaN() },
		"neg height":   func(s *PanelSpec) { s.HeightOffset = -1 },
		"tilt":         func(s *PanelSpec) { s.Tilt = 120 },
		"no power":     func(s *PanelSpec) { s.Power = 0 },
		"inf azimuth":  func(s *PanelSpec) { s.Azimuth = math.Inf(1) },
		"huge height":  func(s *PanelSpec) { s.HeightOffset = 2500 },
		"huge gap":     func(s *PanelSpec) { s.Gap = 1500 },
		"nan azimuth":  func(s *PanelSpec) { s.Azimuth = math.NaN() },
		"huge margins": func(s *PanelSpec) { s.EdgeMargin = 6000 },
	} {
		s := DefaultPanelSpec()
		mod(&s)
		assert.True(t, Is(s.Validate(), ErrCodeConfigOutOfRange), name)
	}

	_, err := NewPlanner(GableRoof(10, 12, 4), WithPanelSpec(PanelSpec{}))
	assert.True(t, Is(err, ErrCodeConfigOutOfRange))
}

func TestUpdateEdgeMarginRelayout(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 3))
	activate(t, p, "left")
	l, _ := p.Layout("left")
	before := l.Count()
	require.Greater(t, before, 0)

	require.NoError(t, p.UpdatePanelConfig(PanelUpdate{EdgeMargin: ptr(1500.0)}))
	l, _ = p.Layout("left")
	assert.Less(t, l.Count(), before)
	assert.InDelta(t, 1.5, l.Region.V0, 1e-9)
	assert.InDelta(t, 1.5, l.Region.BottomLeft, 1e-9)
	assert.InDelta(t, 10.5, l.Region.BottomRight, 1e-9)
}

func TestRotationPreservesCounts(t *testing.T) {
	for _, roof := range []*Roof{GableRoof(10, 12, 4), HipRoof(9, 14, 3), PyramidRoof(10, 10, 4)} {
		p := newPlanner(t, roof)
		ids := roof.FaceIDs()
		activate(t, p, ids[0], ids[1])

		f, _ := p.Face(ids[0])
		o := NewObstacle(Chimney, f.Point(f.Region.Left(f.Region.V0+1)+1.5, f.Region.V0+1))
		o.Face = ids[0]
		_, err := p.AddObstacle(o)
		require.NoError(t, err)

		before := counts(p)
		skipped := p.Skipped(ids[0])
		azimuth := f.Azimuth()
		for _, deg := range []float64{37, -120, 360, 0} {
			require.NoError(t, p.RecomputeGeometry(deg))
			assert.Equal(t, before, counts(p), "%v roof at %v°", roof.Shape, deg)
			assert.Equal(t, skipped, p.Skipped(ids[0]), "%v roof at %v°", roof.Shape, deg)
			g, _ := p.Face(ids[0])
			assert.InDelta(t, 0, math.Remainder(azimuth-deg-g.Azimuth(), 360), 1e-6)
		}
	}
	assert.True(t, Is(newPlanner(t, GableRoof(10, 12, 4)).RecomputeGeometry(math.NaN()), ErrCodeConfigOutOfRange))
}

func TestObstacleLifecycle(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	activate(t, p, "left", "right")
	clean := p.Layouts()

	_, err := p.AddObstacle(Obstacle{Kind: 0})
	assert.True(t, Is(err, ErrCodeInvalidObstacle))
	bad := NewObstacle(Chimney, r3.Vec{})
	bad.Face = "attic"
	_, err = p.AddObstacle(bad)
	assert.True(t, Is(err, ErrCodeInvalidObstacle))

	f, _ := p.Face("right")
	o := NewObstacle(Chimney, f.Point(6, 2))
	o.Face = "right"
	id, err := p.AddObstacle(o)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Greater(t, p.Skipped("right"), 0)
	assert.Equal(t, 0, p.Skipped("left"))

	o.ID = id
	_, err = p.AddObstacle(o)
	assert.True(t, Is(err, ErrCodeInvalidObstacle))

	assert.True(t, Is(p.RemoveObstacle("nope"), ErrCodeUnknownObstacle))
	require.NoError(t, p.RemoveObstacle(id))
	assert.Empty(t, p.Obstacles())
	assert.Equal(t, clean, p.Layouts())
}

func TestObstacleAutoTag(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	for pos, want := range map[r3.Vec]FaceID{
		{X: 2.5, Y: 5, Z: 10}: "left",
		{X: 7.5, Y: 5, Z: 0}:  "right",
		{X: 20, Y: 6, Z: 0}:   "",
	} {
		_, err := p.AddObstacle(NewObstacle(Ventilation, pos))
		require.NoError(t, err)
		obs := p.Obstacles()
		assert.Equal(t, want, obs[len(obs)-1].Face, "at %v", pos)
	}

	// A normal disables tagging.
	o := NewObstacle(Ventilation, r3.Vec{X: 2.5, Y: 6, Z: 2})
	o.Normal = &r3.Vec{X: -1, Z: 1}
	_, err := p.AddObstacle(o)
	require.NoError(t, err)
	obs := p.Obstacles()
	assert.Empty(t, obs[len(obs)-1].Face)
}

func TestObstacleMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	p := newPlanner(t, HipRoof(10, 16, 4))
	activate(t, p, "left", "front")
	clean := p.Layouts()
	last := counts(p)

	kinds := []ObstacleKind{Chimney, RoofWindow, Ventilation}
	for rangeIter := 0; rangeIter < 25; rangeIter++ {
		id := []FaceID{"left", "front"}[rng.Intn(2)]
		f, _ := p.Face(id)
		o := NewObstacle(kinds[rng.Intn(3)], f.Point(rng.Float64()*16, rng.Float64()*5))
		o.Face = id
		_, err := p.AddObstacle(o)
		require.NoError(t, err)
		now := counts(p)
		for face, n := range now {
			assert.LessOrEqual(t, n, last[face], "face %s", face)
		}
		last = now
	}

	p.ClearObstacles()
	assert.Equal(t, clean, p.Layouts())
}

func TestReportChimneysOnActiveFaces(t *testing.T) {
	p := newPlanner(t, HipRoof(10, 16, 4))
	activate(t, p, "left", "right")

	f, _ := p.Face("back")
	o := NewObstacle(Chimney, f.Point(5, 1))
	o.Face = "back"
	_, err := p.AddObstacle(o)
	require.NoError(t, err)

	rep := p.Report()
	assert.Equal(t, 0, rep.Chimneys)
	assert.Equal(t, 1.0, rep.Total.ChimneyFactor)

	activate(t, p, "back")
	rep = p.Report()
	assert.Equal(t, 1, rep.Chimneys)
	assert.Less(t, rep.Total.ChimneyFactor, 1.0)
	assert.GreaterOrEqual(t, rep.Total.ChimneyFactor, 0.75)
	for _, fr := range rep.Faces {
		assert.Equal(t, PitchedModel, fr.Yield.Model)
		assert.Equal(t, rep.Total.ChimneyFactor, fr.Yield.ChimneyFactor)
		assert.Equal(t, AngleFactor(fr.Pitch), fr.Yield.AngleFactor)
	}
}

func TestReportClearSky(t *testing.T) {
	loc := Location{Latitude: 42.4195, Longitude: -71.2065}
	p := newPlanner(t, GableRoof(10, 12, 4), WithLocation(loc, 2024))
	activate(t, p, "left")
	rep := p.Report()
	require.Len(t, rep.Faces, 1)
	cs := rep.Faces[0].ClearSky
	require.NotNil(t, cs)
	assert.Greater(t, cs[5], cs[11])
}

func TestLayoutCache(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	activate(t, p, "left")
	require.NoError(t, p.Deactivate("left"))
	activate(t, p, "left")
	assert.Equal(t, 1, p.cache.Len())

	require.NoError(t, p.UpdatePanelConfig(PanelUpdate{Gap: ptr(60.0)}))
	assert.Equal(t, 2, p.cache.Len())
}

func TestPlannerConcurrentUse(t *testing.T) {
	p := newPlanner(t, HipRoof(10, 16, 4))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := []FaceID{"front", "back", "left", "right"}
			for j := 0; j < 20; j++ {
				_, _, err := p.Toggle(ids[(i+j)%4])
				assert.NoError(t, err)
				_ = p.Report()
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("planner deadlocked")
	}
	assert.LessOrEqual(t, len(p.Active()), 2)
}

func TestToggleAtomic(t *testing.T) {
	p := newPlanner(t, GableRoof(10, 12, 4))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		on, off int
	)
	for rangeIter := 0; rangeIter < 8; rangeIter++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rangeIter := 0; rangeIter < 50; rangeIter++ {
				active, _, err := p.Toggle("left")
				assert.NoError(t, err)
				mu.Lock()
				if active {
					on++
				} else {
					off++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	// Every toggle flips the face, so an even number leaves it off.
	assert.Equal(t, on, off)
	assert.Empty(t, p.Active())
}

func TestReportFlatPanelFacing(t *testing.T) {
	spec := DefaultPanelSpec()
	spec.Tilt = 30
	p := newPlanner(t, FlatRoof(10, 8, 3), WithPanelSpec(spec))
	activate(t, p, "center")
	require.NoError(t, p.RecomputeGeometry(30))

	// Panels snap to the turned roof's axes.
	l, _ := p.Layout("center")
	require.Greater(t, l.Count(), 0)
	assert.InDelta(t, 150, bearing(l.Placements[0].Normal), 1e-9)

	y := p.Report().Faces[0].Yield
	assert.Equal(t, OrientationFactor(150), y.OrientationFactor)
	assert.NotEqual(t, OrientationFactor(180), y.OrientationFactor)

	// Level panels keep the requested azimuth's factor.
	require.NoError(t, p.UpdatePanelConfig(PanelUpdate{Tilt: ptr(0.0)}))
	require.NoError(t, p.RecomputeGeometry(0))
	assert.Equal(t, OrientationFactor(180), p.Report().Faces[0].Yield.OrientationFactor)
}

func TestRecomputeGeometryRollsBack(t *testing.T) {
	roof := GableRoof(10, 12, 4)
	p := newPlanner(t, roof)
	activate(t, p, "left")
	require.NoError(t, p.RecomputeGeometry(20))
	before := p.Layouts()
	face, _ := p.Face("left")

	// A face that no longer resolves.
	roof.base[1].Corners = roof.base[1].Corners[:3]
	err := p.RecomputeGeometry(45)
	assert.True(t, Is(err, ErrCodeInvalidFace), "got %v", err)
	assert.Equal(t, 20.0, roof.Rotation())
	assert.Equal(t, before, p.Layouts())
	after, _ := p.Face("left")
	assert.Equal(t, face.Corners, after.Corners)
}
