package solarroof

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"
)

type ObstacleKind uint8

const (
	Chimney ObstacleKind = iota + 1
	RoofWindow
	Ventilation
)

func (k ObstacleKind) String() string {
	switch k {
	case Chimney:
		return "chimney"
	case RoofWindow:
		return "window"
	case Ventilation:
		return "vent"
	}
	return fmt.Sprintf("ObstacleKind(%d)", uint8(k))
}

// ParseObstacleKind parses "chimney", "window" or "vent".
func ParseObstacleKind(s string) (ObstacleKind, error) {
	for _, k := range []ObstacleKind{Chimney, RoofWindow, Ventilation} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, newError(ErrCodeInvalidObstacle, "unknown obstacle kind %q", s)
}

// An Obstacle is a roof feature panels must avoid. Dimensions are in
// metres: Width runs along the eave of its face, Length up the slope.
type Obstacle struct {
	ID       string
	Kind     ObstacleKind
	Position r3.Vec

	Width, Length, Height float64

	// Face, if set, pins the obstacle to a face or surface. Otherwise
	// the planner's FaceMatcher decides which faces it lies on.
	Face FaceID

	// Normal is the outward normal of the surface the obstacle sits
	// on, if known.
	Normal *r3.Vec
}

// NewObstacle returns an obstacle of the given kind with its standard
// dimensions.
func NewObstacle(kind ObstacleKind, pos r3.Vec) Obstacle {
	o := Obstacle{Kind: kind, Position: pos}
	switch kind {
	case Chimney:
		o.Width, o.Length, o.Height = 0.6, 0.6, 1.2
	case RoofWindow:
		o.Width, o.Length, o.Height = 1.0, 1.8, 0.15
	case Ventilation:
		o.Width, o.Length, o.Height = 0.4, 0.4, 0.5
	}
	return o
}

// check returns an error if o cannot be tested against panels.
func (o *Obstacle) check() error {
	if !finite(o.Position) {
		return fmt.Errorf("obstacle %s: position %v not finite", o.ID, o.Position)
	}
	for _, d := range []struct {
		name string
		v    float64
	}{{"width", o.Width}, {"length", o.Length}} {
		if !(d.v > 0) || math.IsInf(d.v, 0) {
			return fmt.Errorf("obstacle %s: %s %v not a positive size", o.ID, d.name, d.v)
		}
	}
	if !(o.Height >= 0) || math.IsInf(o.Height, 0) {
		return fmt.Errorf("obstacle %s: height %v not a size", o.ID, o.Height)
	}
	if o.Normal != nil {
		if _, ok := unit(*o.Normal); !ok {
			return fmt.Errorf("obstacle %s: normal %v has no direction", o.ID, *o.Normal)
		}
	}
	return nil
}

// A FaceMatcher decides whether an untagged obstacle lies on a face.
type FaceMatcher interface {
	Matches(o *Obstacle, f *RoofFace) (bool, error)
}

// NormalMatcher matches an obstacle to a face when their normals are
// within MinDot of each other. An obstacle without a normal matches
// every face.
type NormalMatcher struct {
	MinDot float64
}

// DefaultFaceMatcher treats normals less than about 45° apart as the
// same face.
var DefaultFaceMatcher FaceMatcher = NormalMatcher{MinDot: 0.7}

func (m NormalMatcher) Matches(o *Obstacle, f *RoofFace) (bool, error) {
	if o.Normal == nil {
		return true, nil
	}
	n, ok := unit(*o.Normal)
	if !ok {
		return false, fmt.Errorf("obstacle %s: normal %v has no direction", o.ID, *o.Normal)
	}
	return r3.Dot(n, f.Normal) >= m.MinDot, nil
}

// onFace reports whether o applies to f. A tag decides outright;
// otherwise the matcher does.
func onFace(o *Obstacle, f *RoofFace, m FaceMatcher) (bool, error) {
	if o.Face != "" {
		return o.Face == f.ID || o.Face == f.Surface, nil
	}
	return m.Matches(o, f)
}

// WindowParams shapes the keep-out zone around a roof window. Lengths
// are in metres. The zone is larger downslope of the window, where it
// casts shade, and narrows with distance from the window.
type WindowParams struct {
	SideMargin   float64
	TopMargin    float64
	BottomMargin float64

	// The downslope shadow is max(BaseShadow, tan(pitch)·height·
	// ShadowFactor), plus SteepBonus on roofs steeper than SteepPitch
	// degrees. Its half width is the window's half width plus
	// ShadowSideFactor·SideMargin.
	BaseShadow       float64
	ShadowFactor     float64
	SteepPitch       float64
	SteepBonus       float64
	ShadowSideFactor float64

	// Beyond one window length from the window, the side margin, the
	// shadow and the bottom margin taper off. Each taper is
	// max(Min, 1-(d-L)/(Span·L)) for distance d and window length L.
	SideTaperMin, SideTaperSpan     float64
	ShadowTaperMin, ShadowTaperSpan float64
	BottomTaperMin, BottomTaperSpan float64
}

func DefaultWindowParams() WindowParams {
	return WindowParams{
		SideMargin:       0.05,
		TopMargin:        0.05,
		BottomMargin:     0.15,
		BaseShadow:       0.20,
		ShadowFactor:     0.5,
		SteepPitch:       45,
		SteepBonus:       0.05,
		ShadowSideFactor: 0.5,
		SideTaperMin:     0.4,
		SideTaperSpan:    1,
		ShadowTaperMin:   0.5,
		ShadowTaperSpan:  2,
		BottomTaperMin:   0.6,
		BottomTaperSpan:  1.5,
	}
}

func taper(d, l, lo, span float64) float64 {
	if d <= l {
		return 1
	}
	return math.Max(lo, 1-(d-l)/(span*l))
}

// FilterParams configures the obstacle filter.
type FilterParams struct {
	// BoxMargin is the clearance kept around chimneys and vents, in
	// metres.
	BoxMargin float64
	Window    WindowParams
}

func DefaultFilterParams() FilterParams {
	return FilterParams{BoxMargin: 0.15, Window: DefaultWindowParams()}
}

// panelRect is a candidate panel in the face frame: centre, unit width
// axis and half extents.
type panelRect struct {
	cu, cv float64
	au, av float64
	hw, hl float64
}

func (p panelRect) bounds() (minU, minV, maxU, maxV float64) {
	eu := math.Abs(p.au)*p.hw + math.Abs(p.av)*p.hl
	ev := math.Abs(p.av)*p.hw + math.Abs(p.au)*p.hl
	return p.cu - eu, p.cv - ev, p.cu + eu, p.cv + ev
}

// boxZone is a chimney or vent footprint grown by the safety margin, as
// an axis-aligned rectangle in the face frame.
type boxZone struct {
	o      *Obstacle
	cu, cv float64
	hu, hv float64
	rect   rtreego.Rect
}

func (b *boxZone) Bounds() rtreego.Rect {
	return b.rect
}

// overlaps reports whether p and b overlap with positive area, by the
// separating axis test.
func (b *boxZone) overlaps(p panelRect) bool {
	du, dv := b.cu-p.cu, b.cv-p.cv
	axes := [4][2]float64{{1, 0}, {0, 1}, {p.au, p.av}, {-p.av, p.au}}
	for _, n := range axes {
		rp := math.Abs(p.au*n[0]+p.av*n[1])*p.hw + math.Abs(-p.av*n[0]+p.au*n[1])*p.hl
		rb := math.Abs(n[0])*b.hu + math.Abs(n[1])*b.hv
		if math.Abs(du*n[0]+dv*n[1]) >= rp+rb {
			return false
		}
	}
	return true
}

func rtreeRect(minU, minV, maxU, maxV float64) rtreego.Rect {
	r, err := rtreego.NewRect(rtreego.Point{minU, minV}, []float64{math.Max(maxU-minU, eps), math.Max(maxV-minV, eps)})
	if err != nil {
		panic(err)
	}
	return r
}

// An obstacleFilter tests candidate panels on one face against the
// obstacles on that face.
type obstacleFilter struct {
	face    *RoofFace
	params  FilterParams
	boxes   []*boxZone
	tree    *rtreego.Rtree
	windows []*Obstacle
	failing []*Obstacle
	log     *log.Logger
}

func newObstacleFilter(f *RoofFace, obstacles []Obstacle, params FilterParams, m FaceMatcher, logger *log.Logger) *obstacleFilter {
	flt := &obstacleFilter{face: f, params: params, log: logger}
	for i := range obstacles {
		o := &obstacles[i]
		on, err := onFace(o, f, m)
		if err != nil {
			logger.Warn("obstacle face match failed, blocking face", "face", f.ID, "obstacle", o.ID, "err", err)
			flt.failing = append(flt.failing, o)
			continue
		}
		if !on {
			continue
		}
		if err := o.check(); err != nil {
			logger.Warn("obstacle unusable, blocking face", "face", f.ID, "obstacle", o.ID, "err", err)
			flt.failing = append(flt.failing, o)
			continue
		}
		if o.Kind == RoofWindow {
			flt.windows = append(flt.windows, o)
			continue
		}
		cu, cv := f.Local(o.Position)
		b := &boxZone{
			o:  o,
			cu: cu, cv: cv,
			hu: o.Width/2 + params.BoxMargin,
			hv: o.Length/2 + params.BoxMargin,
		}
		b.rect = rtreeRect(cu-b.hu, cv-b.hv, cu+b.hu, cv+b.hv)
		flt.boxes = append(flt.boxes, b)
	}
	if len(flt.boxes) > 0 {
		flt.tree = rtreego.NewTree(2, 2, 8)
		for _, b := range flt.boxes {
			flt.tree.Insert(b)
		}
	}
	return flt
}

// empty reports whether no obstacle applies to the face.
func (flt *obstacleFilter) empty() bool {
	return len(flt.boxes) == 0 && len(flt.windows) == 0 && len(flt.failing) == 0
}

// blocks reports whether the panel p, centred at the surface point
// center, is rejected by any obstacle.
func (flt *obstacleFilter) blocks(p panelRect, center r3.Vec) bool {
	if len(flt.failing) > 0 {
		return true
	}
	if flt.tree != nil {
		minU, minV, maxU, maxV := p.bounds()
		for _, s := range flt.tree.SearchIntersect(rtreeRect(minU-eps, minV-eps, maxU+eps, maxV+eps)) {
			b := s.(*boxZone)
			if b.overlaps(p) {
				flt.log.Debug("panel rejected", "face", flt.face.ID, "obstacle", b.o.ID, "kind", b.o.Kind, "u", p.cu, "v", p.cv)
				return true
			}
		}
	}
	for _, w := range flt.windows {
		hit, err := windowBlocks(w, flt.face, p, center, flt.params.Window)
		if err != nil {
			flt.log.Warn("window check failed, blocking panel", "face", flt.face.ID, "obstacle", w.ID, "err", err)
			return true
		}
		if hit {
			flt.log.Debug("panel rejected", "face", flt.face.ID, "obstacle", w.ID, "kind", w.Kind, "u", p.cu, "v", p.cv)
			return true
		}
	}
	return false
}

// windowBlocks tests a panel against a roof window's keep-out zone. It
// works in the window's frame: z along its normal, x horizontal across
// the slope and y up the slope.
func windowBlocks(w *Obstacle, f *RoofFace, p panelRect, center r3.Vec, wp WindowParams) (bool, error) {
	zn := f.Normal
	if w.Normal != nil {
		zn = *w.Normal
	}
	z, ok := unit(zn)
	if !ok {
		return true, fmt.Errorf("window %s: normal %v has no direction", w.ID, zn)
	}
	x, ok := unit(r3.Cross(up, z))
	if !ok {
		x = r3.Vec{X: 1}
	}
	y := r3.Cross(z, x)

	d := r3.Sub(center, w.Position)
	lx, ly := r3.Dot(d, x), r3.Dot(d, y)
	if math.IsNaN(lx) || math.IsNaN(ly) {
		return true, fmt.Errorf("window %s: panel position not finite", w.ID)
	}

	pitch := math.Acos(clamp(math.Abs(r3.Dot(z, up)), 0, 1))
	shadow := wp.BaseShadow
	if pitch > 0.001 {
		shadow = math.Max(shadow, math.Tan(pitch)*w.Height*wp.ShadowFactor)
		if pitch > wp.SteepPitch*deg2rad {
			shadow += wp.SteepBonus
		}
	}

	dist := math.Abs(ly)
	side := wp.SideMargin * taper(dist, w.Length, wp.SideTaperMin, wp.SideTaperSpan)
	ax, ay := math.Abs(lx), ly

	if ay < 0 {
		sw := w.Width/2 + side*wp.ShadowSideFactor
		sl := shadow * taper(dist, w.Length, wp.ShadowTaperMin, wp.ShadowTaperSpan)
		if ax <= sw+p.hw && dist <= sl+p.hl {
			return true, nil
		}
	}

	halfW := w.Width/2 + side
	if ax > halfW+p.hw {
		return false, nil
	}
	if ay >= 0 {
		return ay <= w.Length/2+wp.TopMargin+p.hl, nil
	}
	bottom := wp.BottomMargin * taper(dist, w.Length, wp.BottomTaperMin, wp.BottomTaperSpan)
	return ay >= -(w.Length/2+bottom)-p.hl, nil
}
