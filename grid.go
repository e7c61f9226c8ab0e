package solarroof

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// A Placement is one panel in world coordinates.
type Placement struct {
	Center    r3.Vec
	WidthDir  r3.Vec // Unit vector along the panel's width
	LengthDir r3.Vec // Unit vector along the panel's length
	Normal    r3.Vec

	// U and V locate the panel's centre in its face frame. Row and Col
	// index the panel in the layout grid.
	U, V     float64
	Row, Col int
}

// Corners returns the panel's corners counter-clockwise around Normal,
// for a panel of the given size in metres.
func (p Placement) Corners(width, length float64) [4]r3.Vec {
	w := r3.Scale(width/2, p.WidthDir)
	l := r3.Scale(length/2, p.LengthDir)
	c := [4]r3.Vec{
		r3.Sub(r3.Sub(p.Center, w), l),
		r3.Sub(r3.Add(p.Center, w), l),
		r3.Add(r3.Add(p.Center, w), l),
		r3.Add(r3.Sub(p.Center, w), l),
	}
	if r3.Dot(r3.Cross(p.WidthDir, p.LengthDir), p.Normal) < 0 {
		c[1], c[3] = c[3], c[1]
	}
	return c
}

// EmptyReason says why a layout has no panels.
type EmptyReason uint8

const (
	NotEmpty EmptyReason = iota
	// EmptyTooSmall means the usable region has no room for a panel.
	EmptyTooSmall
	// EmptyObstructed means every candidate panel hit an obstacle.
	EmptyObstructed
)

func (r EmptyReason) String() string {
	switch r {
	case NotEmpty:
		return ""
	case EmptyTooSmall:
		return "too small"
	case EmptyObstructed:
		return "obstructed"
	}
	return "unknown"
}

// Footprint is the space one panel takes in its face frame, in metres:
// its extent along the u and v axes and the spacing kept to its
// neighbours along each.
type Footprint struct {
	U, V       float64
	GapU, GapV float64
}

// LayoutResult is the panel layout of one face.
type LayoutResult struct {
	Face       FaceID
	Placements []Placement
	Skipped    int // Candidates rejected by obstacles
	Empty      EmptyReason
	Region     Topology

	// PanelWidth and PanelLength are the panel size in metres, along
	// each placement's WidthDir and LengthDir.
	PanelWidth, PanelLength float64
	Footprint               Footprint
}

func (r LayoutResult) Count() int {
	return len(r.Placements)
}

func (r LayoutResult) clone() LayoutResult {
	r.Placements = append([]Placement(nil), r.Placements...)
	return r
}

// cell is a candidate panel position in the face frame.
type cell struct {
	u, v     float64
	row, col int
}

// countAlong returns how many panels of the given size fit in span with
// gap between neighbours. The first estimate allows the last gap to
// overhang by half a gap; it is then reduced until the panels fit.
func countAlong(span, size, gap float64) int {
	if !(span > 0) || !(size > 0) {
		return 0
	}
	n := int(math.Floor((span + gap/2) / (size + gap)))
	if n < 1 {
		n = 1
	}
	for n > 0 && float64(n)*size+float64(n-1)*gap > span+eps {
		n--
	}
	return n
}

// rectangleCells lays a centred grid over a rectangular region.
func rectangleCells(r Topology, fp Footprint) []cell {
	spanU := r.BottomRight - r.BottomLeft
	spanV := r.Height()
	nu := countAlong(spanU, fp.U, fp.GapU)
	nv := countAlong(spanV, fp.V, fp.GapV)
	if nu == 0 || nv == 0 {
		return nil
	}
	u0 := centredStart(r.BottomLeft, r.BottomRight, nu, fp.U, fp.GapU)
	v0 := centredStart(r.V0, r.V1, nv, fp.V, fp.GapV)
	cells := make([]cell, 0, nu*nv)
	for row := 0; row < nv; row++ {
		for col := 0; col < nu; col++ {
			cells = append(cells, cell{
				u:   u0 + float64(col)*(fp.U+fp.GapU) + fp.U/2,
				v:   v0 + float64(row)*(fp.V+fp.GapV) + fp.V/2,
				row: row, col: col,
			})
		}
	}
	return cells
}

// centredStart returns where a run of n panels centred in [lo, hi]
// begins, clamped so the run stays inside.
func centredStart(lo, hi float64, n int, size, gap float64) float64 {
	total := float64(n)*size + float64(n-1)*gap
	start := lo + (hi-lo-total)/2
	if start < lo {
		start = lo
	}
	if start+total > hi {
		start = hi - total
	}
	return start
}

// rowCells stacks rows rowV high from the bottom edge of a region
// toward its top, fitting each row to the narrower end of the region's
// slice. The first row starts start above the bottom edge, and each row
// keeps inset(row, rows) clear of the region's sides. axis gives the
// panels' width direction in the face frame at a height; columns are
// spaced by the u extent of a panel turned that way.
func rowCells(r Topology, fp Footprint, rowV, start float64, inset func(row, rows int) float64, axis func(v float64) (au, av float64)) []cell {
	pitchV := rowV + fp.GapV
	rows := int(math.Floor((r.Height() + fp.GapV/2) / pitchV))
	var cells []cell
	for row := 0; row < rows; row++ {
		y0 := r.V0 + start + float64(row)*pitchV
		y1 := y0 + rowV
		if y1 > r.V1+eps {
			continue
		}
		left := math.Max(r.Left(y0), r.Left(y1))
		right := math.Min(r.Right(y0), r.Right(y1))
		in := inset(row, rows)
		usable := right - left - 2*in
		eu, _ := fp.extent(axis((y0 + y1) / 2))
		pitchU := eu + fp.GapU
		n := int(math.Floor((usable + fp.GapU/2) / pitchU))
		if n < 1 {
			continue
		}
		used := float64(n)*pitchU - fp.GapU
		u0 := left + in + (usable-used)/2
		for col := 0; col < n; col++ {
			cells = append(cells, cell{
				u:   u0 + float64(col)*pitchU + eu/2,
				v:   (y0 + y1) / 2,
				row: row, col: col,
			})
		}
	}
	return cells
}

// extent returns the size along u and v of the box bounding a panel
// whose width runs along the unit axis (au, av) of the face frame.
func (fp Footprint) extent(au, av float64) (eu, ev float64) {
	au, av = math.Abs(au), math.Abs(av)
	return au*fp.U + av*fp.V, av*fp.U + au*fp.V
}

// sweptV returns the largest v extent of a panel as its width axis
// turns from u through theta radians.
func (fp Footprint) sweptV(theta float64) float64 {
	lo, hi := math.Min(0, theta), math.Max(0, theta)
	// The v extent peaks where the panel's diagonal is upright.
	c := math.Atan2(fp.U, fp.V)
	for _, a := range []float64{c, -c, math.Pi - c, c - math.Pi} {
		if a > lo && a < hi {
			return math.Hypot(fp.U, fp.V)
		}
	}
	_, ev := fp.extent(math.Cos(theta), math.Sin(theta))
	return math.Max(fp.V, ev)
}

func unturned(float64) (float64, float64) {
	return 1, 0
}

// A mount orients panels on a face.
type mount struct {
	fp Footprint

	// Panel axes and normal in world coordinates, and how far the
	// panel centre sits above the roof surface.
	widthDir, lengthDir, normal r3.Vec
	lift                        float64

	// ridgeDir is set for trapezoids, whose rows turn from the eave
	// direction toward the ridge direction.
	ridgeDir *r3.Vec
}

// tiltSpacingFactor scales the shadow of a tilted panel into row
// spacing.
func tiltSpacingFactor(tilt float64) float64 {
	if tilt <= 30 {
		return 1.2
	}
	return 1.2 - 0.4*math.Min(1, (tilt-30)/60)
}

// swapsAxes reports whether a flat-roof panel facing the given azimuth,
// relative to the face's v axis, lies with its length along u.
func swapsAxes(rel float64) bool {
	rel = normDeg(rel)
	return (rel >= 45 && rel <= 135) || (rel >= 225 && rel <= 315)
}

func mountFor(f *RoofFace, s PanelSpec) mount {
	m := s.metres()
	if !f.Flat {
		mt := mount{
			fp:        Footprint{U: m.width, V: m.length, GapU: m.gap, GapV: m.gap},
			widthDir:  f.U,
			lengthDir: f.V,
			normal:    f.Normal,
			lift:      m.height,
		}
		if f.Region.Kind == Trapezoid {
			d := f.RidgeDir
			mt.ridgeDir = &d
		}
		return mt
	}

	// Flat roof: face the panel along the face axis nearest its
	// azimuth and raise it to the requested tilt.
	rel := normDeg(s.Azimuth - bearing(f.V))
	if math.IsNaN(rel) {
		rel = 180
	}
	east := r3.Cross(f.V, up)
	var facing r3.Vec
	switch {
	case rel >= 45 && rel <= 135:
		facing = east
	case rel > 135 && rel < 225:
		facing = r3.Scale(-1, f.V)
	case rel >= 225 && rel <= 315:
		facing = r3.Scale(-1, east)
	default:
		facing = f.V
	}
	sin, cos := math.Sincos(s.Tilt * deg2rad)
	mt := mount{
		widthDir:  r3.Cross(f.Normal, facing),
		lengthDir: r3.Add(r3.Scale(-cos, facing), r3.Scale(sin, f.Normal)),
		normal:    r3.Add(r3.Scale(sin, facing), r3.Scale(cos, f.Normal)),
		lift:      m.height + m.length/2*sin,
	}
	// A tilted panel shades the space behind it, so rows along the
	// facing axis need more room.
	gapFacing := m.gap
	if s.Tilt > 5 {
		gapFacing = math.Max(m.gap, m.length*sin*tiltSpacingFactor(s.Tilt))
	}
	if swapsAxes(rel) {
		mt.fp = Footprint{U: m.length, V: m.width, GapU: gapFacing, GapV: m.gap}
	} else {
		mt.fp = Footprint{U: m.width, V: m.length, GapU: m.gap, GapV: gapFacing}
	}
	return mt
}

// axis returns the panels' width direction at height v of f and its
// components along f.U and f.V. On trapezoids it turns from the eave
// direction toward the ridge direction as v rises.
func (mt *mount) axis(f *RoofFace, v float64) (d r3.Vec, au, av float64) {
	d, au, av = mt.widthDir, 1, 0
	if mt.ridgeDir == nil || !(f.Region.Height() > 0) {
		return
	}
	t := clamp(f.Region.frac(v), 0, 1)
	w := lerp(f.U, *mt.ridgeDir, t)
	wu, wv := r3.Dot(w, f.U), r3.Dot(w, f.V)
	n := math.Hypot(wu, wv)
	if !(n > eps) {
		return
	}
	au, av = wu/n, wv/n
	return r3.Add(r3.Scale(au, f.U), r3.Scale(av, f.V)), au, av
}

// turn returns the angle in radians from f.U to the trapezoid ridge in
// the face plane, or 0 if panels do not turn.
func (mt *mount) turn(f *RoofFace) float64 {
	_, au, av := mt.axis(f, f.Region.V1)
	return math.Atan2(av, au)
}

// place turns a cell into a placement and the panel's footprint in the
// face frame.
func (mt *mount) place(f *RoofFace, c cell) (Placement, panelRect) {
	p := Placement{
		WidthDir:  mt.widthDir,
		LengthDir: mt.lengthDir,
		Normal:    mt.normal,
		U:         c.u,
		V:         c.v,
		Row:       c.row,
		Col:       c.col,
	}
	pr := panelRect{cu: c.u, cv: c.v, au: 1, av: 0, hw: mt.fp.U / 2, hl: mt.fp.V / 2}
	if mt.ridgeDir != nil {
		d, au, av := mt.axis(f, c.v)
		p.WidthDir = d
		p.LengthDir = r3.Sub(r3.Scale(au, f.V), r3.Scale(av, f.U))
		pr.au, pr.av = au, av
	}
	p.Center = r3.Add(f.Point(c.u, c.v), r3.Scale(mt.lift, f.Normal))
	return p, pr
}

// layoutFace lays out panels on f and removes those blocked by flt,
// which may be nil.
func layoutFace(f *RoofFace, s PanelSpec, flt *obstacleFilter) LayoutResult {
	m := s.metres()
	mt := mountFor(f, s)
	res := LayoutResult{
		Face:        f.ID,
		Region:      f.Region,
		PanelWidth:  m.width,
		PanelLength: m.length,
		Footprint:   mt.fp,
	}

	var cells []cell
	if !f.Degenerate && !f.Region.Empty() {
		switch f.Region.Kind {
		case Rectangle:
			cells = rectangleCells(f.Region, mt.fp)
		case Triangle:
			// The side inset grows from one gap at the base row to
			// two at the top row.
			cells = rowCells(f.Region, mt.fp, mt.fp.V, mt.fp.GapV/2, func(row, rows int) float64 {
				return mt.fp.GapU * (1 + float64(row)/float64(max(1, rows-1)))
			}, unturned)
		case Trapezoid:
			axis := func(v float64) (float64, float64) {
				_, au, av := mt.axis(f, v)
				return au, av
			}
			cells = rowCells(f.Region, mt.fp, mt.fp.sweptV(mt.turn(f)), mt.fp.GapV, func(int, int) float64 {
				return 1.5 * mt.fp.GapU
			}, axis)
		}
	}

	for _, c := range cells {
		p, pr := mt.place(f, c)
		if flt != nil && flt.blocks(pr, f.Point(c.u, c.v)) {
			res.Skipped++
			continue
		}
		res.Placements = append(res.Placements, p)
	}

	switch {
	case len(res.Placements) > 0:
		res.Empty = NotEmpty
	case len(cells) == 0:
		res.Empty = EmptyTooSmall
	default:
		res.Empty = EmptyObstructed
	}
	return res
}
