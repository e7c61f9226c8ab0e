package solarroof

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// A Planner lays out panels on the active faces of a roof and keeps the
// layouts current as faces, obstacles, the panel spec and the roof's
// rotation change. Every mutation lays out the active faces again
// before returning.
//
// The coordinate system is as follows:
//
//	Z/up
//	|  Y/north
//	| /
//	|/____ X/east
//
// A Planner is safe for concurrent use.
type Planner struct {
	mu sync.RWMutex

	roof    *Roof
	spec    PanelSpec
	tuning  ShapeTuning
	filter  FilterParams
	matcher FaceMatcher
	loc     *Location
	year    int
	log     *log.Logger
	cache   *layoutCache

	faces     map[FaceID]*RoofFace
	obstacles []Obstacle
	active    []FaceID // Oldest first
	layouts   map[FaceID]LayoutResult
}

type Option func(*Planner)

// WithPanelSpec sets the initial panel spec. The default is
// DefaultPanelSpec.
func WithPanelSpec(s PanelSpec) Option {
	return func(p *Planner) { p.spec = s }
}

// WithTuning replaces the roof shape's default tuning.
func WithTuning(t ShapeTuning) Option {
	return func(p *Planner) { p.tuning = t }
}

func WithWindowParams(w WindowParams) Option {
	return func(p *Planner) { p.filter.Window = w }
}

// WithBoxMargin sets the clearance kept around chimneys and vents, in
// metres.
func WithBoxMargin(m float64) Option {
	return func(p *Planner) { p.filter.BoxMargin = m }
}

func WithFaceMatcher(m FaceMatcher) Option {
	return func(p *Planner) { p.matcher = m }
}

// WithLocation enables clear-sky irradiation estimates in reports, for
// the given site and year.
func WithLocation(loc Location, year int) Option {
	return func(p *Planner) {
		p.loc = &loc
		p.year = year
	}
}

// WithLogger sets the logger. By default the planner does not log.
func WithLogger(l *log.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// NewPlanner returns a planner for roof with no active faces and no
// obstacles. The planner takes ownership of roof.
func NewPlanner(roof *Roof, opts ...Option) (*Planner, error) {
	if roof == nil {
		return nil, newError(ErrCodeInvalidFace, "nil roof")
	}
	p := &Planner{
		roof:    roof,
		spec:    DefaultPanelSpec(),
		tuning:  DefaultTuning(roof.Shape),
		filter:  DefaultFilterParams(),
		matcher: DefaultFaceMatcher,
		log:     discardLogger(),
		cache:   newLayoutCache(256),
		layouts: make(map[FaceID]LayoutResult),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.spec.Validate(); err != nil {
		return nil, err
	}
	faces, err := p.resolve(p.spec)
	if err != nil {
		return nil, err
	}
	p.faces = faces
	return p, nil
}

// resolve computes every face of the roof for spec.
func (p *Planner) resolve(spec PanelSpec) (map[FaceID]*RoofFace, error) {
	faces := make(map[FaceID]*RoofFace)
	for _, d := range p.roof.faces {
		f, err := ResolveFace(d, spec, p.tuning.face(d.Kind))
		if err != nil {
			return nil, err
		}
		if f.Degenerate {
			p.log.Warn("degenerate face", "face", f.ID)
		}
		faces[f.ID] = f
	}
	return faces, nil
}

// relayout lays out every active face against a snapshot of the
// obstacles. The caller must hold p.mu for writing.
func (p *Planner) relayout() {
	obstacles := slices.Clone(p.obstacles)
	results := make([]LayoutResult, len(p.active))
	var g errgroup.Group
	for i, id := range p.active {
		i := i
		f := p.faces[id]
		g.Go(func() error {
			results[i] = p.layout(f, obstacles)
			return nil
		})
	}
	g.Wait()

	p.layouts = make(map[FaceID]LayoutResult, len(p.active))
	for i, id := range p.active {
		p.layouts[id] = results[i]
		p.log.Debug("face laid out", "face", id, "panels", results[i].Count(), "skipped", results[i].Skipped, "empty", results[i].Empty)
	}
}

// layoutKey is everything a face layout depends on.
type layoutKey struct {
	Face      RoofFace
	Spec      PanelSpec
	Filter    FilterParams
	Obstacles []Obstacle
	Matcher   string
}

func (p *Planner) layout(f *RoofFace, obstacles []Obstacle) LayoutResult {
	ck := MakeCacheKey(layoutKey{*f, p.spec, p.filter, obstacles, fmt.Sprintf("%T %+v", p.matcher, p.matcher)})
	if r, ok := p.cache.Load(ck); ok {
		return r
	}
	flt := newObstacleFilter(f, obstacles, p.filter, p.matcher, p.log)
	r := layoutFace(f, p.spec, flt)
	p.cache.Save(ck, r)
	return r
}

// Roof returns the planner's roof shape and its face IDs.
func (p *Planner) Roof() (Shape, []FaceID) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.roof.Shape, p.roof.FaceIDs()
}

// Face returns a copy of the resolved face id.
func (p *Planner) Face(id FaceID) (RoofFace, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.faces[id]
	if !ok {
		return RoofFace{}, false
	}
	c := *f
	c.Corners = slices.Clone(f.Corners)
	return c, true
}

// Active returns the active faces, oldest first.
func (p *Planner) Active() []FaceID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.active)
}

// Activate adds face id to the active set. If the set is full, the
// oldest face is evicted first and returned. Activating an active face
// does nothing.
func (p *Planner) Activate(id FaceID) (evicted FaceID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.faces[id]; !ok {
		return "", newError(ErrCodeInvalidFace, "unknown face %q", id)
	}
	if slices.Contains(p.active, id) {
		return "", nil
	}
	if len(p.active) >= p.roof.MaxActive() {
		evicted, _ = p.evict()
	}
	p.active = append(p.active, id)
	p.relayout()
	return evicted, nil
}

// Deactivate removes face id from the active set.
func (p *Planner) Deactivate(id FaceID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.faces[id]; !ok {
		return newError(ErrCodeInvalidFace, "unknown face %q", id)
	}
	i := slices.Index(p.active, id)
	if i < 0 {
		return nil
	}
	p.active = slices.Delete(p.active, i, i+1)
	p.relayout()
	return nil
}

// Toggle activates face id if it is inactive and deactivates it
// otherwise. It reports whether the face is now active and which face,
// if any, was evicted.
func (p *Planner) Toggle(id FaceID) (active bool, evicted FaceID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.faces[id]; !ok {
		return false, "", newError(ErrCodeInvalidFace, "unknown face %q", id)
	}
	if i := slices.Index(p.active, id); i >= 0 {
		p.active = slices.Delete(p.active, i, i+1)
		p.relayout()
		return false, "", nil
	}
	if len(p.active) >= p.roof.MaxActive() {
		evicted, _ = p.evict()
	}
	p.active = append(p.active, id)
	p.relayout()
	return true, evicted, nil
}

// Evict removes the oldest active face and returns it.
func (p *Planner) Evict() (FaceID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.evict()
	if ok {
		p.relayout()
	}
	return id, ok
}

func (p *Planner) evict() (FaceID, bool) {
	if len(p.active) == 0 {
		return "", false
	}
	id := p.active[0]
	p.active = slices.Delete(p.active, 0, 1)
	p.log.Debug("face evicted", "face", id)
	return id, true
}

// ClearFaces deactivates every face.
func (p *Planner) ClearFaces() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
	p.relayout()
}

// AddObstacle adds o and returns its ID, generating one if o has none.
// An obstacle with neither a face tag nor a normal is tagged with the
// roof surface below it, if any.
func (p *Planner) AddObstacle(o Obstacle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o.Kind {
	case Chimney, RoofWindow, Ventilation:
	default:
		return "", newError(ErrCodeInvalidObstacle, "obstacle %q: unknown kind %v", o.ID, o.Kind)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if slices.ContainsFunc(p.obstacles, func(x Obstacle) bool { return x.ID == o.ID }) {
		return "", newError(ErrCodeInvalidObstacle, "duplicate obstacle %q", o.ID)
	}
	if o.Face != "" && !p.knownSurface(o.Face) {
		return "", newError(ErrCodeInvalidObstacle, "obstacle %q: unknown face %q", o.ID, o.Face)
	}
	if o.Normal != nil {
		n := *o.Normal
		o.Normal = &n
	}
	if o.Face == "" && o.Normal == nil {
		if id, ok := p.roof.FaceAt(o.Position); ok {
			o.Face = id
		}
	}
	if err := o.check(); err != nil {
		p.log.Warn("obstacle added with unusable geometry; its faces will stay empty", "err", err)
	}
	p.obstacles = append(p.obstacles, o)
	p.relayout()
	return o.ID, nil
}

func (p *Planner) knownSurface(id FaceID) bool {
	for _, f := range p.faces {
		if f.ID == id || f.Surface == id {
			return true
		}
	}
	return false
}

// RemoveObstacle removes the obstacle with the given ID.
func (p *Planner) RemoveObstacle(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.obstacles, func(x Obstacle) bool { return x.ID == id })
	if i < 0 {
		return newError(ErrCodeUnknownObstacle, "no obstacle %q", id)
	}
	p.obstacles = slices.Delete(p.obstacles, i, i+1)
	p.relayout()
	return nil
}

// ClearObstacles removes every obstacle.
func (p *Planner) ClearObstacles() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.obstacles = nil
	p.relayout()
}

// Obstacles returns a copy of the obstacle list.
func (p *Planner) Obstacles() []Obstacle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.obstacles)
}

// PanelSpec returns the current panel spec.
func (p *Planner) PanelSpec() PanelSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec
}

// UpdatePanelConfig merges u into the panel spec. If the result is out
// of range, it returns an ErrCodeConfigOutOfRange error and leaves the
// planner unchanged.
func (p *Planner) UpdatePanelConfig(u PanelUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec := p.spec.Merge(u)
	if err := spec.Validate(); err != nil {
		return err
	}
	faces, err := p.resolve(spec)
	if err != nil {
		return err
	}
	p.spec, p.faces = spec, faces
	p.relayout()
	return nil
}

// RecomputeGeometry rotates the roof to deg degrees counter-clockwise
// about its vertical centre line, recomputes every face and lays out
// the active faces again. Obstacles turn with the roof.
func (p *Planner) RecomputeGeometry(deg float64) error {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return newError(ErrCodeConfigOutOfRange, "rotation %v not finite", deg)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.roof.Rotation()
	delta := deg - prev
	p.roof.Rotate(deg)
	faces, err := p.resolve(p.spec)
	if err != nil {
		p.roof.Rotate(prev)
		return err
	}
	pivot := p.roof.Pivot()
	for i := range p.obstacles {
		o := &p.obstacles[i]
		o.Position = rotateZ(o.Position, pivot, delta)
		if o.Normal != nil {
			n := rotateZ(*o.Normal, r3.Vec{}, delta)
			o.Normal = &n
		}
	}
	p.faces = faces
	p.relayout()
	return nil
}

// Layout returns the layout of active face id.
func (p *Planner) Layout(id FaceID) (LayoutResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.layouts[id]
	if !ok {
		return LayoutResult{}, false
	}
	return r.clone(), true
}

// Layouts returns the layouts of the active faces, oldest first.
func (p *Planner) Layouts() []LayoutResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]LayoutResult, 0, len(p.active))
	for _, id := range p.active {
		out = append(out, p.layouts[id].clone())
	}
	return out
}

// Skipped returns how many candidate panels obstacles removed from
// active face id.
func (p *Planner) Skipped(id FaceID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.layouts[id].Skipped
}

// FaceReport is the estimate for one active face.
type FaceReport struct {
	Face    FaceID
	Layout  LayoutResult
	Pitch   float64 // degrees
	Azimuth float64 // degrees, NaN for flat faces
	Area    float64 // square metres
	Yield   YieldResult

	// ClearSky is the clear-sky irradiation on the panel plane per
	// month in kWh/m², if the planner has a location.
	ClearSky *[12]float64
}

// Report is the yield estimate of every active face and their total.
type Report struct {
	Faces    []FaceReport
	Total    YieldResult
	Chimneys int // Chimneys on the active faces
}

// Report estimates the yield of the current layouts.
func (p *Planner) Report() Report {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var rep Report
	var area float64
	for _, id := range p.active {
		area += p.faces[id].Area()
	}
	chimneys := p.activeChimneys()
	rep.Chimneys = len(chimneys)
	cf := ChimneyFactor(chimneys, area, p.tuning.Chimney)

	for _, id := range p.active {
		f := p.faces[id]
		l := p.layouts[id].clone()
		fr := FaceReport{Face: id, Layout: l, Pitch: f.Pitch(), Azimuth: f.Azimuth(), Area: f.Area()}
		in := YieldInput{PanelCount: l.Count(), PanelPower: p.spec.Power, ChimneyFactor: cf}
		if f.Flat {
			in.AngleFactor = FlatAngleFactor(p.spec.Tilt)
			in.OrientationFactor = OrientationFactor(panelAzimuth(l, p.spec.Azimuth))
			fr.Yield = FlatYield(in)
		} else {
			in.AngleFactor = AngleFactor(fr.Pitch)
			in.OrientationFactor = 1
			fr.Yield = PitchedYield(in)
		}
		rep.Faces = append(rep.Faces, fr)
	}

	if p.loc != nil {
		var g errgroup.Group
		for i := range rep.Faces {
			fr := &rep.Faces[i]
			normal := p.faces[fr.Face].Normal
			if fr.Layout.Count() > 0 {
				normal = fr.Layout.Placements[0].Normal
			}
			g.Go(func() error {
				cs := ClearSkyMonthly(*p.loc, p.year, normal, 0)
				fr.ClearSky = &cs
				return nil
			})
		}
		g.Wait()
	}

	rep.Total = totalYield(rep.Faces, cf)
	return rep
}

// panelAzimuth returns the compass bearing the panels of l face, or az
// if l has none. Flat mounts snap to the face's axes, so this can differ
// from the requested azimuth once the roof turns.
func panelAzimuth(l LayoutResult, az float64) float64 {
	if l.Count() == 0 {
		return az
	}
	pl := l.Placements[0]
	// The length axis runs down the panel, away from where it faces.
	if b := bearing(r3.Scale(-1, pl.LengthDir)); !math.IsNaN(b) {
		return b
	}
	if b := bearing(pl.Normal); !math.IsNaN(b) {
		return b
	}
	return az
}

// activeChimneys returns the chimneys on any active face.
func (p *Planner) activeChimneys() []Obstacle {
	var out []Obstacle
	for _, o := range p.obstacles {
		if o.Kind != Chimney {
			continue
		}
		for _, id := range p.active {
			on, err := onFace(&o, p.faces[id], p.matcher)
			if on || err != nil {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

// totalYield sums face yields. Its angle and orientation factors are
// the panel-weighted means of the faces'.
func totalYield(faces []FaceReport, chimney float64) YieldResult {
	t := YieldResult{ChimneyFactor: chimney}
	var wAngle, wOrient float64
	for i, fr := range faces {
		y := fr.Yield
		if i == 0 {
			t.Model = y.Model
		} else if t.Model != y.Model {
			t.Model = 0
		}
		t.PanelCount += y.PanelCount
		t.SystemPowerKW += y.SystemPowerKW
		t.AnnualKWh += y.AnnualKWh
		for m := range t.Monthly {
			t.Monthly[m] += y.Monthly[m]
		}
		wAngle += float64(y.PanelCount) * y.AngleFactor
		wOrient += float64(y.PanelCount) * y.OrientationFactor
	}
	t.DailyKWh = t.AnnualKWh / 365
	t.Seasonal = seasonsOf(t.Monthly)
	if t.PanelCount > 0 {
		t.AngleFactor = wAngle / float64(t.PanelCount)
		t.OrientationFactor = wOrient / float64(t.PanelCount)
	}
	return t
}
