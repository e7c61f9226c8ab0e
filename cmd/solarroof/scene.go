package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aclements/solarroof"
)

// A scene is a roof, its panels and obstacles, as read from a TOML file:
//
//	active = ["left", "right"]
//
//	[roof]
//	shape = "gable"
//	width = 10
//	length = 12
//	height = 5
//	rotation = 30
//
//	[panel]
//	width = 1000
//	length = 1600
//
//	[site]
//	latitude = 42.42
//	longitude = -71.21
//	year = 2024
//
//	[[obstacle]]
//	kind = "chimney"
//	position = [2.5, 5, 2.5]
//
// A roof with [[roof.face]] tables uses those faces instead of the
// shape's standard ones. Obstacle positions are in the unrotated roof
// frame and turn with the roof.
type scene struct {
	Active    []string        `toml:"active"`
	Roof      roofScene       `toml:"roof"`
	Panel     panelScene      `toml:"panel"`
	Site      *siteScene      `toml:"site"`
	Obstacles []obstacleScene `toml:"obstacle"`
}

type roofScene struct {
	Shape    string      `toml:"shape"`
	Width    float64     `toml:"width"`
	Length   float64     `toml:"length"`
	Height   float64     `toml:"height"`
	Rotation float64     `toml:"rotation"`
	Faces    []faceScene `toml:"face"`
}

type faceScene struct {
	ID      string       `toml:"id"`
	Kind    string       `toml:"kind"`
	Corners [][3]float64 `toml:"corners"`
	Surface string       `toml:"surface"`
	Flat    bool         `toml:"flat"`
	Outside *[3]float64  `toml:"outside"`
}

// panelScene overrides fields of the default panel spec.
type panelScene struct {
	Width        *float64 `toml:"width"`
	Length       *float64 `toml:"length"`
	Gap          *float64 `toml:"gap"`
	EdgeMargin   *float64 `toml:"edge_margin"`
	HeightOffset *float64 `toml:"height_offset"`
	Tilt         *float64 `toml:"tilt"`
	Azimuth      *float64 `toml:"azimuth"`
	Power        *float64 `toml:"power"`
}

type siteScene struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	Elevation float64 `toml:"elevation"`
	Year      int     `toml:"year"`
}

type obstacleScene struct {
	ID       string      `toml:"id"`
	Kind     string      `toml:"kind"`
	Position [3]float64  `toml:"position"`
	Width    *float64    `toml:"width"`
	Length   *float64    `toml:"length"`
	Height   *float64    `toml:"height"`
	Face     string      `toml:"face"`
	Normal   *[3]float64 `toml:"normal"`
}

func loadScene(path string, logger *log.Logger) (*scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := decodeScene(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func decodeScene(r io.Reader, logger *log.Logger) (*scene, error) {
	var s scene
	md, err := toml.NewDecoder(r).Decode(&s)
	if err != nil {
		return nil, solarroof.NewSceneError(err, "malformed scene")
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		logger.Warn("ignoring unknown scene keys", "keys", strings.Join(names, ", "))
	}
	return &s, nil
}

func vec(v [3]float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func parseTopologyKind(s string) (solarroof.TopologyKind, error) {
	for _, k := range []solarroof.TopologyKind{solarroof.Rectangle, solarroof.Triangle, solarroof.Trapezoid} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, solarroof.NewSceneError(nil, "unknown face kind %q", s)
}

func (s *scene) roof() (*solarroof.Roof, error) {
	shape, err := solarroof.ParseShape(s.Roof.Shape)
	if err != nil {
		return nil, err
	}
	if len(s.Roof.Faces) > 0 {
		faces := make([]solarroof.FaceDescriptor, len(s.Roof.Faces))
		for i, fs := range s.Roof.Faces {
			kind, err := parseTopologyKind(fs.Kind)
			if err != nil {
				return nil, err
			}
			d := solarroof.FaceDescriptor{
				ID:      solarroof.FaceID(fs.ID),
				Kind:    kind,
				Surface: solarroof.FaceID(fs.Surface),
				Flat:    fs.Flat,
			}
			for _, c := range fs.Corners {
				d.Corners = append(d.Corners, vec(c))
			}
			if fs.Outside != nil {
				d.NormalHint = vec(*fs.Outside)
			}
			faces[i] = d
		}
		return solarroof.NewRoof(shape, faces)
	}

	w, l, h := s.Roof.Width, s.Roof.Length, s.Roof.Height
	if !(w > 0 && l > 0) || h < 0 || (shape != solarroof.Flat && !(h > 0)) {
		return nil, solarroof.NewSceneError(nil, "%s roof needs a positive width, length and height, got %v×%v×%v", shape, w, l, h)
	}
	switch shape {
	case solarroof.Flat:
		return solarroof.FlatRoof(w, l, h), nil
	case solarroof.Gable:
		return solarroof.GableRoof(w, l, h), nil
	case solarroof.Hip:
		return solarroof.HipRoof(w, l, h), nil
	default:
		return solarroof.PyramidRoof(w, l, h), nil
	}
}

func (p panelScene) update() solarroof.PanelUpdate {
	return solarroof.PanelUpdate{
		Width:        p.Width,
		Length:       p.Length,
		Gap:          p.Gap,
		EdgeMargin:   p.EdgeMargin,
		HeightOffset: p.HeightOffset,
		Tilt:         p.Tilt,
		Azimuth:      p.Azimuth,
		Power:        p.Power,
	}
}

func (o obstacleScene) obstacle() (solarroof.Obstacle, error) {
	kind, err := solarroof.ParseObstacleKind(o.Kind)
	if err != nil {
		return solarroof.Obstacle{}, err
	}
	ob := solarroof.NewObstacle(kind, vec(o.Position))
	ob.ID = o.ID
	ob.Face = solarroof.FaceID(o.Face)
	for _, d := range []struct {
		dst *float64
		src *float64
	}{{&ob.Width, o.Width}, {&ob.Length, o.Length}, {&ob.Height, o.Height}} {
		if d.src != nil {
			*d.dst = *d.src
		}
	}
	if o.Normal != nil {
		n := vec(*o.Normal)
		ob.Normal = &n
	}
	return ob, nil
}

// planner builds a planner for the scene with its obstacles added, its
// faces activated and its rotation applied.
func (s *scene) planner(logger *log.Logger) (*solarroof.Planner, error) {
	roof, err := s.roof()
	if err != nil {
		return nil, err
	}
	opts := []solarroof.Option{
		solarroof.WithPanelSpec(solarroof.DefaultPanelSpec().Merge(s.Panel.update())),
		solarroof.WithLogger(logger),
	}
	if s.Site != nil {
		opts = append(opts, solarroof.WithLocation(solarroof.Location{
			Latitude:  s.Site.Latitude,
			Longitude: s.Site.Longitude,
			Elevation: s.Site.Elevation,
		}, s.Site.Year))
	}
	p, err := solarroof.NewPlanner(roof, opts...)
	if err != nil {
		return nil, err
	}

	for i, sc := range s.Obstacles {
		o, err := sc.obstacle()
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i+1, err)
		}
		id, err := p.AddObstacle(o)
		if err != nil {
			return nil, err
		}
		logger.Debug("added obstacle", "id", id, "kind", o.Kind)
	}

	active := s.Active
	if len(active) == 0 {
		ids := roof.FaceIDs()
		for _, id := range ids[:min(len(ids), roof.MaxActive())] {
			active = append(active, string(id))
		}
	}
	for _, id := range active {
		evicted, err := p.Activate(solarroof.FaceID(id))
		if err != nil {
			return nil, err
		}
		if evicted != "" {
			logger.Info("face deactivated to make room", "face", evicted, "for", id)
		}
	}

	if s.Roof.Rotation != 0 {
		if err := p.RecomputeGeometry(s.Roof.Rotation); err != nil {
			return nil, err
		}
	}
	return p, nil
}
