package main

import (
	"image/color"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/aclements/solarroof"
)

var (
	colorFace     = color.RGBA{R: 90, G: 90, B: 100, A: 255}
	colorActive   = color.RGBA{R: 140, G: 110, B: 90, A: 255}
	colorRegion   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorPanel    = color.RGBA{R: 40, G: 80, B: 200, A: 255}
	colorObstacle = color.RGBA{R: 255, G: 80, B: 0, A: 255}
)

func (c *cli) plotCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "plot SCENE",
		Short: "Draw a plan view of the roof and its panels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScene(args[0], c.log)
			if err != nil {
				return err
			}
			p, err := s.planner(c.log)
			if err != nil {
				return err
			}
			plt, err := planView(p)
			if err != nil {
				return err
			}
			if err := plt.Save(20*vg.Centimeter, 20*vg.Centimeter, out); err != nil {
				return err
			}
			c.log.Info("wrote plan", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "plan.png", "output image `file`; the extension selects the format")
	return cmd
}

// planXY projects points onto the ground plane.
func planXY(ps ...r3.Vec) plotter.XYs {
	xys := make(plotter.XYs, len(ps))
	for i, p := range ps {
		xys[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return xys
}

// planView draws the roof seen from above: every face outline, the
// usable region and panels of the active faces, and the obstacles.
func planView(p *solarroof.Planner) (*plot.Plot, error) {
	plt := newPlot()
	plt.X.Label.Text = "East (m)"
	plt.Y.Label.Text = "North (m)"

	_, ids := p.Roof()
	active := make(map[solarroof.FaceID]bool)
	for _, id := range p.Active() {
		active[id] = true
	}

	var labels plotter.XYLabels
	for _, id := range ids {
		f, _ := p.Face(id)
		if f.Flat && id != f.Surface {
			// Flat roof areas overlap their surface.
			continue
		}
		poly, err := plotter.NewPolygon(planXY(f.Corners...))
		if err != nil {
			return nil, err
		}
		poly.Color = colorFace
		if active[id] {
			poly.Color = colorActive
		}
		poly.LineStyle.Color = color.Black
		plt.Add(poly)

		var centre r3.Vec
		for _, c := range f.Corners {
			centre = r3.Add(centre, c)
		}
		centre = r3.Scale(1/float64(len(f.Corners)), centre)
		labels.XYs = append(labels.XYs, plotter.XY{X: centre.X, Y: centre.Y})
		labels.Labels = append(labels.Labels, string(id))
	}

	for _, l := range p.Layouts() {
		f, _ := p.Face(l.Face)
		if !l.Region.Empty() {
			var ring []r3.Vec
			for _, q := range l.Region.Ring() {
				ring = append(ring, f.Point(q[0], q[1]))
			}
			region, err := plotter.NewPolygon(planXY(ring...))
			if err != nil {
				return nil, err
			}
			region.Color = nil
			region.LineStyle.Color = colorRegion
			region.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
			plt.Add(region)
		}

		var panels []plotter.XYer
		for _, pl := range l.Placements {
			cs := pl.Corners(l.PanelWidth, l.PanelLength)
			panels = append(panels, planXY(cs[:]...))
		}
		if len(panels) == 0 {
			continue
		}
		poly, err := plotter.NewPolygon(panels...)
		if err != nil {
			return nil, err
		}
		poly.Color = colorPanel
		poly.LineStyle.Color = color.White
		poly.LineStyle.Width = vg.Points(0.5)
		plt.Add(poly)
	}

	if obs := p.Obstacles(); len(obs) > 0 {
		var xys plotter.XYs
		for _, o := range obs {
			xys = append(xys, plotter.XY{X: o.Position.X, Y: o.Position.Y})
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = colorObstacle
		sc.GlyphStyle.Shape = draw.BoxGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		plt.Add(sc)
	}

	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].Color = color.White
	}
	plt.Add(lbl)

	// Keep metres square.
	span := max(plt.X.Max-plt.X.Min, plt.Y.Max-plt.Y.Min)
	plt.X.Max = plt.X.Min + span
	plt.Y.Max = plt.Y.Min + span
	return plt, nil
}
