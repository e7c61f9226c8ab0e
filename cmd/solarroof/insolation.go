package main

import (
	"fmt"
	"image/color"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/aclements/solarroof"
)

func (c *cli) insolationCommand() *cobra.Command {
	var (
		out    string
		face   string
		step   time.Duration
		zone   string
		sunlit bool
	)
	cmd := &cobra.Command{
		Use:   "insolation SCENE",
		Short: "Plot clear-sky irradiance on a face over the year",
		Long: `Insolation plots the clear-sky irradiance on the panels of one active
face for every day of the scene's year and every time of day. With
--sunlit it instead shades the times the sun is in front of the panels.
The scene must have a [site].`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScene(args[0], c.log)
			if err != nil {
				return err
			}
			if s.Site == nil {
				return solarroof.NewSceneError(nil, "%s: insolation needs a [site]", args[0])
			}
			if step < time.Minute {
				return fmt.Errorf("step %v shorter than a minute", step)
			}
			tz, err := time.LoadLocation(zone)
			if err != nil {
				return err
			}
			p, err := s.planner(c.log)
			if err != nil {
				return err
			}
			id := solarroof.FaceID(face)
			if id == "" {
				active := p.Active()
				if len(active) == 0 {
					return solarroof.NewSceneError(nil, "%s: no active face", args[0])
				}
				id = active[0]
			}
			normal, err := panelNormal(p, id)
			if err != nil {
				return err
			}

			loc := solarroof.Location{Latitude: s.Site.Latitude, Longitude: s.Site.Longitude, Elevation: s.Site.Elevation}
			var times []time.Time
			for t := time.Date(s.Site.Year, 1, 1, 0, 0, 0, 0, tz); t.Year() == s.Site.Year; t = t.Add(step) {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				times = append(times, t)
			}
			c.log.Debug("computing irradiance", "face", id, "samples", len(times))
			irr := solarroof.ClearSky(loc, normal, times)

			var plt *plot.Plot
			if sunlit {
				plt = sunlitChart(irr, normal)
			} else {
				plt = heatMap(irr, step)
			}
			plt.Title.Text = fmt.Sprintf("%s, %d", id, s.Site.Year)
			if err := plt.Save(20*vg.Centimeter, 15*vg.Centimeter, out); err != nil {
				return err
			}
			c.log.Info("wrote insolation plot", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "insolation.png", "output image `file`; the extension selects the format")
	cmd.Flags().StringVar(&face, "face", "", "active face to plot (default the first active face)")
	cmd.Flags().DurationVar(&step, "step", 10*time.Minute, "time between samples")
	cmd.Flags().StringVar(&zone, "tz", "Local", "time zone of the time-of-day axis")
	cmd.Flags().BoolVar(&sunlit, "sunlit", false, "plot when the panels face the sun instead of irradiance")
	return cmd
}

// panelNormal returns the normal of the panels on active face id, or of
// the face itself if it has none.
func panelNormal(p *solarroof.Planner, id solarroof.FaceID) (r3.Vec, error) {
	l, ok := p.Layout(id)
	if !ok {
		return r3.Vec{}, solarroof.NewSceneError(nil, "face %q is not active", id)
	}
	if l.Count() > 0 {
		return l.Placements[0].Normal, nil
	}
	f, _ := p.Face(id)
	return f.Normal, nil
}

func newPlot() *plot.Plot {
	plt := plot.New()
	plt.BackgroundColor = color.Black
	for _, elt := range []*color.Color{
		&plt.Title.TextStyle.Color,
		&plt.X.Color,
		&plt.X.Tick.Color,
		&plt.X.Tick.Label.Color,
		&plt.X.Label.TextStyle.Color,
		&plt.Y.Color,
		&plt.Y.Tick.Color,
		&plt.Y.Tick.Label.Color,
		&plt.Y.Label.TextStyle.Color,
	} {
		*elt = color.White
	}
	return plt
}

// newTimePlot returns a plot with days along X and time of day along Y.
func newTimePlot(xticks plot.Ticker) *plot.Plot {
	plt := newPlot()
	plt.X.Tick.Marker = xticks
	plt.Y.Tick.Marker = timeOfDayTicks{targetTicks: 8}
	return plt
}

var splitTimeDay = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// splitTime splits t into day and time of day. For the day, we put it
// at noon to "center" it on that date. In all cases, we put the result
// in UTC since that's the time zone gonum will render it in and it
// avoids further complications with DST.
func splitTime(t time.Time) (day, tod time.Time) {
	day = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	tod = time.Date(2000, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return
}

// heatMap plots irradiance samples taken every increment, one column
// per day.
func heatMap(irr []solarroof.Irradiance, increment time.Duration) *plot.Plot {
	plt := newTimePlot(dayOfYearTicks{})
	grid, ok := newIrradianceGrid(irr, increment)
	if !ok {
		return plt
	}
	hm := plotter.NewHeatMap(grid, palette.Heat(256, 1))
	hm.Underflow = color.Black
	hm.Rasterized = true
	plt.Add(hm)
	return plt
}

// newIrradianceGrid arranges samples taken every increment by day and
// time of day. Rows are narrowed to the times of day with any light. It
// returns false if no sample has light.
func newIrradianceGrid(irr []solarroof.Irradiance, increment time.Duration) (*irradianceGrid, bool) {
	if len(irr) == 0 {
		return nil, false
	}

	type xy struct {
		intensity float64
		col, row  int
	}

	var cMax, rMin, rMax int
	lit := false
	startDay, _ := splitTime(irr[0].Sun.T)
	xys := make([]xy, len(irr))
	for i, ir := range irr {
		xy := &xys[i]
		day, tod := splitTime(ir.Sun.T)
		xy.intensity = ir.WattsPerM2
		xy.col = int(day.Sub(startDay) / (24 * time.Hour))
		xy.row = int(tod.Sub(splitTimeDay) / increment)
		cMax = max(cMax, xy.col)
		if xy.intensity > 0 {
			if !lit || xy.row < rMin {
				rMin = xy.row
			}
			if !lit || xy.row > rMax {
				rMax = xy.row
			}
			lit = true
		}
	}
	if !lit {
		return nil, false
	}

	grid := &irradianceGrid{
		intensity: make([][]float64, cMax+1),
		startDay:  startDay,
		startTOD:  splitTimeDay.Add(time.Duration(rMin) * increment),
		increment: increment,
	}
	for c := range grid.intensity {
		grid.intensity[c] = make([]float64, rMax-rMin+1)
	}
	for _, xy := range xys {
		if xy.row < rMin || xy.row > rMax {
			continue
		}
		// DST can put two samples in one cell.
		cell := &grid.intensity[xy.col][xy.row-rMin]
		*cell = max(*cell, xy.intensity)
		grid.max = max(grid.max, xy.intensity)
	}
	return grid, true
}

// irradianceGrid is a plotter.GridXYZ of W/m² by day and time of day.
type irradianceGrid struct {
	intensity          [][]float64
	startDay, startTOD time.Time
	increment          time.Duration
	max                float64
}

func (g *irradianceGrid) Dims() (c, r int) {
	if len(g.intensity) == 0 {
		return 0, 0
	}
	return len(g.intensity), len(g.intensity[0])
}

func (g *irradianceGrid) Z(c, r int) float64 {
	return g.intensity[c][r]
}

func (g *irradianceGrid) X(c int) float64 {
	t := g.startDay.Add(time.Duration(c) * (24 * time.Hour))
	return float64(t.Unix())
}

func (g *irradianceGrid) Y(r int) float64 {
	t := g.startTOD.Add(time.Duration(r) * g.increment)
	return float64(t.Unix())
}

func (g *irradianceGrid) Min() float64 {
	// Return 1 rather than 0 so that the "0" value when the sun isn't
	// in the sky renders in the underflow color.
	return 1
}

func (g *irradianceGrid) Max() float64 {
	return g.max
}
