package main

import (
	"image/color"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"

	"github.com/aclements/solarroof"
)

type exposure uint8

const (
	exposureDark exposure = iota
	exposureSunlit
)

// sunlitChart shades the days and times of day at which the sun is
// above the horizon and in front of a plane with the given normal.
func sunlitChart(irr []solarroof.Irradiance, normal r3.Vec) *plot.Plot {
	plt := newTimePlot(solsticeTicks{})
	times := make([]time.Time, len(irr))
	states := make([]exposure, len(irr))
	for i, ir := range irr {
		times[i] = ir.Sun.T
		if ir.Sun.Altitude > 0 && r3.Dot(normal, ir.Sun.Dir()) > 0 {
			states[i] = exposureSunlit
		}
	}
	for _, r := range traceRegions(plotTransitions(findTransitions(times, states))) {
		poly, err := plotter.NewPolygon(r.xys...)
		if err != nil {
			continue
		}
		poly.Color = color.RGBA{R: 255, G: 255, B: 0, A: 255}
		poly.LineStyle.Width = 0
		plt.Add(poly)
	}
	return plt
}

type transition struct {
	t             time.Time
	before, after exposure
}

// findTransitions returns the times at which the exposure changes. A
// non-dark exposure that carries over midnight gets a no-op transition
// at the start of the day.
func findTransitions(times []time.Time, states []exposure) (ts []transition) {
	for i, t := range times {
		if states[i] != exposureDark && (i == 0 || !sameDay(times[i-1], times[i])) {
			ts = append(ts, transition{t, states[i], states[i]})
		}
		if i > 0 && states[i] != states[i-1] {
			ts = append(ts, transition{t, states[i-1], states[i]})
		}
	}
	return
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// plotTransition is a transition placed in plot space, with X the day
// and Y the time of day. Working in plot space sidesteps DST shifts.
type plotTransition struct {
	transition
	xy  plotter.XY
	day int // Day index
}

func plotTransitions(ts []transition) (out []plotTransition) {
	baseDate := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, t := range ts {
		day, tod := splitTime(t.t)
		xy := plotter.XY{X: float64(day.Unix()), Y: float64(tod.Unix())}
		out = append(out, plotTransition{t, xy, int(day.Sub(baseDate) / (24 * time.Hour))})
	}
	return
}

// spansOverlap reports whether the exposure spans [a1, a2] and [b1, b2]
// on neighbouring days have the same exposure and overlap in time of
// day.
func spansOverlap(a1, a2, b1, b2 plotTransition) bool {
	if a1.after != a2.before || b1.after != b2.before {
		panic("bad transition span")
	}
	if a1.after != b1.after {
		return false
	}
	return b1.xy.Y < a2.xy.Y && a1.xy.Y < b2.xy.Y
}

// A region is the outline of all spans with one exposure. It may
// consist of several paths.
type region struct {
	xys []plotter.XYer
	s   exposure
}

// traceRegions joins the exposure spans of consecutive days into
// polygon outlines, one region per exposure.
func traceRegions(cs []plotTransition) []*region {
	byState := make(map[exposure]*region)
	var regions []*region
	addPath := func(xys plotter.XYs, s exposure) {
		r := byState[s]
		if r == nil {
			r = &region{s: s}
			byState[s] = r
			regions = append(regions, r)
		}
		r.xys = append(r.xys, xys)
	}

	// traced records which points we have left in the +X direction.
	traced := make([]bool, len(cs))

	// trace walks one path starting at cs[start] heading in +X, always
	// keeping to the right-hand side of the edge. With time increasing
	// up and right, this yields a clockwise path around the outside of
	// a region and a counter-clockwise path around a hole.
	trace := func(start int) plotter.XYs {
		var xys plotter.XYs
		dir := 1
		for i := start; len(xys) == 0 || i != start; {
			xys = append(xys, cs[i].xy)
			if dir == 1 {
				// Only points left heading right are recorded, so two
				// nested outlines take three traces: both outer edges
				// clockwise and the inner one again counter-clockwise.
				traced[i] = true

				// Find the latest overlapping span on the next day.
				best := -1
				for j := i + 1; j < len(cs) && cs[j].day <= cs[i].day+1; j++ {
					if cs[j].day == cs[i].day+1 && spansOverlap(cs[i-1], cs[i], cs[j-1], cs[j]) {
						best = j
					}
				}
				switch {
				case best == -1:
					// Follow this edge down and turn back.
					dir = -1
					i--
				case i+1 < len(cs) && cs[i+1].day == cs[i].day && cs[best-1].xy.Y < cs[i+1].xy.Y && cs[i+1].xy.Y < cs[best].xy.Y:
					// Bend left into a concavity that reverses direction.
					dir = -1
					i++
				default:
					i = best
				}
			} else {
				// Find the earliest overlapping span on the previous day.
				best := -1
				for j := i - 1; j >= 0 && cs[j].day >= cs[i].day-1; j-- {
					if cs[j].day == cs[i].day-1 && spansOverlap(cs[i], cs[i+1], cs[j], cs[j+1]) {
						best = j
					}
				}
				switch {
				case best == -1:
					// Follow this edge up and turn back.
					dir = 1
					i++
				case i > 0 && cs[i-1].day == cs[i].day && cs[best].xy.Y < cs[i-1].xy.Y && cs[i-1].xy.Y < cs[best+1].xy.Y:
					dir = 1
					i--
				default:
					i = best
				}
			}
		}
		return xys
	}

	for i := range cs {
		// Dark spans are not drawn, so never start a path from one.
		// This also avoids a counter-clockwise path around everything.
		if traced[i] || cs[i].before == exposureDark {
			continue
		}
		addPath(trace(i), cs[i].before)
	}
	return regions
}
