package main

import (
	"time"

	"gonum.org/v1/plot"
)

// timeOfDayTicks labels an axis of Unix times on splitTimeDay, as
// returned by splitTime, with the time of day.
type timeOfDayTicks struct {
	targetTicks int // Create around targetTicks number of ticks
}

func (o timeOfDayTicks) Ticks(min, max float64) []plot.Tick {
	base := float64(splitTimeDay.Unix())
	minD := time.Duration((min - base) * float64(time.Second))
	maxD := time.Duration((max - base) * float64(time.Second))

	major, minor := optimizeDurationTicks(minD, maxD, o.targetTicks)
	if minor == 0 {
		minor = major
	}

	var ticks []plot.Tick
	first := int((minD + minor - 1) / minor)
	last := int(maxD / minor)
	minorFactor := int(major / minor)
	for i := first; i <= last; i++ {
		t := time.Duration(i) * minor
		label := ""
		if i%minorFactor == 0 {
			label = splitTimeDay.Add(t).Format("3:04PM")
		}
		ticks = append(ticks, plot.Tick{
			Value: base + t.Seconds(),
			Label: label,
		})
	}
	return ticks
}

var durationScales = []time.Duration{12 * time.Hour, 3 * time.Hour, time.Hour, 30 * time.Minute, 10 * time.Minute, 5 * time.Minute, time.Minute}

// optimizeDurationTicks picks the tick spacing that puts closest to
// targetTicks major ticks in [minD, maxD], and the next finer spacing
// for minor ticks.
func optimizeDurationTicks(minD, maxD time.Duration, targetTicks int) (major, minor time.Duration) {
	bestDelta := 0
	for i, scale := range durationScales {
		first := int((minD + scale - 1) / scale)
		last := int(maxD / scale)
		if n := last - first + 1; n > 0 {
			delta := n - targetTicks
			if delta < 0 {
				delta = -delta
			}
			if major == 0 || delta < bestDelta {
				major, bestDelta = scale, delta
				minor = 0
				if i+1 < len(durationScales) {
					minor = durationScales[i+1]
				}
			}
		}
	}
	if major == 0 {
		major, minor = durationScales[0], durationScales[1]
	}
	return major, minor
}

// dayOfYearTicks labels an axis of Unix times with the first of each
// month, with a label every quarter.
type dayOfYearTicks struct{}

func (dayOfYearTicks) Ticks(min, max float64) []plot.Tick {
	minT, maxT := plot.UTCUnixTime(min), plot.UTCUnixTime(max)
	year := minT.Year()
	var ticks []plot.Tick
	lastMajorYear := 0
	for month := time.Month(1); ; month++ {
		t := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
		if t.Before(minT) {
			continue
		}
		if t.After(maxT) {
			break
		}
		label := ""
		if (t.Month()-1)%3 == 0 {
			if lastMajorYear == t.Year() {
				label = t.Format("1/02")
			} else {
				lastMajorYear = t.Year()
				label = t.Format("1/02/2006")
			}
		}
		ticks = append(ticks, plot.Tick{
			Value: float64(t.Unix()),
			Label: label,
		})
	}
	return ticks
}

// solsticeTicks marks the equinoxes and solstices.
type solsticeTicks struct{}

func (solsticeTicks) Ticks(min, max float64) []plot.Tick {
	minT, maxT := plot.UTCUnixTime(min), plot.UTCUnixTime(max)
	ticks := []plot.Tick{{Value: min, Label: minT.Format("1/02/2006")}}
	for year := minT.Year(); year <= maxT.Year(); year++ {
		for _, d := range []struct {
			month time.Month
			day   int
		}{{3, 20}, {6, 21}, {9, 22}, {12, 22}} {
			t := time.Date(year, d.month, d.day, 12, 0, 0, 0, time.UTC)
			if t.Before(minT) || t.After(maxT) {
				continue
			}
			ticks = append(ticks, plot.Tick{
				Value: float64(t.Unix()),
				Label: t.Format("1/02"),
			})
		}
	}
	return ticks
}
