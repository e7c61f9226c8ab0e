package solarroof

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
	"gonum.org/v1/gonum/spatial/r3"
)

// Location is a site on the Earth. Latitude and longitude are in
// degrees, where north and east are positive, respectively. Elevation
// is in metres.
type Location struct {
	Latitude, Longitude float64
	Elevation           float64
}

type SunPos struct {
	T time.Time

	// Altitude is the altitude of the sun in the alt-azimuth coordinate
	// system, in degrees. This ranges from -90 to 90, where 0 is the
	// horizon and 90 is directly overhead.
	Altitude float64

	// Azimuth is the azimuth of the sun in the alt-azimuth coordinate
	// system, in degrees. This ranges from 0 to 360, where 0 is north
	// and 90 is east.
	Azimuth float64
}

// GetSunPos returns the sun position in horizonal alt-azimuth
// coordinates at the given time and location. Latitude and longitude
// are in degrees, where north and east are positive, respectively.
func GetSunPos(t time.Time, latitude, longitude float64) SunPos {
	p := suncalc.GetPosition(t, latitude, longitude)
	// suncalc returns angles in radians (even though it takes latitude
	// and longitude in degrees). Also, it uses a non-standard
	// convention for azimuth where -90 is east, 0 is south, 90 is west,
	// and 180 is north.
	return SunPos{t, p.Altitude * rad2deg, p.Azimuth*rad2deg + 180}
}

// Dir returns the unit vector pointing at the sun, in a frame with X
// east, Y north and Z up.
func (p SunPos) Dir() r3.Vec {
	al := p.Altitude * deg2rad
	az := p.Azimuth * deg2rad
	return r3.Unit(r3.Vec{
		X: math.Sin(az) * math.Cos(al),
		Y: math.Cos(az) * math.Cos(al),
		Z: math.Sin(al),
	})
}

type SunLight struct {
	SunPos

	Light float64 // Multiplier of direct illumination, between 0 and 1
}

// directIntensity returns the direct normal irradiance of the sun at
// this position, in W/m², before any obstruction.
func (p SunPos) directIntensity(elevation float64) float64 {
	// This is based on https://www.pveducation.org/pvcdrom/properties-of-sunlight/air-mass
	if p.Altitude < 0 {
		return 0
	}

	// Compute air mass. This is a unitless number that is between 1 if
	// the sun is directly overhead (minimal air mass) and ~38 if the
	// sun is at the horizon. The core of this formula is simply the
	// 1/cos(Θ); the rest of the terms account for the curvature of the
	// Earth.
	//
	// From Kasten, F. and Young, A. T., “Revised optical air mass
	// tables and approximation formula”, Applied Optics, vol. 28, pp.
	// 4735–4738, 1989.
	zenithAngle := 90 - p.Altitude // 0 is overhead
	airMass := 1 / (math.Cos(zenithAngle*deg2rad) + (0.50572 * math.Pow((96.07995-zenithAngle), -1.6364)))

	// Compute direct component of sunlight, accounting for elevation.
	// From Meinel, A. B. and Meinel, M. P., Applied Solar Energy.
	// Addison Wesley Publishing Co., 1976.
	h := elevation / 1000 // To kilometers
	a := 0.14
	return 1353 * ((1-a*h)*math.Pow(0.7, math.Pow(airMass, 0.678)) + a*h)
}

// diffuseFraction is the diffuse sky radiation as a fraction of direct
// radiation.
const diffuseFraction = 0.1

// GlobalIntensity computes the total global radiation of the sun (aka
// solar flux, aka insolation) at this position on a plane perpendicular
// to the sun, in W/m². Elevation is in metres.
func (p SunLight) GlobalIntensity(elevation float64) (wattsPerSquareMeter float64) {
	return (diffuseFraction + p.Light) * p.directIntensity(elevation)
}

// PlaneIntensity computes the radiation on a plane with the given unit
// normal, in W/m². Direct light falls off with the cosine of the angle
// of incidence; diffuse light scales with the fraction of sky the plane
// sees.
func (p SunLight) PlaneIntensity(normal r3.Vec, elevation float64) float64 {
	i := p.directIntensity(elevation)
	if i == 0 {
		return 0
	}
	cos := math.Max(0, r3.Dot(normal, p.Dir()))
	sky := (1 + normal.Z) / 2
	return i * (p.Light*cos + diffuseFraction*sky)
}

// Irradiance is the clear-sky radiation on a plane at one instant.
type Irradiance struct {
	Sun        SunPos
	WattsPerM2 float64
}

// ClearSky returns the clear-sky radiation at loc on a plane with the
// given normal at each of times.
func ClearSky(loc Location, normal r3.Vec, times []time.Time) []Irradiance {
	n, ok := unit(normal)
	if !ok {
		n = up
	}
	out := make([]Irradiance, len(times))
	for i, t := range times {
		sun := SunLight{SunPos: GetSunPos(t, loc.Latitude, loc.Longitude), Light: 1}
		out[i] = Irradiance{sun.SunPos, sun.PlaneIntensity(n, loc.Elevation)}
	}
	return out
}

// ClearSkyMonthly integrates ClearSky over each month of year at the
// given step, returning kWh/m² per month, January first.
func ClearSkyMonthly(loc Location, year int, normal r3.Vec, step time.Duration) [12]float64 {
	if step <= 0 {
		step = time.Hour
	}
	var times []time.Time
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	for t := start.Add(step / 2); t.Before(end); t = t.Add(step) {
		times = append(times, t)
	}
	var monthly [12]float64
	hours := step.Hours()
	for _, ir := range ClearSky(loc, normal, times) {
		monthly[ir.Sun.T.Month()-1] += ir.WattsPerM2 * hours / 1000
	}
	return monthly
}
