package solarroof

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

// between returns whether x is in [a, b].
func assertBetween(t *testing.T, msg string, x, a, b float64) {
	t.Helper()
	if a <= x && x <= b {
		return
	}
	t.Errorf("got %s = %v, want in range [%v, %v]", msg, x, a, b)
}

func TestGlobalIntensity(t *testing.T) {
	// These tests are based on the tables at
	// https://www.ftexploring.com/solar-energy/air-mass-and-insolation2.htm

	mkPos := func(alt float64) SunLight {
		return SunLight{Light: 1, SunPos: SunPos{Altitude: alt}}
	}
	p := mkPos(90)
	assertBetween(t, "GlobalIntensity at 90°", p.GlobalIntensity(0), 1041, 1042)

	p = mkPos(1)
	assertBetween(t, "GlobalIntensity at 1°", p.GlobalIntensity(0), 56, 57)

	p = mkPos(0)
	assertBetween(t, "GlobalIntensity at 0°", p.GlobalIntensity(0), 22.4, 22.5)

	p = mkPos(-5)
	assert.Equal(t, 0.0, p.GlobalIntensity(0))

	// Thinner air at altitude.
	p = mkPos(45)
	assert.Greater(t, p.GlobalIntensity(2000), p.GlobalIntensity(0))
}

func TestPlaneIntensity(t *testing.T) {
	overhead := SunLight{Light: 1, SunPos: SunPos{Altitude: 90}}
	assert.InDelta(t, overhead.GlobalIntensity(0), overhead.PlaneIntensity(up, 0), 1e-9)

	// A vertical wall facing away from a low sun only sees the sky.
	low := SunLight{Light: 1, SunPos: SunPos{Altitude: 20, Azimuth: 180}}
	north := r3.Vec{Y: 1}
	south := r3.Vec{Y: -1}
	assert.InDelta(t, 0.1*0.5*low.directIntensity(0), low.PlaneIntensity(north, 0), 1e-9)
	assert.Greater(t, low.PlaneIntensity(south, 0), low.PlaneIntensity(north, 0))
}

func TestSunDir(t *testing.T) {
	for _, tc := range []struct {
		pos  SunPos
		want r3.Vec
	}{
		{SunPos{Altitude: 90}, r3.Vec{Z: 1}},
		{SunPos{Altitude: 0, Azimuth: 0}, r3.Vec{Y: 1}},
		{SunPos{Altitude: 0, Azimuth: 90}, r3.Vec{X: 1}},
		{SunPos{Altitude: 0, Azimuth: 180}, r3.Vec{Y: -1}},
	} {
		vecNear(t, tc.want, tc.pos.Dir(), "sun direction")
	}
}

func TestGetSunPos(t *testing.T) {
	// Local solar noon near the June solstice in Boston.
	noon := time.Date(2024, time.June, 21, 16, 40, 0, 0, time.UTC)
	p := GetSunPos(noon, 42.4195, -71.2065)
	assertBetween(t, "altitude", p.Altitude, 69, 72)
	assertBetween(t, "azimuth", p.Azimuth, 170, 190)

	night := GetSunPos(time.Date(2024, time.June, 21, 5, 0, 0, 0, time.UTC), 42.4195, -71.2065)
	assert.Less(t, night.Altitude, 0.0)
}

func TestClearSkyMonthly(t *testing.T) {
	loc := Location{Latitude: 42.4195, Longitude: -71.2065}
	flat := ClearSkyMonthly(loc, 2023, up, 0)
	assert.Greater(t, flat[5], 2*flat[11])
	for m, v := range flat {
		assert.Greater(t, v, 0.0, "month %d", m+1)
	}

	tilt := 35 * deg2rad
	south := ClearSkyMonthly(loc, 2023, r3.Vec{Y: -math.Sin(tilt), Z: math.Cos(tilt)}, 0)
	northFacing := ClearSkyMonthly(loc, 2023, r3.Vec{Y: math.Sin(tilt), Z: math.Cos(tilt)}, 0)
	var s, n float64
	for m := range south {
		s += south[m]
		n += northFacing[m]
	}
	assert.Greater(t, s, n)
}
