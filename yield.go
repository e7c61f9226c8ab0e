package solarroof

import (
	"math"
)

// YieldModel identifies how a YieldResult was computed.
type YieldModel uint8

const (
	// PitchedModel applies a flat annual specific yield to panels
	// mounted flush with a pitched face.
	PitchedModel YieldModel = iota + 1
	// FlatModel integrates a monthly insolation table for tilted
	// panels on a flat roof.
	FlatModel
)

func (m YieldModel) String() string {
	switch m {
	case PitchedModel:
		return "pitched"
	case FlatModel:
		return "flat"
	}
	return "unknown"
}

const (
	// Annual specific yield of an ideally oriented pitched array, in
	// kWh per kWp.
	pitchedSpecificYield = 1200

	// performanceRatio accounts for inverter, wiring and temperature
	// losses.
	performanceRatio = 0.8
)

// flatInsolation is the monthly insolation seen by a flat-roof array, in
// kWh per kWp, January first. It sums to 1360.
var flatInsolation = [12]float64{40, 60, 110, 140, 170, 180, 190, 170, 130, 90, 50, 30}

// Seasons holds energy per meteorological season.
type Seasons struct {
	Winter float64 // December to February
	Spring float64 // March to May
	Summer float64 // June to August
	Fall   float64 // September to November
}

func seasonsOf(monthly [12]float64) Seasons {
	return Seasons{
		Winter: monthly[11] + monthly[0] + monthly[1],
		Spring: monthly[2] + monthly[3] + monthly[4],
		Summer: monthly[5] + monthly[6] + monthly[7],
		Fall:   monthly[8] + monthly[9] + monthly[10],
	}
}

// YieldResult is the estimated output of an array. Energies are in kWh.
// Monthly and Seasonal are only filled in by the flat model.
type YieldResult struct {
	Model         YieldModel
	PanelCount    int
	SystemPowerKW float64
	AnnualKWh     float64
	DailyKWh      float64
	Monthly       [12]float64
	Seasonal      Seasons

	AngleFactor       float64
	OrientationFactor float64
	ChimneyFactor     float64
}

// Factor returns the product of the loss factors.
func (y YieldResult) Factor() float64 {
	return y.AngleFactor * y.OrientationFactor * y.ChimneyFactor
}

// AngleFactor returns the relative output of a panel pitched at the
// given angle in degrees, peaking between 30° and 40°.
func AngleFactor(pitch float64) float64 {
	switch {
	case pitch < 10:
		return 0.88
	case pitch < 20:
		return 0.94
	case pitch < 30:
		return 0.98
	case pitch < 40:
		return 1.0
	case pitch < 50:
		return 0.97
	case pitch < 60:
		return 0.91
	}
	return 0.84
}

// FlatAngleFactor is AngleFactor for panels on flat-roof mounts, where
// tilts below 5° lose more to soiling.
func FlatAngleFactor(tilt float64) float64 {
	if tilt < 5 {
		return 0.85
	}
	return AngleFactor(tilt)
}

// orientationSteps are the factors for sectors moving away from south
// toward north: within 22.5° of south, then 22.5° steps.
var orientationSteps = [...]float64{1.0, 0.94, 0.88, 0.82, 0.76, 0.70, 0.63, 0.55}

// OrientationFactor returns the relative output of a panel facing the
// given compass azimuth in degrees (180 is south).
func OrientationFactor(azimuth float64) float64 {
	off := math.Abs(normDeg(azimuth) - 180)
	if math.IsNaN(off) {
		return orientationSteps[len(orientationSteps)-1]
	}
	i := int(math.Ceil(off/22.5)) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(orientationSteps) {
		i = len(orientationSteps) - 1
	}
	return orientationSteps[i]
}

// ChimneyFactor returns the fraction of output left after shading by
// chimneys on the active faces, whose total area is activeArea square
// metres. It is at least 1-p.MaxImpact.
func ChimneyFactor(chimneys []Obstacle, activeArea float64, p ChimneyParams) float64 {
	if len(chimneys) == 0 {
		return 1
	}
	var shaded float64
	for _, c := range chimneys {
		w, l, h := c.Width, c.Length, c.Height
		if !(w > 0 && l > 0) || math.IsInf(w*l, 0) {
			w, l = p.DefaultWidth, p.DefaultLength
		}
		if !(h > 0) || math.IsInf(h, 0) {
			h = p.DefaultHeight
		}
		hf := clamp(h/p.ReferenceHeight, 1, p.MaxHeightFactor)
		shaded += w * l * hf
	}
	impact := p.MaxImpact
	if activeArea > 0 {
		impact = p.PerChimney*float64(len(chimneys)) + shaded*p.Multiplier/activeArea
	}
	return 1 - clamp(impact, 0, p.MaxImpact)
}

// YieldInput is the input to the yield models.
type YieldInput struct {
	PanelCount        int
	PanelPower        float64 // watts
	AngleFactor       float64
	OrientationFactor float64
	ChimneyFactor     float64
}

func (in YieldInput) result(model YieldModel) YieldResult {
	n := in.PanelCount
	if n < 0 {
		n = 0
	}
	return YieldResult{
		Model:             model,
		PanelCount:        n,
		SystemPowerKW:     float64(n) * in.PanelPower / 1000,
		AngleFactor:       in.AngleFactor,
		OrientationFactor: in.OrientationFactor,
		ChimneyFactor:     in.ChimneyFactor,
	}
}

// PitchedYield estimates the output of an array mounted flush with a
// pitched face.
func PitchedYield(in YieldInput) YieldResult {
	y := in.result(PitchedModel)
	y.AnnualKWh = y.SystemPowerKW * pitchedSpecificYield * performanceRatio * y.Factor()
	y.DailyKWh = y.AnnualKWh / 365
	return y
}

// FlatYield estimates the output of a tilted array on a flat roof, month
// by month.
func FlatYield(in YieldInput) YieldResult {
	y := in.result(FlatModel)
	k := y.SystemPowerKW * performanceRatio * y.Factor()
	for i, ins := range flatInsolation {
		y.Monthly[i] = ins * k
		y.AnnualKWh += y.Monthly[i]
	}
	y.Seasonal = seasonsOf(y.Monthly)
	y.DailyKWh = y.AnnualKWh / 365
	return y
}
