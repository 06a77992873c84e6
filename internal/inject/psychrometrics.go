package inject

import "math"

// KelvinOffset converts between Celsius and Kelvin.
const KelvinOffset = 273.15

// GridDryBulb converts the grid T2 value for the dry-bulb field. The offset is
// added, not subtracted, matching the established output of the grid pipeline.
// TestGridDryBulb pins this formula.
func GridDryBulb(t2 float64) float64 {
	return t2 + KelvinOffset
}

// SpecificHumidityRH approximates relative humidity, as a fraction, from specific
// humidity q, surface pressure p in Pa and temperature t in Kelvin.
func SpecificHumidityRH(q, p, t float64) float64 {
	return q / ((379.90516 / p) * math.Exp(17.2693882*(t-273.16)/(t-35.86)))
}

// Magnus coefficients over water.
const (
	magnusA = 17.625
	magnusB = 243.04
)

// DewPointRH returns relative humidity in percent from dry-bulb and dew-point
// temperatures in Celsius.
func DewPointRH(t, td float64) float64 {
	return 100 * math.Exp(magnusA*td/(magnusB+td)) / math.Exp(magnusA*t/(magnusB+t))
}

// WindSpeed returns the magnitude of the (u, v) wind vector.
func WindSpeed(u, v float64) float64 {
	return math.Hypot(u, v)
}

// WindDirection returns atan2(v, u) in degrees normalised to [0, 360).
func WindDirection(u, v float64) float64 {
	d := math.Atan2(v, u) * 180 / math.Pi
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// a tiny negative angle rounds up to 360
	if d >= 360 {
		d = 0
	}
	return d
}
