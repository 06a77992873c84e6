package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Variable names one physical quantity carried by a series.
type Variable string

// Gridded (WRF) variables, in source units.
const (
	VarT2     Variable = "T2"     // 2 m temperature
	VarPSFC   Variable = "PSFC"   // surface pressure, Pa
	VarQ2     Variable = "Q2"     // 2 m specific humidity
	VarU10    Variable = "U10"    // 10 m east-west wind, m/s
	VarV10    Variable = "V10"    // 10 m north-south wind, m/s
	VarRainC  Variable = "RAINC"  // convective precipitation
	VarRainSH Variable = "RAINSH" // shallow-convective precipitation
	VarRainNC Variable = "RAINNC" // non-convective precipitation
)

// Station (ISD-Lite) variables, decoded to physical units.
const (
	VarAirTemperature   Variable = "air_temperature"    // °C
	VarDewPoint         Variable = "dew_point"          // °C
	VarSeaLevelPressure Variable = "sea_level_pressure" // hPa
	VarWindDirection    Variable = "wind_direction"     // degrees
	VarWindSpeed        Variable = "wind_speed"         // m/s
	VarSkyCover         Variable = "sky_cover"          // oktas code
	VarPrecip1h         Variable = "precip_1h"          // mm
	VarPrecip6h         Variable = "precip_6h"          // mm
)

// VarCoverage marks whether a source carried an hour at all.
const VarCoverage Variable = "coverage"

// Missing is the explicit sentinel stored for an absent sample.
var Missing = math.NaN()

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// HoursInYear returns 8784 for leap years and 8760 otherwise.
func HoursInYear(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours())
}

// YearTimes returns every UTC hour of the calendar year.
func YearTimes(year int) []time.Time {
	n := HoursInYear(year)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return times
}

// StationYearSeries is one station's hourly record for one calendar year.
// Every expected hour is present; absent samples hold Missing.
type StationYearSeries struct {
	StationID string
	Year      int
	Times     []time.Time
	Values    map[Variable][]float64
}

// NewStationYearSeries builds a full-year series with every sample missing.
func NewStationYearSeries(stationID string, year int, vars ...Variable) *StationYearSeries {
	times := YearTimes(year)
	s := &StationYearSeries{
		StationID: stationID,
		Year:      year,
		Times:     times,
		Values:    make(map[Variable][]float64, len(vars)),
	}
	for _, v := range vars {
		col := make([]float64, len(times))
		for i := range col {
			col[i] = Missing
		}
		s.Values[v] = col
	}
	return s
}

// Len returns the number of hourly rows.
func (s *StationYearSeries) Len() int {
	return len(s.Times)
}

// Variables returns the carried variables in sorted order.
func (s *StationYearSeries) Variables() []Variable {
	vars := make([]Variable, 0, len(s.Values))
	for v := range s.Values {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// Index returns the row holding t.
func (s *StationYearSeries) Index(t time.Time) (int, bool) {
	if len(s.Times) == 0 {
		return 0, false
	}
	i := int(t.Sub(s.Times[0]) / time.Hour)
	if i < 0 || i >= len(s.Times) || !s.Times[i].Equal(t) {
		return 0, false
	}
	return i, true
}

// RowMissing reports whether every variable is missing at row i.
// A series without variables has only missing rows.
func (s *StationYearSeries) RowMissing(i int) bool {
	for _, col := range s.Values {
		if !IsMissing(col[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s *StationYearSeries) Clone() *StationYearSeries {
	out := &StationYearSeries{
		StationID: s.StationID,
		Year:      s.Year,
		Times:     append([]time.Time(nil), s.Times...),
		Values:    make(map[Variable][]float64, len(s.Values)),
	}
	for v, col := range s.Values {
		out.Values[v] = append([]float64(nil), col...)
	}
	return out
}

// Select returns a copy restricted to vars. Every requested variable must be present.
func (s *StationYearSeries) Select(vars ...Variable) (*StationYearSeries, error) {
	out := &StationYearSeries{
		StationID: s.StationID,
		Year:      s.Year,
		Times:     append([]time.Time(nil), s.Times...),
		Values:    make(map[Variable][]float64, len(vars)),
	}
	for _, v := range vars {
		col, ok := s.Values[v]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingVariable, v)
		}
		out.Values[v] = append([]float64(nil), col...)
	}
	return out, nil
}

// WithoutLeapDay drops the 24 rows of 29 February. Non-leap series are returned as a copy.
func (s *StationYearSeries) WithoutLeapDay() *StationYearSeries {
	keep := make([]int, 0, len(s.Times))
	for i, t := range s.Times {
		if t.Month() == time.February && t.Day() == 29 {
			continue
		}
		keep = append(keep, i)
	}

	out := &StationYearSeries{
		StationID: s.StationID,
		Year:      s.Year,
		Times:     make([]time.Time, len(keep)),
		Values:    make(map[Variable][]float64, len(s.Values)),
	}
	for j, i := range keep {
		out.Times[j] = s.Times[i]
	}
	for v, col := range s.Values {
		c := make([]float64, len(keep))
		for j, i := range keep {
			c[j] = col[i]
		}
		out.Values[v] = c
	}
	return out
}

// Validate checks the full-year hourly invariant.
func (s *StationYearSeries) Validate() error {
	want := HoursInYear(s.Year)
	if len(s.Times) != want {
		return &ValidationError{
			Field:   "times",
			Value:   fmt.Sprintf("%d", len(s.Times)),
			Message: fmt.Sprintf("expected %d hourly timestamps for %d, got %d", want, s.Year, len(s.Times)),
		}
	}
	for i := 1; i < len(s.Times); i++ {
		if s.Times[i].Sub(s.Times[i-1]) != time.Hour {
			return &ValidationError{
				Field:   "times",
				Value:   s.Times[i].Format(time.RFC3339),
				Message: "timestamps must be strictly increasing hourly without duplicates",
			}
		}
	}
	for v, col := range s.Values {
		if len(col) != len(s.Times) {
			return &ValidationError{
				Field:   string(v),
				Value:   fmt.Sprintf("%d", len(col)),
				Message: fmt.Sprintf("variable %s has %d samples for %d timestamps", v, len(col), len(s.Times)),
			}
		}
	}
	return nil
}
