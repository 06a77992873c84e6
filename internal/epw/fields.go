// Package epw reads and writes EnergyPlus weather files. Data rows are kept as
// raw text; only the fields the pipeline touches are parsed.
package epw

import "fmt"

// Field is the column position of a value in an EPW data row.
type Field int

const (
	Year Field = iota
	Month
	Day
	Hour
	Minute
	DataSourceFlags
	DryBulbTemperature
	DewPointTemperature
	RelativeHumidity
	AtmosphericStationPressure
	ExtraterrestrialHorizontalRadiation
	ExtraterrestrialDirectNormalRadiation
	HorizontalInfraredRadiation
	GlobalHorizontalRadiation
	DirectNormalRadiation
	DiffuseHorizontalRadiation
	GlobalHorizontalIlluminance
	DirectNormalIlluminance
	DiffuseHorizontalIlluminance
	ZenithLuminance
	WindDirection
	WindSpeed
	TotalSkyCover
	OpaqueSkyCover
	Visibility
	CeilingHeight
	PresentWeatherObservation
	PresentWeatherCodes
	PrecipitableWater
	AerosolOpticalDepth
	SnowDepth
	DaysSinceLastSnowfall
	Albedo
	LiquidPrecipitationDepth
	LiquidPrecipitationQuantity

	// FieldCount is the number of columns in a data row.
	FieldCount int = iota
)

// HeaderLines precede the hourly rows.
const HeaderLines = 8

type fieldSpec struct {
	name      string
	precision int
	missing   string
}

var fieldSpecs = map[Field]fieldSpec{
	DryBulbTemperature:         {"dry_bulb_temperature", 1, "99.9"},
	DewPointTemperature:        {"dew_point_temperature", 1, "99.9"},
	RelativeHumidity:           {"relative_humidity", 0, "999"},
	AtmosphericStationPressure: {"atmospheric_station_pressure", 0, "999999"},
	WindDirection:              {"wind_direction", 0, "999"},
	WindSpeed:                  {"wind_speed", 1, "999"},
	TotalSkyCover:              {"total_sky_cover", 0, "99"},
	OpaqueSkyCover:             {"opaque_sky_cover", 0, "99"},
	LiquidPrecipitationDepth:   {"liquid_precipitation_depth", 1, "999"},
}

func (f Field) String() string {
	if s, ok := fieldSpecs[f]; ok {
		return s.name
	}
	switch f {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	}
	return fmt.Sprintf("field_%d", int(f))
}

// Valid reports whether f is a data-row column.
func (f Field) Valid() bool {
	return f >= 0 && int(f) < FieldCount
}
