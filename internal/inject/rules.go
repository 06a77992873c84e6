package inject

import (
	"fmt"

	"amy-weather/internal/epw"
	"amy-weather/internal/models"
)

// Rule writes one template field from one or more source variables. Convert
// receives the inputs in the order of Inputs.
type Rule struct {
	Name    string
	Inputs  []models.Variable
	Target  epw.Field
	Convert func(in []float64) float64
}

// RuleSet is a closed conversion table for one kind of source.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// GridRules converts WRF surface fields.
func GridRules() RuleSet {
	return RuleSet{
		Name: "grid",
		Rules: []Rule{
			{
				Name:    "station_pressure",
				Inputs:  []models.Variable{models.VarPSFC},
				Target:  epw.AtmosphericStationPressure,
				Convert: func(in []float64) float64 { return in[0] },
			},
			{
				Name:    "precipitation_depth",
				Inputs:  []models.Variable{models.VarRainC, models.VarRainSH, models.VarRainNC},
				Target:  epw.LiquidPrecipitationDepth,
				Convert: func(in []float64) float64 { return in[0] + in[1] + in[2] },
			},
			{
				Name:    "dry_bulb",
				Inputs:  []models.Variable{models.VarT2},
				Target:  epw.DryBulbTemperature,
				Convert: func(in []float64) float64 { return GridDryBulb(in[0]) },
			},
			{
				Name:    "wind_speed",
				Inputs:  []models.Variable{models.VarU10, models.VarV10},
				Target:  epw.WindSpeed,
				Convert: func(in []float64) float64 { return WindSpeed(in[0], in[1]) },
			},
			{
				Name:    "wind_direction",
				Inputs:  []models.Variable{models.VarU10, models.VarV10},
				Target:  epw.WindDirection,
				Convert: func(in []float64) float64 { return WindDirection(in[0], in[1]) },
			},
			{
				Name:   "relative_humidity",
				Inputs: []models.Variable{models.VarQ2, models.VarPSFC, models.VarT2},
				Target: epw.RelativeHumidity,
				// fraction to percent
				Convert: func(in []float64) float64 { return 100 * SpecificHumidityRH(in[0], in[1], in[2]) },
			},
		},
	}
}

// StationRules converts ISD-Lite observations already decoded to physical units.
func StationRules() RuleSet {
	return RuleSet{
		Name: "station",
		Rules: []Rule{
			{
				Name:    "dry_bulb",
				Inputs:  []models.Variable{models.VarAirTemperature},
				Target:  epw.DryBulbTemperature,
				Convert: func(in []float64) float64 { return in[0] },
			},
			{
				Name:    "dew_point",
				Inputs:  []models.Variable{models.VarDewPoint},
				Target:  epw.DewPointTemperature,
				Convert: func(in []float64) float64 { return in[0] },
			},
			{
				Name:    "relative_humidity",
				Inputs:  []models.Variable{models.VarAirTemperature, models.VarDewPoint},
				Target:  epw.RelativeHumidity,
				Convert: func(in []float64) float64 { return DewPointRH(in[0], in[1]) },
			},
			{
				Name:    "station_pressure",
				Inputs:  []models.Variable{models.VarSeaLevelPressure},
				Target:  epw.AtmosphericStationPressure,
				Convert: func(in []float64) float64 { return in[0] * 100 }, // hPa to Pa
			},
			{
				Name:    "wind_direction",
				Inputs:  []models.Variable{models.VarWindDirection},
				Target:  epw.WindDirection,
				Convert: func(in []float64) float64 { return in[0] },
			},
			{
				Name:    "wind_speed",
				Inputs:  []models.Variable{models.VarWindSpeed},
				Target:  epw.WindSpeed,
				Convert: func(in []float64) float64 { return in[0] },
			},
		},
	}
}

// Inputs returns every variable the rules read, in first-use order.
func (rs RuleSet) Inputs() []models.Variable {
	seen := make(map[models.Variable]bool)
	var vars []models.Variable
	for _, r := range rs.Rules {
		for _, v := range r.Inputs {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// Validate checks the table itself: named rules with inputs, a converter and a
// distinct data-row target.
func (rs RuleSet) Validate() error {
	targets := make(map[epw.Field]string, len(rs.Rules))
	for _, r := range rs.Rules {
		switch {
		case r.Name == "":
			return fmt.Errorf("rule set %s: rule without a name", rs.Name)
		case len(r.Inputs) == 0:
			return fmt.Errorf("rule set %s: rule %s has no inputs", rs.Name, r.Name)
		case r.Convert == nil:
			return fmt.Errorf("rule set %s: rule %s has no converter", rs.Name, r.Name)
		case !r.Target.Valid() || r.Target <= epw.DataSourceFlags:
			return fmt.Errorf("rule set %s: rule %s targets invalid field %d", rs.Name, r.Name, r.Target)
		}
		if other, dup := targets[r.Target]; dup {
			return fmt.Errorf("rule set %s: rules %s and %s both write %s", rs.Name, other, r.Name, r.Target)
		}
		targets[r.Target] = r.Name
	}
	return nil
}

// Covers checks that series carries every input of the table.
func (rs RuleSet) Covers(series *models.StationYearSeries) error {
	for _, v := range rs.Inputs() {
		if _, ok := series.Values[v]; !ok {
			return fmt.Errorf("rule set %s: %w: %s", rs.Name, models.ErrMissingVariable, v)
		}
	}
	return nil
}
