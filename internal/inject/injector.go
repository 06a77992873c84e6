// Package inject converts source variables into weather-file fields and writes
// them over a template.
package inject

import (
	"fmt"

	"amy-weather/internal/epw"
	"amy-weather/internal/models"
)

// MatchTemplate drops 29 February when a leap-year series meets a non-leap
// template. Otherwise series is returned unchanged.
func MatchTemplate(series *models.StationYearSeries, template *epw.File) *models.StationYearSeries {
	if series.Len() == template.Len()+24 && series.Len() == models.HoursInYear(series.Year) {
		return series.WithoutLeapDay()
	}
	return series
}

// Inject returns a copy of template with the fields named by rules replaced by
// values converted from series, row by row. Rows take the series' year. The
// template is not modified.
func Inject(template *epw.File, series *models.StationYearSeries, rules RuleSet) (*epw.File, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := rules.Covers(series); err != nil {
		return nil, err
	}
	if series.Len() != template.Len() {
		return nil, fmt.Errorf("%w: series has %d rows, template has %d",
			models.ErrLengthMismatch, series.Len(), template.Len())
	}

	columns := make([][][]float64, len(rules.Rules))
	for k, r := range rules.Rules {
		columns[k] = make([][]float64, len(r.Inputs))
		for j, v := range r.Inputs {
			columns[k][j] = series.Values[v]
		}
	}

	out := template.Clone()
	in := make([]float64, 0, 4)
	for i, rec := range out.Records {
		for k, r := range rules.Rules {
			in = in[:0]
			for _, col := range columns[k] {
				in = append(in, col[i])
			}
			rec.SetFloat(r.Target, r.Convert(in))
		}
	}
	out.SetYear(series.Year)
	return out, nil
}
