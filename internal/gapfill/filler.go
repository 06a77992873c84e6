// Package gapfill replaces missing hourly samples by interpolation or by
// imputation from the same hour two weeks earlier and later.
package gapfill

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/interp"

	"amy-weather/internal/models"
)

// ReferenceOffset is the distance, in hourly rows, to the imputation references.
const ReferenceOffset = 14 * 24

// Defaults for the two run-length limits.
const (
	DefaultMaxInterpolate = 6
	DefaultMaxImpute      = 48
)

// Config bounds the run lengths handled by each method.
type Config struct {
	MaxInterpolate int `validate:"gte=0"`
	MaxImpute      int `validate:"gte=0,lt=336"`
}

// DefaultConfig returns interpolation up to 6 rows and imputation up to 48.
func DefaultConfig() Config {
	return Config{
		MaxInterpolate: DefaultMaxInterpolate,
		MaxImpute:      DefaultMaxImpute,
	}
}

// ErrInvalidFillConfig is returned for limits that violate the ordering or the
// reference-offset precondition.
var ErrInvalidFillConfig = errors.New("invalid fill config")

// Validate checks the ordering of the limits and that an imputation reference can
// never fall inside the run being filled.
func (c Config) Validate() error {
	if c.MaxInterpolate < 0 || c.MaxImpute < c.MaxInterpolate {
		return fmt.Errorf("%w: require 0 <= max interpolate (%d) <= max impute (%d)",
			ErrInvalidFillConfig, c.MaxInterpolate, c.MaxImpute)
	}
	if c.MaxImpute >= ReferenceOffset {
		return fmt.Errorf("%w: max impute %d must be below the %d-row reference offset",
			ErrInvalidFillConfig, c.MaxImpute, ReferenceOffset)
	}
	return nil
}

// Report counts filled samples.
type Report struct {
	Interpolated int
	Imputed      int
	Runs         int
}

func (r *Report) add(o Report) {
	r.Interpolated += o.Interpolated
	r.Imputed += o.Imputed
	r.Runs += o.Runs
}

// RunError describes the run that could not be filled.
type RunError struct {
	Start  int
	Length int
	Reason string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("missing run at row %d of length %d: %s", e.Start, e.Length, e.Reason)
}

func (e *RunError) Unwrap() error {
	return models.ErrUnfillable
}

// run is a maximal block of missing rows, [start, end).
type run struct {
	start, end int
}

func (r run) length() int { return r.end - r.start }

// missingRuns lists runs earliest first.
func missingRuns(values []float64) []run {
	var runs []run
	for i := 0; i < len(values); {
		if !models.IsMissing(values[i]) {
			i++
			continue
		}
		j := i
		for j < len(values) && models.IsMissing(values[j]) {
			j++
		}
		runs = append(runs, run{start: i, end: j})
		i = j
	}
	return runs
}

// Fill returns a filled copy of values. The input is not modified.
//
// Runs are processed earliest first, so an imputation may reference samples filled by
// an earlier run. References lie ReferenceOffset rows away, which is beyond any run
// accepted by a valid Config.
func Fill(values []float64, cfg Config) ([]float64, Report, error) {
	var report Report
	if err := cfg.Validate(); err != nil {
		return nil, report, err
	}

	out := append([]float64(nil), values...)
	for _, r := range missingRuns(out) {
		if r.length() > cfg.MaxImpute {
			return nil, report, &RunError{
				Start:  r.start,
				Length: r.length(),
				Reason: fmt.Sprintf("longer than %d rows", cfg.MaxImpute),
			}
		}

		bounded := r.start > 0 && r.end < len(out)
		if r.length() <= cfg.MaxInterpolate && bounded {
			if err := interpolate(out, r); err != nil {
				return nil, report, err
			}
			report.Interpolated += r.length()
		} else {
			if err := impute(out, r); err != nil {
				return nil, report, err
			}
			report.Imputed += r.length()
		}
		report.Runs++
	}
	return out, report, nil
}

// interpolate fills r on the straight line between its bounding observations.
func interpolate(out []float64, r run) error {
	x0, x1 := float64(r.start-1), float64(r.end)
	var pl interp.PiecewiseLinear
	if err := pl.Fit([]float64{x0, x1}, []float64{out[r.start-1], out[r.end]}); err != nil {
		return fmt.Errorf("fit interpolation over rows %d-%d: %w", r.start-1, r.end, err)
	}
	for i := r.start; i < r.end; i++ {
		out[i] = pl.Predict(float64(i))
	}
	return nil
}

// impute fills each row of r with the mean of the rows two weeks before and after,
// falling back to whichever of the two is available.
func impute(out []float64, r run) error {
	for i := r.start; i < r.end; i++ {
		sum, n := 0.0, 0
		if j := i - ReferenceOffset; j >= 0 && !models.IsMissing(out[j]) {
			sum += out[j]
			n++
		}
		if j := i + ReferenceOffset; j < len(out) && !models.IsMissing(out[j]) {
			sum += out[j]
			n++
		}
		if n == 0 {
			return &RunError{
				Start:  r.start,
				Length: r.length(),
				Reason: fmt.Sprintf("no reference value two weeks before or after row %d", i),
			}
		}
		out[i] = sum / float64(n)
	}
	return nil
}

// FillSeries fills every variable of series independently and returns a new series.
func FillSeries(series *models.StationYearSeries, cfg Config) (*models.StationYearSeries, Report, error) {
	var total Report
	if err := cfg.Validate(); err != nil {
		return nil, total, err
	}

	out := series.Clone()
	for _, v := range out.Variables() {
		filled, report, err := Fill(out.Values[v], cfg)
		if err != nil {
			return nil, total, fmt.Errorf("variable %s: %w", v, err)
		}
		out.Values[v] = filled
		total.add(report)
	}
	return out, total, nil
}
