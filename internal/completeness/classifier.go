// Package completeness screens station-year series for missing data.
package completeness

import (
	"fmt"

	"amy-weather/internal/models"
)

// Default thresholds used when the caller does not supply any.
const (
	DefaultMaxMissingRows            = 700
	DefaultMaxConsecutiveMissingRows = 48
)

// Thresholds bound how much missing data a station-year may carry.
type Thresholds struct {
	MaxMissingRows            int `validate:"gte=0"`
	MaxConsecutiveMissingRows int `validate:"gte=0"`
}

// DefaultThresholds returns 700 total / 48 consecutive.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxMissingRows:            DefaultMaxMissingRows,
		MaxConsecutiveMissingRows: DefaultMaxConsecutiveMissingRows,
	}
}

// Validate rejects negative limits.
func (t Thresholds) Validate() error {
	if t.MaxMissingRows < 0 || t.MaxConsecutiveMissingRows < 0 {
		return &models.ValidationError{
			Field:   "thresholds",
			Value:   fmt.Sprintf("%d/%d", t.MaxMissingRows, t.MaxConsecutiveMissingRows),
			Message: "missing-row thresholds must not be negative",
		}
	}
	return nil
}

// Counts holds the two missing-row statistics of a series.
type Counts struct {
	TotalMissing          int
	MaxConsecutiveMissing int
}

// Count scans the rows once, tracking the running length of the current missing run.
func Count(series *models.StationYearSeries) Counts {
	var c Counts
	run := 0
	for i := 0; i < series.Len(); i++ {
		if !series.RowMissing(i) {
			run = 0
			continue
		}
		c.TotalMissing++
		run++
		if run > c.MaxConsecutiveMissing {
			c.MaxConsecutiveMissing = run
		}
	}
	return c
}

// Decide applies the decision order: total first, then consecutive.
func Decide(c Counts, t Thresholds) models.Classification {
	switch {
	case c.TotalMissing > t.MaxMissingRows:
		return models.ExcludedTotal
	case c.MaxConsecutiveMissing > t.MaxConsecutiveMissingRows:
		return models.ExcludedConsecutive
	default:
		return models.Usable
	}
}

// Classify computes the completeness verdict of a station-year series.
// A series with no rows at all is treated as entirely missing, and an entirely
// missing series is EXCLUDED_TOTAL whatever the thresholds.
func Classify(series *models.StationYearSeries, maxMissingRows, maxConsecutiveMissingRows int) models.Verdict {
	c := Count(series)
	if series.Len() == 0 {
		expected := models.HoursInYear(series.Year)
		c = Counts{TotalMissing: expected, MaxConsecutiveMissing: expected}
	}

	class := Decide(c, Thresholds{
		MaxMissingRows:            maxMissingRows,
		MaxConsecutiveMissingRows: maxConsecutiveMissingRows,
	})
	if series.Len() == 0 || c.TotalMissing == series.Len() {
		class = models.ExcludedTotal
	}

	return models.Verdict{
		StationID:             series.StationID,
		Year:                  series.Year,
		TotalMissing:          c.TotalMissing,
		MaxConsecutiveMissing: c.MaxConsecutiveMissing,
		Classification:        class,
	}
}
