package models

import "time"

// Classification is the completeness outcome for a station-year.
type Classification string

const (
	Usable              Classification = "USABLE"
	ExcludedTotal       Classification = "EXCLUDED_TOTAL"
	ExcludedConsecutive Classification = "EXCLUDED_CONSECUTIVE"
)

// Excluded reports whether the station-year must not be processed further.
func (c Classification) Excluded() bool {
	return c == ExcludedTotal || c == ExcludedConsecutive
}

// Verdict is the completeness screening result for one station-year.
// It is a value type; copies never share state.
type Verdict struct {
	StationID             string         `json:"station_id" db:"station_id"`
	Year                  int            `json:"year" db:"year"`
	TotalMissing          int            `json:"total_missing" db:"total_missing"`
	MaxConsecutiveMissing int            `json:"max_consecutive_missing" db:"max_consecutive_missing"`
	Classification        Classification `json:"classification" db:"classification"`
	SourceFile            string         `json:"source_file,omitempty" db:"source_file"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
}
