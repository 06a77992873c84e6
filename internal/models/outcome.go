package models

import "time"

// TaskStatus is the state of one (station, year) task.
//
//	PENDING -> CLASSIFIED -> EXCLUDED
//	                      -> EXTRACTING -> FILLING -> UNFILLABLE
//	                                               -> INJECTING -> DONE
//
// FAILED is recorded when any stage returns an error other than unfillable data.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusClassified TaskStatus = "CLASSIFIED"
	StatusExcluded   TaskStatus = "EXCLUDED"
	StatusExtracting TaskStatus = "EXTRACTING"
	StatusFilling    TaskStatus = "FILLING"
	StatusUnfillable TaskStatus = "UNFILLABLE"
	StatusInjecting  TaskStatus = "INJECTING"
	StatusDone       TaskStatus = "DONE"
	StatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusExcluded, StatusUnfillable, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Stage names the pipeline step that produced an outcome.
type Stage string

const (
	StageLookup   Stage = "lookup"
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
	StageFill     Stage = "fill"
	StageTemplate Stage = "template"
	StageInject   Stage = "inject"
	StageWrite    Stage = "write"
)

// TaskOutcome records what happened to one station-year in a run.
type TaskOutcome struct {
	ID                    int64          `json:"id" db:"id"`
	RunID                 string         `json:"run_id" db:"run_id"`
	StationID             string         `json:"station_id" db:"station_id"`
	Year                  int            `json:"year" db:"year"`
	Source                string         `json:"source" db:"source"`
	Status                TaskStatus     `json:"status" db:"status"`
	Stage                 Stage          `json:"stage,omitempty" db:"stage"`
	Reason                string         `json:"reason,omitempty" db:"reason"`
	Classification        Classification `json:"classification,omitempty" db:"classification"`
	TotalMissing          int            `json:"total_missing" db:"total_missing"`
	MaxConsecutiveMissing int            `json:"max_consecutive_missing" db:"max_consecutive_missing"`
	Interpolated          int            `json:"interpolated" db:"interpolated"`
	Imputed               int            `json:"imputed" db:"imputed"`
	OutputPath            string         `json:"output_path,omitempty" db:"output_path"`
	DurationMS            int64          `json:"duration_ms" db:"duration_ms"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
}
