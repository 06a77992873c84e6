package models

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Classifier exclusions are outcomes, not errors.
var (
	ErrInvalidRange        = errors.New("invalid range")
	ErrUnknownStation      = errors.New("unknown station")
	ErrTemplateUnavailable = errors.New("template unavailable")
	ErrLocationOutOfRange  = errors.New("location out of range")
	ErrLengthMismatch      = errors.New("length mismatch")
	ErrUnfillable          = errors.New("unfillable")
	ErrMissingVariable     = errors.New("missing variable")
	ErrSourceUnavailable   = errors.New("source data unavailable")
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// TaskError carries the context of a failed station-year task.
type TaskError struct {
	StationID string
	Year      int
	Stage     Stage
	Err       error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("station %s year %d: %s: %v", e.StationID, e.Year, e.Stage, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether retrying the task could succeed.
// Only I/O failures outside the error taxonomy are considered transient.
func (e *TaskError) IsTransient() bool {
	for _, permanent := range []error{
		ErrUnknownStation,
		ErrTemplateUnavailable,
		ErrLocationOutOfRange,
		ErrLengthMismatch,
		ErrUnfillable,
		ErrMissingVariable,
		ErrSourceUnavailable,
	} {
		if errors.Is(e.Err, permanent) {
			return false
		}
	}
	var ve *ValidationError
	return !errors.As(e.Err, &ve)
}
