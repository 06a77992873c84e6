package models

import (
	"errors"
	"fmt"
	"testing"
)

// TestValidationError tests error handling
func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "times",
		Value:   "100",
		Message: "expected 8760 hourly timestamps",
	}

	if err.Error() != "expected 8760 hourly timestamps" {
		t.Errorf("Error() = %v, want %v", err.Error(), "expected 8760 hourly timestamps")
	}

	if err.IsTransient() {
		t.Error("ValidationError should not be transient")
	}
}

func TestTaskError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"unfillable", fmt.Errorf("run of 60 rows: %w", ErrUnfillable), false},
		{"out of range", ErrLocationOutOfRange, false},
		{"validation", &ValidationError{Message: "bad"}, false},
		{"io failure", errors.New("read grid file: connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := &TaskError{StationID: "725300", Year: 2019, Stage: StageFill, Err: tt.err}

			if !errors.Is(te, tt.err) {
				t.Error("TaskError should unwrap to the cause")
			}
			if te.IsTransient() != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", te.IsTransient(), tt.wantTransient)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	terminal := []TaskStatus{StatusExcluded, StatusUnfillable, StatusDone, StatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TaskStatus{StatusPending, StatusClassified, StatusExtracting, StatusFilling, StatusInjecting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
