// Package grid extracts station time series from gridded regional-climate-model output.
package grid

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"amy-weather/internal/models"
)

// WRF writes times as "2006-01-02_15:04:05".
var timeLayouts = []string{
	"2006-01-02_15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Snapshot is the raw content of one gridded file. Every field holds one
// rows x cols matrix per time step.
type Snapshot struct {
	Source   string
	RawTimes []string
	Lat      *mat.Dense
	Lon      *mat.Dense
	Fields   map[models.Variable][]*mat.Dense
}

// Axes are the validated coordinates of a snapshot.
type Axes struct {
	Times []time.Time
	Rows  int
	Cols  int
}

// ParseTime parses a raw time label as UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &models.ValidationError{
		Field:   "times",
		Value:   raw,
		Message: fmt.Sprintf("unrecognised time label %q", raw),
	}
}

// Axes reconstructs and validates the time and spatial axes.
//
// Times must be strictly increasing. The coordinate matrices must share a shape,
// contain no NaN, be strictly monotonic in latitude along rows and in longitude
// along columns (either direction, taken from the first pair), and never repeat a
// (lat, lon) pair. Every field must match both axes.
func (s *Snapshot) Axes() (Axes, error) {
	var axes Axes

	axes.Times = make([]time.Time, len(s.RawTimes))
	for i, raw := range s.RawTimes {
		t, err := ParseTime(raw)
		if err != nil {
			return Axes{}, fmt.Errorf("%s: %w", s.Source, err)
		}
		if i > 0 && !t.After(axes.Times[i-1]) {
			return Axes{}, s.invalid("times", raw, "times must be strictly increasing")
		}
		axes.Times[i] = t
	}

	if s.Lat == nil || s.Lon == nil {
		return Axes{}, s.invalid("coordinates", "", "latitude and longitude are required")
	}
	rows, cols := s.Lat.Dims()
	if r, c := s.Lon.Dims(); r != rows || c != cols {
		return Axes{}, s.invalid("coordinates", fmt.Sprintf("%dx%d/%dx%d", rows, cols, r, c),
			"latitude and longitude shapes differ")
	}
	axes.Rows, axes.Cols = rows, cols

	latDir, lonDir := 1.0, 1.0
	if rows > 1 && s.Lat.At(1, 0) < s.Lat.At(0, 0) {
		latDir = -1
	}
	if cols > 1 && s.Lon.At(0, 1) < s.Lon.At(0, 0) {
		lonDir = -1
	}

	type cell struct{ lat, lon float64 }
	seen := make(map[cell]struct{}, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			lat, lon := s.Lat.At(i, j), s.Lon.At(i, j)
			if math.IsNaN(lat) || math.IsNaN(lon) {
				return Axes{}, s.invalid("coordinates", fmt.Sprintf("(%d,%d)", i, j), "coordinate is NaN")
			}
			if i > 0 && (lat-s.Lat.At(i-1, j))*latDir <= 0 {
				return Axes{}, s.invalid("latitude", fmt.Sprintf("(%d,%d)", i, j),
					"latitude must be strictly monotonic along rows")
			}
			if j > 0 && (lon-s.Lon.At(i, j-1))*lonDir <= 0 {
				return Axes{}, s.invalid("longitude", fmt.Sprintf("(%d,%d)", i, j),
					"longitude must be strictly monotonic along columns")
			}
			c := cell{lat, lon}
			if _, dup := seen[c]; dup {
				return Axes{}, s.invalid("coordinates", fmt.Sprintf("(%v,%v)", lat, lon), "duplicated grid cell")
			}
			seen[c] = struct{}{}
		}
	}

	for v, steps := range s.Fields {
		if len(steps) != len(axes.Times) {
			return Axes{}, s.invalid(string(v), fmt.Sprintf("%d", len(steps)),
				fmt.Sprintf("variable %s has %d steps for %d times", v, len(steps), len(axes.Times)))
		}
		for k, m := range steps {
			if r, c := m.Dims(); r != rows || c != cols {
				return Axes{}, s.invalid(string(v), fmt.Sprintf("step %d", k),
					fmt.Sprintf("variable %s step %d is %dx%d, grid is %dx%d", v, k, r, c, rows, cols))
			}
		}
	}
	return axes, nil
}

func (s *Snapshot) invalid(field, value, msg string) error {
	return fmt.Errorf("%s: %w", s.Source, &models.ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

// Variables returns the snapshot's field names in sorted order.
func (s *Snapshot) Variables() []models.Variable {
	vars := make([]models.Variable, 0, len(s.Fields))
	for v := range s.Fields {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}
