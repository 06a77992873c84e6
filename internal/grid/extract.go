package grid

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"amy-weather/internal/models"
)

// DefaultTolerance is the largest accepted station-to-cell distance in degrees.
const DefaultTolerance = 0.5

// ExtractedSample is every variable at one time step for one grid cell.
type ExtractedSample struct {
	Time   time.Time
	Values map[models.Variable]float64
}

// ExtractedSeries is sorted by time with unique timestamps.
type ExtractedSeries []ExtractedSample

// Cell is a grid position and its distance to the requested location.
type Cell struct {
	Row      int
	Col      int
	Distance float64
}

// NearestCell returns the cell closest to (lat, lon) by Euclidean distance in
// degrees. Ties keep the first cell in row-major order.
func NearestCell(latGrid, lonGrid *mat.Dense, lat, lon float64) Cell {
	best := Cell{Row: -1, Col: -1, Distance: math.Inf(1)}
	rows, cols := latGrid.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := math.Hypot(latGrid.At(i, j)-lat, lonGrid.At(i, j)-lon)
			if d < best.Distance {
				best = Cell{Row: i, Col: j, Distance: d}
			}
		}
	}
	return best
}

// extractSnapshot slices every variable at the nearest cell. The (variable x time)
// block is transposed so each row becomes one sample.
func extractSnapshot(s *Snapshot, station models.StationLocation, tolerance float64) (ExtractedSeries, error) {
	axes, err := s.Axes()
	if err != nil {
		return nil, err
	}
	if axes.Rows == 0 || axes.Cols == 0 || len(axes.Times) == 0 {
		return nil, nil
	}

	cell := NearestCell(s.Lat, s.Lon, station.Latitude, station.Longitude)
	if cell.Distance > tolerance {
		return nil, fmt.Errorf("%w: station %s at (%.4f, %.4f) is %.4f degrees from the nearest cell of %s (tolerance %.4f)",
			models.ErrLocationOutOfRange, station.StationID, station.Latitude, station.Longitude,
			cell.Distance, s.Source, tolerance)
	}

	vars := s.Variables()
	if len(vars) == 0 {
		return nil, nil
	}
	block := mat.NewDense(len(vars), len(axes.Times), nil)
	for r, v := range vars {
		for k, step := range s.Fields[v] {
			block.Set(r, k, step.At(cell.Row, cell.Col))
		}
	}
	byTime := mat.DenseCopyOf(block.T())

	out := make(ExtractedSeries, len(axes.Times))
	for k, t := range axes.Times {
		row := byTime.RawRowView(k)
		values := make(map[models.Variable]float64, len(vars))
		for c, v := range vars {
			values[v] = row[c]
		}
		out[k] = ExtractedSample{Time: t, Values: values}
	}
	return out, nil
}

// Extract builds one chronological series for station from every snapshot.
//
// Snapshots are concatenated in the given order and stably sorted by time. When
// snapshots overlap the sample from the later snapshot wins.
func Extract(snapshots []*Snapshot, station models.StationLocation, tolerance float64) (ExtractedSeries, error) {
	var all ExtractedSeries
	for _, s := range snapshots {
		samples, err := extractSnapshot(s, station, tolerance)
		if err != nil {
			return nil, err
		}
		all = append(all, samples...)
	}
	return merge(all), nil
}

func merge(samples ExtractedSeries) ExtractedSeries {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
	out := samples[:0]
	for _, s := range samples {
		if n := len(out); n > 0 && out[n-1].Time.Equal(s.Time) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// Align reindexes extracted onto every hour of year. Hours without a sample hold
// Missing; samples outside the year are dropped.
func Align(extracted ExtractedSeries, stationID string, year int) *models.StationYearSeries {
	seen := make(map[models.Variable]struct{})
	for _, s := range extracted {
		for v := range s.Values {
			seen[v] = struct{}{}
		}
	}
	vars := make([]models.Variable, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}

	series := models.NewStationYearSeries(stationID, year, vars...)
	for _, s := range extracted {
		i, ok := series.Index(s.Time)
		if !ok {
			continue
		}
		for v, x := range s.Values {
			series.Values[v][i] = x
		}
	}
	return series
}

// Coverage marks each hour of year carried by any snapshot with 1 under
// models.VarCoverage. Uncovered hours are Missing.
func Coverage(snapshots []*Snapshot, stationID string, year int) (*models.StationYearSeries, error) {
	series := models.NewStationYearSeries(stationID, year, models.VarCoverage)
	col := series.Values[models.VarCoverage]
	for _, s := range snapshots {
		axes, err := s.Axes()
		if err != nil {
			return nil, err
		}
		for _, t := range axes.Times {
			if i, ok := series.Index(t); ok {
				col[i] = 1
			}
		}
	}
	return series, nil
}
