package grid

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"gonum.org/v1/gonum/mat"

	"amy-weather/internal/models"
)

// WRF variable names for the time labels and the cell-centre coordinates.
const (
	wrfTimes = "Times"
	wrfLat   = "XLAT"
	wrfLon   = "XLONG"
)

// WRFVariables are the surface fields read from each WRF output file.
var WRFVariables = []models.Variable{
	models.VarT2,
	models.VarPSFC,
	models.VarQ2,
	models.VarU10,
	models.VarV10,
	models.VarRainC,
	models.VarRainSH,
	models.VarRainNC,
}

// OpenNetCDF reads a WRF output file into a Snapshot. With no vars the
// WRFVariables set is read.
func OpenNetCDF(path string, vars ...models.Variable) (*Snapshot, error) {
	if len(vars) == 0 {
		vars = WRFVariables
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer nc.Close()

	s := &Snapshot{
		Source: path,
		Fields: make(map[models.Variable][]*mat.Dense, len(vars)),
	}

	if s.RawTimes, err = readTimes(nc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Lat, err = readCoordinate(nc, wrfLat); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Lon, err = readCoordinate(nc, wrfLon); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, v := range vars {
		steps, err := readField(nc, string(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.Fields[v] = steps
	}
	return s, nil
}

func values(nc api.Group, name string) (interface{}, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}

func readTimes(nc api.Group) ([]string, error) {
	v, err := values(nc, wrfTimes)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case [][]byte:
		out := make([]string, len(t))
		for i, b := range t {
			out[i] = string(b)
		}
		return out, nil
	}
	return nil, fmt.Errorf("variable %s: unsupported type %T", wrfTimes, v)
}

// readCoordinate accepts a (time, row, col) coordinate and keeps the first step,
// or a plain (row, col) one.
func readCoordinate(nc api.Group, name string) (*mat.Dense, error) {
	v, err := values(nc, name)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case [][][]float32:
		if len(c) == 0 {
			return nil, fmt.Errorf("variable %s is empty", name)
		}
		return toDense(name, c[0])
	case [][][]float64:
		if len(c) == 0 {
			return nil, fmt.Errorf("variable %s is empty", name)
		}
		return toDense(name, c[0])
	case [][]float32:
		return toDense(name, c)
	case [][]float64:
		return toDense(name, c)
	}
	return nil, fmt.Errorf("variable %s: unsupported type %T", name, v)
}

func readField(nc api.Group, name string) ([]*mat.Dense, error) {
	v, err := values(nc, name)
	if err != nil {
		return nil, err
	}
	switch f := v.(type) {
	case [][][]float32:
		return toSteps(name, f)
	case [][][]float64:
		return toSteps(name, f)
	}
	return nil, fmt.Errorf("variable %s: unsupported type %T", name, v)
}

func toSteps[T float32 | float64](name string, steps [][][]T) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(steps))
	for k := range steps {
		m, err := toDense(name, steps[k])
		if err != nil {
			return nil, err
		}
		out[k] = m
	}
	return out, nil
}

// toDense copies a row-major grid. A zero-sized grid yields an empty matrix
// since mat.NewDense panics on one.
func toDense[T float32 | float64](name string, grid [][]T) (*mat.Dense, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return &mat.Dense{}, nil
	}
	rows, cols := len(grid), len(grid[0])
	data := make([]float64, 0, rows*cols)
	for i, row := range grid {
		if len(row) != cols {
			return nil, fmt.Errorf("variable %s: row %d has %d columns, want %d", name, i, len(row), cols)
		}
		for _, x := range row {
			data = append(data, float64(x))
		}
	}
	return mat.NewDense(rows, cols, data), nil
}
