// Package isdlite reads NOAA ISD-Lite hourly station files.
//
// Each line holds twelve whitespace-separated integers: year, month, day, hour,
// air temperature, dew point, sea-level pressure, wind direction, wind speed,
// sky cover, 1-hour and 6-hour precipitation. Missing values are -9999 and
// scaled values carry a factor of 10.
package isdlite

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"amy-weather/internal/models"
)

// MissingValue marks an absent observation.
const MissingValue = -9999

// Trace precipitation is coded as -1.
const traceValue = -1

type column struct {
	variable models.Variable
	scale    float64
}

// columns follow the four date fields.
var columns = []column{
	{models.VarAirTemperature, 10},
	{models.VarDewPoint, 10},
	{models.VarSeaLevelPressure, 10},
	{models.VarWindDirection, 1},
	{models.VarWindSpeed, 10},
	{models.VarSkyCover, 1},
	{models.VarPrecip1h, 10},
	{models.VarPrecip6h, 10},
}

// Variables lists the decoded variables in file order.
func Variables() []models.Variable {
	vars := make([]models.Variable, len(columns))
	for i, c := range columns {
		vars[i] = c.variable
	}
	return vars
}

// Parse decodes r into a full-year series. Hours without a line, and lines for
// other years, leave the hour missing. A repeated hour keeps the last line.
func Parse(r io.Reader, stationID string, year int) (*models.StationYearSeries, error) {
	series := models.NewStationYearSeries(stationID, year, Variables()...)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4+len(columns) {
			return nil, fmt.Errorf("line %d: %w", lineNo, &models.ValidationError{
				Field:   "line",
				Value:   line,
				Message: fmt.Sprintf("expected %d fields, got %d", 4+len(columns), len(fields)),
			})
		}

		ints := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", lineNo, i+1, err)
			}
			ints[i] = v
		}

		t := time.Date(ints[0], time.Month(ints[1]), ints[2], ints[3], 0, 0, 0, time.UTC)
		if t.Year() != ints[0] || int(t.Month()) != ints[1] || t.Day() != ints[2] || t.Hour() != ints[3] {
			return nil, fmt.Errorf("line %d: %w", lineNo, &models.ValidationError{
				Field:   "date",
				Value:   strings.Join(fields[:4], " "),
				Message: "invalid observation date",
			})
		}
		idx, ok := series.Index(t)
		if !ok {
			continue
		}
		for i, c := range columns {
			series.Values[c.variable][idx] = decode(ints[4+i], c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return series, nil
}

func decode(raw int, c column) float64 {
	switch {
	case raw == MissingValue:
		return models.Missing
	case raw == traceValue && (c.variable == models.VarPrecip1h || c.variable == models.VarPrecip6h):
		return 0
	}
	return float64(raw) / c.scale
}

// Open returns a reader for path, decompressing .gz and .zst files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, f}}, nil
	}
	return f, nil
}

// ParseFile parses the file at path.
func ParseFile(path, stationID string, year int) (*models.StationYearSeries, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	series, err := Parse(rc, stationID, year)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// zstd.Decoder.Close has no error result.
type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// FileName identifies a station-year file named <USAF>-<WBAN>-<Year>.
type FileName struct {
	StationID string
	WBAN      string
	Year      int
}

var fileNamePattern = regexp.MustCompile(`^(\d{6})-(\d{5})-(\d{4})(\.gz|\.zst)?$`)

// ParseFileName parses base names such as 725300-94846-2019.gz.
func ParseFileName(name string) (FileName, bool) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return FileName{}, false
	}
	year, _ := strconv.Atoi(m[3])
	return FileName{StationID: m[1], WBAN: m[2], Year: year}, true
}
