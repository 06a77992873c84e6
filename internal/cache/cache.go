// Package cache persists extracted station series as zstd-compressed msgpack files.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"amy-weather/internal/models"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

const fileSuffix = ".msgpack.zst"

// entry is the on-disk form of a series. Times are implied by Start and the
// column length.
type entry struct {
	StationID string               `msgpack:"station_id"`
	Year      int                  `msgpack:"year"`
	Start     int64                `msgpack:"start"`
	Hours     int                  `msgpack:"hours"`
	Values    map[string][]float64 `msgpack:"values"`
}

// FileCache stores one file per key under a directory. Read and write failures
// are logged and treated as misses.
type FileCache struct {
	dir     string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFileCache creates dir if needed. metrics may be nil.
func NewFileCache(dir string, logger *logging.StructuredLogger, m *metrics.Collector) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir, logger: logger, metrics: m}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, unsafeKeyChars.ReplaceAllString(key, "_")+fileSuffix)
}

func (c *FileCache) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheResult(result)
	}
}

// Load returns the series stored under key.
func (c *FileCache) Load(key string) (*models.StationYearSeries, bool) {
	series, err := c.read(c.path(key))
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.record("miss")
		return nil, false
	case err != nil:
		c.record("error")
		c.logger.Warn(context.Background(), "[CACHE] Discarding unreadable entry", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	c.record("hit")
	return series, true
}

func (c *FileCache) read(path string) (*models.StationYearSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var e entry
	if err := msgpack.NewDecoder(zr).Decode(&e); err != nil {
		return nil, err
	}

	start := time.Unix(e.Start, 0).UTC()
	series := &models.StationYearSeries{
		StationID: e.StationID,
		Year:      e.Year,
		Times:     make([]time.Time, e.Hours),
		Values:    make(map[models.Variable][]float64, len(e.Values)),
	}
	for i := range series.Times {
		series.Times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	for v, col := range e.Values {
		series.Values[models.Variable(v)] = col
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// Store writes series under key, replacing any previous entry.
func (c *FileCache) Store(key string, series *models.StationYearSeries) {
	if err := c.write(c.path(key), series); err != nil {
		c.logger.Warn(context.Background(), "[CACHE] Failed to store entry", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (c *FileCache) write(path string, series *models.StationYearSeries) error {
	e := entry{
		StationID: series.StationID,
		Year:      series.Year,
		Hours:     series.Len(),
		Values:    make(map[string][]float64, len(series.Values)),
	}
	if series.Len() > 0 {
		e.Start = series.Times[0].Unix()
	}
	for v, col := range series.Values {
		e.Values[string(v)] = col
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(&e); err != nil {
		zw.Close()
		tmp.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
