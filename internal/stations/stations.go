// Package stations resolves station identifiers to coordinates.
package stations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"amy-weather/internal/models"
)

// Lookup resolves a station identifier.
type Lookup interface {
	Lookup(ctx context.Context, stationID string) (models.StationLocation, error)
}

// Table is an in-memory station reference table.
type Table struct {
	stations map[string]models.Station
}

// LoadTable reads a CSV with a header naming at least station_id, latitude and
// longitude. A name column is optional.
func LoadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read station table header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"station_id", "latitude", "longitude"} {
		if _, ok := idx[col]; !ok {
			return nil, &models.ValidationError{
				Field:   col,
				Message: fmt.Sprintf("station table is missing column %s", col),
			}
		}
	}

	t := &Table{stations: make(map[string]models.Station)}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("station table line %d: %w", line, err)
		}
		st := models.Station{StationID: strings.TrimSpace(row[idx["station_id"]])}
		if i, ok := idx["name"]; ok {
			st.Name = row[i]
		}
		if st.Latitude, err = parseCoordinate(row[idx["latitude"]], 90); err != nil {
			return nil, fmt.Errorf("station table line %d latitude: %w", line, err)
		}
		if st.Longitude, err = parseCoordinate(row[idx["longitude"]], 180); err != nil {
			return nil, fmt.Errorf("station table line %d longitude: %w", line, err)
		}
		t.stations[st.StationID] = st
	}
	return t, nil
}

func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if v < -limit || v > limit {
		return 0, &models.ValidationError{
			Field:   "coordinate",
			Value:   raw,
			Message: fmt.Sprintf("coordinate %v outside [-%v, %v]", v, limit, limit),
		}
	}
	return v, nil
}

// LoadTableFile reads the table at path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTable(f)
}

// Lookup returns the station's location.
func (t *Table) Lookup(ctx context.Context, stationID string) (models.StationLocation, error) {
	st, ok := t.stations[stationID]
	if !ok {
		return models.StationLocation{}, fmt.Errorf("%w: %s", models.ErrUnknownStation, stationID)
	}
	return st.Location(), nil
}

// Stations returns every station in the table.
func (t *Table) Stations() []models.Station {
	out := make([]models.Station, 0, len(t.stations))
	for _, st := range t.stations {
		out = append(out, st)
	}
	return out
}

// Cache memoises successful lookups for the life of a run. Concurrent misses
// for one station share a single source call; misses for different stations
// run in parallel.
type Cache struct {
	source Lookup
	flight singleflight.Group

	mu      sync.RWMutex
	entries map[string]models.StationLocation
}

// NewCache wraps source.
func NewCache(source Lookup) *Cache {
	return &Cache{
		source:  source,
		entries: make(map[string]models.StationLocation),
	}
}

// Lookup returns the cached location or resolves it through the source.
// Failures are not cached.
func (c *Cache) Lookup(ctx context.Context, stationID string) (models.StationLocation, error) {
	if loc, ok := c.cached(stationID); ok {
		return loc, nil
	}

	v, err, _ := c.flight.Do(stationID, func() (interface{}, error) {
		if loc, ok := c.cached(stationID); ok {
			return loc, nil
		}
		loc, err := c.source.Lookup(ctx, stationID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[stationID] = loc
		c.mu.Unlock()
		return loc, nil
	})
	if err != nil {
		return models.StationLocation{}, err
	}
	return v.(models.StationLocation), nil
}

func (c *Cache) cached(stationID string) (models.StationLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[stationID]
	return loc, ok
}

// Len returns the number of cached stations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
