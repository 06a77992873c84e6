package grid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"amy-weather/internal/inject"
	"amy-weather/internal/models"
)

// Opener loads one gridded file.
type Opener func(path string) (*Snapshot, error)

// DirSource serves the gridded files of a directory. A file belongs to a year
// when its name contains the year. Each year is loaded once and shared.
type DirSource struct {
	dir  string
	open Opener

	mu    sync.Mutex
	years map[int]*yearSnapshots
}

type yearSnapshots struct {
	mu        sync.Mutex
	loaded    bool
	snapshots []*Snapshot
	err       error
}

// NewDirSource creates a source over dir. A nil open reads WRF NetCDF files.
func NewDirSource(dir string, open Opener) *DirSource {
	if open == nil {
		open = func(path string) (*Snapshot, error) { return OpenNetCDF(path) }
	}
	return &DirSource{
		dir:   dir,
		open:  open,
		years: make(map[int]*yearSnapshots),
	}
}

// Files lists the year's files in lexical order, which is also the merge order.
func (d *DirSource) Files(year int) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list grid directory %s: %w", d.dir, err)
	}
	tag := strconv.Itoa(year)
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.Contains(e.Name(), tag) {
			continue
		}
		files = append(files, filepath.Join(d.dir, e.Name()))
	}
	return files, nil
}

// Snapshots loads every file of year. The result, including a load error, is
// kept for later callers unless the load was cut short by ctx.
func (d *DirSource) Snapshots(ctx context.Context, year int) ([]*Snapshot, error) {
	d.mu.Lock()
	entry, ok := d.years[year]
	if !ok {
		entry = &yearSnapshots{}
		d.years[year] = entry
	}
	d.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.loaded {
		return entry.snapshots, entry.err
	}
	snapshots, err := d.load(ctx, year)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	entry.snapshots, entry.err, entry.loaded = snapshots, err, true
	return snapshots, err
}

func (d *DirSource) load(ctx context.Context, year int) ([]*Snapshot, error) {
	files, err := d.Files(year)
	if err != nil {
		return nil, err
	}
	snapshots := make([]*Snapshot, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := d.open(f)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

// SnapshotProvider supplies the gridded snapshots of a year.
type SnapshotProvider interface {
	Snapshots(ctx context.Context, year int) ([]*Snapshot, error)
}

// SeriesCache stores extracted station series between runs.
type SeriesCache interface {
	Load(key string) (*models.StationYearSeries, bool)
	Store(key string, series *models.StationYearSeries)
}

// StationSource feeds gridded data to the pipeline. The observation series is the
// hourly coverage of the year's files; extraction reads the nearest cell.
type StationSource struct {
	provider  SnapshotProvider
	tolerance float64
	cache     SeriesCache
}

// NewStationSource creates a grid source. cache may be nil.
func NewStationSource(provider SnapshotProvider, tolerance float64, cache SeriesCache) *StationSource {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &StationSource{
		provider:  provider,
		tolerance: tolerance,
		cache:     cache,
	}
}

// Name identifies the source in outcomes.
func (s *StationSource) Name() string {
	return "grid"
}

// Rules returns the grid conversion table.
func (s *StationSource) Rules() inject.RuleSet {
	return inject.GridRules()
}

// Observe returns the coverage series of the year.
func (s *StationSource) Observe(ctx context.Context, loc models.StationLocation, year int) (*models.StationYearSeries, error) {
	snapshots, err := s.provider.Snapshots(ctx, year)
	if err != nil {
		return nil, err
	}
	return Coverage(snapshots, loc.StationID, year)
}

// Extract returns the nearest-cell series aligned to the year of obs.
func (s *StationSource) Extract(ctx context.Context, loc models.StationLocation, obs *models.StationYearSeries) (*models.StationYearSeries, error) {
	key := fmt.Sprintf("grid-%s-%d-%g", loc.StationID, obs.Year, s.tolerance)
	if s.cache != nil {
		if series, ok := s.cache.Load(key); ok {
			return series, nil
		}
	}

	snapshots, err := s.provider.Snapshots(ctx, obs.Year)
	if err != nil {
		return nil, err
	}
	extracted, err := Extract(snapshots, loc, s.tolerance)
	if err != nil {
		return nil, err
	}
	series := Align(extracted, loc.StationID, obs.Year)

	if s.cache != nil {
		s.cache.Store(key, series)
	}
	return series, nil
}
