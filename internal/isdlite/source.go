package isdlite

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"

	"amy-weather/internal/inject"
	"amy-weather/internal/models"
)

// Source serves station-year files from a directory laid out either flat or
// with one subdirectory per year.
type Source struct {
	Dir string
}

// NewSource creates a source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{Dir: dir}
}

// Name identifies the source in outcomes.
func (s *Source) Name() string {
	return "isd"
}

// Rules returns the station conversion table.
func (s *Source) Rules() inject.RuleSet {
	return inject.StationRules()
}

// Find returns the file holding stationID's observations for year.
func (s *Source) Find(stationID string, year int) (string, error) {
	y := strconv.Itoa(year)
	for _, dir := range []string{s.Dir, filepath.Join(s.Dir, y)} {
		matches, err := filepath.Glob(filepath.Join(dir, stationID+"-*-"+y+"*"))
		if err != nil {
			return "", err
		}
		sort.Strings(matches)
		for _, m := range matches {
			if fn, ok := ParseFileName(m); ok && fn.StationID == stationID && fn.Year == year {
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no ISD-Lite file for station %s year %d under %s",
		models.ErrSourceUnavailable, stationID, year, s.Dir)
}

// Observe parses the station-year file.
func (s *Source) Observe(ctx context.Context, loc models.StationLocation, year int) (*models.StationYearSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Find(loc.StationID, year)
	if err != nil {
		return nil, err
	}
	return ParseFile(path, loc.StationID, year)
}

// Extract returns a copy of the observations, which are already decoded.
func (s *Source) Extract(ctx context.Context, loc models.StationLocation, obs *models.StationYearSeries) (*models.StationYearSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return obs.Clone(), nil
}

// Walk calls fn for every ISD-Lite file under root in lexical order. Files whose
// names do not follow the convention are skipped.
func Walk(ctx context.Context, root string, fn func(path string, name FileName) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := ParseFileName(d.Name())
		if !ok {
			return nil
		}
		return fn(path, name)
	})
}
