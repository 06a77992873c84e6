package epw

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"amy-weather/internal/models"
)

// DirProvider serves TMY templates from a directory. The template for a station is
// <dir>/<station>.epw, or else the first file, in lexical order, whose name
// contains the station id and ends in .epw.
type DirProvider struct {
	Dir string
}

// Template reads the station's template.
func (p DirProvider) Template(ctx context.Context, stationID string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.find(stationID)
	if err != nil {
		return nil, err
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTemplateUnavailable, err)
	}
	return f, nil
}

func (p DirProvider) find(stationID string) (string, error) {
	exact := filepath.Join(p.Dir, stationID+".epw")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTemplateUnavailable, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(name), ".epw") && strings.Contains(name, stationID) {
			return filepath.Join(p.Dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: no template for station %s in %s", models.ErrTemplateUnavailable, stationID, p.Dir)
}

// FileWriter writes AMY files under Dir.
type FileWriter struct {
	Dir string
}

// OutputName is the file name used for a station-year.
func OutputName(stationID string, year int) string {
	return fmt.Sprintf("%s_AMY_%d.epw", stationID, year)
}

// Write stores f at destination, relative to Dir, and returns the full path. The
// file is written to a temporary name first and renamed into place.
func (w FileWriter) Write(ctx context.Context, f *File, destination string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, destination)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".amy-*.epw")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move output into place: %w", err)
	}
	return path, nil
}
