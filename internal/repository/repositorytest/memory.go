// Package repositorytest provides an in-memory AMYRepository for tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amy-weather/internal/models"
	"amy-weather/internal/repository"
)

// Memory implements repository.AMYRepository in memory. Set HealthErr to make
// HealthCheck fail.
type Memory struct {
	mu        sync.Mutex
	stations  map[string]models.Station
	verdicts  map[string]models.Verdict
	outcomes  []models.TaskOutcome
	HealthErr error
}

var _ repository.AMYRepository = (*Memory)(nil)

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{
		stations: make(map[string]models.Station),
		verdicts: make(map[string]models.Verdict),
	}
}

func (m *Memory) UpsertStation(ctx context.Context, station *models.Station) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[station.StationID] = *station
	return nil
}

func (m *Memory) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stations[stationID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "station", ID: stationID}
	}
	return &st, nil
}

func (m *Memory) ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*models.Station, 0, len(m.stations))
	for _, st := range m.stations {
		all = append(all, &st)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StationID < all[j].StationID })
	return page(all, limit, offset), nil
}

func (m *Memory) Lookup(ctx context.Context, stationID string) (models.StationLocation, error) {
	st, err := m.GetStation(ctx, stationID)
	if err != nil {
		return models.StationLocation{}, fmt.Errorf("%w: %s", models.ErrUnknownStation, stationID)
	}
	return st.Location(), nil
}

func (m *Memory) UpsertVerdicts(ctx context.Context, verdicts []models.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range verdicts {
		m.verdicts[fmt.Sprintf("%s-%d", v.StationID, v.Year)] = v
	}
	return nil
}

func (m *Memory) GetVerdicts(ctx context.Context, filter repository.VerdictFilter) ([]*models.Verdict, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*models.Verdict
	for _, v := range m.verdicts {
		if filter.StationID != nil && v.StationID != *filter.StationID {
			continue
		}
		if filter.Year != nil && v.Year != *filter.Year {
			continue
		}
		if filter.Classification != nil && v.Classification != *filter.Classification {
			continue
		}
		matched = append(matched, &v)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Year != matched[j].Year {
			return matched[i].Year > matched[j].Year
		}
		return matched[i].StationID < matched[j].StationID
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (m *Memory) CreateOutcome(ctx context.Context, outcome *models.TaskOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome.ID = int64(len(m.outcomes) + 1)
	m.outcomes = append(m.outcomes, *outcome)
	return nil
}

func (m *Memory) GetOutcomes(ctx context.Context, filter repository.OutcomeFilter) ([]*models.TaskOutcome, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*models.TaskOutcome
	for i := len(m.outcomes) - 1; i >= 0; i-- {
		o := m.outcomes[i]
		if filter.RunID != nil && o.RunID != *filter.RunID {
			continue
		}
		if filter.StationID != nil && o.StationID != *filter.StationID {
			continue
		}
		if filter.Year != nil && o.Year != *filter.Year {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		matched = append(matched, &o)
	}
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (m *Memory) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
