package services

import (
	"context"
	"fmt"
	"time"

	"amy-weather/internal/models"
	"amy-weather/internal/repository"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

// QueryService serves stored stations, verdicts and outcomes
type QueryService struct {
	repo    repository.AMYRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// OutcomeSummary counts the outcomes of a run by status
type OutcomeSummary struct {
	RunID        string                    `json:"run_id,omitempty"`
	Total        int                       `json:"total"`
	ByStatus     map[models.TaskStatus]int `json:"by_status"`
	Interpolated int                       `json:"interpolated"`
	Imputed      int                       `json:"imputed"`
}

// NewQueryService creates a new query service
func NewQueryService(repo repository.AMYRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QueryService {
	return &QueryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetStations retrieves stations with pagination
func (s *QueryService) GetStations(ctx context.Context, limit, offset int) ([]*models.Station, error) {
	return s.repo.ListStations(ctx, limit, offset)
}

// GetStation retrieves one station
func (s *QueryService) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	return s.repo.GetStation(ctx, stationID)
}

// GetVerdicts retrieves completeness verdicts with filtering
func (s *QueryService) GetVerdicts(ctx context.Context, filter repository.VerdictFilter) ([]*models.Verdict, int, error) {
	return s.repo.GetVerdicts(ctx, filter)
}

// GetOutcomes retrieves task outcomes with filtering
func (s *QueryService) GetOutcomes(ctx context.Context, filter repository.OutcomeFilter) ([]*models.TaskOutcome, int, error) {
	return s.repo.GetOutcomes(ctx, filter)
}

// SummarizeOutcomes aggregates every outcome matching filter, paging through
// the repository.
func (s *QueryService) SummarizeOutcomes(ctx context.Context, filter repository.OutcomeFilter) (*OutcomeSummary, error) {
	const pageSize = 1000

	summary := &OutcomeSummary{ByStatus: make(map[models.TaskStatus]int)}
	if filter.RunID != nil {
		summary.RunID = *filter.RunID
	}

	filter.Limit = pageSize
	for filter.Offset = 0; ; filter.Offset += pageSize {
		outcomes, total, err := s.repo.GetOutcomes(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize outcomes: %w", err)
		}
		for _, o := range outcomes {
			summary.ByStatus[o.Status]++
			summary.Interpolated += o.Interpolated
			summary.Imputed += o.Imputed
		}
		summary.Total = total
		if len(outcomes) < pageSize || filter.Offset+len(outcomes) >= total {
			break
		}
	}
	return summary, nil
}

// ImportStations stores a station reference table
func (s *QueryService) ImportStations(ctx context.Context, stations []models.Station) (int, error) {
	startTime := time.Now()

	for i := range stations {
		if err := s.repo.UpsertStation(ctx, &stations[i]); err != nil {
			return i, fmt.Errorf("failed to import station %s: %w", stations[i].StationID, err)
		}
	}

	s.logger.Info(ctx, "[STATIONS_IMPORT_COMPLETE] Station table imported", logging.Fields{
		"stations":         len(stations),
		"duration_seconds": time.Since(startTime).Seconds(),
	})
	return len(stations), nil
}

// HealthCheck checks the backing store
func (s *QueryService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
