package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"amy-weather/internal/completeness"
	"amy-weather/internal/epw"
	"amy-weather/internal/gapfill"
	"amy-weather/internal/inject"
	"amy-weather/internal/models"
	"amy-weather/internal/stations"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

// Source produces the observation and per-variable series of a station-year.
type Source interface {
	Name() string
	Rules() inject.RuleSet
	Observe(ctx context.Context, loc models.StationLocation, year int) (*models.StationYearSeries, error)
	Extract(ctx context.Context, loc models.StationLocation, obs *models.StationYearSeries) (*models.StationYearSeries, error)
}

// TemplateProvider returns the typical-year file of a station.
type TemplateProvider interface {
	Template(ctx context.Context, stationID string) (*epw.File, error)
}

// Writer persists a finished file and returns where it was written.
type Writer interface {
	Write(ctx context.Context, f *epw.File, destination string) (string, error)
}

// OutcomeStore persists task outcomes.
type OutcomeStore interface {
	CreateOutcome(ctx context.Context, outcome *models.TaskOutcome) error
}

// PipelineConfig holds the tunables of a generation run.
type PipelineConfig struct {
	Thresholds completeness.Thresholds
	Fill       gapfill.Config
	Workers    int
	OutputDir  string
}

// Validate checks the configuration before any task starts.
func (c PipelineConfig) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Fill.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return &models.ValidationError{
			Field:   "workers",
			Value:   fmt.Sprintf("%d", c.Workers),
			Message: "workers must be at least 1",
		}
	}
	return nil
}

// Task identifies one station-year to generate.
type Task struct {
	StationID string
	Year      int
}

// Tasks expands the station × year product, station-major.
func Tasks(stationIDs []string, years []int) []Task {
	tasks := make([]Task, 0, len(stationIDs)*len(years))
	for _, id := range stationIDs {
		for _, year := range years {
			tasks = append(tasks, Task{StationID: id, Year: year})
		}
	}
	return tasks
}

// RunResult summarises a run. Outcomes are in task order.
type RunResult struct {
	RunID    string
	Outcomes []models.TaskOutcome
	Duration time.Duration
}

// Count returns the number of outcomes with the given status.
func (r *RunResult) Count(status models.TaskStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// PipelineService drives station-years through classification, extraction,
// gap filling and injection.
type PipelineService struct {
	source    Source
	stations  stations.Lookup
	templates TemplateProvider
	writer    Writer
	store     OutcomeStore
	cfg       PipelineConfig
	clock     clockwork.Clock
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// PipelineDeps groups the collaborators of the pipeline. Store is optional.
type PipelineDeps struct {
	Source    Source
	Stations  stations.Lookup
	Templates TemplateProvider
	Writer    Writer
	Store     OutcomeStore
	Clock     clockwork.Clock
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(deps PipelineDeps, cfg PipelineConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*PipelineService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := deps.Source.Rules().Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s rule set: %w", deps.Source.Name(), err)
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PipelineService{
		source:    deps.Source,
		stations:  deps.Stations,
		templates: deps.Templates,
		writer:    deps.Writer,
		store:     deps.Store,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metricsCollector,
	}, nil
}

// Run processes every task and returns one outcome per task. Task failures
// are recorded in the outcomes; the returned error is only set when ctx was
// cancelled before all tasks started.
func (s *PipelineService) Run(ctx context.Context, tasks []Task) (*RunResult, error) {
	start := s.clock.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	s.logger.Info(ctx, "[PIPELINE_START] Starting AMY generation run", logging.Fields{
		"source":  s.source.Name(),
		"tasks":   len(tasks),
		"workers": s.cfg.Workers,
		"stage":   "INITIALIZATION",
	})

	result := &RunResult{
		RunID:    runID,
		Outcomes: make([]models.TaskOutcome, len(tasks)),
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			result.Outcomes[i] = s.cancelled(ctx, task, runID, err)
			continue
		}
		g.Go(func() error {
			s.metrics.ActiveWorkers.Inc()
			defer s.metrics.ActiveWorkers.Dec()
			result.Outcomes[i] = s.process(ctx, task, runID)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = s.clock.Since(start)

	s.logger.Info(ctx, "[PIPELINE_COMPLETE] AMY generation run completed", logging.Fields{
		"done":             result.Count(models.StatusDone),
		"excluded":         result.Count(models.StatusExcluded),
		"unfillable":       result.Count(models.StatusUnfillable),
		"failed":           result.Count(models.StatusFailed),
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, ctx.Err()
}

// cancelled records a task that never started.
func (s *PipelineService) cancelled(ctx context.Context, task Task, runID string, err error) models.TaskOutcome {
	outcome := models.TaskOutcome{
		RunID:     runID,
		StationID: task.StationID,
		Year:      task.Year,
		Source:    s.source.Name(),
		Status:    models.StatusFailed,
		Reason:    err.Error(),
		CreatedAt: s.clock.Now().UTC(),
	}
	s.metrics.RecordTask(outcome.Source, string(outcome.Status), 0)
	return outcome
}

// process runs one task through the state machine. It never panics on data
// errors; every exit path yields a terminal outcome.
func (s *PipelineService) process(ctx context.Context, task Task, runID string) (outcome models.TaskOutcome) {
	start := s.clock.Now()
	ctx = logging.WithTask(ctx, task.StationID, task.Year)

	outcome = models.TaskOutcome{
		RunID:     runID,
		StationID: task.StationID,
		Year:      task.Year,
		Source:    s.source.Name(),
		Status:    models.StatusPending,
	}

	defer func() {
		duration := s.clock.Since(start)
		outcome.DurationMS = duration.Milliseconds()
		outcome.CreatedAt = s.clock.Now().UTC()
		s.metrics.RecordTask(outcome.Source, string(outcome.Status), duration)
		s.persist(ctx, &outcome)
	}()

	fail := func(stage models.Stage, err error) models.TaskOutcome {
		taskErr := &models.TaskError{StationID: task.StationID, Year: task.Year, Stage: stage, Err: err}
		outcome.Stage = stage
		outcome.Reason = err.Error()
		if errors.Is(err, models.ErrUnfillable) {
			outcome.Status = models.StatusUnfillable
			s.logger.Warn(ctx, "[TASK_UNFILLABLE] Gaps could not be filled", logging.Fields{
				"stage":  string(stage),
				"reason": outcome.Reason,
			})
		} else {
			outcome.Status = models.StatusFailed
			s.logger.Error(ctx, "[TASK_FAILED] Task failed", logging.Fields{
				"stage":     string(stage),
				"transient": taskErr.IsTransient(),
			}, taskErr)
		}
		s.metrics.RecordTaskError(string(stage), errorType(err))
		return outcome
	}

	loc, err := s.stations.Lookup(ctx, task.StationID)
	if err != nil {
		return fail(models.StageLookup, err)
	}

	timer := s.metrics.StageTimer(string(models.StageClassify))
	obs, err := s.source.Observe(ctx, loc, task.Year)
	if err != nil {
		return fail(models.StageClassify, err)
	}
	verdict := completeness.Classify(obs, s.cfg.Thresholds.MaxMissingRows, s.cfg.Thresholds.MaxConsecutiveMissingRows)
	timer.ObserveDuration()

	s.metrics.RecordVerdict(string(verdict.Classification))
	outcome.Status = models.StatusClassified
	outcome.Classification = verdict.Classification
	outcome.TotalMissing = verdict.TotalMissing
	outcome.MaxConsecutiveMissing = verdict.MaxConsecutiveMissing

	if verdict.Classification.Excluded() {
		outcome.Status = models.StatusExcluded
		outcome.Stage = models.StageClassify
		outcome.Reason = string(verdict.Classification)
		s.logger.Info(ctx, "[TASK_EXCLUDED] Station-year excluded by completeness screening", logging.Fields{
			"classification":          string(verdict.Classification),
			"total_missing":           verdict.TotalMissing,
			"max_consecutive_missing": verdict.MaxConsecutiveMissing,
		})
		return outcome
	}

	outcome.Status = models.StatusExtracting
	rules := s.source.Rules()
	timer = s.metrics.StageTimer(string(models.StageExtract))
	extracted, err := s.source.Extract(ctx, loc, obs)
	if err != nil {
		return fail(models.StageExtract, err)
	}
	series, err := extracted.Select(rules.Inputs()...)
	if err != nil {
		return fail(models.StageExtract, err)
	}
	timer.ObserveDuration()

	outcome.Status = models.StatusFilling
	timer = s.metrics.StageTimer(string(models.StageFill))
	filled, report, err := gapfill.FillSeries(series, s.cfg.Fill)
	if err != nil {
		return fail(models.StageFill, err)
	}
	timer.ObserveDuration()
	outcome.Interpolated = report.Interpolated
	outcome.Imputed = report.Imputed
	s.metrics.RecordFilled(report.Interpolated, report.Imputed)

	outcome.Status = models.StatusInjecting
	template, err := s.templates.Template(ctx, task.StationID)
	if err != nil {
		return fail(models.StageTemplate, err)
	}

	timer = s.metrics.StageTimer(string(models.StageInject))
	amy, err := inject.Inject(template, inject.MatchTemplate(filled, template), rules)
	if err != nil {
		return fail(models.StageInject, err)
	}
	timer.ObserveDuration()

	timer = s.metrics.StageTimer(string(models.StageWrite))
	path, err := s.writer.Write(ctx, amy, filepath.Join(s.cfg.OutputDir, epw.OutputName(task.StationID, task.Year)))
	if err != nil {
		return fail(models.StageWrite, err)
	}
	timer.ObserveDuration()

	outcome.Status = models.StatusDone
	outcome.OutputPath = path

	s.logger.Info(ctx, "[TASK_DONE] AMY file written", logging.Fields{
		"output_path":  path,
		"interpolated": report.Interpolated,
		"imputed":      report.Imputed,
	})

	return outcome
}

func (s *PipelineService) persist(ctx context.Context, outcome *models.TaskOutcome) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateOutcome(ctx, outcome); err != nil {
		s.logger.Warn(ctx, "[TASK_PERSIST_ERROR] Failed to store task outcome", logging.Fields{
			"status": string(outcome.Status),
			"error":  err.Error(),
		})
	}
}

// errorType maps an error to a low-cardinality metric label.
func errorType(err error) string {
	var ve *models.ValidationError
	switch {
	case errors.Is(err, models.ErrUnknownStation):
		return "unknown_station"
	case errors.Is(err, models.ErrTemplateUnavailable):
		return "template_unavailable"
	case errors.Is(err, models.ErrLocationOutOfRange):
		return "location_out_of_range"
	case errors.Is(err, models.ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, models.ErrUnfillable):
		return "unfillable"
	case errors.Is(err, models.ErrMissingVariable):
		return "missing_variable"
	case errors.Is(err, models.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &ve):
		return "validation"
	default:
		return "internal"
	}
}
