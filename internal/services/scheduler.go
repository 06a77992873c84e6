package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"amy-weather/pkg/logging"
)

// AnalysisScheduler re-screens an ISD-Lite tree on a cron schedule
type AnalysisScheduler struct {
	analysis *AnalysisService
	root     string
	schedule string
	cron     *cron.Cron
	logger   *logging.StructuredLogger
}

// NewAnalysisScheduler validates schedule, a standard five-field cron
// expression or a descriptor such as "@every 6h".
func NewAnalysisScheduler(analysis *AnalysisService, root, schedule string, logger *logging.StructuredLogger) (*AnalysisScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid analysis schedule %q: %w", schedule, err)
	}
	return &AnalysisScheduler{
		analysis: analysis,
		root:     root,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}, nil
}

// Start schedules the analysis. Runs never overlap.
func (s *AnalysisScheduler) Start(ctx context.Context) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))
	if _, err := s.cron.AddJob(s.schedule, job); err != nil {
		return fmt.Errorf("error scheduling analysis: %w", err)
	}
	s.cron.Start()

	s.logger.Info(ctx, "[SCHEDULER_START] Analysis scheduled", logging.Fields{
		"schedule": s.schedule,
		"root":     s.root,
	})
	return nil
}

// RunOnce performs one analysis pass and logs its outcome.
func (s *AnalysisScheduler) RunOnce(ctx context.Context) *AnalysisResult {
	result, err := s.analysis.AnalyzeDirectory(ctx, s.root)
	if err != nil {
		s.logger.Error(ctx, "[SCHEDULER_ERROR] Scheduled analysis failed", logging.Fields{
			"root": s.root,
		}, err)
		return nil
	}
	return result
}

// Stop stops scheduling and waits for a running analysis to finish.
func (s *AnalysisScheduler) Stop() {
	<-s.cron.Stop().Done()
}
