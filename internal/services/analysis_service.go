package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"amy-weather/internal/completeness"
	"amy-weather/internal/isdlite"
	"amy-weather/internal/models"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

// VerdictStore persists completeness verdicts.
type VerdictStore interface {
	UpsertVerdicts(ctx context.Context, verdicts []models.Verdict) error
}

// AnalysisService screens a tree of ISD-Lite files for completeness
type AnalysisService struct {
	store      VerdictStore
	thresholds completeness.Thresholds
	batchSize  int
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// AnalysisResult contains analysis statistics
type AnalysisResult struct {
	FilesScanned int
	Verdicts     []models.Verdict
	Failed       int
	Duration     time.Duration
	Errors       []string
}

// Count returns the number of verdicts with the given classification.
func (r *AnalysisResult) Count(c models.Classification) int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Classification == c {
			n++
		}
	}
	return n
}

// NewAnalysisService creates a new analysis service. store may be nil, in
// which case verdicts are only returned.
func NewAnalysisService(store VerdictStore, thresholds completeness.Thresholds, batchSize int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*AnalysisService, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &AnalysisService{
		store:      store,
		thresholds: thresholds,
		batchSize:  batchSize,
		logger:     logger,
		metrics:    metricsCollector,
	}, nil
}

// AnalyzeDirectory classifies every ISD-Lite file under root. Unreadable
// files are counted and skipped.
func (s *AnalysisService) AnalyzeDirectory(ctx context.Context, root string) (*AnalysisResult, error) {
	startTime := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	s.logger.Info(ctx, "[ANALYZE_START] Starting completeness analysis", logging.Fields{
		"input_dir":                    root,
		"max_missing_rows":             s.thresholds.MaxMissingRows,
		"max_consecutive_missing_rows": s.thresholds.MaxConsecutiveMissingRows,
		"stage":                        "INITIALIZATION",
	})

	result := &AnalysisResult{Errors: make([]string, 0)}
	batch := make([]models.Verdict, 0, s.batchSize)

	flush := func() error {
		if s.store == nil || len(batch) == 0 {
			batch = batch[:0]
			return nil
		}
		if err := s.store.UpsertVerdicts(ctx, batch); err != nil {
			return fmt.Errorf("failed to store verdicts: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	err = isdlite.Walk(ctx, root, func(path string, name isdlite.FileName) error {
		result.FilesScanned++
		s.metrics.FilesScannedTotal.Inc()

		series, err := isdlite.ParseFile(path, name.StationID, name.Year)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to parse %s: %v", path, err))
			s.logger.Error(ctx, "[ANALYZE_FILE_ERROR] File analysis failed", logging.Fields{
				"file_path": path,
				"stage":     "FILE_PROCESSING",
			}, err)
			return nil
		}

		verdict := completeness.Classify(series, s.thresholds.MaxMissingRows, s.thresholds.MaxConsecutiveMissingRows)
		verdict.SourceFile = path
		verdict.CreatedAt = time.Now().UTC()
		s.metrics.RecordVerdict(string(verdict.Classification))

		s.logger.Debug(ctx, "[ANALYZE_FILE] File classified", logging.Fields{
			"file_path":               path,
			"station_id":              verdict.StationID,
			"year":                    verdict.Year,
			"classification":          string(verdict.Classification),
			"total_missing":           verdict.TotalMissing,
			"max_consecutive_missing": verdict.MaxConsecutiveMissing,
		})

		result.Verdicts = append(result.Verdicts, verdict)
		batch = append(batch, verdict)
		if len(batch) >= s.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", root, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[ANALYZE_COMPLETE] Completeness analysis completed", logging.Fields{
		"files_scanned":        result.FilesScanned,
		"usable":               result.Count(models.Usable),
		"excluded_total":       result.Count(models.ExcludedTotal),
		"excluded_consecutive": result.Count(models.ExcludedConsecutive),
		"failed":               result.Failed,
		"duration_seconds":     result.Duration.Seconds(),
		"stage":                "COMPLETE",
	})

	return result, nil
}
