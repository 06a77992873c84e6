package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/prometheus/client_golang/prometheus"

	"amy-weather/internal/completeness"
	"amy-weather/internal/config"
	"amy-weather/internal/models"
	"amy-weather/internal/repository"
	"amy-weather/internal/services"
	"amy-weather/pkg/database"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	parser := argparse.NewParser("analyze", "Screen a tree of ISD-Lite files named <WMO>-<WBAN>-<Year>[.gz|.zst] for AMY suitability")

	inputs := parser.String("", "inputs", &argparse.Options{
		Required: true,
		Help:     "Directory searched recursively for ISD-Lite files"})
	maxMissing := parser.Int("", "max-missing-rows", &argparse.Options{
		Default: cfg.Pipeline.Thresholds.MaxMissingRows,
		Help:    "Files with more missing rows are excluded"})
	maxConsecutive := parser.Int("", "max-consecutive-missing-rows", &argparse.Options{
		Default: cfg.Pipeline.Thresholds.MaxConsecutiveMissingRows,
		Help:    "Files with a longer run of missing rows are excluded"})
	persist := parser.Flag("", "persist", &argparse.Options{
		Help: "Store verdicts in PostgreSQL"})
	batchSize := parser.Int("", "batch-size", &argparse.Options{
		Default: 500,
		Help:    "Verdicts stored per transaction"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("amy-analyze", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("amy_analyze", prometheus.DefaultRegisterer)
	ctx := context.Background()

	var store services.VerdictStore
	if *persist {
		db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[ANALYZE_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()
		store = repository.NewAMYRepository(db, logger, metricsCollector)
	}

	svc, err := services.NewAnalysisService(store, completeness.Thresholds{
		MaxMissingRows:            *maxMissing,
		MaxConsecutiveMissingRows: *maxConsecutive,
	}, *batchSize, logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid thresholds: %v\n", err)
		os.Exit(2)
	}

	result, err := svc.AnalyzeDirectory(ctx, *inputs)
	if err != nil {
		logger.Fatal(ctx, "[ANALYZE_ERROR] Analysis failed", logging.Fields{
			"inputs": *inputs,
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("ANALYSIS COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Files Scanned:                 %d\n", result.FilesScanned)
	fmt.Printf("Complete Enough To Convert:    %d\n", result.Count(models.Usable))
	fmt.Printf("Too Many Missing Rows:         %d (> %d)\n", result.Count(models.ExcludedTotal), *maxMissing)
	fmt.Printf("Too Many Consecutive Missing:  %d (> %d)\n", result.Count(models.ExcludedConsecutive), *maxConsecutive)
	fmt.Printf("Unreadable:                    %d\n", result.Failed)
	fmt.Printf("Duration:                      %v\n", result.Duration)

	if !*persist {
		fmt.Println("Verdicts were not stored; rerun with --persist to query them through /api/verdicts")
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
