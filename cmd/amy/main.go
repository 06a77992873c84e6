package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amy-weather/internal/cache"
	"amy-weather/internal/config"
	"amy-weather/internal/epw"
	"amy-weather/internal/grid"
	"amy-weather/internal/isdlite"
	"amy-weather/internal/models"
	"amy-weather/internal/repository"
	"amy-weather/internal/services"
	"amy-weather/internal/stations"
	"amy-weather/internal/years"
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

	parser := argparse.NewParser("amy", "Generate Actual Meteorological Year EPW files from station observations or gridded model output")

	yearSpec := parser.String("", "years", &argparse.Options{
		Required: true,
		Help:     "Years to generate, e.g. '2010-2015, 2018'"})
	stationSpec := parser.String("", "wmo-indices", &argparse.Options{
		Required: true,
		Help:     "Comma-separated WMO station indices, e.g. '725300,725310'"})
	source := parser.Selector("", "source", []string{"isd", "grid"}, &argparse.Options{
		Default: cfg.Pipeline.Source,
		Help:    "Observation source: ISD-Lite station files or WRF NetCDF grids"})
	maxMissing := parser.Int("", "max-missing-amy-rows", &argparse.Options{
		Default: cfg.Pipeline.Thresholds.MaxMissingRows,
		Help:    "Station-years with more missing rows are excluded"})
	maxConsecutive := parser.Int("", "max-consecutive-missing-rows", &argparse.Options{
		Default: cfg.Pipeline.Thresholds.MaxConsecutiveMissingRows,
		Help:    "Station-years with a longer run of missing rows are excluded"})
	maxInterpolate := parser.Int("", "max-records-to-interpolate", &argparse.Options{
		Default: cfg.Pipeline.Fill.MaxInterpolate,
		Help:    "Longest gap filled by linear interpolation"})
	maxImpute := parser.Int("", "max-records-to-impute", &argparse.Options{
		Default: cfg.Pipeline.Fill.MaxImpute,
		Help:    "Longest gap filled from the values two weeks before and after"})
	workers := parser.Int("w", "workers", &argparse.Options{
		Default: cfg.Pipeline.Workers,
		Help:    "Number of station-years processed concurrently"})
	tolerance := parser.Float("", "grid-tolerance", &argparse.Options{
		Default: cfg.Pipeline.GridTolerance,
		Help:    "Largest accepted distance in degrees between a station and its grid cell"})
	templateDir := parser.String("", "template-dir", &argparse.Options{
		Default: cfg.Paths.TemplateDir,
		Help:    "Directory of typical-year EPW templates"})
	isdDir := parser.String("", "isd-dir", &argparse.Options{
		Default: cfg.Paths.ISDDir,
		Help:    "Directory of ISD-Lite files"})
	gridDir := parser.String("", "grid-dir", &argparse.Options{
		Default: cfg.Paths.GridDir,
		Help:    "Directory of WRF NetCDF files"})
	outputDir := parser.String("o", "output-dir", &argparse.Options{
		Default: cfg.Paths.OutputDir,
		Help:    "Directory the AMY files are written to"})
	cacheDir := parser.String("", "cache-dir", &argparse.Options{
		Default: cfg.Paths.CacheDir,
		Help:    "Directory for cached grid extractions (disabled when empty)"})
	stationTable := parser.String("", "station-table", &argparse.Options{
		Default: cfg.Paths.StationTable,
		Help:    "Station coordinates CSV; the database stations table is used when empty"})
	persist := parser.Flag("", "persist", &argparse.Options{
		Help: "Store task outcomes in PostgreSQL"})
	metricsAddr := parser.String("", "metrics-addr", &argparse.Options{
		Default: "",
		Help:    "Serve Prometheus metrics on this address while running, e.g. ':9090'"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	cfg.Pipeline.Source = *source
	cfg.Pipeline.Workers = *workers
	cfg.Pipeline.GridTolerance = *tolerance
	cfg.Pipeline.Thresholds.MaxMissingRows = *maxMissing
	cfg.Pipeline.Thresholds.MaxConsecutiveMissingRows = *maxConsecutive
	cfg.Pipeline.Fill.MaxInterpolate = *maxInterpolate
	cfg.Pipeline.Fill.MaxImpute = *maxImpute
	cfg.Paths.TemplateDir = *templateDir
	cfg.Paths.ISDDir = *isdDir
	cfg.Paths.GridDir = *gridDir
	cfg.Paths.OutputDir = *outputDir
	cfg.Paths.CacheDir = *cacheDir
	cfg.Paths.StationTable = *stationTable

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	yearList, err := years.Parse(*yearSpec, clock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --years: %v\n", err)
		os.Exit(2)
	}
	stationIDs, err := years.ParseStationIDs(*stationSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --wmo-indices: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("amy", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("amy_weather", prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error(ctx, "[METRICS_ERROR] Metrics server failed", logging.Fields{"address": *metricsAddr}, err)
			}
		}()
	}

	var repo repository.AMYRepository
	if *persist || cfg.Paths.StationTable == "" {
		db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()
		repo = repository.NewAMYRepository(db, logger, metricsCollector)
	}

	lookup, err := stationLookup(cfg.Paths.StationTable, repo)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load station table", logging.Fields{
			"station_table": cfg.Paths.StationTable,
		}, err)
	}

	src, err := observationSource(cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to prepare observation source", logging.Fields{
			"source": cfg.Pipeline.Source,
		}, err)
	}

	deps := services.PipelineDeps{
		Source:    src,
		Stations:  lookup,
		Templates: epw.DirProvider{Dir: cfg.Paths.TemplateDir},
		Writer:    epw.FileWriter{Dir: cfg.Paths.OutputDir},
		Clock:     clock,
	}
	if *persist {
		deps.Store = services.NewBreakerStore(repo, cfg.Pipeline.Store.BreakerFailures, cfg.Pipeline.Store.BreakerTimeout, logger)
	}

	pipeline, err := services.NewPipelineService(deps, services.PipelineConfig{
		Thresholds: cfg.Pipeline.Thresholds,
		Fill:       cfg.Pipeline.Fill,
		Workers:    cfg.Pipeline.Workers,
		OutputDir:  cfg.Paths.OutputDir,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to create pipeline", logging.Fields{}, err)
	}

	result, err := pipeline.Run(ctx, services.Tasks(stationIDs, yearList))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(ctx, "[PIPELINE_ERROR] Run failed", logging.Fields{}, err)
	}

	printSummary(result)
	if err != nil {
		os.Exit(130)
	}
}

// stationLookup prefers the CSV table and falls back to the database.
func stationLookup(tablePath string, repo repository.AMYRepository) (stations.Lookup, error) {
	if tablePath != "" {
		table, err := stations.LoadTableFile(tablePath)
		if err != nil {
			return nil, err
		}
		return stations.NewCache(table), nil
	}
	return stations.NewCache(repo), nil
}

func observationSource(cfg *config.Config, logger *logging.StructuredLogger, m *metrics.Collector) (services.Source, error) {
	if cfg.Pipeline.Source == "isd" {
		return isdlite.NewSource(cfg.Paths.ISDDir), nil
	}

	provider := grid.NewDirSource(cfg.Paths.GridDir, func(path string) (*grid.Snapshot, error) {
		return grid.OpenNetCDF(path)
	})
	if cfg.Paths.CacheDir == "" {
		return grid.NewStationSource(provider, cfg.Pipeline.GridTolerance, nil), nil
	}
	fc, err := cache.NewFileCache(cfg.Paths.CacheDir, logger, m)
	if err != nil {
		return nil, err
	}
	return grid.NewStationSource(provider, cfg.Pipeline.GridTolerance, fc), nil
}

func printSummary(result *services.RunResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("AMY GENERATION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:      %s\n", result.RunID)
	fmt.Printf("Tasks:       %d\n", len(result.Outcomes))
	fmt.Printf("Written:     %d\n", result.Count(models.StatusDone))
	fmt.Printf("Excluded:    %d\n", result.Count(models.StatusExcluded))
	fmt.Printf("Unfillable:  %d\n", result.Count(models.StatusUnfillable))
	fmt.Printf("Failed:      %d\n", result.Count(models.StatusFailed))
	fmt.Printf("Duration:    %v\n", result.Duration)

	shown := 0
	for _, o := range result.Outcomes {
		if o.Status == models.StatusDone {
			continue
		}
		if shown == 0 {
			fmt.Println("\nNot written:")
		}
		if shown < 20 {
			fmt.Printf("  - %s %d: %s (%s)\n", o.StationID, o.Year, o.Status, o.Reason)
		}
		shown++
	}
	if shown > 20 {
		fmt.Printf("  ... and %d more\n", shown-20)
	}
}
