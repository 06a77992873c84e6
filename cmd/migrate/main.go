package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"amy-weather/internal/config"
	"amy-weather/internal/repository"
	"amy-weather/internal/services"
	"amy-weather/internal/stations"
	"amy-weather/pkg/database"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	dir := flag.String("dir", "migrations", "Directory containing *.up.sql and *.down.sql files")
	stationTable := flag.String("stations", "", "Station CSV table to import after migrating up (defaults to AMY_STATION_TABLE)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	files, err := database.MigrationFiles(*dir, *direction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find migrations: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("amy-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("amy_migrate", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	ctx := context.Background()
	for _, f := range files {
		fmt.Printf("Running migration: %s\n", f)
	}
	if err := database.ApplyMigrations(ctx, db.DB(), files); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")

	path := *stationTable
	if path == "" {
		path = cfg.Paths.StationTable
	}
	if *direction != "up" || path == "" {
		return
	}

	table, err := stations.LoadTableFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load station table: %v\n", err)
		os.Exit(1)
	}

	repo := repository.NewAMYRepository(db, logger, metricsCollector)
	n, err := services.NewQueryService(repo, logger, metricsCollector).ImportStations(ctx, table.Stations())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to import stations: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d stations from %s\n", n, path)
}
