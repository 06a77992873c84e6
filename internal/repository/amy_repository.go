package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"amy-weather/internal/models"
	"amy-weather/pkg/database"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

// AMYRepository provides data access for stations, completeness verdicts and
// pipeline outcomes
type AMYRepository interface {
	// Station operations
	UpsertStation(ctx context.Context, station *models.Station) error
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
	ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error)
	Lookup(ctx context.Context, stationID string) (models.StationLocation, error)

	// Verdict operations
	UpsertVerdicts(ctx context.Context, verdicts []models.Verdict) error
	GetVerdicts(ctx context.Context, filter VerdictFilter) ([]*models.Verdict, int, error)

	// Outcome operations
	CreateOutcome(ctx context.Context, outcome *models.TaskOutcome) error
	GetOutcomes(ctx context.Context, filter OutcomeFilter) ([]*models.TaskOutcome, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// VerdictFilter defines filters for querying verdicts
type VerdictFilter struct {
	StationID      *string
	Year           *int
	Classification *models.Classification
	Limit          int
	Offset         int
}

// OutcomeFilter defines filters for querying task outcomes
type OutcomeFilter struct {
	RunID     *string
	StationID *string
	Year      *int
	Status    *models.TaskStatus
	Limit     int
	Offset    int
}

// whereBuilder accumulates AND conditions with numbered placeholders
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(column string, value interface{}) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the suffix
func (w *whereBuilder) page(limit, offset int) string {
	w.args = append(w.args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func (f VerdictFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.StationID != nil {
		w.add("station_id", *f.StationID)
	}
	if f.Year != nil {
		w.add("year", *f.Year)
	}
	if f.Classification != nil {
		w.add("classification", string(*f.Classification))
	}
	return w
}

func (f OutcomeFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.RunID != nil {
		w.add("run_id", *f.RunID)
	}
	if f.StationID != nil {
		w.add("station_id", *f.StationID)
	}
	if f.Year != nil {
		w.add("year", *f.Year)
	}
	if f.Status != nil {
		w.add("status", string(*f.Status))
	}
	return w
}

// amyRepository implements AMYRepository
type amyRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAMYRepository creates a new repository
func NewAMYRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) AMYRepository {
	return &amyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertStation creates or updates a station's reference data
func (r *amyRepository) UpsertStation(ctx context.Context, station *models.Station) error {
	query := `
		INSERT INTO stations (station_id, name, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if station.CreatedAt.IsZero() {
		station.CreatedAt = now
	}
	station.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, "upsert_station", query,
		station.StationID,
		station.Name,
		station.Latitude,
		station.Longitude,
		station.CreatedAt,
		station.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_STATION] Station stored", logging.Fields{
		"station_id": station.StationID,
	})

	return nil
}

// GetStation retrieves a station by ID
func (r *amyRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	query := `
		SELECT station_id, name, latitude, longitude, created_at, updated_at
		FROM stations
		WHERE station_id = $1
	`

	var station models.Station
	err := r.db.GetContext(ctx, "get_station", &station, query, stationID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "station",
			ID:       stationID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}

	return &station, nil
}

// ListStations retrieves stations with pagination
func (r *amyRepository) ListStations(ctx context.Context, limit, offset int) ([]*models.Station, error) {
	query := `
		SELECT station_id, name, latitude, longitude, created_at, updated_at
		FROM stations
		ORDER BY station_id
		LIMIT $1 OFFSET $2
	`

	var stations []*models.Station
	err := r.db.SelectContext(ctx, "list_stations", &stations, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	return stations, nil
}

// Lookup resolves a station's coordinates for the pipeline
func (r *amyRepository) Lookup(ctx context.Context, stationID string) (models.StationLocation, error) {
	station, err := r.GetStation(ctx, stationID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return models.StationLocation{}, fmt.Errorf("%w: %s", models.ErrUnknownStation, stationID)
		}
		return models.StationLocation{}, err
	}
	return station.Location(), nil
}

// UpsertVerdicts stores verdicts in a single transaction, replacing earlier
// verdicts for the same station-year
func (r *amyRepository) UpsertVerdicts(ctx context.Context, verdicts []models.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Verdict batch stored", logging.Fields{
			"count":       len(verdicts),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	return r.db.WithTransaction(ctx, "upsert_verdicts", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO completeness_verdicts (
				station_id, year, total_missing, max_consecutive_missing,
				classification, source_file, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (station_id, year) DO UPDATE SET
				total_missing = EXCLUDED.total_missing,
				max_consecutive_missing = EXCLUDED.max_consecutive_missing,
				classification = EXCLUDED.classification,
				source_file = EXCLUDED.source_file,
				created_at = EXCLUDED.created_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, v := range verdicts {
			createdAt := v.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			_, err := stmt.ExecContext(ctx,
				v.StationID,
				v.Year,
				v.TotalMissing,
				v.MaxConsecutiveMissing,
				string(v.Classification),
				v.SourceFile,
				createdAt,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert verdict %s/%d: %w", v.StationID, v.Year, err)
			}
		}
		return nil
	})
}

// GetVerdicts retrieves verdicts with filtering and pagination
func (r *amyRepository) GetVerdicts(ctx context.Context, filter VerdictFilter) ([]*models.Verdict, int, error) {
	w := filter.where()
	base := `
		SELECT station_id, year, total_missing, max_consecutive_missing,
		       classification, source_file, created_at
		FROM completeness_verdicts` + w.clause()

	var totalCount int
	err := r.db.GetContext(ctx, "count_verdicts", &totalCount, "SELECT COUNT(*) FROM ("+base+") AS count_query", w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count verdicts: %w", err)
	}

	query := base + " ORDER BY year DESC, station_id" + w.page(filter.Limit, filter.Offset)

	var verdicts []*models.Verdict
	if err := r.db.SelectContext(ctx, "get_verdicts", &verdicts, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get verdicts: %w", err)
	}

	return verdicts, totalCount, nil
}

// CreateOutcome records a finished task
func (r *amyRepository) CreateOutcome(ctx context.Context, outcome *models.TaskOutcome) error {
	query := `
		INSERT INTO task_outcomes (
			run_id, station_id, year, source, status, stage, reason,
			classification, total_missing, max_consecutive_missing,
			interpolated, imputed, output_path, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}

	timer := time.Now()
	err := r.db.DB().QueryRowContext(ctx, query,
		outcome.RunID,
		outcome.StationID,
		outcome.Year,
		outcome.Source,
		string(outcome.Status),
		string(outcome.Stage),
		outcome.Reason,
		string(outcome.Classification),
		outcome.TotalMissing,
		outcome.MaxConsecutiveMissing,
		outcome.Interpolated,
		outcome.Imputed,
		outcome.OutputPath,
		outcome.DurationMS,
		outcome.CreatedAt,
	).Scan(&outcome.ID)
	r.metrics.DBQueryDuration.WithLabelValues("insert_outcome").Observe(time.Since(timer).Seconds())

	if err != nil {
		r.metrics.RecordDBError("insert_error")
		return fmt.Errorf("failed to create outcome: %w", err)
	}

	return nil
}

// GetOutcomes retrieves task outcomes with filtering and pagination
func (r *amyRepository) GetOutcomes(ctx context.Context, filter OutcomeFilter) ([]*models.TaskOutcome, int, error) {
	w := filter.where()
	base := `
		SELECT id, run_id, station_id, year, source, status, stage, reason,
		       classification, total_missing, max_consecutive_missing,
		       interpolated, imputed, output_path, duration_ms, created_at
		FROM task_outcomes` + w.clause()

	var totalCount int
	err := r.db.GetContext(ctx, "count_outcomes", &totalCount, "SELECT COUNT(*) FROM ("+base+") AS count_query", w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count outcomes: %w", err)
	}

	query := base + " ORDER BY created_at DESC, id DESC" + w.page(filter.Limit, filter.Offset)

	var outcomes []*models.TaskOutcome
	if err := r.db.SelectContext(ctx, "get_outcomes", &outcomes, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get outcomes: %w", err)
	}

	return outcomes, totalCount, nil
}

// HealthCheck checks database connectivity
func (r *amyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
