// Package config loads service and pipeline settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"amy-weather/internal/completeness"
	"amy-weather/internal/gapfill"
	"amy-weather/internal/grid"
	"amy-weather/pkg/database"
)

var validate = validator.New()

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Pipeline PipelineConfig
	Analysis AnalysisConfig
	Paths    PathsConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `validate:"required"`
	Port            int           `validate:"gt=0,lte=65535"`
	User            string        `validate:"required"`
	Password        string
	Database        string        `validate:"required"`
	SSLMode         string        `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `validate:"gt=0"`
	MaxIdleConns    int           `validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
	ConnMaxIdleTime time.Duration `validate:"gte=0"`
}

// PostgresConfig converts the settings for pkg/database.
func (c DatabaseConfig) PostgresConfig() *database.Config {
	return &database.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int           `validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration `validate:"gt=0"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// PipelineConfig holds the thresholds and worker settings of a generation run.
type PipelineConfig struct {
	Source        string  `validate:"oneof=isd grid"`
	Workers       int     `validate:"gte=1,lte=256"`
	GridTolerance float64 `validate:"gt=0"`
	Thresholds    completeness.Thresholds
	Fill          gapfill.Config
	Store         StoreConfig
}

// AnalysisConfig schedules the ISD-Lite completeness screen in the API server.
// An empty Schedule disables it.
type AnalysisConfig struct {
	Schedule  string
	BatchSize int `validate:"gte=1"`
}

// StoreConfig guards outcome persistence with a circuit breaker.
type StoreConfig struct {
	BreakerFailures uint32        `validate:"gte=1"`
	BreakerTimeout  time.Duration `validate:"gt=0"`
}

// PathsConfig locates inputs and outputs on disk.
type PathsConfig struct {
	TemplateDir  string `validate:"required"`
	ISDDir       string
	GridDir      string
	OutputDir    string `validate:"required"`
	CacheDir     string
	StationTable string
}

// LoadConfig reads the environment, after loading .env when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	l := loader{errs: &errs}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getenvDefault("DB_HOST", "localhost"),
			Port:            l.int("DB_PORT", 5432),
			User:            getenvDefault("DB_USER", "amy"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getenvDefault("DB_NAME", "amy_weather"),
			SSLMode:         getenvDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    l.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    l.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: l.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: l.duration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Server: ServerConfig{
			Host:         getenvDefault("SERVER_HOST", "0.0.0.0"),
			Port:         l.int("SERVER_PORT", 8080),
			ReadTimeout:  l.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: l.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  l.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level: getenvDefault("LOG_LEVEL", "info"),
		},
		Pipeline: PipelineConfig{
			Source:        getenvDefault("AMY_SOURCE", "isd"),
			Workers:       l.int("AMY_WORKERS", 4),
			GridTolerance: l.float("AMY_GRID_TOLERANCE", grid.DefaultTolerance),
			Thresholds: completeness.Thresholds{
				MaxMissingRows:            l.int("AMY_MAX_MISSING_ROWS", completeness.DefaultMaxMissingRows),
				MaxConsecutiveMissingRows: l.int("AMY_MAX_CONSECUTIVE_MISSING_ROWS", completeness.DefaultMaxConsecutiveMissingRows),
			},
			Fill: gapfill.Config{
				MaxInterpolate: l.int("AMY_MAX_INTERPOLATE", gapfill.DefaultMaxInterpolate),
				MaxImpute:      l.int("AMY_MAX_IMPUTE", gapfill.DefaultMaxImpute),
			},
			Store: StoreConfig{
				BreakerFailures: uint32(l.int("AMY_STORE_BREAKER_FAILURES", 5)),
				BreakerTimeout:  l.duration("AMY_STORE_BREAKER_TIMEOUT", 30*time.Second),
			},
		},
		Analysis: AnalysisConfig{
			Schedule:  os.Getenv("AMY_ANALYZE_SCHEDULE"),
			BatchSize: l.int("AMY_ANALYZE_BATCH_SIZE", 500),
		},
		Paths: PathsConfig{
			TemplateDir:  getenvDefault("AMY_TEMPLATE_DIR", "data/tmy"),
			ISDDir:       getenvDefault("AMY_ISD_DIR", "data/isd"),
			GridDir:      getenvDefault("AMY_GRID_DIR", "data/wrf"),
			OutputDir:    getenvDefault("AMY_OUTPUT_DIR", "outputs"),
			CacheDir:     os.Getenv("AMY_CACHE_DIR"),
			StationTable: os.Getenv("AMY_STATION_TABLE"),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field pipeline rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Pipeline.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Fill.Validate(); err != nil {
		return err
	}
	if c.Analysis.Schedule != "" && c.Paths.ISDDir == "" {
		return errors.New("AMY_ISD_DIR is required when AMY_ANALYZE_SCHEDULE is set")
	}
	switch c.Pipeline.Source {
	case "isd":
		if c.Paths.ISDDir == "" {
			return errors.New("AMY_ISD_DIR is required for the isd source")
		}
	case "grid":
		if c.Paths.GridDir == "" {
			return errors.New("AMY_GRID_DIR is required for the grid source")
		}
	}
	return nil
}

type loader struct {
	errs *[]error
}

func (l loader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (l loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (l loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
