package config

import (
	"errors"
	"testing"
	"time"

	"amy-weather/internal/gapfill"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Pipeline.Thresholds.MaxMissingRows != 700 || cfg.Pipeline.Thresholds.MaxConsecutiveMissingRows != 48 {
		t.Errorf("thresholds = %+v, want 700/48", cfg.Pipeline.Thresholds)
	}
	if cfg.Pipeline.Fill.MaxInterpolate != 6 || cfg.Pipeline.Fill.MaxImpute != 48 {
		t.Errorf("fill = %+v, want 6/48", cfg.Pipeline.Fill)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name        string
		env         map[string]string
		wantLoadErr bool
		wantErr     bool
		checkValues func(*testing.T, *Config)
	}{
		{
			name: "overrides",
			env: map[string]string{
				"AMY_SOURCE":           "grid",
				"AMY_WORKERS":          "8",
				"AMY_MAX_MISSING_ROWS": "500",
				"DB_PORT":              "6543",
				"LOG_LEVEL":            "debug",
			},
			checkValues: func(t *testing.T, c *Config) {
				if c.Pipeline.Source != "grid" || c.Pipeline.Workers != 8 {
					t.Errorf("pipeline = %+v", c.Pipeline)
				}
				if c.Pipeline.Thresholds.MaxMissingRows != 500 {
					t.Errorf("MaxMissingRows = %d, want 500", c.Pipeline.Thresholds.MaxMissingRows)
				}
				if c.Database.Port != 6543 || c.Logging.Level != "debug" {
					t.Errorf("port/level = %d/%s", c.Database.Port, c.Logging.Level)
				}
			},
		},
		{name: "unparseable integer", env: map[string]string{"AMY_WORKERS": "many"}, wantLoadErr: true},
		{name: "unparseable duration", env: map[string]string{"SERVER_READ_TIMEOUT": "soon"}, wantLoadErr: true},
		{name: "unknown source", env: map[string]string{"AMY_SOURCE": "satellite"}, wantErr: true},
		{name: "zero workers", env: map[string]string{"AMY_WORKERS": "0"}, wantErr: true},
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "chatty"}, wantErr: true},
		{name: "idle above open connections", env: map[string]string{"DB_MAX_IDLE_CONNS": "50"}, wantErr: true},
		{name: "negative threshold", env: map[string]string{"AMY_MAX_CONSECUTIVE_MISSING_ROWS": "-1"}, wantErr: true},
		{name: "analysis schedule", env: map[string]string{"AMY_ANALYZE_SCHEDULE": "@daily"},
			checkValues: func(t *testing.T, c *Config) {
				if c.Analysis.Schedule != "@daily" || c.Analysis.BatchSize != 500 {
					t.Errorf("analysis = %+v", c.Analysis)
				}
			},
		},
		{name: "zero breaker failures", env: map[string]string{"AMY_STORE_BREAKER_FAILURES": "0"}, wantErr: true},
		{name: "zero analysis batch", env: map[string]string{"AMY_ANALYZE_BATCH_SIZE": "0"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			if tt.wantLoadErr {
				if err == nil {
					t.Fatal("LoadConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			err = cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.checkValues != nil {
				tt.checkValues(t, cfg)
			}
		})
	}
}

func TestValidate_FillWindow(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AMY_MAX_INTERPOLATE", "10")
	t.Setenv("AMY_MAX_IMPUTE", "336")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() accepted an impute window reaching the reference offset")
	}
	cfg.Pipeline.Fill = gapfill.Config{MaxInterpolate: 10, MaxImpute: 8}
	if err := cfg.Validate(); !errors.Is(err, gapfill.ErrInvalidFillConfig) {
		t.Errorf("Validate() error = %v, want ErrInvalidFillConfig", err)
	}
}
