package gapfill

import (
	"errors"
	"math"
	"strings"
	"testing"

	"amy-weather/internal/models"
)

const tolerance = 1e-9

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func setRange(values []float64, start, length int, v float64) {
	for i := start; i < start+length; i++ {
		values[i] = v
	}
}

func assertClose(t *testing.T, got []float64, start, length int, want float64) {
	t.Helper()
	for i := start; i < start+length; i++ {
		if math.Abs(got[i]-want) > tolerance {
			t.Errorf("row %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestFill(t *testing.T) {
	cfg := Config{MaxInterpolate: 6, MaxImpute: 48}

	tests := []struct {
		name        string
		values      func() []float64
		cfg         Config
		wantErr     error
		checkValues func(*testing.T, []float64, Report)
	}{
		{
			name:   "complete series is unchanged",
			values: func() []float64 { return constant(1000, 5) },
			cfg:    cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				assertClose(t, out, 0, 1000, 5)
				if r != (Report{}) {
					t.Errorf("report = %+v, want zero", r)
				}
			},
		},
		{
			name: "short interior run is interpolated",
			values: func() []float64 {
				v := constant(1000, 0)
				v[99] = 10
				v[103] = 14
				setRange(v, 100, 3, models.Missing)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				for i, want := range []float64{11, 12, 13} {
					if math.Abs(out[100+i]-want) > tolerance {
						t.Errorf("row %d = %v, want %v", 100+i, out[100+i], want)
					}
				}
				if r.Interpolated != 3 || r.Imputed != 0 || r.Runs != 1 {
					t.Errorf("report = %+v, want 3 interpolated in 1 run", r)
				}
			},
		},
		{
			name: "medium run takes the mean of both references",
			values: func() []float64 {
				v := constant(2000, 1)
				setRange(v, 500-ReferenceOffset, 10, 2)
				setRange(v, 500+ReferenceOffset, 10, 4)
				setRange(v, 500, 10, models.Missing)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				assertClose(t, out, 500, 10, 3)
				if r.Imputed != 10 || r.Interpolated != 0 {
					t.Errorf("report = %+v, want 10 imputed", r)
				}
			},
		},
		{
			name: "one-sided reference near the start of the year",
			values: func() []float64 {
				v := constant(2000, 1)
				setRange(v, 10+ReferenceOffset, 10, 7)
				setRange(v, 10, 10, models.Missing)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				assertClose(t, out, 10, 10, 7)
			},
		},
		{
			name: "short run at the boundary is escalated to imputation",
			values: func() []float64 {
				v := constant(1000, 1)
				setRange(v, ReferenceOffset, 2, 9)
				setRange(v, 0, 2, models.Missing)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				assertClose(t, out, 0, 2, 9)
				if r.Imputed != 2 || r.Interpolated != 0 {
					t.Errorf("report = %+v, want 2 imputed", r)
				}
			},
		},
		{
			name: "short run at the end is escalated to imputation",
			values: func() []float64 {
				v := constant(1000, 1)
				setRange(v, 1000-ReferenceOffset-3, 3, 6)
				setRange(v, 997, 3, models.Missing)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				assertClose(t, out, 997, 3, 6)
			},
		},
		{
			name: "run longer than the impute limit is unfillable",
			values: func() []float64 {
				v := constant(2000, 1)
				setRange(v, 800, 49, models.Missing)
				return v
			},
			cfg:     cfg,
			wantErr: models.ErrUnfillable,
		},
		{
			name: "run without any reference is unfillable",
			values: func() []float64 {
				v := constant(400, 1)
				setRange(v, 100, 10, models.Missing)
				return v
			},
			cfg:     cfg,
			wantErr: models.ErrUnfillable,
		},
		{
			name: "later run uses values filled by an earlier run",
			values: func() []float64 {
				v := constant(2000, 1)
				setRange(v, 500, 10, models.Missing)
				setRange(v, 500+ReferenceOffset, 10, models.Missing)
				setRange(v, 500+2*ReferenceOffset, 10, 5)
				return v
			},
			cfg: cfg,
			checkValues: func(t *testing.T, out []float64, r Report) {
				// the first run only has its backward reference
				assertClose(t, out, 500, 10, 1)
				// the second sees the first run's filled values behind it
				assertClose(t, out, 500+ReferenceOffset, 10, 3)
				if r.Runs != 2 || r.Imputed != 20 {
					t.Errorf("report = %+v, want 20 imputed in 2 runs", r)
				}
			},
		},
		{
			name:    "interpolate limit above impute limit is rejected",
			values:  func() []float64 { return constant(10, 1) },
			cfg:     Config{MaxInterpolate: 7, MaxImpute: 6},
			wantErr: ErrInvalidFillConfig,
		},
		{
			name:    "negative interpolate limit is rejected",
			values:  func() []float64 { return constant(10, 1) },
			cfg:     Config{MaxInterpolate: -1, MaxImpute: 6},
			wantErr: ErrInvalidFillConfig,
		},
		{
			name:    "impute limit reaching the reference offset is rejected",
			values:  func() []float64 { return constant(10, 1) },
			cfg:     Config{MaxInterpolate: 6, MaxImpute: ReferenceOffset},
			wantErr: ErrInvalidFillConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report, err := Fill(tt.values(), tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fill() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fill() unexpected error = %v", err)
			}
			for i, v := range out {
				if models.IsMissing(v) {
					t.Fatalf("row %d still missing after fill", i)
				}
			}
			if tt.checkValues != nil {
				tt.checkValues(t, out, report)
			}
		})
	}
}

func TestFill_DoesNotMutateInput(t *testing.T) {
	in := constant(1000, 2)
	setRange(in, 400, 4, models.Missing)

	if _, _, err := Fill(in, DefaultConfig()); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	for i := 400; i < 404; i++ {
		if !models.IsMissing(in[i]) {
			t.Errorf("input row %d was modified to %v", i, in[i])
		}
	}
}

func TestFill_Idempotent(t *testing.T) {
	in := make([]float64, 3000)
	for i := range in {
		in[i] = math.Sin(float64(i) / 24)
	}
	setRange(in, 50, 3, models.Missing)
	setRange(in, 900, 20, models.Missing)

	once, _, err := Fill(in, DefaultConfig())
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	twice, report, err := Fill(once, DefaultConfig())
	if err != nil {
		t.Fatalf("second Fill() error = %v", err)
	}
	if report != (Report{}) {
		t.Errorf("second report = %+v, want zero", report)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("row %d changed on second fill: %v -> %v", i, once[i], twice[i])
		}
	}
}

func TestFill_InterpolationStaysBetweenBounds(t *testing.T) {
	for length := 1; length <= DefaultMaxInterpolate; length++ {
		in := constant(100, 0)
		lo, hi := -3.5, 12.25
		in[19] = lo
		in[20+length] = hi
		setRange(in, 20, length, models.Missing)

		out, report, err := Fill(in, DefaultConfig())
		if err != nil {
			t.Fatalf("length %d: Fill() error = %v", length, err)
		}
		if report.Interpolated != length {
			t.Errorf("length %d: Interpolated = %d", length, report.Interpolated)
		}
		for i := 20; i < 20+length; i++ {
			if out[i] <= lo || out[i] >= hi {
				t.Errorf("length %d: row %d = %v outside (%v, %v)", length, i, out[i], lo, hi)
			}
			want := lo + (hi-lo)*float64(i-19)/float64(length+1)
			if math.Abs(out[i]-want) > tolerance {
				t.Errorf("length %d: row %d = %v, want %v", length, i, out[i], want)
			}
		}
	}
}

func TestFill_RunError(t *testing.T) {
	in := constant(2000, 1)
	setRange(in, 700, 60, models.Missing)

	_, _, err := Fill(in, DefaultConfig())
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Fill() error = %v, want *RunError", err)
	}
	if runErr.Start != 700 || runErr.Length != 60 {
		t.Errorf("RunError = %+v, want start 700 length 60", runErr)
	}
}

func TestFillSeries(t *testing.T) {
	s := models.NewStationYearSeries("725300", 2019, models.VarT2, models.VarPSFC)
	for _, v := range s.Variables() {
		col := s.Values[v]
		for i := range col {
			col[i] = 280
		}
	}
	setRange(s.Values[models.VarT2], 100, 2, models.Missing)
	setRange(s.Values[models.VarPSFC], 4000, 12, models.Missing)

	out, report, err := FillSeries(s, DefaultConfig())
	if err != nil {
		t.Fatalf("FillSeries() error = %v", err)
	}
	if report.Interpolated != 2 || report.Imputed != 12 {
		t.Errorf("report = %+v, want 2 interpolated and 12 imputed", report)
	}
	if !models.IsMissing(s.Values[models.VarT2][100]) {
		t.Error("FillSeries modified its input")
	}
	if out.Len() != s.Len() {
		t.Errorf("Len() = %d, want %d", out.Len(), s.Len())
	}

	setRange(s.Values[models.VarPSFC], 6000, 100, models.Missing)
	_, _, err = FillSeries(s, DefaultConfig())
	if !errors.Is(err, models.ErrUnfillable) {
		t.Fatalf("FillSeries() error = %v, want ErrUnfillable", err)
	}
	if !strings.Contains(err.Error(), string(models.VarPSFC)) {
		t.Errorf("error %q does not name the variable", err)
	}
}
