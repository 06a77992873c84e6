package inject

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"amy-weather/internal/epw"
	"amy-weather/internal/epw/epwtest"
	"amy-weather/internal/models"
)

func TestWind(t *testing.T) {
	tests := []struct {
		name      string
		u, v      float64
		wantSpeed float64
		wantDir   float64
	}{
		{name: "3-4-5 triangle", u: 3, v: 4, wantSpeed: 5, wantDir: math.Atan2(4, 3) * 180 / math.Pi},
		{name: "positive u", u: 2, v: 0, wantSpeed: 2, wantDir: 0},
		{name: "negative u", u: -1, v: 0, wantSpeed: 1, wantDir: 180},
		{name: "negative v normalised", u: 0, v: -1, wantSpeed: 1, wantDir: 270},
		{name: "calm", u: 0, v: 0, wantSpeed: 0, wantDir: 0},
		{name: "tiny negative v wraps to zero", u: 1, v: -1e-16, wantSpeed: 1, wantDir: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindSpeed(tt.u, tt.v); math.Abs(got-tt.wantSpeed) > 1e-12 {
				t.Errorf("WindSpeed() = %v, want %v", got, tt.wantSpeed)
			}
			got := WindDirection(tt.u, tt.v)
			if math.Abs(got-tt.wantDir) > 1e-9 {
				t.Errorf("WindDirection() = %v, want %v", got, tt.wantDir)
			}
			if got < 0 || got >= 360 {
				t.Errorf("WindDirection() = %v outside [0, 360)", got)
			}
		})
	}
}

// TestGridDryBulb pins the grid dry-bulb conversion. A change here changes every
// grid-derived AMY file and must be deliberate.
func TestGridDryBulb(t *testing.T) {
	for _, tt := range []struct{ in, want float64 }{
		{0, 273.15},
		{20, 293.15},
		{-40, 233.15},
	} {
		if got := GridDryBulb(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("GridDryBulb(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSpecificHumidityRH(t *testing.T) {
	got := SpecificHumidityRH(0.01, 101325, 300)
	if want := 0.46125975258821383; math.Abs(got-want) > 1e-12 {
		t.Errorf("SpecificHumidityRH() = %v, want %v", got, want)
	}
}

func TestDewPointRH(t *testing.T) {
	if got := DewPointRH(15, 15); math.Abs(got-100) > 1e-9 {
		t.Errorf("DewPointRH(15, 15) = %v, want 100", got)
	}
	if got := DewPointRH(20, 10); math.Abs(got-52.54132558106588) > 1e-9 {
		t.Errorf("DewPointRH(20, 10) = %v, want 52.54", got)
	}
}

func TestRuleSets_Validate(t *testing.T) {
	for _, rs := range []RuleSet{GridRules(), StationRules()} {
		if err := rs.Validate(); err != nil {
			t.Errorf("%s.Validate() error = %v", rs.Name, err)
		}
	}

	identity := func(in []float64) float64 { return in[0] }
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"unnamed", []Rule{{Inputs: []models.Variable{models.VarT2}, Target: epw.DryBulbTemperature, Convert: identity}}},
		{"no inputs", []Rule{{Name: "a", Target: epw.DryBulbTemperature, Convert: identity}}},
		{"no converter", []Rule{{Name: "a", Inputs: []models.Variable{models.VarT2}, Target: epw.DryBulbTemperature}}},
		{"date field target", []Rule{{Name: "a", Inputs: []models.Variable{models.VarT2}, Target: epw.Hour, Convert: identity}}},
		{"out of range target", []Rule{{Name: "a", Inputs: []models.Variable{models.VarT2}, Target: epw.Field(epw.FieldCount), Convert: identity}}},
		{"duplicate target", []Rule{
			{Name: "a", Inputs: []models.Variable{models.VarT2}, Target: epw.DryBulbTemperature, Convert: identity},
			{Name: "b", Inputs: []models.Variable{models.VarQ2}, Target: epw.DryBulbTemperature, Convert: identity},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (RuleSet{Name: "test", Rules: tt.rules}).Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRuleSet_Inputs(t *testing.T) {
	got := GridRules().Inputs()
	want := []models.Variable{
		models.VarPSFC, models.VarRainC, models.VarRainSH, models.VarRainNC,
		models.VarT2, models.VarU10, models.VarV10, models.VarQ2,
	}
	if len(got) != len(want) {
		t.Fatalf("Inputs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Inputs()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// constantSeries builds an n-row series holding the given value for each variable.
func constantSeries(n int, values map[models.Variable]float64) *models.StationYearSeries {
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := &models.StationYearSeries{
		StationID: "725300",
		Year:      2019,
		Times:     make([]time.Time, n),
		Values:    make(map[models.Variable][]float64, len(values)),
	}
	for i := range s.Times {
		s.Times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	for v, x := range values {
		col := make([]float64, n)
		for i := range col {
			col[i] = x
		}
		s.Values[v] = col
	}
	return s
}

func gridValues() map[models.Variable]float64 {
	return map[models.Variable]float64{
		models.VarT2:     1.85,
		models.VarPSFC:   100000,
		models.VarQ2:     0.005,
		models.VarU10:    3,
		models.VarV10:    4,
		models.VarRainC:  0.1,
		models.VarRainSH: 0.2,
		models.VarRainNC: 0.3,
	}
}

func TestInject(t *testing.T) {
	tests := []struct {
		name        string
		template    *epw.File
		series      *models.StationYearSeries
		rules       RuleSet
		wantErr     error
		checkValues func(*testing.T, *epw.File)
	}{
		{
			name:     "grid rules overwrite only their fields",
			template: epwtest.Template(24),
			series:   constantSeries(24, gridValues()),
			rules:    GridRules(),
			checkValues: func(t *testing.T, f *epw.File) {
				for i, r := range f.Records {
					want := map[epw.Field]float64{
						epw.DryBulbTemperature:         275.0,
						epw.AtmosphericStationPressure: 100000,
						epw.WindSpeed:                  5,
						epw.WindDirection:              53,
						epw.LiquidPrecipitationDepth:   0.6,
						epw.RelativeHumidity:           0,
					}
					for field, w := range want {
						got, err := r.Float(field)
						if err != nil || math.Abs(got-w) > 1e-9 {
							t.Errorf("row %d %s = %q, want %v", i, field, r[field], w)
						}
					}
					if r[epw.Year] != "2019" {
						t.Errorf("row %d year = %q, want 2019", i, r[epw.Year])
					}
					if r[epw.DewPointTemperature] != "-6.1" || r[epw.HorizontalInfraredRadiation] != "250" || r[epw.TotalSkyCover] != "10" {
						t.Errorf("row %d passthrough fields changed: %v", i, r)
					}
				}
			},
		},
		{
			name:     "station rules",
			template: epwtest.Template(3),
			series: constantSeries(3, map[models.Variable]float64{
				models.VarAirTemperature:   20,
				models.VarDewPoint:         10,
				models.VarSeaLevelPressure: 1013.2,
				models.VarWindDirection:    270,
				models.VarWindSpeed:        3.6,
				models.VarSkyCover:         4,
			}),
			rules: StationRules(),
			checkValues: func(t *testing.T, f *epw.File) {
				r := f.Records[2]
				checks := map[epw.Field]string{
					epw.DryBulbTemperature:         "20.0",
					epw.DewPointTemperature:        "10.0",
					epw.RelativeHumidity:           "53",
					epw.AtmosphericStationPressure: "101320",
					epw.WindDirection:              "270",
					epw.WindSpeed:                  "3.6",
					epw.TotalSkyCover:              "10",
				}
				for field, want := range checks {
					if r[field] != want {
						t.Errorf("%s = %q, want %q", field, r[field], want)
					}
				}
			},
		},
		{
			name:     "length mismatch",
			template: epwtest.Template(24),
			series:   constantSeries(23, gridValues()),
			rules:    GridRules(),
			wantErr:  models.ErrLengthMismatch,
		},
		{
			name:     "missing input variable",
			template: epwtest.Template(24),
			series: func() *models.StationYearSeries {
				s := constantSeries(24, gridValues())
				delete(s.Values, models.VarRainSH)
				return s
			}(),
			rules:   GridRules(),
			wantErr: models.ErrMissingVariable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := epwtest.Text(tt.template.Len())
			got, err := Inject(tt.template, tt.series, tt.rules)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Inject() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Inject() unexpected error = %v", err)
			}
			if got.Len() != tt.template.Len() {
				t.Errorf("Len() = %d, want %d", got.Len(), tt.template.Len())
			}
			var sb strings.Builder
			if err := tt.template.Write(&sb); err != nil {
				t.Fatal(err)
			}
			if sb.String() != before {
				t.Error("Inject() modified the template")
			}
			if tt.checkValues != nil {
				tt.checkValues(t, got)
			}
		})
	}
}

func TestMatchTemplate(t *testing.T) {
	template := epwtest.Template(8760)

	leap := models.NewStationYearSeries("725300", 2020, models.VarT2)
	if got := MatchTemplate(leap, template); got.Len() != 8760 {
		t.Errorf("leap year Len() = %d, want 8760", got.Len())
	}

	common := models.NewStationYearSeries("725300", 2019, models.VarT2)
	if got := MatchTemplate(common, template); got != common {
		t.Error("non-leap series should be returned unchanged")
	}
}
