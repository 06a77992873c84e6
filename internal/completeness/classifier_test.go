package completeness

import (
	"testing"

	"amy-weather/internal/models"
)

// seriesWithGaps builds a 2019 series whose rows are observed except for the given runs.
func seriesWithGaps(runs ...[2]int) *models.StationYearSeries {
	s := models.NewStationYearSeries("725300", 2019, models.VarAirTemperature)
	col := s.Values[models.VarAirTemperature]
	for i := range col {
		col[i] = 10
	}
	for _, r := range runs {
		for i := r[0]; i < r[0]+r[1]; i++ {
			col[i] = models.Missing
		}
	}
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		series      *models.StationYearSeries
		maxMissing  int
		maxConsec   int
		checkValues func(*testing.T, models.Verdict)
	}{
		{
			name:       "complete series is usable",
			series:     seriesWithGaps(),
			maxMissing: 0,
			maxConsec:  0,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.Classification != models.Usable {
					t.Errorf("Classification = %v, want %v", v.Classification, models.Usable)
				}
				if v.TotalMissing != 0 || v.MaxConsecutiveMissing != 0 {
					t.Errorf("counts = %d/%d, want 0/0", v.TotalMissing, v.MaxConsecutiveMissing)
				}
			},
		},
		{
			name: "650 missing with longest run 30 is usable",
			series: func() *models.StationYearSeries {
				// 21 runs of 30 plus one run of 20 = 650 rows, runs separated by observed rows.
				var runs [][2]int
				start := 0
				for i := 0; i < 21; i++ {
					runs = append(runs, [2]int{start, 30})
					start += 100
				}
				runs = append(runs, [2]int{start, 20})
				return seriesWithGaps(runs...)
			}(),
			maxMissing: 700,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.TotalMissing != 650 {
					t.Errorf("TotalMissing = %d, want 650", v.TotalMissing)
				}
				if v.MaxConsecutiveMissing != 30 {
					t.Errorf("MaxConsecutiveMissing = %d, want 30", v.MaxConsecutiveMissing)
				}
				if v.Classification != models.Usable {
					t.Errorf("Classification = %v, want %v", v.Classification, models.Usable)
				}
			},
		},
		{
			name:       "30 missing in a single run of 90 is excluded consecutive",
			series:     seriesWithGaps([2]int{1000, 90}),
			maxMissing: 700,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				// the run is 90 rows long, so the total is 90 as well
				if v.MaxConsecutiveMissing != 90 {
					t.Errorf("MaxConsecutiveMissing = %d, want 90", v.MaxConsecutiveMissing)
				}
				if v.Classification != models.ExcludedConsecutive {
					t.Errorf("Classification = %v, want %v", v.Classification, models.ExcludedConsecutive)
				}
			},
		},
		{
			name:       "total threshold wins over consecutive",
			series:     seriesWithGaps([2]int{0, 800}),
			maxMissing: 700,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.Classification != models.ExcludedTotal {
					t.Errorf("Classification = %v, want %v", v.Classification, models.ExcludedTotal)
				}
			},
		},
		{
			name:       "all missing is excluded total",
			series:     models.NewStationYearSeries("725300", 2019, models.VarAirTemperature),
			maxMissing: 700,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.TotalMissing != 8760 || v.MaxConsecutiveMissing != 8760 {
					t.Errorf("counts = %d/%d, want 8760/8760", v.TotalMissing, v.MaxConsecutiveMissing)
				}
				if v.Classification != models.ExcludedTotal {
					t.Errorf("Classification = %v, want %v", v.Classification, models.ExcludedTotal)
				}
			},
		},
		{
			name:       "empty series is excluded total",
			series:     &models.StationYearSeries{StationID: "725300", Year: 2020},
			maxMissing: 700,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.TotalMissing != 8784 {
					t.Errorf("TotalMissing = %d, want 8784", v.TotalMissing)
				}
				if v.Classification != models.ExcludedTotal {
					t.Errorf("Classification = %v, want %v", v.Classification, models.ExcludedTotal)
				}
			},
		},
		{
			name:       "exactly at thresholds is usable",
			series:     seriesWithGaps([2]int{10, 48}, [2]int{500, 48}),
			maxMissing: 96,
			maxConsec:  48,
			checkValues: func(t *testing.T, v models.Verdict) {
				if v.Classification != models.Usable {
					t.Errorf("Classification = %v, want %v", v.Classification, models.Usable)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.series, tt.maxMissing, tt.maxConsec)
			if v.StationID != tt.series.StationID || v.Year != tt.series.Year {
				t.Errorf("verdict identity = %s/%d", v.StationID, v.Year)
			}
			tt.checkValues(t, v)
		})
	}
}

func TestClassify_CompleteSeriesUsableForAnyThresholds(t *testing.T) {
	s := seriesWithGaps()
	for _, th := range [][2]int{{0, 0}, {1, 0}, {700, 48}, {0, 1000}} {
		if got := Classify(s, th[0], th[1]).Classification; got != models.Usable {
			t.Errorf("Classify(%v) = %v, want USABLE", th, got)
		}
	}
}

func TestClassify_TotalAboveLimitAlwaysExcludedTotal(t *testing.T) {
	// 10 separate runs of 10 rows: 100 missing, longest run 10.
	var runs [][2]int
	for i := 0; i < 10; i++ {
		runs = append(runs, [2]int{i * 50, 10})
	}
	s := seriesWithGaps(runs...)

	for _, maxConsec := range []int{0, 5, 10, 48, 10000} {
		if got := Classify(s, 99, maxConsec).Classification; got != models.ExcludedTotal {
			t.Errorf("maxConsec=%d: Classification = %v, want EXCLUDED_TOTAL", maxConsec, got)
		}
	}
}

func TestClassify_AllMissingExcludedForAnyThresholds(t *testing.T) {
	s := models.NewStationYearSeries("725300", 2019, models.VarAirTemperature)
	for _, th := range [][2]int{{700, 48}, {8760, 8760}, {10000, 10000}} {
		v := Classify(s, th[0], th[1])
		if v.Classification != models.ExcludedTotal {
			t.Errorf("Classify(%v) = %v, want EXCLUDED_TOTAL", th, v.Classification)
		}
		if v.TotalMissing != 8760 {
			t.Errorf("Classify(%v) TotalMissing = %d, want 8760", th, v.TotalMissing)
		}
	}
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	if got := Decide(Counts{TotalMissing: 30, MaxConsecutiveMissing: 90}, th); got != models.ExcludedConsecutive {
		t.Errorf("Decide(30, 90) = %v, want EXCLUDED_CONSECUTIVE", got)
	}
	if got := Decide(Counts{TotalMissing: 650, MaxConsecutiveMissing: 30}, th); got != models.Usable {
		t.Errorf("Decide(650, 30) = %v, want USABLE", got)
	}
	if got := Decide(Counts{TotalMissing: 701, MaxConsecutiveMissing: 1}, th); got != models.ExcludedTotal {
		t.Errorf("Decide(701, 1) = %v, want EXCLUDED_TOTAL", got)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds should be valid: %v", err)
	}
	if err := (Thresholds{MaxMissingRows: -1}).Validate(); err == nil {
		t.Error("negative threshold should be rejected")
	}
}
