package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"amy-weather/internal/models"
)

// testSnapshot builds a 3x3 grid over lat 40..42 and lon -90..-88 with hourly steps
// from start. T2 at (r, c, k) is base + 100r + 10c + k.
func testSnapshot(name string, start time.Time, steps int, base float64) *Snapshot {
	lat := mat.NewDense(3, 3, []float64{
		40, 40, 40,
		41, 41, 41,
		42, 42, 42,
	})
	lon := mat.NewDense(3, 3, []float64{
		-90, -89, -88,
		-90, -89, -88,
		-90, -89, -88,
	})
	s := &Snapshot{
		Source: name,
		Lat:    lat,
		Lon:    lon,
		Fields: map[models.Variable][]*mat.Dense{},
	}
	for k := 0; k < steps; k++ {
		s.RawTimes = append(s.RawTimes, start.Add(time.Duration(k)*time.Hour).Format("2006-01-02_15:04:05"))
		t2 := mat.NewDense(3, 3, nil)
		psfc := mat.NewDense(3, 3, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				t2.Set(r, c, base+float64(100*r+10*c+k))
				psfc.Set(r, c, 101325)
			}
		}
		s.Fields[models.VarT2] = append(s.Fields[models.VarT2], t2)
		s.Fields[models.VarPSFC] = append(s.Fields[models.VarPSFC], psfc)
	}
	return s
}

var jan1 = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestSnapshot_Axes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr bool
	}{
		{name: "valid snapshot", mutate: func(*Snapshot) {}},
		{
			name:    "times not increasing",
			mutate:  func(s *Snapshot) { s.RawTimes[2] = s.RawTimes[1] },
			wantErr: true,
		},
		{
			name:    "unparseable time",
			mutate:  func(s *Snapshot) { s.RawTimes[0] = "yesterday" },
			wantErr: true,
		},
		{
			name:    "NaN latitude",
			mutate:  func(s *Snapshot) { s.Lat.Set(1, 1, math.NaN()) },
			wantErr: true,
		},
		{
			name:    "coordinate shapes differ",
			mutate:  func(s *Snapshot) { s.Lon = mat.NewDense(2, 3, nil) },
			wantErr: true,
		},
		{
			name:    "latitude reverses along rows",
			mutate:  func(s *Snapshot) { s.Lat.Set(2, 0, 39) },
			wantErr: true,
		},
		{
			name: "latitude stored north to south",
			mutate: func(s *Snapshot) {
				s.Lat = mat.NewDense(3, 3, []float64{
					42, 42, 42,
					41, 41, 41,
					40, 40, 40,
				})
			},
		},
		{
			name: "longitude stored east to west",
			mutate: func(s *Snapshot) {
				s.Lon = mat.NewDense(3, 3, []float64{
					-88, -89, -90,
					-88, -89, -90,
					-88, -89, -90,
				})
			},
		},
		{
			name: "descending latitude turns back",
			mutate: func(s *Snapshot) {
				s.Lat = mat.NewDense(3, 3, []float64{
					42, 42, 42,
					41, 41, 41,
					41.5, 41.5, 41.5,
				})
			},
			wantErr: true,
		},
		{
			name:    "latitude flat along rows",
			mutate:  func(s *Snapshot) { s.Lat.Set(1, 0, 40) },
			wantErr: true,
		},
		{
			name:    "longitude repeated along a row",
			mutate:  func(s *Snapshot) { s.Lon.Set(0, 1, -90) },
			wantErr: true,
		},
		{
			name: "field step count differs from times",
			mutate: func(s *Snapshot) {
				s.Fields[models.VarT2] = s.Fields[models.VarT2][:1]
			},
			wantErr: true,
		},
		{
			name: "field grid shape differs",
			mutate: func(s *Snapshot) {
				s.Fields[models.VarPSFC][0] = mat.NewDense(2, 2, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSnapshot("a.nc", jan1, 4, 0)
			tt.mutate(s)
			axes, err := s.Axes()
			if tt.wantErr {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Axes() error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Axes() unexpected error = %v", err)
			}
			if len(axes.Times) != 4 || axes.Rows != 3 || axes.Cols != 3 {
				t.Errorf("Axes() = %d times %dx%d, want 4 times 3x3", len(axes.Times), axes.Rows, axes.Cols)
			}
			if !axes.Times[0].Equal(jan1) {
				t.Errorf("Times[0] = %v, want %v", axes.Times[0], jan1)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2019, time.July, 4, 13, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2019-07-04_13:00:00", "2019-07-04T13:00:00Z", "2019-07-04 13:00:00", "2019-07-04_13:00:00\x00"} {
		got, err := ParseTime(raw)
		if err != nil {
			t.Errorf("ParseTime(%q) error = %v", raw, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNearestCell(t *testing.T) {
	s := testSnapshot("a.nc", jan1, 1, 0)

	tests := []struct {
		name     string
		lat, lon float64
		wantRow  int
		wantCol  int
		wantDist float64
	}{
		{name: "exact cell wins at distance zero", lat: 41, lon: -89, wantRow: 1, wantCol: 1, wantDist: 0},
		{name: "closest corner", lat: 42.2, lon: -87.9, wantRow: 2, wantCol: 2, wantDist: math.Hypot(0.2, 0.1)},
		{name: "between cells picks nearer", lat: 40.4, lon: -89.7, wantRow: 0, wantCol: 0, wantDist: math.Hypot(0.4, 0.3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NearestCell(s.Lat, s.Lon, tt.lat, tt.lon)
			if c.Row != tt.wantRow || c.Col != tt.wantCol {
				t.Errorf("NearestCell() = (%d,%d), want (%d,%d)", c.Row, c.Col, tt.wantRow, tt.wantCol)
			}
			if math.Abs(c.Distance-tt.wantDist) > 1e-9 {
				t.Errorf("Distance = %v, want %v", c.Distance, tt.wantDist)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	station := models.StationLocation{StationID: "725300", Latitude: 42, Longitude: -90}

	t.Run("slices the nearest cell", func(t *testing.T) {
		got, err := Extract([]*Snapshot{testSnapshot("a.nc", jan1, 3, 0)}, station, DefaultTolerance)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		for k, s := range got {
			if want := float64(200 + k); s.Values[models.VarT2] != want {
				t.Errorf("T2[%d] = %v, want %v", k, s.Values[models.VarT2], want)
			}
			if s.Values[models.VarPSFC] != 101325 {
				t.Errorf("PSFC[%d] = %v, want 101325", k, s.Values[models.VarPSFC])
			}
		}
	})

	t.Run("station outside tolerance", func(t *testing.T) {
		far := models.StationLocation{StationID: "911650", Latitude: 21.3, Longitude: -157.9}
		_, err := Extract([]*Snapshot{testSnapshot("a.nc", jan1, 3, 0)}, far, DefaultTolerance)
		if !errors.Is(err, models.ErrLocationOutOfRange) {
			t.Fatalf("Extract() error = %v, want ErrLocationOutOfRange", err)
		}
	})

	t.Run("overlapping snapshots keep the later file", func(t *testing.T) {
		first := testSnapshot("a.nc", jan1, 4, 0)
		second := testSnapshot("b.nc", jan1.Add(2*time.Hour), 4, 1000)
		got, err := Extract([]*Snapshot{first, second}, station, DefaultTolerance)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(got) != 6 {
			t.Fatalf("len = %d, want 6", len(got))
		}
		// hours 2 and 3 exist in both; b.nc starts its own step counter at 0
		wants := []float64{200, 201, 1200, 1201, 1202, 1203}
		for k, want := range wants {
			if got[k].Values[models.VarT2] != want {
				t.Errorf("T2[%d] = %v, want %v", k, got[k].Values[models.VarT2], want)
			}
			if k > 0 && !got[k].Time.After(got[k-1].Time) {
				t.Errorf("sample %d not after sample %d", k, k-1)
			}
		}
	})

	t.Run("snapshots out of order are sorted", func(t *testing.T) {
		late := testSnapshot("b.nc", jan1.Add(24*time.Hour), 2, 0)
		early := testSnapshot("a.nc", jan1, 2, 0)
		got, err := Extract([]*Snapshot{late, early}, station, DefaultTolerance)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(got) != 4 || !got[0].Time.Equal(jan1) {
			t.Fatalf("first sample at %v, want %v", got[0].Time, jan1)
		}
	})
}

func TestAlign(t *testing.T) {
	extracted := ExtractedSeries{
		{Time: jan1, Values: map[models.Variable]float64{models.VarT2: 270}},
		{Time: jan1.Add(time.Hour), Values: map[models.Variable]float64{models.VarT2: 271}},
		{Time: jan1.Add(5 * time.Hour), Values: map[models.Variable]float64{models.VarT2: 275}},
		{Time: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), Values: map[models.Variable]float64{models.VarT2: 300}},
	}

	got := Align(extracted, "725300", 2019)
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	col := got.Values[models.VarT2]
	if col[0] != 270 || col[1] != 271 || col[5] != 275 {
		t.Errorf("aligned values = %v %v %v, want 270 271 275", col[0], col[1], col[5])
	}
	missing := 0
	for _, v := range col {
		if models.IsMissing(v) {
			missing++
		}
	}
	if missing != 8760-3 {
		t.Errorf("missing = %d, want %d", missing, 8760-3)
	}
}

func TestCoverage(t *testing.T) {
	snapshots := []*Snapshot{
		testSnapshot("a.nc", jan1, 24, 0),
		testSnapshot("b.nc", jan1.Add(48*time.Hour), 24, 0),
	}
	got, err := Coverage(snapshots, "725300", 2019)
	if err != nil {
		t.Fatalf("Coverage() error = %v", err)
	}
	covered := 0
	for i := 0; i < got.Len(); i++ {
		if !got.RowMissing(i) {
			covered++
		}
	}
	if covered != 48 {
		t.Errorf("covered = %d, want 48", covered)
	}
	if !got.RowMissing(30) {
		t.Error("hour 30 should be uncovered")
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"wrfout_d01_2019-02-01_00:00:00",
		"wrfout_d01_2019-01-01_00:00:00",
		"wrfout_d01_2020-01-01_00:00:00",
		".wrfout_d01_2019-03-01_00:00:00",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "2019"), 0o755); err != nil {
		t.Fatal(err)
	}

	var opened []string
	src := NewDirSource(dir, func(path string) (*Snapshot, error) {
		opened = append(opened, filepath.Base(path))
		return testSnapshot(path, jan1.Add(time.Duration(len(opened))*24*time.Hour), 1, 0), nil
	})

	for i := 0; i < 2; i++ {
		snapshots, err := src.Snapshots(context.Background(), 2019)
		if err != nil {
			t.Fatalf("Snapshots() error = %v", err)
		}
		if len(snapshots) != 2 {
			t.Fatalf("len = %d, want 2", len(snapshots))
		}
	}
	want := []string{"wrfout_d01_2019-01-01_00:00:00", "wrfout_d01_2019-02-01_00:00:00"}
	if fmt.Sprint(opened) != fmt.Sprint(want) {
		t.Errorf("opened = %v, want %v", opened, want)
	}
}

func TestDirSource_CancelledLoadNotKept(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wrfout_d01_2019-01-01_00:00:00"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	opens := 0
	src := NewDirSource(dir, func(path string) (*Snapshot, error) {
		opens++
		return testSnapshot(path, jan1, 1, 0), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Snapshots(ctx, 2019); !errors.Is(err, context.Canceled) {
		t.Fatalf("Snapshots() error = %v, want context.Canceled", err)
	}

	snapshots, err := src.Snapshots(context.Background(), 2019)
	if err != nil {
		t.Fatalf("Snapshots() after cancellation error = %v", err)
	}
	if len(snapshots) != 1 || opens != 1 {
		t.Errorf("len = %d, opens = %d, want 1 and 1", len(snapshots), opens)
	}
}

type memoryCache struct {
	entries map[string]*models.StationYearSeries
	loads   int
}

func (m *memoryCache) Load(key string) (*models.StationYearSeries, bool) {
	m.loads++
	s, ok := m.entries[key]
	return s, ok
}

func (m *memoryCache) Store(key string, s *models.StationYearSeries) {
	m.entries[key] = s
}

type staticProvider struct {
	snapshots []*Snapshot
	calls     int
}

func (p *staticProvider) Snapshots(context.Context, int) ([]*Snapshot, error) {
	p.calls++
	return p.snapshots, nil
}

func TestStationSource(t *testing.T) {
	provider := &staticProvider{snapshots: []*Snapshot{testSnapshot("a.nc", jan1, 10, 0)}}
	cache := &memoryCache{entries: map[string]*models.StationYearSeries{}}
	src := NewStationSource(provider, 0, cache)
	loc := models.StationLocation{StationID: "725300", Latitude: 40, Longitude: -88}

	obs, err := src.Observe(context.Background(), loc, 2019)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if obs.Len() != 8760 {
		t.Errorf("Observe() len = %d, want 8760", obs.Len())
	}

	first, err := src.Extract(context.Background(), loc, obs)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := first.Values[models.VarT2][3]; got != 23 {
		t.Errorf("T2[3] = %v, want 23", got)
	}

	second, err := src.Extract(context.Background(), loc, obs)
	if err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	if second != first {
		t.Error("second Extract() did not come from the cache")
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (observe and first extract)", provider.calls)
	}
	if src.Name() != "grid" {
		t.Errorf("Name() = %q", src.Name())
	}
}
