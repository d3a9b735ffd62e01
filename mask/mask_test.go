package mask

import (
	"context"
	"math"
	"sort"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
	"github.com/kbukum/xpdflow/observability"
)

// rowPartition makes every image row one ring.
func rowPartition(t *testing.T, s frame.Shape) *binning.Partition {
	t.Helper()
	m := frame.New(s)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			m.Set(r, c, float64(r)+0.5)
		}
	}
	edges := make([]float64, s.Rows+1)
	for i := range edges {
		edges[i] = float64(i)
	}
	p, err := binning.NewPartition(m, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func noEdge(method Method) Options {
	return Options{Alpha: 3, Method: method}
}

func sorted(v []int) []int {
	out := append([]int(nil), v...)
	sort.Ints(out)
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMask_FlagsExactlyInjectedOutliers(t *testing.T) {
	s := frame.Shape{Rows: 8, Cols: 50}
	p := rowPartition(t, s)
	img := frame.Filled(s, 100)
	want := []int{img.Index(1, 3), img.Index(4, 40), img.Index(6, 0)}
	for _, px := range want {
		img.Pix[px] = 1e4
	}

	for _, method := range []Method{MethodMedian, MethodMean} {
		t.Run(string(method), func(t *testing.T) {
			m, err := NewEngine(WithWorkers(3)).Mask(context.Background(), img, p, noEdge(method), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := m.Excluded(); !equalInts(got, sorted(want)) {
				t.Fatalf("want %v flagged, got %v", sorted(want), got)
			}
		})
	}
}

func TestMask_FlagsOutliersOnGeometryRings(t *testing.T) {
	geo, err := geometry.NewFlat(geometry.Params{
		Distance: 0.2, Poni1: 0.004, Poni2: 0.004,
		PixelSize1: 0.0002, PixelSize2: 0.0002, Wavelength: 1.8e-11,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := frame.Shape{Rows: 40, Cols: 40}
	p, err := binning.FromGeometry(geo, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Pick the three most populated rings so a single outlier is well above
	// alpha in both methods.
	bins := make([]int, p.Len())
	for i := range bins {
		bins[i] = i
	}
	sort.SliceStable(bins, func(a, b int) bool { return p.Counts()[bins[a]] > p.Counts()[bins[b]] })

	img := frame.Filled(s, 50)
	var want []int
	for _, b := range bins[:3] {
		if p.Counts()[b] < 20 {
			t.Fatalf("ring %d too small for the test: %d pixels", b, p.Counts()[b])
		}
		px := p.Group(b)[0]
		img.Pix[px] = 5e3
		want = append(want, px)
	}

	for _, method := range []Method{MethodMedian, MethodMean} {
		t.Run(string(method), func(t *testing.T) {
			m, err := NewEngine().Mask(context.Background(), img, p, noEdge(method), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := m.Excluded(); !equalInts(got, sorted(want)) {
				t.Fatalf("want %v flagged, got %v", sorted(want), got)
			}
		})
	}
}

func TestRingMean_RemovesCompoundingOutliers(t *testing.T) {
	values := make([]float64, 50)
	positions := make([]int, 50)
	for i := range values {
		values[i] = 100
		positions[i] = 1000 + i
	}
	values[7], values[30] = 1e4, 5e3

	got := sorted(RingMean(values, positions, 3))
	if !equalInts(got, []int{1007, 1030}) {
		t.Fatalf("expected both outliers removed, got %v", got)
	}
	if values[7] != 1e4 {
		t.Fatal("input values must not be modified")
	}
}

func TestRing_ZeroSpreadFlagsNothing(t *testing.T) {
	values := []float64{4, 4, 4}
	positions := []int{0, 1, 2}
	if got := RingMedian(values, positions, 0.1); len(got) != 0 {
		t.Fatalf("median: expected nothing, got %v", got)
	}
	if got := RingMean(values, positions, 0.1); len(got) != 0 {
		t.Fatalf("mean: expected nothing, got %v", got)
	}
	if got := RingMean([]float64{1}, []int{9}, 0.1); len(got) != 0 {
		t.Fatalf("mean: single pixel must stay, got %v", got)
	}
}

func TestMask_Composition(t *testing.T) {
	s := frame.Shape{Rows: 6, Cols: 6}
	p := rowPartition(t, s)
	img := frame.Filled(s, 10)
	img.Set(2, 2, -1) // below lower
	img.Set(3, 3, 50) // at upper

	prior := frame.Ones(s)
	prior.Exclude(img.Index(2, 3))

	opts := Options{Edge: 1, LowerThreshold: Float(0), UpperThreshold: Float(50), Method: MethodMedian}
	m, err := NewEngine().Mask(context.Background(), img, p, opts, prior)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Kept() != 16-3 {
		t.Fatalf("expected 13 kept pixels, got %d (%v)", m.Kept(), m.Excluded())
	}
	for _, px := range []int{img.Index(2, 2), img.Index(3, 3), img.Index(2, 3), img.Index(0, 0), img.Index(5, 2)} {
		if m.Bits[px] {
			t.Fatalf("pixel %d should be excluded", px)
		}
	}
	if !prior.Bits[0] {
		t.Fatal("prior mask must not be modified")
	}
}

func TestMask_OutliersIgnoreExcludedPixels(t *testing.T) {
	s := frame.Shape{Rows: 1, Cols: 30}
	p := rowPartition(t, s)
	img := frame.Filled(s, 10)
	img.Pix[5] = 1e6

	opts := Options{UpperThreshold: Float(1e5), Alpha: 3, Method: MethodMedian}
	m, err := NewEngine().Mask(context.Background(), img, p, opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Excluded(); !equalInts(got, []int{5}) {
		t.Fatalf("only the thresholded pixel should be excluded, got %v", got)
	}
}

func TestMask_ShapeMismatch(t *testing.T) {
	p := rowPartition(t, frame.Shape{Rows: 2, Cols: 2})
	_, err := NewEngine().Mask(context.Background(), frame.Filled(frame.Shape{Rows: 3, Cols: 3}, 1), p, DefaultOptions(), nil)
	if err == nil {
		t.Fatal("expected shape mismatch")
	}
}

func TestEngine_ProgressAndMetrics(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := frame.Shape{Rows: 5, Cols: 20}
	p := rowPartition(t, s)
	img := frame.Filled(s, 1)

	calls := 0
	e := NewEngine(WithWorkers(2), WithMetrics(metrics), WithProgress(func(done, total int) {
		calls++
		if total != 5 {
			t.Errorf("expected 5 rings, got %d", total)
		}
	}))
	if _, err := e.Mask(context.Background(), img, p, noEdge(MethodMean), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected 5 progress calls, got %d", calls)
	}

	calls = 0
	if _, err := e.Mask(context.Background(), img, p, noEdge(MethodMedian), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Fatal("median clipping does not report progress")
	}
}

func TestMargin(t *testing.T) {
	m := Margin(frame.Shape{Rows: 4, Cols: 5}, 1)
	if m.Kept() != 6 {
		t.Fatalf("expected 6 interior pixels, got %d", m.Kept())
	}
	if Margin(frame.Shape{Rows: 4, Cols: 5}, 0) != nil {
		t.Fatal("zero edge disables the margin")
	}
	if Margin(frame.Shape{Rows: 4, Cols: 5}, 3).Kept() != 0 {
		t.Fatal("oversized edge excludes everything")
	}
}

func TestOverlay(t *testing.T) {
	img, _ := frame.FromRows([][]float64{{1, 2}, {3, 4}})
	m := frame.Ones(img.Shape)
	m.Exclude(1)
	out, err := Overlay(img, m, math.NaN())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(out.Pix[1]) || out.Pix[0] != 1 || img.Pix[1] != 2 {
		t.Fatalf("unexpected overlay %v", out.Pix)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "bad method", opts: Options{Method: "mode"}, wantErr: true},
		{name: "negative alpha", opts: Options{Alpha: -1, Method: MethodMean}, wantErr: true},
		{name: "crossed thresholds", opts: Options{Method: MethodMedian, LowerThreshold: Float(5), UpperThreshold: Float(1)}, wantErr: true},
		{name: "ordered thresholds", opts: Options{Method: MethodMedian, LowerThreshold: Float(1), UpperThreshold: Float(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
