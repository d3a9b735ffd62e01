package binning

import (
	"math"
	"sort"
	"testing"

	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
)

func testGeometry(t *testing.T, dist float64) *geometry.Flat {
	t.Helper()
	g, err := geometry.NewFlat(geometry.Params{
		Distance:   dist,
		Poni1:      0.002,
		Poni2:      0.002,
		PixelSize1: 0.0002,
		PixelSize2: 0.0002,
		Wavelength: 1.8e-11,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

// rowRings maps every pixel to its row index so each row is one ring.
func rowRings(s frame.Shape) (*frame.Frame, []float64) {
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
	return m, edges
}

func TestNewPartition_Invariants(t *testing.T) {
	pixels, _ := frame.FromRows([][]float64{
		{0.5, 3, 7},
		{9, 1, 2.5},
		{-1, 12, 5},
	})
	p, err := NewPartition(pixels, []float64{0, 2.5, 5, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCounts := []int{3, 2, 4}
	for i, c := range p.Counts() {
		if c != wantCounts[i] {
			t.Fatalf("want counts %v, got %v", wantCounts, p.Counts())
		}
	}

	idx := append([]int(nil), p.SortIndex()...)
	for k := 1; k < len(idx); k++ {
		if p.Bin(idx[k]) < p.Bin(idx[k-1]) {
			t.Fatalf("sort index not grouped by bin: %v", idx)
		}
	}
	sort.Ints(idx)
	for i, v := range idx {
		if i != v {
			t.Fatalf("sort index is not a permutation: %v", p.SortIndex())
		}
	}

	if got := p.Group(0); len(got) != 3 || got[0] != 0 || got[1] != 4 || got[2] != 6 {
		t.Fatalf("unexpected first group %v", got)
	}
}

func TestNewPartition_RejectsBadEdges(t *testing.T) {
	pixels := frame.Filled(frame.Shape{Rows: 2, Cols: 2}, 1)
	if _, err := NewPartition(pixels, []float64{1}); err == nil {
		t.Fatal("expected error for a single edge")
	}
	if _, err := NewPartition(pixels, []float64{2, 1}); err == nil {
		t.Fatal("expected error for unsorted edges")
	}
}

func TestMapBins(t *testing.T) {
	geo := testGeometry(t, 0.2)
	s := frame.Shape{Rows: 20, Cols: 20}
	q, edges := MapBins(geo, s)

	if len(edges) < 2 || !sort.Float64sAreSorted(edges) {
		t.Fatalf("edges must be sorted with at least two entries: %v", edges)
	}
	minDQ := math.Inf(1)
	for _, v := range geo.MomentumTransferResolutionMap(s).Pix {
		minDQ = math.Min(minDQ, v)
	}
	if edges[0] != minDQ {
		t.Fatalf("first edge must be the smallest resolution, got %g want %g", edges[0], minDQ)
	}
	maxQ := math.Inf(-1)
	for _, v := range q.Pix {
		maxQ = math.Max(maxQ, v)
	}
	if edges[len(edges)-1] < maxQ {
		t.Fatalf("last edge %g must cover max q %g", edges[len(edges)-1], maxQ)
	}

	p, err := FromGeometry(geo, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for _, c := range p.Counts() {
		total += c
	}
	if total != s.Size() {
		t.Fatalf("counts must sum to %d, got %d", s.Size(), total)
	}
}

func TestOneShotMatchesTwoStep(t *testing.T) {
	geo := testGeometry(t, 0.2)
	s := frame.Shape{Rows: 20, Cols: 20}
	q, edges := MapBins(geo, s)

	m := frame.Ones(s)
	m.Exclude(0, 1, 2, 45, 210, 399)

	p, err := NewPartition(q, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twoStep, err := p.Bind(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oneShot, err := NewBinner(q, edges, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, b := oneShot.Counts(), twoStep.Counts()
	if len(a) != len(b) {
		t.Fatalf("bin count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bin %d: counts differ %d vs %d", i, a[i], b[i])
		}
	}
	for i := range oneShot.Edges() {
		if oneShot.Edges()[i] != twoStep.Edges()[i] {
			t.Fatalf("edge %d differs", i)
		}
	}

	kept := 0
	for _, c := range a {
		kept += c
	}
	if kept != m.Kept() {
		t.Fatalf("bound counts must sum to kept pixels %d, got %d", m.Kept(), kept)
	}
}

func TestBind_ShapeMismatch(t *testing.T) {
	pixels, edges := rowRings(frame.Shape{Rows: 3, Cols: 3})
	p, _ := NewPartition(pixels, edges)
	if _, err := p.Bind(frame.Ones(frame.Shape{Rows: 2, Cols: 2})); err == nil {
		t.Fatal("expected shape mismatch")
	}
}

func TestEvaluate(t *testing.T) {
	s := frame.Shape{Rows: 3, Cols: 4}
	pixels, edges := rowRings(s)
	edges = append(edges, 4) // one empty trailing bin
	img, _ := frame.FromRows([][]float64{
		{1, 2, 3, 4},
		{5, 5, 5, 5},
		{1, 1, 1, 9},
	})
	b, err := NewBinner(pixels, edges, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		stat Statistic
		want []float64
	}{
		{Mean, []float64{2.5, 5, 3, 0}},
		{Median, []float64{2.5, 5, 1, 0}},
		{Count, []float64{4, 4, 4, 0}},
		{Sum, []float64{10, 20, 12, 0}},
		{Max, []float64{4, 5, 9, 0}},
		{Std, []float64{math.Sqrt(1.25), 0, math.Sqrt(12), 0}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stat), func(t *testing.T) {
			got, err := b.Evaluate(img, tt.stat)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Fatalf("want %v, got %v", tt.want, got)
				}
			}
		})
	}

	centers := b.BinCenters()
	if centers[0] != 0.5 || centers[3] != 3.5 {
		t.Fatalf("unexpected centers %v", centers)
	}
}

func TestEvaluate_RespectsMask(t *testing.T) {
	s := frame.Shape{Rows: 1, Cols: 4}
	pixels, edges := rowRings(s)
	img, _ := frame.FromRows([][]float64{{1, 2, 3, 100}})
	m := frame.Ones(s)
	m.Exclude(3)
	b, _ := NewBinner(pixels, edges, m)
	got, _ := b.Evaluate(img, Mean)
	if got[0] != 2 {
		t.Fatalf("masked pixel must not contribute, got %v", got)
	}
}

func TestZScore_UniformRingsAreZero(t *testing.T) {
	geo := testGeometry(t, 0.2)
	s := frame.Shape{Rows: 20, Cols: 20}
	p, err := FromGeometry(geo, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := frame.New(s)
	for px := range img.Pix {
		img.Pix[px] = 100 + 10*float64(p.Bin(px))
	}
	b, _ := p.Bind(nil)
	z, err := b.ZScore(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range z.Pix {
		if v != 0 {
			t.Fatalf("pixel %d: expected 0, got %g", i, v)
		}
	}
}

func TestZScore_SingleDeviation(t *testing.T) {
	s := frame.Shape{Rows: 10, Cols: 50}
	pixels, edges := rowRings(s)
	img := frame.Filled(s, 10)
	outlier := img.Index(4, 17)
	img.Pix[outlier] = 1e4

	b, _ := NewBinner(pixels, edges, nil)
	z, err := b.ZScore(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(z.Pix[outlier]) <= 2 {
		t.Fatalf("expected |z| > 2 at the outlier, got %g", z.Pix[outlier])
	}
	for i, v := range z.Pix {
		if i != outlier && math.Abs(v) > 0.5 {
			t.Fatalf("pixel %d: expected near zero, got %g", i, v)
		}
	}
}

func TestZScore_MaskedPixelsScoreZero(t *testing.T) {
	s := frame.Shape{Rows: 1, Cols: 4}
	pixels, edges := rowRings(s)
	img, _ := frame.FromRows([][]float64{{1, 2, 3, 100}})
	m := frame.Ones(s)
	m.Exclude(3)
	b, _ := NewBinner(pixels, edges, m)
	z, _ := b.ZScore(img)
	if z.Pix[3] != 0 {
		t.Fatalf("excluded pixel must score 0, got %g", z.Pix[3])
	}
}

func TestCache(t *testing.T) {
	s := frame.Shape{Rows: 12, Cols: 12}
	c := NewCache(2)
	geo := testGeometry(t, 0.2)

	p1, hit, err := c.Get(geo, s)
	if err != nil || hit {
		t.Fatalf("expected first lookup to build, hit=%v err=%v", hit, err)
	}
	p2, hit, _ := c.Get(testGeometry(t, 0.2), s)
	if !hit || p1 != p2 {
		t.Fatal("same geometry content and shape must hit")
	}

	// Recalibration with the same shape must rebuild.
	if _, hit, _ := c.Get(testGeometry(t, 0.25), s); hit {
		t.Fatal("changed geometry must miss")
	}
	if _, hit, _ := c.Get(geo, frame.Shape{Rows: 10, Cols: 12}); hit {
		t.Fatal("changed shape must miss")
	}
	if c.Builds() != 3 || c.Len() != 2 {
		t.Fatalf("expected 3 builds and 2 entries, got %d and %d", c.Builds(), c.Len())
	}
	if _, hit, _ := c.Get(geo, s); hit {
		t.Fatal("oldest entry must have been evicted")
	}
}

func TestMedianOf(t *testing.T) {
	if MedianOf([]float64{3, 1, 2}) != 2 || MedianOf([]float64{4, 1, 3, 2}) != 2.5 {
		t.Fatal("unexpected median")
	}
	if !math.IsNaN(MedianOf(nil)) {
		t.Fatal("median of nothing is NaN")
	}
}
