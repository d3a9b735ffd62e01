package binning

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
)

// Partition assigns every pixel of a shape to one bin of a scalar pixel map.
// Counts always sum to the pixel count: values below the first edge land in
// the first bin, values above the last edge in the last bin.
type Partition struct {
	shape   frame.Shape
	edges   []float64
	bins    []int
	order   []int
	counts  []int
	offsets []int
}

// MapBins derives Q bin edges whose widths follow the detector's native
// resolution. It bins pixels by radial distance in steps of half the pixel
// diagonal, takes the largest Q resolution per radial bin and accumulates
// those widths into edges. It returns the Q map alongside the edges.
func MapBins(geo geometry.Geometry, s frame.Shape) (*frame.Frame, []float64) {
	r := geo.RadialDistanceMap(s).Pix
	q := geo.MomentumTransferMap(s)
	dq := geo.MomentumTransferResolutionMap(s).Pix

	p1, p2 := geo.PixelSize()
	rres := math.Hypot(p1, p2)
	rbins := arange(floats.Min(r)-rres/2, floats.Max(r)+rres/2, rres/2)

	widths := make([]float64, len(rbins)-1)
	for i := range widths {
		widths[i] = math.NaN()
	}
	if len(widths) > 0 {
		for i, v := range r {
			b := clampBin(locate(rbins, v), len(widths))
			if math.IsNaN(widths[b]) || dq[i] > widths[b] {
				widths[b] = dq[i]
			}
		}
	}
	frame.NanToNum(widths)

	edges := make([]float64, len(widths))
	floats.CumSum(edges, widths)
	qmax := floats.Max(q.Pix)
	if len(edges) < 2 {
		return q, []float64{floats.Min(dq), math.Max(qmax, floats.Min(dq))}
	}
	edges[0] = floats.Min(dq)
	if qmax > edges[len(edges)-1] {
		edges[len(edges)-1] = qmax
	}
	return q, edges
}

func arange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop - start) / step))
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// locate returns the bin of v among right-open bins, with the last edge
// closed. It is -1 below the first edge and len(edges)-1 above the last.
func locate(edges []float64, v float64) int {
	last := len(edges) - 1
	if v == edges[last] {
		return last - 1
	}
	return sort.Search(len(edges), func(i int) bool { return edges[i] > v }) - 1
}

func clampBin(b, n int) int {
	if b < 0 {
		return 0
	}
	if b >= n {
		return n - 1
	}
	return b
}

// NewPartition bins pixelMap by edges. edges must be non-decreasing with at
// least two entries.
func NewPartition(pixelMap *frame.Frame, edges []float64) (*Partition, error) {
	if len(edges) < 2 {
		return nil, errors.InvalidInput("edges", "at least two bin edges are required")
	}
	if !sort.Float64sAreSorted(edges) {
		return nil, errors.InvalidInput("edges", "bin edges must be sorted")
	}
	nb := len(edges) - 1
	p := &Partition{
		shape:   pixelMap.Shape,
		edges:   append([]float64(nil), edges...),
		bins:    make([]int, len(pixelMap.Pix)),
		counts:  make([]int, nb),
		offsets: make([]int, nb+1),
	}
	for i, v := range pixelMap.Pix {
		b := 0
		if !math.IsNaN(v) {
			b = clampBin(locate(edges, v), nb)
		}
		p.bins[i] = b
		p.counts[b]++
	}
	for b := 0; b < nb; b++ {
		p.offsets[b+1] = p.offsets[b] + p.counts[b]
	}

	// Counting sort keeps pixel order within a bin.
	p.order = make([]int, len(p.bins))
	next := append([]int(nil), p.offsets[:nb]...)
	for i, b := range p.bins {
		p.order[next[b]] = i
		next[b]++
	}
	return p, nil
}

// FromGeometry builds the Q partition for a geometry and shape.
func FromGeometry(geo geometry.Geometry, s frame.Shape) (*Partition, error) {
	q, edges := MapBins(geo, s)
	return NewPartition(q, edges)
}

// Shape returns the image shape the partition was built for.
func (p *Partition) Shape() frame.Shape { return p.shape }

// Edges returns the bin boundaries.
func (p *Partition) Edges() []float64 { return p.edges }

// Len returns the number of bins.
func (p *Partition) Len() int { return len(p.counts) }

// SortIndex returns pixel indices grouped contiguously by bin.
func (p *Partition) SortIndex() []int { return p.order }

// Counts returns the number of pixels per bin.
func (p *Partition) Counts() []int { return p.counts }

// Bin returns the bin of a flat pixel index.
func (p *Partition) Bin(pixel int) int { return p.bins[pixel] }

// Group returns the pixel indices of bin b.
func (p *Partition) Group(b int) []int {
	return p.order[p.offsets[b]:p.offsets[b+1]]
}

// Centers returns the midpoint of every bin.
func (p *Partition) Centers() []float64 {
	out := make([]float64, p.Len())
	for i := range out {
		out[i] = (p.edges[i] + p.edges[i+1]) / 2
	}
	return out
}
