package binning

import (
	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/frame"
)

// Binner evaluates per-bin statistics over the pixels a mask keeps.
type Binner struct {
	p      *Partition
	groups [][]int
	counts []int
}

// Bind restricts p to the pixels kept by m. A nil mask keeps everything.
func (p *Partition) Bind(m *frame.Mask) (*Binner, error) {
	if m != nil && m.Shape != p.shape {
		return nil, errors.ShapeMismatch("binning.Bind", p.shape, m.Shape)
	}
	b := &Binner{p: p, groups: make([][]int, p.Len()), counts: make([]int, p.Len())}
	for bin := range b.groups {
		group := p.Group(bin)
		if m == nil {
			b.groups[bin] = group
		} else {
			kept := make([]int, 0, len(group))
			for _, px := range group {
				if m.Bits[px] {
					kept = append(kept, px)
				}
			}
			b.groups[bin] = kept
		}
		b.counts[bin] = len(b.groups[bin])
	}
	return b, nil
}

// NewBinner builds a partition and binds it to m in one step.
func NewBinner(pixelMap *frame.Frame, edges []float64, m *frame.Mask) (*Binner, error) {
	p, err := NewPartition(pixelMap, edges)
	if err != nil {
		return nil, err
	}
	return p.Bind(m)
}

// Partition returns the underlying partition.
func (b *Binner) Partition() *Partition { return b.p }

// Edges returns the bin boundaries.
func (b *Binner) Edges() []float64 { return b.p.edges }

// Counts returns the number of kept pixels per bin.
func (b *Binner) Counts() []int { return b.counts }

// Group returns the kept pixel indices of bin i in partition order.
func (b *Binner) Group(i int) []int { return b.groups[i] }

// Len returns the number of bins.
func (b *Binner) Len() int { return len(b.groups) }

// BinCenters returns the midpoint of every bin.
func (b *Binner) BinCenters() []float64 { return b.p.Centers() }

// Values gathers img's kept pixels of bin i.
func (b *Binner) Values(img *frame.Frame, i int) []float64 {
	group := b.groups[i]
	out := make([]float64, len(group))
	for k, px := range group {
		out[k] = img.Pix[px]
	}
	return out
}

// Evaluate reduces img per bin. Non-finite results, including those of
// empty bins, are returned as 0.
func (b *Binner) Evaluate(img *frame.Frame, s Statistic) ([]float64, error) {
	if img.Shape != b.p.shape {
		return nil, errors.ShapeMismatch("binning.Evaluate", b.p.shape, img.Shape)
	}
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = Reduce(s, b.Values(img, i))
	}
	return frame.NanToNum(out), nil
}

// ZScore returns (v - ring mean) / ring std for every kept pixel. Excluded
// pixels and rings with zero spread score 0.
func (b *Binner) ZScore(img *frame.Frame) (*frame.Frame, error) {
	if img.Shape != b.p.shape {
		return nil, errors.ShapeMismatch("binning.ZScore", b.p.shape, img.Shape)
	}
	out := frame.New(img.Shape)
	for i := range b.groups {
		vals := b.Values(img, i)
		if len(vals) == 0 {
			continue
		}
		mean := Reduce(Mean, vals)
		std := PopStdDev(vals)
		for k, px := range b.groups[i] {
			out.Pix[px] = (vals[k] - mean) / std
		}
	}
	frame.NanToNum(out.Pix)
	return out, nil
}
