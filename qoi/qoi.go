// Package qoi extracts quantities of interest from reduced profiles.
package qoi

// Peak orders used on the mean I(Q) profile and on G(r).
const (
	ProfilePeakOrder = 20
	PDFPeakOrder     = 5
)

// Peak is one relative maximum of a curve.
type Peak struct {
	Index     int     `json:"index"`
	Position  float64 `json:"position"`
	Intensity float64 `json:"intensity"`
}

// ArgRelMax returns the indices i where y[i] is strictly greater than every
// neighbour within order samples on both sides. Neighbour indices are
// clipped to the ends, so the first and last samples are never peaks.
func ArgRelMax(y []float64, order int) []int {
	if order < 1 {
		order = 1
	}
	n := len(y)
	var out []int
	for i := 0; i < n; i++ {
		peak := true
		for k := 1; k <= order && peak; k++ {
			lo, hi := i-k, i+k
			if lo < 0 {
				lo = 0
			}
			if hi > n-1 {
				hi = n - 1
			}
			peak = y[i] > y[lo] && y[i] > y[hi]
		}
		if peak {
			out = append(out, i)
		}
	}
	return out
}

// Peaks locates the relative maxima of y and reports their x positions.
// x and y must have the same length.
func Peaks(x, y []float64, order int) []Peak {
	idx := ArgRelMax(y, order)
	out := make([]Peak, len(idx))
	for k, i := range idx {
		out[k] = Peak{Index: i, Position: x[i], Intensity: y[i]}
	}
	return out
}
