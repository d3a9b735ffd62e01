package mask

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/xpdflow/binning"
)

// RingFunc returns the positions of a ring's outlier pixels.
type RingFunc func(values []float64, positions []int, alpha float64) []int

// RingMedian flags pixels further than alpha standard deviations from the
// ring median in one pass. A ring with zero spread flags nothing.
func RingMedian(values []float64, positions []int, alpha float64) []int {
	std := binning.PopStdDev(values)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	med := binning.MedianOf(values)
	var out []int
	for i, v := range values {
		if math.Abs(v-med)/std > alpha {
			out = append(out, positions[i])
		}
	}
	return out
}

// RingMean repeatedly removes the pixel furthest from the ring mean until
// all remaining pixels are within alpha standard deviations, the spread is
// zero, or at most one pixel remains.
func RingMean(values []float64, positions []int, alpha float64) []int {
	vals := append([]float64(nil), values...)
	pos := append([]int(nil), positions...)
	var out []int
	dev := make([]float64, 0, len(vals))
	for len(vals) > 1 {
		mean, std := stat.PopMeanStdDev(vals, nil)
		if std == 0 {
			break
		}
		dev = dev[:0]
		for _, v := range vals {
			dev = append(dev, math.Abs(v-mean)/std)
		}
		worst := floats.MaxIdx(dev)
		if dev[worst] < alpha {
			break
		}
		out = append(out, pos[worst])
		vals = append(vals[:worst], vals[worst+1:]...)
		pos = append(pos[:worst], pos[worst+1:]...)
	}
	return out
}

func ringFunc(m Method) RingFunc {
	if m == MethodMean {
		return RingMean
	}
	return RingMedian
}
