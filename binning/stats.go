package binning

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic selects a per-bin reduction.
type Statistic string

const (
	Mean   Statistic = "mean"
	Median Statistic = "median"
	Std    Statistic = "std"
	Count  Statistic = "count"
	Sum    Statistic = "sum"
	Max    Statistic = "max"
	Min    Statistic = "min"
)

// Reduce applies s to values. Empty input yields NaN for every statistic
// except Count and Sum.
func Reduce(s Statistic, values []float64) float64 {
	switch s {
	case Count:
		return float64(len(values))
	case Sum:
		return floats.Sum(values)
	}
	if len(values) == 0 {
		return math.NaN()
	}
	switch s {
	case Mean:
		return stat.Mean(values, nil)
	case Median:
		return MedianOf(values)
	case Std:
		return PopStdDev(values)
	case Max:
		return floats.Max(values)
	case Min:
		return floats.Min(values)
	}
	return math.NaN()
}

// MedianOf returns the median of values, averaging the two middle elements
// for even lengths. values is not modified.
func MedianOf(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// PopStdDev is the population standard deviation.
func PopStdDev(values []float64) float64 {
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}
