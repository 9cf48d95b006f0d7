// Package common holds numeric helpers shared by the analysis algorithms.
package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice using gonum. Empty input
// yields 0.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// ColumnMeans averages equal-length rows column by column.
func ColumnMeans(rows [][]float64, width int) []float64 {
	means := make([]float64, width)
	if len(rows) == 0 {
		return means
	}
	for _, row := range rows {
		floats.Add(means, row[:width])
	}
	floats.Scale(1/float64(len(rows)), means)
	return means
}

// Sum returns the sum of data.
func Sum(data []float64) float64 {
	return floats.Sum(data)
}

// ParabolicOffset fits a parabola through data[i-1], data[i], data[i+1] and
// returns the vertex offset from i, in [-0.5, 0.5]. Edges and flat
// neighbourhoods yield 0.
func ParabolicOffset(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return 0
	}

	a, b, c := data[i-1], data[i], data[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}

	offset := 0.5 * (a - c) / denom
	return Clamp(offset, -0.5, 0.5)
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// FiniteOr returns v, or fallback when v is NaN or infinite.
func FiniteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
