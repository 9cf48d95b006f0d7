package windowing

import "math"

// Hamming window. Never reaches zero at the edges.
type Hamming struct {
	table
	symmetric bool
}

// NewHamming creates a Hamming window.
func NewHamming(size int, symmetric bool) *Hamming {
	denominator := float64(size)
	if symmetric && size > 1 {
		denominator = float64(size - 1)
	}

	return &Hamming{
		table: newTable("hamming", size, func(i int) float64 {
			return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/denominator)
		}),
		symmetric: symmetric,
	}
}
