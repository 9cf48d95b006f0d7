package windowing

import "math"

// Hann is the raised-cosine window used for analysis frames by default.
type Hann struct {
	table
	symmetric bool
}

// NewHann creates a Hann window. The symmetric form divides by size-1, the
// periodic form by size.
func NewHann(size int, symmetric bool) *Hann {
	denominator := float64(size)
	if symmetric && size > 1 {
		denominator = float64(size - 1)
	}

	return &Hann{
		table: newTable("hann", size, func(i int) float64 {
			return 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
		}),
		symmetric: symmetric,
	}
}
