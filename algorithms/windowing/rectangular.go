package windowing

// Rectangular (boxcar) window: every coefficient is 1.
type Rectangular struct {
	table
}

// NewRectangular creates a rectangular window.
func NewRectangular(size int) *Rectangular {
	return &Rectangular{table: newTable("rectangular", size, func(int) float64 { return 1 })}
}
