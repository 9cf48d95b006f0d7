// Package windowing provides the tapering windows applied to analysis frames.
package windowing

import (
	"fmt"
	"strings"
)

// Type names a window function.
type Type string

const (
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeRectangular Type = "rectangular"
)

// Window is a precomputed tapering function of fixed size.
type Window interface {
	Apply(signal []float64) []float64
	ApplyInPlace(signal []float64) error
	GetCoefficients() []float64
	GetSize() int
	GetType() string
	// Sum returns the sum of the coefficients, used to turn a magnitude
	// peak into an amplitude estimate.
	Sum() float64
}

// New returns the window of the given type. Analysis frames use the
// periodic (non-symmetric) form.
func New(t Type, size int) (Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	switch Type(strings.ToLower(string(t))) {
	case TypeHann, "":
		return NewHann(size, false), nil
	case TypeHamming:
		return NewHamming(size, false), nil
	case TypeRectangular:
		return NewRectangular(size), nil
	default:
		return nil, fmt.Errorf("unknown window type %q", t)
	}
}

// table holds coefficients shared by every window implementation.
type table struct {
	kind         string
	coefficients []float64
	sum          float64
}

func newTable(kind string, size int, fn func(i int) float64) table {
	t := table{kind: kind, coefficients: make([]float64, size)}
	for i := range size {
		t.coefficients[i] = fn(i)
		t.sum += t.coefficients[i]
	}
	return t
}

// Apply returns a windowed copy of signal, or nil on a size mismatch.
func (t *table) Apply(signal []float64) []float64 {
	if len(signal) != len(t.coefficients) {
		return nil
	}

	windowed := make([]float64, len(signal))
	for i, c := range t.coefficients {
		windowed[i] = signal[i] * c
	}
	return windowed
}

// ApplyInPlace applies the window to signal in place.
func (t *table) ApplyInPlace(signal []float64) error {
	if len(signal) != len(t.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(t.coefficients))
	}

	for i, c := range t.coefficients {
		signal[i] *= c
	}
	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (t *table) GetCoefficients() []float64 {
	coeffs := make([]float64, len(t.coefficients))
	copy(coeffs, t.coefficients)
	return coeffs
}

func (t *table) GetSize() int { return len(t.coefficients) }
func (t *table) GetType() string { return t.kind }
func (t *table) Sum() float64 { return t.sum }
