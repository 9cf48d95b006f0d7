package filters

import (
	"fmt"
	"math"
)

// DefaultDCCutoff is the -3dB corner used when no cutoff is configured.
const DefaultDCCutoff = 10.0

// DCBlocker is a one-pole high-pass filter that removes the 0 Hz component
// of a recording before analysis. A constant offset otherwise suppresses
// zero crossings and leaks into the lowest FFT bin.
//
// The difference equation is y[n] = x[n] - x[n-1] + R*y[n-1], with the pole
// R derived from the cutoff as R = 1 - 2*pi*fc/fs.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole       float64
	sampleRate int

	x1 float64
	y1 float64
}

// NewDCBlocker returns a blocker with its corner at cutoffHz. A cutoff of 0
// selects DefaultDCCutoff.
func NewDCBlocker(sampleRate int, cutoffHz float64) (*DCBlocker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("dc blocker: sample rate must be positive, got %d", sampleRate)
	}
	if cutoffHz == 0 {
		cutoffHz = DefaultDCCutoff
	}
	if cutoffHz < 0 || cutoffHz >= float64(sampleRate)/2 || math.IsNaN(cutoffHz) {
		return nil, fmt.Errorf("dc blocker: cutoff %v Hz outside (0, %d)", cutoffHz, sampleRate/2)
	}

	pole := 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
	pole = min(max(pole, 0.001), 0.9999)
	return &DCBlocker{pole: pole, sampleRate: sampleRate}, nil
}

// Pole returns R.
func (dc *DCBlocker) Pole() float64 { return dc.pole }

// Process filters one sample.
func (dc *DCBlocker) Process(x float64) float64 {
	y := x - dc.x1 + dc.pole*dc.y1
	dc.x1 = x
	dc.y1 = y
	return y
}

// Apply filters input into a new slice. The filter state carries over
// between calls; call Reset between unrelated recordings.
func (dc *DCBlocker) Apply(input []float64) []float64 {
	out := make([]float64, len(input))
	for i, x := range input {
		out[i] = dc.Process(x)
	}
	return out
}

// Reset clears the filter state.
func (dc *DCBlocker) Reset() {
	dc.x1, dc.y1 = 0, 0
}

// Magnitude returns |H| at freq Hz, where
// H(e^jw) = (1 - e^-jw) / (1 - R*e^-jw).
func (dc *DCBlocker) Magnitude(freq float64) float64 {
	w := 2.0 * math.Pi * freq / float64(dc.sampleRate)
	cosW, sinW := math.Cos(w), math.Sin(w)

	num := math.Hypot(1-cosW, sinW)
	den := math.Hypot(1-dc.pole*cosW, dc.pole*sinW)
	if den == 0 {
		return 0
	}
	return num / den
}
