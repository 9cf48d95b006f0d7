package spectral

// PowerSpectrum squares magnitudes.
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes |X[k]|^2 from a magnitude spectrum.
func (ps *PowerSpectrum) Compute(magnitudeSpectrum []float64) []float64 {
	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}
	return power
}

// ComputeInto writes the power spectrum into dst, which must be at least as
// long as magnitudeSpectrum.
func (ps *PowerSpectrum) ComputeInto(dst, magnitudeSpectrum []float64) {
	for i, mag := range magnitudeSpectrum {
		dst[i] = mag * mag
	}
}
