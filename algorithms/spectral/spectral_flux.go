package spectral

// SpectralFlux measures frame-to-frame spectral change.
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute returns the half-wave rectified flux Σ_k max(0, |X_t[k]|-|X_{t-1}[k]|)
// for every transition t = 1..T-1.
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	if len(spectrogram) < 2 {
		return []float64{}
	}

	flux := make([]float64, len(spectrogram)-1)
	for t := 1; t < len(spectrogram); t++ {
		sum := 0.0
		for f := 0; f < len(spectrogram[t]) && f < len(spectrogram[t-1]); f++ {
			if diff := spectrogram[t][f] - spectrogram[t-1][f]; diff > 0 {
				sum += diff
			}
		}
		flux[t-1] = sum
	}
	return flux
}
