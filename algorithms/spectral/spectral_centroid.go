package spectral

import (
	"context"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
)

// SpectralCentroid computes the magnitude-weighted mean frequency of a
// spectrum.
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64 // cached bin frequencies
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{sampleRate: sampleRate}
}

// Compute returns Σ f_k m_k / Σ m_k for one half spectrum, or 0 when the
// spectrum carries no energy.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) < 2 {
		return 0.0
	}
	if len(sc.freqBins) != len(spectrum) {
		sc.initializeFreqBins(len(spectrum))
	}

	numerator := 0.0
	denominator := 0.0
	for i, m := range spectrum {
		numerator += sc.freqBins[i] * m
		denominator += m
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// ComputeMean averages the centroid over every frame of spec.
func (sc *SpectralCentroid) ComputeMean(ctx context.Context, spec *Spectrogram) (float64, error) {
	centroids := make([]float64, len(spec.Magnitude))
	for t, spectrum := range spec.Magnitude {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		centroids[t] = sc.Compute(spectrum)
	}
	return common.Mean(centroids), nil
}

// initializeFreqBins caches k*sampleRate/fftSize for each bin
func (sc *SpectralCentroid) initializeFreqBins(numBins int) {
	fftSize := float64((numBins - 1) * 2)
	sc.freqBins = make([]float64, numBins)
	for i := range numBins {
		sc.freqBins[i] = float64(i) * float64(sc.sampleRate) / fftSize
	}
}
