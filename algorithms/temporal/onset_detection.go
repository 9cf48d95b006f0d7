// Package temporal derives rhythm features from frame-to-frame change.
package temporal

import (
	"context"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
)

// OnsetDetection builds onset strength curves from a spectrogram.
type OnsetDetection struct {
	spectralFlux *spectral.SpectralFlux
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection() *OnsetDetection {
	return &OnsetDetection{spectralFlux: spectral.NewSpectralFlux()}
}

// Strength returns one half-wave rectified flux value per frame transition.
func (od *OnsetDetection) Strength(ctx context.Context, spec *spectral.Spectrogram) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return od.spectralFlux.Compute(spec.Magnitude), nil
}

// PeakFrames returns indices of local maxima in curve that reach threshold
// and are at least minGap frames apart.
func (od *OnsetDetection) PeakFrames(curve []float64, threshold float64, minGap int) []int {
	var peaks []int
	for i := 1; i < len(curve)-1; i++ {
		if curve[i] < threshold || curve[i] < curve[i-1] || curve[i] <= curve[i+1] {
			continue
		}
		if len(peaks) > 0 && i-peaks[len(peaks)-1] < minGap {
			if curve[i] > curve[peaks[len(peaks)-1]] {
				peaks[len(peaks)-1] = i
			}
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}
