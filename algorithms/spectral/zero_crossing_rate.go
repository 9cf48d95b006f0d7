package spectral

import (
	"context"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
)

// ZeroCrossingRate counts sign changes in raw time-domain frames. High values
// indicate noisy or fricative content, low values smooth voiced content.
type ZeroCrossingRate struct{}

// NewZeroCrossingRate creates a new zero crossing rate calculator
func NewZeroCrossingRate() *ZeroCrossingRate {
	return &ZeroCrossingRate{}
}

// ComputeNormalized returns crossings/(len-1), in [0, 1].
func (zcr *ZeroCrossingRate) ComputeNormalized(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0 && frame[i] < 0) || (frame[i-1] < 0 && frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// ComputeFrame returns the normalized rate over the frame's real samples,
// so zero padding adds no crossings.
func (zcr *ZeroCrossingRate) ComputeFrame(f Frame) float64 {
	return zcr.ComputeNormalized(f.Samples[:f.Valid])
}

// ComputeMean averages the normalized rate over frames, using only each
// frame's real samples so zero padding adds no crossings.
func (zcr *ZeroCrossingRate) ComputeMean(ctx context.Context, frames []Frame) (float64, error) {
	rates := make([]float64, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rates[i] = zcr.ComputeFrame(f)
	}
	return common.Mean(rates), nil
}
