// Package tonal estimates the fundamental pitch of a performance.
package tonal

import (
	"context"
	"math"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/logging"
)

// PitchDetectionParams contains parameters for pitch tracking
type PitchDetectionParams struct {
	// Frequency range searched for the spectral peak (Hz)
	MinFreq float64 `json:"min_freq" yaml:"min_freq"`
	MaxFreq float64 `json:"max_freq" yaml:"max_freq"`

	// NoiseFloor is the minimum linear peak amplitude for a frame to count
	// as voiced. 1e-3 is roughly -60 dBFS.
	NoiseFloor float64 `json:"noise_floor" yaml:"noise_floor"`
}

// DefaultPitchDetectionParams searches 50-1000 Hz with a -60 dBFS floor.
func DefaultPitchDetectionParams() PitchDetectionParams {
	return PitchDetectionParams{
		MinFreq:    50.0,
		MaxFreq:    1000.0,
		NoiseFloor: 1e-3,
	}
}

// PitchCandidate is the per-frame estimate.
type PitchCandidate struct {
	Frequency float64 `json:"frequency"` // Hz, 0 when unvoiced
	Amplitude float64 `json:"amplitude"` // linear amplitude estimate of the peak
	Voiced    bool    `json:"voiced"`
}

// PitchDetectionResult aggregates a whole performance.
type PitchDetectionResult struct {
	Pitch        float64          `json:"pitch"` // mean over voiced frames, 0 if none
	VoicedFrames int              `json:"voiced_frames"`
	TotalFrames  int              `json:"total_frames"`
	Candidates   []PitchCandidate `json:"-"`
}

// PitchDetector tracks the dominant spectral peak frame by frame.
type PitchDetector struct {
	params    PitchDetectionParams
	windowSum float64
	logger    logging.Logger
}

// NewPitchDetector creates a detector. windowSum is the sum of the analysis
// window coefficients, used to turn a magnitude peak into an amplitude.
func NewPitchDetector(params PitchDetectionParams, windowSum float64) *PitchDetector {
	defaults := DefaultPitchDetectionParams()
	if params.MinFreq <= 0 {
		params.MinFreq = defaults.MinFreq
	}
	if params.MaxFreq <= params.MinFreq {
		params.MaxFreq = defaults.MaxFreq
	}
	if params.NoiseFloor <= 0 {
		params.NoiseFloor = defaults.NoiseFloor
	}
	if windowSum <= 0 {
		windowSum = 1
	}

	return &PitchDetector{
		params:    params,
		windowSum: windowSum,
		logger: logging.WithFields(logging.Fields{
			"component": "pitch_detector",
		}),
	}
}

// DetectFrame finds the strongest bin inside the search range and refines
// it with parabolic interpolation over log magnitudes.
func (pd *PitchDetector) DetectFrame(magnitude []float64, binHz float64) PitchCandidate {
	if len(magnitude) < 3 || binHz <= 0 {
		return PitchCandidate{}
	}

	lo := max(1, int(math.Ceil(pd.params.MinFreq/binHz)))
	hi := min(len(magnitude)-2, int(math.Floor(pd.params.MaxFreq/binHz)))
	if lo > hi {
		return PitchCandidate{}
	}

	peak := lo
	for k := lo + 1; k <= hi; k++ {
		if magnitude[k] > magnitude[peak] {
			peak = k
		}
	}

	amplitude := 2 * magnitude[peak] / pd.windowSum
	if amplitude < pd.params.NoiseFloor {
		return PitchCandidate{Amplitude: amplitude}
	}

	logMag := []float64{
		math.Log(magnitude[peak-1] + 1e-12),
		math.Log(magnitude[peak] + 1e-12),
		math.Log(magnitude[peak+1] + 1e-12),
	}
	offset := common.ParabolicOffset(logMag, 1)

	return PitchCandidate{
		Frequency: (float64(peak) + offset) * binHz,
		Amplitude: amplitude,
		Voiced:    true,
	}
}

// Detect runs DetectFrame over the spectrogram and averages voiced
// estimates. ctx is checked once per frame.
func (pd *PitchDetector) Detect(ctx context.Context, spec *spectral.Spectrogram) (*PitchDetectionResult, error) {
	result := &PitchDetectionResult{
		TotalFrames: len(spec.Magnitude),
		Candidates:  make([]PitchCandidate, len(spec.Magnitude)),
	}

	voiced := make([]float64, 0, len(spec.Magnitude))
	for t, magnitude := range spec.Magnitude {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := pd.DetectFrame(magnitude, spec.FreqResolution)
		result.Candidates[t] = c
		if c.Voiced {
			voiced = append(voiced, c.Frequency)
		}
	}

	result.VoicedFrames = len(voiced)
	result.Pitch = common.Mean(voiced)

	pd.logger.Debug("Pitch tracked", logging.Fields{
		"voiced_frames": result.VoicedFrames,
		"total_frames":  result.TotalFrames,
		"pitch_hz":      result.Pitch,
	})
	return result, nil
}
