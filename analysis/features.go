package analysis

import "time"

// FeatureSet is the measured description of one performance. Every value is
// finite; silence yields zeros.
type FeatureSet struct {
	PitchHz            float64          `json:"pitch"`
	TempoBPM           float64          `json:"tempo"`
	SpectralCentroidHz float64          `json:"spectral_centroid"`
	ZeroCrossingRate   float64          `json:"zcr"`
	MFCC               [NumMFCC]float64 `json:"mfcc"`

	Diagnostics Diagnostics `json:"-"`
}

// Diagnostics carries bookkeeping about how the features were computed.
type Diagnostics struct {
	SampleRate      int
	Duration        time.Duration
	Frames          int
	FFTSize         int
	VoicedFrames    int
	TempoConfidence float64
	Elapsed         time.Duration
}
