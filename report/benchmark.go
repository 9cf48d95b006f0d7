package report

import (
	"errors"
	"fmt"
	"math"
)

// Benchmark is the professional reference a performance is compared against.
type Benchmark struct {
	PitchHz            float64 `json:"pitch" yaml:"pitch_hz"`
	TempoBPM           float64 `json:"tempo" yaml:"tempo_bpm"`
	SpectralCentroidHz float64 `json:"spectral_centroid" yaml:"spectral_centroid_hz"`
}

// DefaultBenchmark returns the reference used when no profile is selected.
func DefaultBenchmark() Benchmark {
	return Benchmark{
		PitchHz:            220,
		TempoBPM:           120,
		SpectralCentroidHz: 2500,
	}
}

// Validate reports every non-positive or non-finite reference value.
func (b Benchmark) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			errs = append(errs, fmt.Errorf("benchmark %s must be a positive finite number, got %v", name, v))
		}
	}
	check("pitch_hz", b.PitchHz)
	check("tempo_bpm", b.TempoBPM)
	check("spectral_centroid_hz", b.SpectralCentroidHz)
	return errors.Join(errs...)
}
