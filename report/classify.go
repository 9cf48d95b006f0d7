package report

// PitchClass is the qualitative band of a mean pitch.
type PitchClass string

const (
	PitchLow      PitchClass = "low"
	PitchModerate PitchClass = "moderate"
	PitchHigh     PitchClass = "high"
)

// TempoClass is the qualitative band of a tempo estimate.
type TempoClass string

const (
	TempoSlow     TempoClass = "slow"
	TempoModerate TempoClass = "moderate"
	TempoFast     TempoClass = "fast"
)

// TimbreClass describes the spectral centroid.
type TimbreClass string

const (
	TimbreDark   TimbreClass = "dark"
	TimbreBright TimbreClass = "bright"
)

// ZCRClass is the qualitative band of the zero-crossing rate.
type ZCRClass string

const (
	ZCRSmooth   ZCRClass = "smooth"
	ZCRModerate ZCRClass = "moderate"
	ZCRHigh     ZCRClass = "high"
)

// Comparison places a measured value relative to its benchmark.
type Comparison string

const (
	Below Comparison = "below"
	Near  Comparison = "near"
	Above Comparison = "above"
)

// Band edges. Lower bounds are inclusive.
const (
	pitchModerateHz = 110.0
	pitchHighHz     = 440.0

	tempoModerateBPM = 60.0
	tempoFastBPM     = 120.0

	brightCentroidHz = 2000.0

	zcrModerate = 0.1
	zcrHigh     = 0.3

	nearLow  = 0.9
	nearHigh = 1.1
)

// ClassifyPitch bands a mean pitch: below 110 Hz is low, below 440 Hz is
// moderate, anything higher is high.
func ClassifyPitch(hz float64) PitchClass {
	switch {
	case hz < pitchModerateHz:
		return PitchLow
	case hz < pitchHighHz:
		return PitchModerate
	default:
		return PitchHigh
	}
}

// ClassifyTempo bands a tempo: below 60 BPM is slow, below 120 BPM is
// moderate, anything faster is fast.
func ClassifyTempo(bpm float64) TempoClass {
	switch {
	case bpm < tempoModerateBPM:
		return TempoSlow
	case bpm < tempoFastBPM:
		return TempoModerate
	default:
		return TempoFast
	}
}

// ClassifyTimbre reports a centroid below 2000 Hz as dark and anything else
// as bright.
func ClassifyTimbre(centroidHz float64) TimbreClass {
	if centroidHz < brightCentroidHz {
		return TimbreDark
	}
	return TimbreBright
}

// ClassifyZCR bands a zero-crossing rate: below 0.1 is smooth, below 0.3 is
// moderate, anything higher is high.
func ClassifyZCR(zcr float64) ZCRClass {
	switch {
	case zcr < zcrModerate:
		return ZCRSmooth
	case zcr < zcrHigh:
		return ZCRModerate
	default:
		return ZCRHigh
	}
}

// Compare returns Near when value lies within ±10% of reference, inclusive.
func Compare(value, reference float64) Comparison {
	switch {
	case value < reference*nearLow:
		return Below
	case value <= reference*nearHigh:
		return Near
	default:
		return Above
	}
}
