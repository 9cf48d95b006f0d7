package analysis

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-vocal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-vocal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-vocal/algorithms/windowing"
)

// NumMFCC is the fixed number of cepstral coefficients in a FeatureSet.
const NumMFCC = 13

// Params holds the tunable constants of the feature pipeline.
type Params struct {
	FrameSize int            `json:"frame_size" yaml:"frame_size"`
	HopSize   int            `json:"hop_size" yaml:"hop_size"`
	Window    windowing.Type `json:"window" yaml:"window"`
	// Workers sizes the STFT worker pool; 0 picks from runtime.NumCPU.
	Workers int `json:"workers" yaml:"workers"`
	// RemoveDC high-passes the recording before framing.
	RemoveDC   bool    `json:"remove_dc" yaml:"remove_dc"`
	DCCutoffHz float64 `json:"dc_cutoff_hz" yaml:"dc_cutoff_hz"`

	Pitch tonal.PitchDetectionParams `json:"pitch" yaml:"pitch"`
	Tempo temporal.TempoParams       `json:"tempo" yaml:"tempo"`
	MFCC  MFCCParams                 `json:"mfcc" yaml:"mfcc"`
}

// MFCCParams configures the mel filter bank. The coefficient count is
// always NumMFCC.
type MFCCParams struct {
	NumMelFilters int     `json:"num_mel_filters" yaml:"num_mel_filters"`
	LowFreq       float64 `json:"low_freq" yaml:"low_freq"`
	// HighFreq of 0 means Nyquist.
	HighFreq     float64 `json:"high_freq" yaml:"high_freq"`
	UseLiftering bool    `json:"use_liftering" yaml:"use_liftering"`
	LifterCoeff  float64 `json:"lifter_coeff" yaml:"lifter_coeff"`
}

// DefaultParams returns 2048-sample Hann frames with a 512-sample hop and
// the default extractor settings.
func DefaultParams() Params {
	return Params{
		FrameSize: 2048,
		HopSize:   512,
		Window:    windowing.TypeHann,
		Pitch:     tonal.DefaultPitchDetectionParams(),
		Tempo:     temporal.DefaultTempoParams(),
		MFCC: MFCCParams{
			NumMelFilters: 40,
			LifterCoeff:   22,
		},
	}
}

// Validate reports every out-of-range setting that is not a frame geometry
// problem. Frame geometry is checked by NewAnalyzer and surfaces as an
// invalid_frame *Error.
func (p Params) Validate() error {
	var errs []error
	if p.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", p.Workers))
	}
	if p.DCCutoffHz < 0 {
		errs = append(errs, fmt.Errorf("dc_cutoff_hz must be >= 0, got %v", p.DCCutoffHz))
	}
	if p.Pitch.MinFreq < 0 || (p.Pitch.MaxFreq != 0 && p.Pitch.MaxFreq <= p.Pitch.MinFreq) {
		errs = append(errs, fmt.Errorf("pitch range [%v, %v] is empty", p.Pitch.MinFreq, p.Pitch.MaxFreq))
	}
	if p.Pitch.NoiseFloor < 0 {
		errs = append(errs, fmt.Errorf("pitch noise floor must be >= 0, got %v", p.Pitch.NoiseFloor))
	}
	if p.Tempo.MinBPM < 0 || (p.Tempo.MaxBPM != 0 && p.Tempo.MaxBPM <= p.Tempo.MinBPM) {
		errs = append(errs, fmt.Errorf("tempo range [%v, %v] is empty", p.Tempo.MinBPM, p.Tempo.MaxBPM))
	}
	if p.Tempo.TieTolerance < 0 || p.Tempo.TieTolerance >= 1 {
		errs = append(errs, fmt.Errorf("tempo tie tolerance must be in [0, 1), got %v", p.Tempo.TieTolerance))
	}
	if p.MFCC.NumMelFilters < 0 || (p.MFCC.NumMelFilters > 0 && p.MFCC.NumMelFilters < NumMFCC) {
		errs = append(errs, fmt.Errorf("num_mel_filters must be >= %d, got %d", NumMFCC, p.MFCC.NumMelFilters))
	}
	return errors.Join(errs...)
}
