package spectral

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
)

// logFloor keeps silent mel bands finite.
const logFloor = 1e-10

// MFCC computes Mel-Frequency Cepstral Coefficients
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64
	useLiftering    bool
	lifterCoeff     float64

	melScale   *MelScale
	power      *PowerSpectrum
	filterBank [][]float64
	dctMatrix  [][]float64
	fftSize    int
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients" yaml:"num_coefficients"` // default 13
	NumMelFilters   int     `json:"num_mel_filters" yaml:"num_mel_filters"`   // default 40
	LowFreq         float64 `json:"low_freq" yaml:"low_freq"`                 // default 0
	HighFreq        float64 `json:"high_freq" yaml:"high_freq"`               // default sampleRate/2
	UseLiftering    bool    `json:"use_liftering" yaml:"use_liftering"`       // default false
	LifterCoeff     float64 `json:"lifter_coeff" yaml:"lifter_coeff"`         // default 22
}

// DefaultMFCCParams returns 13 coefficients over 40 mel bands spanning
// 0 Hz to Nyquist, without liftering.
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   40,
		LifterCoeff:     22.0,
	}
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(sampleRate int, params MFCCParams) *MFCC {
	defaults := DefaultMFCCParams()
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = defaults.NumCoefficients
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = defaults.NumMelFilters
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.LifterCoeff <= 0 {
		params.LifterCoeff = defaults.LifterCoeff
	}

	return &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		useLiftering:    params.UseLiftering,
		lifterCoeff:     params.LifterCoeff,
		melScale:        NewMelScale(),
		power:           NewPowerSpectrum(),
	}
}

// Initialize prepares the filter bank and DCT matrix for the given FFT size
func (m *MFCC) Initialize(fftSize int) error {
	if fftSize <= 0 {
		return fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	m.filterBank = m.melScale.CreateMelFilterBank(m.numMelFilters, fftSize, m.sampleRate, m.lowFreq, m.highFreq)
	if len(m.filterBank) == 0 {
		return fmt.Errorf("failed to create mel filter bank")
	}

	m.createDCTMatrix()
	m.fftSize = fftSize
	return nil
}

// Compute returns the cepstral coefficients of one magnitude spectrum.
func (m *MFCC) Compute(magnitudeSpectrum []float64) ([]float64, error) {
	if len(magnitudeSpectrum) < 2 {
		return nil, fmt.Errorf("magnitude spectrum too short: %d bins", len(magnitudeSpectrum))
	}

	fftSize := (len(magnitudeSpectrum) - 1) * 2
	if m.fftSize != fftSize {
		if err := m.Initialize(fftSize); err != nil {
			return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
		}
	}

	melSpectrum := m.melScale.ApplyFilterBank(m.power.Compute(magnitudeSpectrum), m.filterBank)
	for i, mel := range melSpectrum {
		melSpectrum[i] = math.Log(max(mel, logFloor))
	}

	coeffs := m.applyDCT(melSpectrum)
	if m.useLiftering {
		coeffs = m.applyLiftering(coeffs)
	}
	return coeffs, nil
}

// ComputeMean averages the per-frame coefficients across the spectrogram,
// checking ctx once per frame.
func (m *MFCC) ComputeMean(ctx context.Context, spec *Spectrogram) ([]float64, error) {
	frames := make([][]float64, 0, len(spec.Magnitude))
	for t, magnitude := range spec.Magnitude {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		coeffs, err := m.Compute(magnitude)
		if err != nil {
			return nil, fmt.Errorf("failed to compute MFCC for frame %d: %w", t, err)
		}
		frames = append(frames, coeffs)
	}

	return common.ColumnMeans(frames, m.numCoefficients), nil
}

// createDCTMatrix builds an orthonormal DCT-II basis
func (m *MFCC) createDCTMatrix() {
	m.dctMatrix = make([][]float64, m.numCoefficients)
	n := float64(m.numMelFilters)

	for k := range m.numCoefficients {
		m.dctMatrix[k] = make([]float64, m.numMelFilters)
		scale := math.Sqrt(2.0 / n)
		if k == 0 {
			scale = math.Sqrt(1.0 / n)
		}

		for j := range m.numMelFilters {
			m.dctMatrix[k][j] = scale * math.Cos(math.Pi*float64(k)*(float64(j)+0.5)/n)
		}
	}
}

func (m *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, m.numCoefficients)
	for k, basis := range m.dctMatrix {
		sum := 0.0
		for j := 0; j < len(logMelSpectrum) && j < len(basis); j++ {
			sum += logMelSpectrum[j] * basis[j]
		}
		coeffs[k] = sum
	}
	return coeffs
}

// applyLiftering applies sinusoidal liftering; C0 is left alone
func (m *MFCC) applyLiftering(coeffs []float64) []float64 {
	liftered := make([]float64, len(coeffs))
	for i, c := range coeffs {
		if i == 0 {
			liftered[i] = c
			continue
		}
		liftered[i] = c * (1.0 + (m.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.lifterCoeff))
	}
	return liftered
}

// GetParams returns the current MFCC parameters
func (m *MFCC) GetParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: m.numCoefficients,
		NumMelFilters:   m.numMelFilters,
		LowFreq:         m.lowFreq,
		HighFreq:        m.highFreq,
		UseLiftering:    m.useLiftering,
		LifterCoeff:     m.lifterCoeff,
	}
}
