package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/audio"
)

// FFT wraps mjibson/go-dsp.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the complex spectrum of a real signal.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// SpectralEngine turns windowed frames into half-spectrum magnitudes. Frames
// are zero-padded to the next power of two at or above the frame size.
type SpectralEngine struct {
	frameSize int
	fftSize   int
	fft       *FFT
}

// NewSpectralEngine creates an engine for frames of frameSize samples.
func NewSpectralEngine(frameSize int) (*SpectralEngine, error) {
	if frameSize <= 0 {
		return nil, &audio.InvalidFrameError{FrameSize: frameSize, Reason: "frame size must be positive"}
	}
	return &SpectralEngine{
		frameSize: frameSize,
		fftSize:   common.NextPowerOfTwo(frameSize),
		fft:       NewFFT(),
	}, nil
}

// FFTSize returns the transform length.
func (e *SpectralEngine) FFTSize() int { return e.fftSize }

// Bins returns the number of magnitudes per spectrum, FFTSize/2+1.
func (e *SpectralEngine) Bins() int { return e.fftSize/2 + 1 }

// Spectrum returns |X[k]| for k = 0..FFTSize/2 of a windowed frame. Bin k
// sits at k*sampleRate/FFTSize Hz.
func (e *SpectralEngine) Spectrum(windowed []float64) ([]float64, error) {
	if len(windowed) == 0 || len(windowed) > e.fftSize {
		return nil, &audio.InvalidFrameError{
			FrameSize: e.frameSize,
			Length:    len(windowed),
			Reason:    fmt.Sprintf("frame length must be in [1, %d]", e.fftSize),
		}
	}

	padded := windowed
	if len(windowed) != e.fftSize {
		padded = make([]float64, e.fftSize)
		copy(padded, windowed)
	}

	spectrum := e.fft.Compute(padded)
	magnitude := make([]float64, e.Bins())
	for k := range magnitude {
		magnitude[k] = cmplx.Abs(spectrum[k])
	}
	return magnitude, nil
}
