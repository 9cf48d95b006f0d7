package spectral

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-vocal/logging"
)

// Spectrogram holds the half-spectrum magnitudes of every frame.
type Spectrogram struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // FFTSize/2 + 1
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	FFTSize        int         `json:"fft_size"`        // Transform length after padding
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // Seconds per frame
}

// BinFrequency returns the centre frequency of bin k in Hz.
func (s *Spectrogram) BinFrequency(k int) float64 {
	return float64(k) * s.FreqResolution
}

// FrameRate returns frames per second.
func (s *Spectrogram) FrameRate() float64 {
	return float64(s.SampleRate) / float64(s.HopSize)
}

// STFT computes spectrograms over pre-segmented frames with a worker pool.
type STFT struct {
	engine  *SpectralEngine
	workers int
	logger  logging.Logger
}

// NewSTFT creates an STFT. workers <= 0 sizes the pool from the frame count
// and runtime.NumCPU.
func NewSTFT(engine *SpectralEngine, workers int) *STFT {
	return &STFT{
		engine:  engine,
		workers: workers,
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Compute transforms every frame. Each worker writes only its own rows.
// Cancellation is checked once per frame.
func (s *STFT) Compute(ctx context.Context, frames []Frame, sampleRate, hopSize int) (*Spectrogram, error) {
	return s.Stream(ctx, slices.Values(frames), len(frames), sampleRate, hopSize, nil)
}

// Stream transforms count frames pulled from seq. The queue holds one frame
// per worker and only the magnitude rows are kept, so at most about two
// frames per worker are alive at once. visit, when non-nil, sees every frame
// in order on the producing goroutine before it is queued.
func (s *STFT) Stream(ctx context.Context, seq iter.Seq[Frame], count, sampleRate, hopSize int, visit func(Frame)) (*Spectrogram, error) {
	if count <= 0 {
		return nil, fmt.Errorf("no frames to transform")
	}

	magnitude := make([][]float64, count)
	numWorkers := s.workers
	if numWorkers <= 0 {
		numWorkers = getOptimalWorkerCount(count)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan Frame, numWorkers)

	g.Go(func() error {
		defer close(jobs)
		for f := range seq {
			if f.Index < 0 || f.Index >= count {
				return fmt.Errorf("frame %d outside the expected %d frames", f.Index, count)
			}
			if visit != nil {
				visit(f)
			}
			select {
			case jobs <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range numWorkers {
		g.Go(func() error {
			for f := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}

				mag, err := s.engine.Spectrum(f.Windowed)
				if err != nil {
					return fmt.Errorf("frame %d: %w", f.Index, err)
				}
				magnitude[f.Index] = mag
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, row := range magnitude {
		if row == nil {
			return nil, fmt.Errorf("frame %d was never produced", i)
		}
	}

	s.logger.Debug("Spectrogram computed", logging.Fields{
		"frames":   count,
		"fft_size": s.engine.FFTSize(),
		"workers":  numWorkers,
	})

	return &Spectrogram{
		Magnitude:      magnitude,
		TimeFrames:     count,
		FreqBins:       s.engine.Bins(),
		SampleRate:     sampleRate,
		FFTSize:        s.engine.FFTSize(),
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(s.engine.FFTSize()),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// getOptimalWorkerCount determines the number of workers based on workload
func getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// Cap medium workloads
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
