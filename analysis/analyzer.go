// Package analysis turns a decoded performance into a FeatureSet: frames are
// transformed once, then pitch, tempo, spectral shape and MFCC extraction
// run concurrently over the shared read-only spectrogram.
package analysis

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/algorithms/filters"
	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/algorithms/temporal"
	"github.com/RyanBlaney/sonido-vocal/algorithms/tonal"
	"github.com/RyanBlaney/sonido-vocal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-vocal/audio"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/observe"
)

// Stage names used for spans and metrics.
const (
	StageFilter   = "filter"
	StageSpectrum = "spectrum"
	StagePitch    = "pitch"
	StageTempo    = "tempo"
	StageSpectral = "spectral_shape"
	StageMFCC     = "mfcc"
)

// Analyzer extracts features from audio buffers. It holds no per-analysis
// state and is safe for concurrent use.
type Analyzer struct {
	params    Params
	segmenter *spectral.FrameSegmenter
	engine    *spectral.SpectralEngine
	metrics   *observe.Metrics
	logger    logging.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default is the global logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records stage and analysis durations on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// NewAnalyzer validates params and prepares the frame segmenter and
// spectral engine. Bad frame geometry yields an invalid_frame *Error.
func NewAnalyzer(params Params, opts ...Option) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis params: %w", err)
	}

	if params.FrameSize <= 0 {
		return nil, classify(&audio.InvalidFrameError{FrameSize: params.FrameSize, HopSize: params.HopSize, Reason: "frame size must be positive"})
	}
	window, err := windowing.New(params.Window, params.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis params: %w", err)
	}

	segmenter, err := spectral.NewFrameSegmenter(params.FrameSize, params.HopSize, window)
	if err != nil {
		return nil, classify(err)
	}
	engine, err := spectral.NewSpectralEngine(params.FrameSize)
	if err != nil {
		return nil, classify(err)
	}

	a := &Analyzer{
		params:    params,
		segmenter: segmenter,
		engine:    engine,
		logger: logging.WithFields(logging.Fields{
			"component": "analyzer",
		}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Params returns the analyzer's configuration.
func (a *Analyzer) Params() Params { return a.params }

// Analyze computes the FeatureSet of buf. Failures are always *Error; no
// partial result is returned alongside one.
func (a *Analyzer) Analyze(ctx context.Context, buf *audio.Buffer) (fs *FeatureSet, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	logger := a.logger.WithContext(ctx)

	if a.metrics != nil {
		a.metrics.ActiveAnalyses.Add(ctx, 1)
	}
	defer func() {
		err = classify(err)
		if a.metrics != nil {
			a.metrics.ActiveAnalyses.Add(ctx, -1)
			status := "ok"
			if err != nil {
				status = string(KindOf(err))
			}
			a.metrics.RecordAnalysis(ctx, status, time.Since(start))
		}
		observe.EndSpan(span, err)
	}()

	if buf.Len() == 0 {
		return nil, &audio.EmptyInputError{}
	}

	if a.params.RemoveDC {
		cutoff := cmp.Or(a.params.DCCutoffHz, filters.DefaultDCCutoff)
		if cutoff < float64(buf.SampleRate())/2 {
			if err := a.stage(ctx, StageFilter, func(context.Context) error {
				dc, err := filters.NewDCBlocker(buf.SampleRate(), cutoff)
				if err != nil {
					return err
				}
				buf, err = audio.NewBuffer(dc.Apply(buf.Samples()), buf.SampleRate())
				return err
			}); err != nil {
				return nil, err
			}
		} else {
			logger.Debug("DC cutoff at or above Nyquist, skipping filter", logging.Fields{
				"cutoff_hz":   cutoff,
				"sample_rate": buf.SampleRate(),
			})
		}
	}

	// Frames are consumed as they are produced; only their spectra and
	// zero-crossing rates outlive the STFT stage.
	numFrames := a.segmenter.Count(buf.Len())
	rates := make([]float64, 0, numFrames)
	zcrCalc := spectral.NewZeroCrossingRate()

	var spec *spectral.Spectrogram
	if err := a.stage(ctx, StageSpectrum, func(ctx context.Context) error {
		seq, err := a.segmenter.Frames(buf)
		if err != nil {
			return err
		}
		spec, err = spectral.NewSTFT(a.engine, a.params.Workers).Stream(ctx, seq, numFrames, buf.SampleRate(), a.params.HopSize,
			func(f spectral.Frame) { rates = append(rates, zcrCalc.ComputeFrame(f)) })
		return err
	}); err != nil {
		return nil, err
	}

	var (
		pitch    *tonal.PitchDetectionResult
		tempo    *temporal.TempoResult
		centroid float64
		zcr      float64
		mfcc     []float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.stage(gctx, StagePitch, func(ctx context.Context) error {
			var err error
			pitch, err = tonal.NewPitchDetector(a.params.Pitch, a.segmenter.Window().Sum()).Detect(ctx, spec)
			return err
		})
	})
	g.Go(func() error {
		return a.stage(gctx, StageTempo, func(ctx context.Context) error {
			var err error
			tempo, err = temporal.NewTempoEstimation(a.params.Tempo).Estimate(ctx, spec)
			return err
		})
	})
	g.Go(func() error {
		return a.stage(gctx, StageSpectral, func(ctx context.Context) error {
			var err error
			if centroid, err = spectral.NewSpectralCentroid(buf.SampleRate()).ComputeMean(ctx, spec); err != nil {
				return err
			}
			zcr = common.Mean(rates)
			return nil
		})
	})
	g.Go(func() error {
		return a.stage(gctx, StageMFCC, func(ctx context.Context) error {
			var err error
			mfcc, err = spectral.NewMFCCWithParams(buf.SampleRate(), spectral.MFCCParams{
				NumCoefficients: NumMFCC,
				NumMelFilters:   a.params.MFCC.NumMelFilters,
				LowFreq:         a.params.MFCC.LowFreq,
				HighFreq:        a.params.MFCC.HighFreq,
				UseLiftering:    a.params.MFCC.UseLiftering,
				LifterCoeff:     a.params.MFCC.LifterCoeff,
			}).ComputeMean(ctx, spec)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fs = &FeatureSet{
		PitchHz:            common.FiniteOr(pitch.Pitch, 0),
		TempoBPM:           common.FiniteOr(tempo.BPM, 0),
		SpectralCentroidHz: common.FiniteOr(centroid, 0),
		ZeroCrossingRate:   common.Clamp(common.FiniteOr(zcr, 0), 0, 1),
		Diagnostics: Diagnostics{
			SampleRate:      buf.SampleRate(),
			Duration:        buf.Duration(),
			Frames:          numFrames,
			FFTSize:         spec.FFTSize,
			VoicedFrames:    pitch.VoicedFrames,
			TempoConfidence: tempo.Confidence,
			Elapsed:         time.Since(start),
		},
	}
	for i := range fs.MFCC {
		fs.MFCC[i] = common.FiniteOr(mfcc[i], 0)
	}

	logger.Debug("Features extracted", logging.Fields{
		"frames":       numFrames,
		"pitch_hz":     fs.PitchHz,
		"tempo_bpm":    fs.TempoBPM,
		"centroid_hz":  fs.SpectralCentroidHz,
		"zcr":          fs.ZeroCrossingRate,
		"elapsed_ms":   fs.Diagnostics.Elapsed.Milliseconds(),
		"voiced_ratio": float64(pitch.VoicedFrames) / float64(numFrames),
	})

	return fs, nil
}

// stage runs fn inside a span and records its duration.
func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "analysis."+name)

	err := fn(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
	}

	if a.metrics != nil {
		a.metrics.RecordStage(ctx, name, time.Since(start))
	}
	observe.EndSpan(span, err)
	return err
}
