package temporal

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-vocal/algorithms/common"
	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/logging"
)

// silentOnsetEnergy is the total onset strength below which a curve is
// treated as silent.
const silentOnsetEnergy = 1e-9

// TempoParams bounds the tempo search.
type TempoParams struct {
	MinBPM float64 `json:"min_bpm" yaml:"min_bpm"`
	MaxBPM float64 `json:"max_bpm" yaml:"max_bpm"`
	// PriorBPM breaks near-ties between candidate periods.
	PriorBPM float64 `json:"prior_bpm" yaml:"prior_bpm"`
	// TieTolerance is the relative distance from the strongest correlation
	// within which another peak still counts as a candidate.
	TieTolerance float64 `json:"tie_tolerance" yaml:"tie_tolerance"`
}

// DefaultTempoParams searches 40-240 BPM with a 120 BPM prior.
func DefaultTempoParams() TempoParams {
	return TempoParams{
		MinBPM:       40,
		MaxBPM:       240,
		PriorBPM:     120,
		TieTolerance: 0.05,
	}
}

// TempoResult is the outcome of one estimate.
type TempoResult struct {
	BPM        float64 `json:"bpm"`        // 0 when no periodicity was found
	Lag        float64 `json:"lag"`        // beat period in frames
	Confidence float64 `json:"confidence"` // correlation at Lag relative to lag 0
}

// TempoEstimation finds the dominant beat period of an onset curve by
// autocorrelation.
type TempoEstimation struct {
	params        TempoParams
	onsetDetector *OnsetDetection
	logger        logging.Logger
}

// NewTempoEstimation creates a new tempo estimator
func NewTempoEstimation(params TempoParams) *TempoEstimation {
	defaults := DefaultTempoParams()
	if params.MinBPM <= 0 {
		params.MinBPM = defaults.MinBPM
	}
	if params.MaxBPM <= params.MinBPM {
		params.MaxBPM = defaults.MaxBPM
	}
	if params.PriorBPM <= 0 {
		params.PriorBPM = defaults.PriorBPM
	}
	if params.TieTolerance < 0 || params.TieTolerance >= 1 {
		params.TieTolerance = defaults.TieTolerance
	}

	return &TempoEstimation{
		params:        params,
		onsetDetector: NewOnsetDetection(),
		logger: logging.WithFields(logging.Fields{
			"component": "tempo_estimation",
		}),
	}
}

// Estimate derives the onset curve from spec and estimates its tempo.
func (te *TempoEstimation) Estimate(ctx context.Context, spec *spectral.Spectrogram) (*TempoResult, error) {
	curve, err := te.onsetDetector.Strength(ctx, spec)
	if err != nil {
		return nil, err
	}
	return te.EstimateFromCurve(ctx, curve, spec.FrameRate())
}

// EstimateFromCurve estimates tempo from an onset curve sampled at
// frameRate frames per second.
func (te *TempoEstimation) EstimateFromCurve(ctx context.Context, curve []float64, frameRate float64) (*TempoResult, error) {
	if len(curve) == 0 || frameRate <= 0 || floats.Sum(curve) <= silentOnsetEnergy {
		return &TempoResult{}, nil
	}

	minLag := max(1, int(math.Floor(60*frameRate/te.params.MaxBPM)))
	maxLag := min(len(curve)-2, int(math.Ceil(60*frameRate/te.params.MinBPM)))
	if minLag > maxLag {
		return &TempoResult{}, nil
	}

	autocorr, err := te.calculateAutocorrelation(ctx, curve, maxLag+1)
	if err != nil {
		return nil, err
	}
	energy := periodEnergy(autocorr)

	best := minLag
	for lag := minLag + 1; lag <= maxLag; lag++ {
		if energy[lag] > energy[best] {
			best = lag
		}
	}
	if energy[best] <= 0 {
		return &TempoResult{}, nil
	}

	chosen := te.preferPrior(energy, minLag, maxLag, best, frameRate)
	period := lagCentroid(autocorr, chosen)

	result := &TempoResult{
		BPM:        60 * frameRate / period,
		Lag:        period,
		Confidence: common.Clamp(energy[chosen]/autocorr[0], 0, 1),
	}

	te.logger.Debug("Tempo estimated", logging.Fields{
		"bpm":        result.BPM,
		"lag":        result.Lag,
		"confidence": result.Confidence,
	})
	return result, nil
}

// periodEnergy sums the correlation of each lag with its two neighbours. A
// beat period between two whole lags splits its correlation across both.
func periodEnergy(autocorr []float64) []float64 {
	energy := make([]float64, len(autocorr))
	for lag := range autocorr {
		lo, hi := max(0, lag-1), min(len(autocorr)-1, lag+1)
		energy[lag] = floats.Sum(autocorr[lo : hi+1])
	}
	return energy
}

// lagCentroid returns the correlation-weighted mean of lag and its
// neighbours, the fractional beat period in frames.
func lagCentroid(autocorr []float64, lag int) float64 {
	var num, den float64
	for l := max(0, lag-1); l <= min(len(autocorr)-1, lag+1); l++ {
		w := max(autocorr[l], 0)
		num += float64(l) * w
		den += w
	}
	if den == 0 {
		return float64(lag)
	}
	return num / den
}

// preferPrior picks, among local peaks whose energy is within the tie
// tolerance of the best lag, the one whose tempo is closest to the prior.
func (te *TempoEstimation) preferPrior(energy []float64, minLag, maxLag, best int, frameRate float64) int {
	floor := (1 - te.params.TieTolerance) * energy[best]
	distance := func(lag int) float64 {
		return math.Abs(60*frameRate/float64(lag) - te.params.PriorBPM)
	}

	chosen := best
	for lag := minLag; lag <= maxLag; lag++ {
		if lag == best || energy[lag] < floor {
			continue
		}
		if energy[lag] < energy[lag-1] || energy[lag] < energy[lag+1] {
			continue
		}
		if distance(lag) < distance(chosen) {
			chosen = lag
		}
	}
	return chosen
}

// calculateAutocorrelation returns the biased autocorrelation for lags
// 0..maxLag: Σ x[i]x[i+lag] / len(x).
func (te *TempoEstimation) calculateAutocorrelation(ctx context.Context, signal []float64, maxLag int) ([]float64, error) {
	maxLag = min(maxLag, len(signal)-1)
	autocorr := make([]float64, maxLag+1)
	n := float64(len(signal))

	for lag := 0; lag <= maxLag; lag++ {
		if lag%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		autocorr[lag] = floats.Dot(signal[:len(signal)-lag], signal[lag:]) / n
	}
	return autocorr, nil
}
