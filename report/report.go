// Package report turns measured features into a human-readable assessment:
// qualitative comments, a comparison against a professional benchmark, song
// recommendations and improvement suggestions.
package report

import (
	"github.com/RyanBlaney/sonido-vocal/analysis"
)

// Report is the assessment of one performance. It is built once by
// Synthesize and never modified afterwards.
type Report struct {
	PitchHz                float64     `json:"pitch"`
	TempoBPM               float64     `json:"tempo"`
	SpectralCentroidHz     float64     `json:"spectral_centroid"`
	ZeroCrossingRate       float64     `json:"zcr"`
	MFCC                   []float64   `json:"mfcc"`
	Recommendations        []string    `json:"recommendations"`
	Comments               Comments    `json:"comments"`
	Professional           Benchmark   `json:"professional"`
	ImprovementSuggestions Suggestions `json:"improvement_suggestions"`
	Classes                Classes     `json:"classes"`
	Locale                 string      `json:"locale"`
}

// Comments is the rendered text for each feature band and comparison, in
// the report's locale.
type Comments struct {
	PitchComment       string `json:"pitch_comment"`
	TempoComment       string `json:"tempo_comment"`
	SpectralComment    string `json:"spectral_comment"`
	ZCRComment         string `json:"zcr_comment"`
	PitchComparison    string `json:"pitch_comparison"`
	TempoComparison    string `json:"tempo_comparison"`
	SpectralComparison string `json:"spectral_comparison"`
}

// Suggestions holds one improvement hint per feature. They do not depend on
// the measured values.
type Suggestions struct {
	Pitch            string `json:"pitch"`
	Tempo            string `json:"tempo"`
	SpectralCentroid string `json:"spectral_centroid"`
	ZCR              string `json:"zcr"`
}

// Classes is the locale-independent form of the comments.
type Classes struct {
	Pitch              PitchClass  `json:"pitch"`
	Tempo              TempoClass  `json:"tempo"`
	Timbre             TimbreClass `json:"spectral"`
	ZCR                ZCRClass    `json:"zcr"`
	PitchComparison    Comparison  `json:"pitch_comparison"`
	TempoComparison    Comparison  `json:"tempo_comparison"`
	SpectralComparison Comparison  `json:"spectral_comparison"`
}

type options struct {
	locale string
}

// Option configures Synthesize.
type Option func(*options)

// WithLocale selects the language of the rendered text. See MatchLocale.
func WithLocale(locale string) Option {
	return func(o *options) {
		o.locale = locale
	}
}

// Synthesize builds the report for fs against b. It never fails.
func Synthesize(fs analysis.FeatureSet, b Benchmark, opts ...Option) *Report {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cat, idx := match(o.locale)

	classes := Classes{
		Pitch:              ClassifyPitch(fs.PitchHz),
		Tempo:              ClassifyTempo(fs.TempoBPM),
		Timbre:             ClassifyTimbre(fs.SpectralCentroidHz),
		ZCR:                ClassifyZCR(fs.ZeroCrossingRate),
		PitchComparison:    Compare(fs.PitchHz, b.PitchHz),
		TempoComparison:    Compare(fs.TempoBPM, b.TempoBPM),
		SpectralComparison: Compare(fs.SpectralCentroidHz, b.SpectralCentroidHz),
	}

	mfcc := make([]float64, len(fs.MFCC))
	copy(mfcc, fs.MFCC[:])

	return &Report{
		PitchHz:            fs.PitchHz,
		TempoBPM:           fs.TempoBPM,
		SpectralCentroidHz: fs.SpectralCentroidHz,
		ZeroCrossingRate:   fs.ZeroCrossingRate,
		MFCC:               mfcc,
		Recommendations:    Recommend(fs.PitchHz, fs.TempoBPM),
		Comments: Comments{
			PitchComment:       cat.pitch[classes.Pitch],
			TempoComment:       cat.tempo[classes.Tempo],
			SpectralComment:    cat.timbre[classes.Timbre],
			ZCRComment:         cat.zcr[classes.ZCR],
			PitchComparison:    cat.comparison[classes.PitchComparison],
			TempoComparison:    cat.comparison[classes.TempoComparison],
			SpectralComparison: cat.comparison[classes.SpectralComparison],
		},
		Professional:           b,
		ImprovementSuggestions: cat.suggestions,
		Classes:                classes,
		Locale:                 supported[idx].String(),
	}
}
