// Package assessment runs the full evaluation of a recording: decode,
// feature analysis, report synthesis against a benchmark profile, and
// optional persistence.
package assessment

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/audio"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/observe"
	"github.com/RyanBlaney/sonido-vocal/report"
	"github.com/RyanBlaney/sonido-vocal/store"
)

// DefaultProfile names the built-in benchmark.
const DefaultProfile = "default"

// ErrUnknownProfile is returned when a request names a profile that is
// not configured.
var ErrUnknownProfile = errors.New("unknown benchmark profile")

// Decoder turns a file on disk into a mono buffer.
type Decoder interface {
	DecodeFile(ctx context.Context, path string) (*audio.Buffer, error)
}

// DecodeError wraps a failure to read or transcode the input file.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode failed: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Request selects how a report is rendered.
type Request struct {
	// Profile names the benchmark; empty selects the service default.
	Profile string
	// Locale is a BCP-47 tag or Accept-Language value.
	Locale string
}

// Result is a report plus the id it was stored under. ID is 0 when the
// report was not persisted.
type Result struct {
	ID int64 `json:"id,omitempty"`
	*report.Report
}

// Service is safe for concurrent use.
type Service struct {
	analyzer       *analysis.Analyzer
	decoder        Decoder
	store          store.Store
	profiles       map[string]report.Benchmark
	defaultProfile string
	defaultLocale  string
	timeout        time.Duration
	logger         logging.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithDecoder(d Decoder) Option {
	return func(s *Service) { s.decoder = d }
}

// WithStore persists every report. A nil store disables persistence.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithProfiles replaces the benchmark profiles. def names the profile used
// when a request does not pick one.
func WithProfiles(profiles map[string]report.Benchmark, def string) Option {
	return func(s *Service) {
		s.profiles = maps.Clone(profiles)
		if def != "" {
			s.defaultProfile = def
		}
	}
}

func WithDefaultLocale(locale string) Option {
	return func(s *Service) { s.defaultLocale = locale }
}

// WithTimeout bounds each analysis. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service around analyzer. Every profile is validated and the
// default profile must exist.
func New(analyzer *analysis.Analyzer, opts ...Option) (*Service, error) {
	if analyzer == nil {
		return nil, errors.New("assessment: analyzer is required")
	}
	s := &Service{
		analyzer:       analyzer,
		profiles:       map[string]report.Benchmark{DefaultProfile: report.DefaultBenchmark()},
		defaultProfile: DefaultProfile,
		logger: logging.WithFields(logging.Fields{
			"component": "assessment",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var errs []error
	for name, b := range s.profiles {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("profile %q: %w", name, err))
		}
	}
	if _, ok := s.profiles[s.defaultProfile]; !ok {
		errs = append(errs, fmt.Errorf("default profile %q: %w", s.defaultProfile, ErrUnknownProfile))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("assessment: %w", err)
	}
	return s, nil
}

// Profiles returns the configured profile names, sorted.
func (s *Service) Profiles() []string {
	return slices.Sorted(maps.Keys(s.profiles))
}

// DefaultProfileName returns the profile used when a request names none.
func (s *Service) DefaultProfileName() string { return s.defaultProfile }

// Benchmark resolves a profile name; empty selects the default.
func (s *Service) Benchmark(name string) (report.Benchmark, error) {
	if name == "" {
		name = s.defaultProfile
	}
	b, ok := s.profiles[name]
	if !ok {
		return report.Benchmark{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return b, nil
}

// Assess analyzes buf and synthesizes its report. Analysis failures are
// *analysis.Error. A failed save is logged and the report is still
// returned, without an id.
func (s *Service) Assess(ctx context.Context, buf *audio.Buffer, req Request) (*Result, error) {
	benchmark, err := s.Benchmark(req.Profile)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := observe.StartSpan(ctx, "assessment.Assess")
	defer func() { observe.EndSpan(span, err) }()

	fs, err := s.analyzer.Analyze(ctx, buf)
	if err != nil {
		return nil, err
	}

	locale := req.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	res := &Result{Report: report.Synthesize(*fs, benchmark, report.WithLocale(locale))}

	logger := s.logger.WithContext(ctx)
	if s.store != nil {
		id, saveErr := s.store.Save(ctx, res.Report)
		if saveErr != nil {
			logger.Error(saveErr, "Failed to persist report")
		} else {
			res.ID = id
		}
	}

	logger.Info("Assessment complete", logging.Fields{
		"id":          res.ID,
		"profile":     cmp.Or(req.Profile, s.defaultProfile),
		"locale":      res.Locale,
		"pitch_hz":    res.PitchHz,
		"tempo_bpm":   res.TempoBPM,
		"duration_ms": fs.Diagnostics.Duration.Milliseconds(),
	})
	return res, nil
}

// AssessFile decodes path and assesses it. Decode failures are
// *DecodeError, except a file without samples (empty_input) and a done
// context (canceled), which are *analysis.Error.
func (s *Service) AssessFile(ctx context.Context, path string, req Request) (*Result, error) {
	if s.decoder == nil {
		return nil, errors.New("assessment: no decoder configured")
	}
	if _, err := s.Benchmark(req.Profile); err != nil {
		return nil, err
	}

	buf, err := s.decoder.DecodeFile(ctx, path)
	if err != nil {
		var empty *audio.EmptyInputError
		switch {
		case errors.As(err, &empty):
			return nil, &analysis.Error{Kind: analysis.KindEmptyInput, Err: err}
		case ctx.Err() != nil:
			return nil, &analysis.Error{Kind: analysis.KindCanceled, Err: ctx.Err()}
		}
		return nil, &DecodeError{Err: err}
	}
	return s.Assess(ctx, buf, req)
}

// Store returns the configured store, possibly nil.
func (s *Service) Store() store.Store { return s.store }
