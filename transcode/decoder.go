// Package transcode decodes uploaded recordings into mono float64 buffers.
// PCM WAV files are read in-process; every other container is handed to
// ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vocal/audio"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/observe"
)

// ErrUnsupportedFormat is returned for files whose extension is not in
// SupportedExtensions.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SupportedExtensions lists the accepted upload extensions, lower case.
var SupportedExtensions = []string{".wav", ".mp3", ".ogg", ".flac", ".m4a", ".aiff"}

// IsSupported reports whether name has one of SupportedExtensions. The
// comparison is case-insensitive.
func IsSupported(name string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(name)))
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate of 0 keeps the source rate.
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`
	ResampleQuality  string        `json:"resample_quality" yaml:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	// ForceFFmpeg routes WAV files through ffmpeg as well.
	ForceFFmpeg bool `json:"force_ffmpeg" yaml:"force_ffmpeg"`

	EnableNormalization bool    `json:"enable_normalization" yaml:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method" yaml:"normalization_method"` // "loudnorm", "dynaudnorm", "compand"
	TargetLUFS          float64 `json:"target_lufs" yaml:"target_lufs"`
	TargetPeak          float64 `json:"target_peak" yaml:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range" yaml:"loudness_range"`
}

// DefaultMaxDuration caps how much of a recording is decoded. Analysis keeps
// one magnitude row per hop, so its memory grows with the decoded length.
const DefaultMaxDuration = 5 * time.Minute

// DefaultDecoderConfig keeps the native sample rate, applies no loudness
// normalization and decodes at most DefaultMaxDuration.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MaxDuration:         DefaultMaxDuration,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             60 * time.Second,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0,
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Validate checks the static configuration without touching the binaries.
func (c DecoderConfig) Validate() error {
	var errs []error
	if c.TargetSampleRate < 0 {
		errs = append(errs, fmt.Errorf("target sample rate must be >= 0, got %d", c.TargetSampleRate))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be >= 0, got %v", c.Timeout))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("max duration must be >= 0, got %v", c.MaxDuration))
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		errs = append(errs, fmt.Errorf("resample quality %q is invalid; valid values: fast, medium, high", c.ResampleQuality))
	}
	if c.EnableNormalization {
		switch c.NormalizationMethod {
		case "loudnorm", "dynaudnorm", "compand":
		default:
			errs = append(errs, fmt.Errorf("normalization method %q is invalid; valid values: loudnorm, dynaudnorm, compand", c.NormalizationMethod))
		}
	}
	return errors.Join(errs...)
}

// Decoder turns audio files into mono buffers.
type Decoder struct {
	config  DecoderConfig
	logger  logging.Logger
	metrics *observe.Metrics
}

// Option configures a Decoder.
type Option func(*Decoder)

func WithLogger(l logging.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(d *Decoder) { d.metrics = m }
}

// NewDecoder creates a new audio decoder
func NewDecoder(config DecoderConfig, opts ...Option) *Decoder {
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.FFprobePath == "" {
		config.FFprobePath = "ffprobe"
	}
	d := &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the decoder configuration.
func (d *Decoder) Config() DecoderConfig { return d.config }

// DecodeFile decodes the audio file at path into a mono buffer. A file
// with no samples yields *audio.EmptyInputError.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (buf *audio.Buffer, err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !IsSupported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	ctx, span := observe.StartSpan(ctx, "transcode.DecodeFile")
	start := time.Now()
	defer func() {
		observe.EndSpan(span, err)
		if d.metrics != nil && err == nil {
			d.metrics.RecordDecode(ctx, format, time.Since(start))
		}
	}()

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filepath.Base(path),
		"format":   format,
	})
	logger.Debug("Starting audio file decode", logging.Fields{
		"size_bytes": fileSize(path),
	})

	if format == "wav" && !d.config.ForceFFmpeg && !d.config.EnableNormalization {
		buf, err = d.decodeWAV(path)
		if err == nil {
			return buf, nil
		}
		if !errors.Is(err, errNeedsFFmpeg) {
			logger.Error(err, "WAV decode failed")
			return nil, err
		}
		logger.Debug("WAV encoding not handled in-process, falling back to ffmpeg")
	}

	metadata, err := d.probeAudioFile(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	return d.decodeFileWithFFmpeg(ctx, path, metadata, logger)
}

// CheckAvailability verifies that the ffmpeg and ffprobe binaries run.
func (d *Decoder) CheckAvailability(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not available: %w", bin, err)
		}
	}
	return nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
