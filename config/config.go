// Package config defines the YAML configuration of the service and the
// environment overrides applied on top of it.
package config

import (
	"time"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/assessment"
	"github.com/RyanBlaney/sonido-vocal/report"
	"github.com/RyanBlaney/sonido-vocal/store"
	"github.com/RyanBlaney/sonido-vocal/transcode"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Analysis  analysis.Params         `yaml:"analysis"`
	Report    ReportConfig            `yaml:"report"`
	Storage   store.Config            `yaml:"storage"`
	Decoder   transcode.DecoderConfig `yaml:"decoder"`
	Telemetry TelemetryConfig         `yaml:"telemetry"`
}

// ServerConfig controls the HTTP listener and request limits.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	// LogFormat is "text" (colored console), "json" or "slog-text".
	LogFormat       string        `yaml:"log_format"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// EvaluateRate limits POST /api/evaluate in requests per second; 0
	// disables limiting.
	EvaluateRate   float64  `yaml:"evaluate_rate"`
	EvaluateBurst  int      `yaml:"evaluate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	UploadDir      string   `yaml:"upload_dir"`
}

// ReportConfig holds benchmark profiles and the default locale.
type ReportConfig struct {
	DefaultProfile string                      `yaml:"default_profile"`
	DefaultLocale  string                      `yaml:"default_locale"`
	Profiles       map[string]report.Benchmark `yaml:"profiles"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	// Metrics exposes /metrics through the Prometheus exporter.
	Metrics bool `yaml:"metrics"`
}

// Default returns a configuration that serves on :5000 and stores reports
// in audio_analysis.db.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":5000",
			LogLevel:        "info",
			LogFormat:       "text",
			MaxUploadBytes:  50 << 20,
			AnalysisTimeout: 2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			EvaluateRate:    2,
			EvaluateBurst:   4,
			AllowedOrigins:  []string{"*"},
		},
		Analysis: analysis.DefaultParams(),
		Report: ReportConfig{
			DefaultProfile: assessment.DefaultProfile,
			DefaultLocale:  "en",
			Profiles: map[string]report.Benchmark{
				assessment.DefaultProfile: report.DefaultBenchmark(),
			},
		},
		Storage: store.Config{
			Driver:     store.DriverSQLite,
			SQLitePath: "audio_analysis.db",
		},
		Decoder: transcode.DefaultDecoderConfig(),
		Telemetry: TelemetryConfig{
			ServiceName: "sonido-vocal",
			Metrics:     true,
		},
	}
}
