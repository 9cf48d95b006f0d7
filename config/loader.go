package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/report"
	"github.com/RyanBlaney/sonido-vocal/store"
)

// Environment variables applied by ApplyEnv.
const (
	EnvListenAddr     = "SONIDO_LISTEN_ADDR"
	EnvLogLevel       = "SONIDO_LOG_LEVEL"
	EnvStorageDriver  = "SONIDO_STORAGE_DRIVER"
	EnvSQLitePath     = "SONIDO_SQLITE_PATH"
	EnvPostgresDSN    = "SONIDO_POSTGRES_DSN"
	EnvMaxUploadBytes = "SONIDO_MAX_UPLOAD_BYTES"
)

var validLogFormats = []string{"text", "json", "slog-text"}

// Load reads the YAML configuration file at path and returns a validated
// Config. Fields absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default and validates the result.
// Unknown keys are errors. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %q: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the SONIDO_* variables read through getenv
// (os.Getenv when nil) and revalidates it.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.ListenAddr, EnvListenAddr)
	set(&cfg.Server.LogLevel, EnvLogLevel)
	set(&cfg.Storage.Driver, EnvStorageDriver)
	set(&cfg.Storage.SQLitePath, EnvSQLitePath)
	set(&cfg.Storage.PostgresDSN, EnvPostgresDSN)

	if v := getenv(EnvMaxUploadBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvMaxUploadBytes, err)
		}
		cfg.Server.MaxUploadBytes = n
	}
	return Validate(cfg)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if _, err := logging.ParseLevel(cfg.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !slices.Contains(validLogFormats, cfg.Server.LogFormat) {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json, slog-text", cfg.Server.LogFormat))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.AnalysisTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if cfg.Server.EvaluateRate < 0 {
		errs = append(errs, fmt.Errorf("server.evaluate_rate must be >= 0, got %v", cfg.Server.EvaluateRate))
	}
	if cfg.Server.EvaluateRate > 0 && cfg.Server.EvaluateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.evaluate_burst must be >= 1 when evaluate_rate is set, got %d", cfg.Server.EvaluateBurst))
	}

	// Analysis
	if err := cfg.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}
	if cfg.Analysis.FrameSize <= 0 || cfg.Analysis.HopSize <= 0 || cfg.Analysis.HopSize >= cfg.Analysis.FrameSize {
		errs = append(errs, fmt.Errorf("analysis: need 0 < hop_size < frame_size, got frame_size=%d hop_size=%d",
			cfg.Analysis.FrameSize, cfg.Analysis.HopSize))
	}

	// Report
	if len(cfg.Report.Profiles) == 0 {
		errs = append(errs, errors.New("report.profiles must define at least one profile"))
	}
	for name, b := range cfg.Report.Profiles {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("report.profiles[%q]: %w", name, err))
		}
	}
	if _, ok := cfg.Report.Profiles[cfg.Report.DefaultProfile]; !ok {
		errs = append(errs, fmt.Errorf("report.default_profile %q is not a configured profile", cfg.Report.DefaultProfile))
	}
	if cfg.Report.DefaultLocale != "" && report.MatchLocale(cfg.Report.DefaultLocale) != cfg.Report.DefaultLocale {
		errs = append(errs, fmt.Errorf("report.default_locale %q is not supported; valid values: %v",
			cfg.Report.DefaultLocale, report.SupportedLocales()))
	}

	// Storage
	switch cfg.Storage.Driver {
	case store.DriverSQLite:
		if cfg.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case store.DriverPostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	case store.DriverNone:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: sqlite, postgres, none", cfg.Storage.Driver))
	}

	// Decoder
	if err := cfg.Decoder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("decoder: %w", err))
	}

	return errors.Join(errs...)
}
