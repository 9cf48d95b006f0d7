package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-vocal/store"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
}

func TestLoadFromReaderEmptyYieldsDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want :5000", cfg.Server.ListenAddr)
	}
	if cfg.Analysis.FrameSize != 2048 || cfg.Analysis.HopSize != 512 {
		t.Errorf("frame/hop = %d/%d, want 2048/512", cfg.Analysis.FrameSize, cfg.Analysis.HopSize)
	}
}

func TestLoadFromReaderOverrides(t *testing.T) {
	const doc = `
server:
  listen_addr: ":8080"
  analysis_timeout: 30s
analysis:
  hop_size: 256
report:
  default_profile: alto
  default_locale: zh
  profiles:
    alto:
      pitch_hz: 330
      tempo_bpm: 110
      spectral_centroid_hz: 2600
storage:
  driver: none
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.AnalysisTimeout != 30*time.Second {
		t.Errorf("AnalysisTimeout = %v, want 30s", cfg.Server.AnalysisTimeout)
	}
	if cfg.Analysis.HopSize != 256 || cfg.Analysis.FrameSize != 2048 {
		t.Errorf("frame/hop = %d/%d, want 2048/256", cfg.Analysis.FrameSize, cfg.Analysis.HopSize)
	}
	if got := cfg.Report.Profiles["alto"].PitchHz; got != 330 {
		t.Errorf("alto pitch = %v, want 330", got)
	}
	if _, ok := cfg.Report.Profiles["default"]; !ok {
		t.Error("default profile dropped by merge")
	}
	if cfg.Storage.Driver != store.DriverNone {
		t.Errorf("Driver = %q, want none", cfg.Storage.Driver)
	}
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adress: \":1\"\n"))
	if err == nil {
		t.Fatal("LoadFromReader() error = nil, want unknown field error")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.LogLevel = "chatty"
	cfg.Server.MaxUploadBytes = 0
	cfg.Analysis.HopSize = 4096
	cfg.Report.DefaultProfile = "missing"
	cfg.Report.DefaultLocale = "fr"
	cfg.Storage.Driver = "mongo"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{
		"server.log_level",
		"server.max_upload_bytes",
		"hop_size",
		"report.default_profile",
		"report.default_locale",
		"storage.driver",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvListenAddr:     ":9000",
		EnvLogLevel:       "debug",
		EnvStorageDriver:  "postgres",
		EnvPostgresDSN:    "postgres://localhost/sonido",
		EnvMaxUploadBytes: "1024",
	}
	cfg := Default()
	if err := ApplyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" || cfg.Server.LogLevel != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.PostgresDSN != "postgres://localhost/sonido" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Server.MaxUploadBytes != 1024 {
		t.Errorf("MaxUploadBytes = %d, want 1024", cfg.Server.MaxUploadBytes)
	}

	bad := Default()
	if err := ApplyEnv(bad, func(k string) string {
		if k == EnvStorageDriver {
			return "postgres"
		}
		return ""
	}); err == nil {
		t.Error("ApplyEnv with postgres and no DSN error = nil")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SONIDO_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SONIDO_TEST_DOTENV", "")
	os.Unsetenv("SONIDO_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SONIDO_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SONIDO_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "configs", "sonido-vocal.example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Report.Profiles) != 3 {
		t.Errorf("profiles = %d, want 3", len(cfg.Report.Profiles))
	}
	if cfg.Decoder.Timeout != time.Minute {
		t.Errorf("decoder timeout = %v, want 1m", cfg.Decoder.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil")
	}
}
