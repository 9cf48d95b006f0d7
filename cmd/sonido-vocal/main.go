// Command sonido-vocal serves the vocal assessment API, or assesses a single
// file from the command line.
//
// Usage:
//
//	sonido-vocal [-config path] [serve]
//	sonido-vocal [-config path] analyze [-profile name] [-locale tag] [-save] <file>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/assessment"
	"github.com/RyanBlaney/sonido-vocal/config"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/observe"
	"github.com/RyanBlaney/sonido-vocal/server"
	"github.com/RyanBlaney/sonido-vocal/store"
	"github.com/RyanBlaney/sonido-vocal/transcode"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sonido-vocal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML configuration file (defaults when empty)")
	envFile := fs.String("env", ".env", "dotenv file loaded before SONIDO_* overrides")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "sonido-vocal: config file %q not found; copy configs/sonido-vocal.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(stderr, "sonido-vocal: %v\n", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rest := fs.Args()
	cmd := "serve"
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}
	switch cmd {
	case "serve":
		return serve(ctx, cfg, newLogger(cfg, stdout, stderr))
	case "analyze":
		// stdout carries the report
		return analyze(ctx, cfg, rest, stdout, stderr, newLogger(cfg, stderr, stderr))
	default:
		fmt.Fprintf(stderr, "sonido-vocal: unknown command %q (want serve or analyze)\n", cmd)
		return 2
	}
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stdout, stderr io.Writer) logging.Logger {
	level, _ := logging.ParseLevel(cfg.Server.LogLevel)

	var logger logging.Logger
	switch cfg.Server.LogFormat {
	case "json":
		logger = logging.NewTextLogger(stderr, "json", level)
	case "slog-text":
		logger = logging.NewTextLogger(stderr, "text", level)
	default:
		if stdout == os.Stdout && stderr == os.Stderr {
			logger = logging.NewDefaultLogger()
		} else {
			logger = logging.NewDefaultLoggerTo(stdout, stderr)
		}
		logger.SetLevel(level)
	}
	logging.SetGlobalLogger(logger)
	return logger
}

// buildService wires decoder, analyzer and store. The returned store may be
// nil; the caller closes it.
func buildService(ctx context.Context, cfg *config.Config, storage store.Config, logger logging.Logger, metrics *observe.Metrics) (*assessment.Service, *transcode.Decoder, store.Store, error) {
	analyzerOpts := []analysis.Option{analysis.WithLogger(logger)}
	decoderOpts := []transcode.Option{transcode.WithLogger(logger)}
	if metrics != nil {
		analyzerOpts = append(analyzerOpts, analysis.WithMetrics(metrics))
		decoderOpts = append(decoderOpts, transcode.WithMetrics(metrics))
	}

	analyzer, err := analysis.NewAnalyzer(cfg.Analysis, analyzerOpts...)
	if err != nil {
		return nil, nil, nil, err
	}
	decoder := transcode.NewDecoder(cfg.Decoder, decoderOpts...)

	st, err := store.Open(ctx, storage)
	if err != nil {
		return nil, nil, nil, err
	}
	if metrics != nil {
		st = store.Instrument(st, metrics)
	}

	svc, err := assessment.New(analyzer,
		assessment.WithDecoder(decoder),
		assessment.WithStore(st),
		assessment.WithProfiles(cfg.Report.Profiles, cfg.Report.DefaultProfile),
		assessment.WithDefaultLocale(cfg.Report.DefaultLocale),
		assessment.WithTimeout(cfg.Server.AnalysisTimeout),
		assessment.WithLogger(logger),
	)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, nil, err
	}
	return svc, decoder, st, nil
}

func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) int {
	logger.Info("sonido-vocal starting", logging.Fields{
		"listen_addr":    cfg.Server.ListenAddr,
		"storage_driver": cfg.Storage.Driver,
		"profiles":       len(cfg.Report.Profiles),
	})

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		logger.Error(err, "Failed to initialise telemetry")
		return 1
	}
	metrics := observe.DefaultMetrics()

	svc, decoder, st, err := buildService(ctx, cfg, cfg.Storage, logger, metrics)
	if err != nil {
		logger.Error(err, "Failed to initialise service")
		return 1
	}
	if st != nil {
		defer st.Close()
	}

	if err := decoder.CheckAvailability(ctx); err != nil {
		logger.Warn("ffmpeg is unavailable; only PCM WAV uploads will decode", logging.Fields{"error": err.Error()})
	}

	opts := server.DefaultOptions()
	opts.MaxUploadBytes = cfg.Server.MaxUploadBytes
	opts.EvaluateRate = cfg.Server.EvaluateRate
	opts.EvaluateBurst = cfg.Server.EvaluateBurst
	opts.AllowedOrigins = cfg.Server.AllowedOrigins
	opts.UploadDir = cfg.Server.UploadDir
	opts.Metrics = metrics
	opts.Logger = logger
	opts.Checkers = []server.Checker{{Name: "ffmpeg", Check: decoder.CheckAvailability}}
	if !cfg.Telemetry.Metrics {
		opts.MetricsHandler = nil
	}

	httpServer := server.New(svc, opts).HTTPServer(cfg.Server.ListenAddr, cfg.Server.AnalysisTimeout)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Info("server ready", logging.Fields{"addr": cfg.Server.ListenAddr})

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "HTTP server failed")
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	code := 0
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "HTTP shutdown error")
		code = 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown error", logging.Fields{"error": err.Error()})
	}
	logger.Info("goodbye")
	return code
}

func analyze(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer, logger logging.Logger) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "benchmark profile (default from config)")
	locale := fs.String("locale", "", "report language, e.g. en or zh")
	save := fs.Bool("save", false, "persist the report to the configured store")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: sonido-vocal analyze [-profile name] [-locale tag] [-save] <file>")
		return 2
	}
	path := fs.Arg(0)

	storage := store.Config{Driver: store.DriverNone}
	if *save {
		storage = cfg.Storage
	}
	svc, _, st, err := buildService(ctx, cfg, storage, logger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "sonido-vocal: %v\n", err)
		return 1
	}
	if st != nil {
		defer st.Close()
	}

	res, err := svc.AssessFile(ctx, path, assessment.Request{Profile: *profile, Locale: *locale})
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "sonido-vocal: %v\n", err)
		if kind := analysis.KindOf(err); kind != "" && kind != analysis.KindInternal {
			return 3
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(stderr, "sonido-vocal: %v\n", err)
		return 1
	}

	color.New(color.FgGreen).Fprintf(stderr, "%s: pitch %.1f Hz (%s), tempo %.1f BPM (%s), centroid %.0f Hz (%s)\n",
		path,
		res.PitchHz, res.Classes.PitchComparison,
		res.TempoBPM, res.Classes.TempoComparison,
		res.SpectralCentroidHz, res.Classes.SpectralComparison)
	return 0
}
