// Package server exposes the assessment service over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/RyanBlaney/sonido-vocal/assessment"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/observe"
)

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	// EvaluateRate is the sustained evaluate rate per second; 0 disables
	// rate limiting.
	EvaluateRate   float64
	EvaluateBurst  int
	AllowedOrigins []string
	// UploadDir holds uploads while they are analyzed; empty means
	// os.TempDir.
	UploadDir string
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	Checkers       []Checker
	Metrics        *observe.Metrics
	Logger         logging.Logger
}

// DefaultOptions allows any origin, 50 MiB uploads and 2 evaluations per
// second with bursts of 4.
func DefaultOptions() Options {
	return Options{
		MaxUploadBytes: 50 << 20,
		EvaluateRate:   2,
		EvaluateBurst:  4,
		AllowedOrigins: []string{"*"},
		MetricsHandler: promhttp.Handler(),
	}
}

// Server routes HTTP requests to an assessment.Service.
type Server struct {
	svc      *assessment.Service
	opts     Options
	limiter  *rate.Limiter
	checkers []Checker
	logger   logging.Logger
	handler  http.Handler
}

// New builds the handler tree. The store, when configured, is added as a
// readiness check.
func New(svc *assessment.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultOptions().MaxUploadBytes
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		checkers: append([]Checker(nil), opts.Checkers...),
		logger:   opts.Logger.WithFields(logging.Fields{"component": "server"}),
	}
	if opts.EvaluateRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.EvaluateRate), max(opts.EvaluateBurst, 1))
	}
	if st := svc.Store(); st != nil {
		s.checkers = append(s.checkers, Checker{Name: "store", Check: st.Ping})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/evaluate", s.evaluate)
	mux.HandleFunc("GET /api/reports", s.listReports)
	mux.HandleFunc("GET /api/reports/{id}", s.getReport)
	mux.HandleFunc("GET /api/profiles", s.profiles)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	var h http.Handler = mux
	if opts.Metrics != nil {
		h = observe.Middleware(opts.Metrics, opts.Logger)(h)
	}
	h = recovery(s.logger, h)
	h = cors(opts.AllowedOrigins, h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPServer wraps s in an *http.Server with conservative timeouts. The
// write timeout leaves room for analysis of long uploads.
func (s *Server) HTTPServer(addr string, analysisTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      analysisTimeout + 2*time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
