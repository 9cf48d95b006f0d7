package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/assessment"
	"github.com/RyanBlaney/sonido-vocal/audio"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/store"
	"github.com/RyanBlaney/sonido-vocal/transcode"
)

type fakeDecoder struct {
	err error
}

func (f fakeDecoder) DecodeFile(context.Context, string) (*audio.Buffer, error) {
	return nil, f.err
}

// toneWAV returns a 16-bit mono WAV of a 440 Hz tone.
func toneWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	const rate = 44100
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	n := int(seconds * rate)
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

type fixture struct {
	srv       *Server
	store     store.Store
	uploadDir string
}

func newFixture(t *testing.T, dec assessment.Decoder, withStore bool, mutate func(*Options)) fixture {
	t.Helper()
	quiet := &logging.NoOpLogger{}

	a, err := analysis.NewAnalyzer(analysis.DefaultParams(), analysis.WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	if dec == nil {
		dec = transcode.NewDecoder(transcode.DefaultDecoderConfig(), transcode.WithLogger(quiet))
	}
	svcOpts := []assessment.Option{assessment.WithDecoder(dec), assessment.WithLogger(quiet)}

	var st store.Store
	if withStore {
		sq, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { sq.Close() })
		st = sq
		svcOpts = append(svcOpts, assessment.WithStore(st))
	}
	svc, err := assessment.New(a, svcOpts...)
	if err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.EvaluateRate = 0
	opts.Logger = quiet
	opts.MetricsHandler = nil
	opts.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(&opts)
	}
	return fixture{srv: New(svc, opts), store: st, uploadDir: opts.UploadDir}
}

func multipartBody(t *testing.T, field, filename string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestEvaluateWAVEndToEnd(t *testing.T) {
	fx := newFixture(t, nil, true, nil)

	body, ctype := multipartBody(t, "file", "take.wav", toneWAV(t, 1), map[string]string{"locale": "zh"})
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(fx.srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	m := decodeBody(t, rec)
	for _, key := range []string{"pitch", "tempo", "spectral_centroid", "zcr", "mfcc", "recommendations",
		"comments", "professional", "improvement_suggestions", "id"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if m["locale"] != "zh" {
		t.Errorf("locale = %v, want zh", m["locale"])
	}
	if pitch := m["pitch"].(float64); math.Abs(pitch-440) > 22 {
		t.Errorf("pitch = %v, want ~440", pitch)
	}

	entries, err := os.ReadDir(fx.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover files", len(entries))
	}

	id := int64(m["id"].(float64))
	rec = do(fx.srv, httptest.NewRequest(http.MethodGet, "/api/reports/"+strconv.FormatInt(id, 10), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET report status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if int64(got["id"].(float64)) != id {
		t.Errorf("report id = %v, want %d", got["id"], id)
	}

	rec = do(fx.srv, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if reports := decodeBody(t, rec)["reports"].([]any); len(reports) != 1 {
		t.Errorf("len(reports) = %d, want 1", len(reports))
	}
}

func TestEvaluateAcceptLanguage(t *testing.T) {
	fx := newFixture(t, nil, false, nil)

	body, ctype := multipartBody(t, "file", "take.wav", toneWAV(t, 0.5), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	rec := do(fx.srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	m := decodeBody(t, rec)
	if m["locale"] != "zh" {
		t.Errorf("locale = %v, want zh", m["locale"])
	}
	if _, ok := m["id"]; ok {
		t.Errorf("id present without a store")
	}
}

func TestEvaluateRejections(t *testing.T) {
	fx := newFixture(t, nil, false, nil)

	noFileBody, noFileType := multipartBody(t, "", "", nil, map[string]string{"profile": "default"})
	badExtBody, badExtType := multipartBody(t, "file", "notes.txt", []byte("hello"), nil)
	profileBody, profileType := multipartBody(t, "file", "take.wav", toneWAV(t, 0.2), map[string]string{"profile": "tenor"})

	tests := []struct {
		name    string
		body    *bytes.Buffer
		ctype   string
		want    int
		wantMsg string
	}{
		{"not multipart", bytes.NewBufferString("{}"), "application/json", http.StatusBadRequest, msgNoFile},
		{"no file field", noFileBody, noFileType, http.StatusBadRequest, msgNoFile},
		{"bad extension", badExtBody, badExtType, http.StatusBadRequest, msgUnsupported},
		{"unknown profile", profileBody, profileType, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/evaluate", tt.body)
			req.Header.Set("Content-Type", tt.ctype)
			rec := do(fx.srv, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantMsg != "" {
				if got := decodeBody(t, rec)["error"]; got != tt.wantMsg {
					t.Errorf("error = %q, want %q", got, tt.wantMsg)
				}
			}
		})
	}
}

func TestEvaluateAnalysisFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
	}{
		{"empty input", &audio.EmptyInputError{}, string(analysis.KindEmptyInput)},
		{"decode", errors.New("ffprobe failed"), "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, fakeDecoder{err: tt.err}, false, nil)
			body, ctype := multipartBody(t, "file", "take.mp3", []byte("ID3"), nil)
			req := httptest.NewRequest(http.MethodPost, "/api/evaluate", body)
			req.Header.Set("Content-Type", ctype)
			rec := do(fx.srv, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			m := decodeBody(t, rec)
			if m["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %v", m["kind"], tt.wantKind)
			}
			if m["error"] == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestEvaluateRateLimited(t *testing.T) {
	fx := newFixture(t, nil, false, func(o *Options) {
		o.EvaluateRate = 0.001
		o.EvaluateBurst = 1
	})

	first := do(fx.srv, httptest.NewRequest(http.MethodPost, "/api/evaluate", nil))
	if first.Code != http.StatusBadRequest {
		t.Fatalf("first status = %d, want 400", first.Code)
	}
	second := do(fx.srv, httptest.NewRequest(http.MethodPost, "/api/evaluate", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
}

func TestReportsEndpoints(t *testing.T) {
	fx := newFixture(t, nil, true, nil)
	tests := []struct {
		path string
		want int
	}{
		{"/api/reports/abc", http.StatusBadRequest},
		{"/api/reports/0", http.StatusBadRequest},
		{"/api/reports/999", http.StatusNotFound},
		{"/api/reports?limit=x", http.StatusBadRequest},
		{"/api/reports?limit=5&offset=0", http.StatusOK},
	}
	for _, tt := range tests {
		rec := do(fx.srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}

	noStore := newFixture(t, nil, false, nil)
	if rec := do(noStore.srv, httptest.NewRequest(http.MethodGet, "/api/reports", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("list without store = %d, want 503", rec.Code)
	}
}

func TestProfilesEndpoint(t *testing.T) {
	fx := newFixture(t, nil, false, nil)
	rec := do(fx.srv, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decodeBody(t, rec)
	if m["default"] != assessment.DefaultProfile {
		t.Errorf("default = %v", m["default"])
	}
	prof := m["profiles"].(map[string]any)[assessment.DefaultProfile].(map[string]any)
	if prof["pitch"] != 220.0 {
		t.Errorf("default pitch = %v, want 220", prof["pitch"])
	}
}

func TestCORSPreflight(t *testing.T) {
	fx := newFixture(t, nil, false, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/evaluate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := do(fx.srv, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestCORSAllowList(t *testing.T) {
	fx := newFixture(t, nil, false, func(o *Options) {
		o.AllowedOrigins = []string{"https://sing.example"}
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://sing.example")
	if got := do(fx.srv, req).Header().Get("Access-Control-Allow-Origin"); got != "https://sing.example" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	if got := do(fx.srv, req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin header = %q, want empty", got)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	fx := newFixture(t, nil, true, func(o *Options) {
		o.Checkers = []Checker{{Name: "ffmpeg", Check: func(context.Context) error { return errors.New("not found") }}}
	})

	if rec := do(fx.srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}

	rec := do(fx.srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
	checks := decodeBody(t, rec)["checks"].(map[string]any)
	if checks["store"] != "ok" {
		t.Errorf("store check = %v, want ok", checks["store"])
	}
	if checks["ffmpeg"] != "fail: not found" {
		t.Errorf("ffmpeg check = %v", checks["ffmpeg"])
	}
}

func TestRecoveryFromPanic(t *testing.T) {
	fx := newFixture(t, nil, false, func(o *Options) {
		o.Checkers = []Checker{{Name: "boom", Check: func(context.Context) error { panic("boom") }}}
	})
	rec := do(fx.srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
