package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-vocal/analysis"
	"github.com/RyanBlaney/sonido-vocal/assessment"
	"github.com/RyanBlaney/sonido-vocal/logging"
	"github.com/RyanBlaney/sonido-vocal/report"
	"github.com/RyanBlaney/sonido-vocal/store"
	"github.com/RyanBlaney/sonido-vocal/transcode"
)

const (
	msgNoFile      = "No file provided"
	msgUnsupported = "Unsupported file format. Please upload a WAV, MP3, OGG, FLAC, AIFF, or M4A file."
	msgTooLarge    = "File too large"
	msgRateLimited = "Too many requests"
	msgNoStorage   = "Report storage is disabled"

	// multipartMemory is the part of an upload kept in memory before
	// spilling to disk.
	multipartMemory = 8 << 20
)

// evaluate accepts a multipart upload in field "file" and answers with the
// report. Optional form fields: profile, locale. Without a locale field the
// Accept-Language header is used.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.WithContext(r.Context())

	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, msgRateLimited, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return
		}
		writeError(w, http.StatusBadRequest, msgNoFile, "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile, "")
		return
	}
	defer file.Close()

	if !transcode.IsSupported(header.Filename) {
		writeError(w, http.StatusBadRequest, msgUnsupported, "")
		return
	}

	path, err := s.spool(file, filepath.Ext(header.Filename))
	if err != nil {
		logger.Error(err, "Failed to store upload")
		writeError(w, http.StatusInternalServerError, "Failed to store upload", "")
		return
	}
	defer os.Remove(path)

	locale := r.FormValue("locale")
	if locale == "" {
		locale = r.Header.Get("Accept-Language")
	}
	req := assessment.Request{
		Profile: r.FormValue("profile"),
		Locale:  locale,
	}

	res, err := s.svc.AssessFile(r.Context(), path, req)
	if err != nil {
		s.writeAssessError(w, logger, header.Filename, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// spool copies an upload to a private temp file and returns its path. The
// caller removes it.
func (s *Server) spool(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.opts.UploadDir, "upload-*"+strings.ToLower(ext))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *Server) writeAssessError(w http.ResponseWriter, logger logging.Logger, filename string, err error) {
	fields := logging.Fields{"filename": filename}

	var (
		ae *analysis.Error
		de *assessment.DecodeError
	)
	switch {
	case errors.Is(err, assessment.ErrUnknownProfile):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.As(err, &ae) && ae.Kind == analysis.KindInternal:
		logger.Error(err, "Analysis failed", fields)
		writeError(w, http.StatusInternalServerError, err.Error(), string(ae.Kind))
	case errors.As(err, &ae):
		logger.Warn("Analysis rejected input", logging.Fields{"filename": filename, "kind": string(ae.Kind), "error": err.Error()})
		writeError(w, http.StatusUnprocessableEntity, err.Error(), string(ae.Kind))
	case errors.As(err, &de):
		logger.Warn("Decode failed", logging.Fields{"filename": filename, "error": err.Error()})
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "decode")
	default:
		logger.Error(err, "Assessment failed", fields)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

type listResponse struct {
	Reports []store.Record `json:"reports"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoStorage, "")
		return
	}

	limit, err1 := queryInt(r, "limit")
	offset, err2 := queryInt(r, "offset")
	if err := errors.Join(err1, err2); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	recs, err := st.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.WithContext(r.Context()).Error(err, "Failed to list reports")
		writeError(w, http.StatusInternalServerError, "Failed to list reports", "")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Reports: recs, Limit: limit, Offset: offset})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoStorage, "")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid report id", "")
		return
	}

	rec, err := st.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Report not found", "")
	case err != nil:
		s.logger.WithContext(r.Context()).Error(err, "Failed to load report", logging.Fields{"id": id})
		writeError(w, http.StatusInternalServerError, "Failed to load report", "")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

type profilesResponse struct {
	Profiles map[string]report.Benchmark `json:"profiles"`
	Default  string                      `json:"default"`
}

func (s *Server) profiles(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]report.Benchmark)
	for _, name := range s.svc.Profiles() {
		b, _ := s.svc.Benchmark(name)
		out[name] = b
	}
	writeJSON(w, http.StatusOK, profilesResponse{Profiles: out, Default: s.svc.DefaultProfileName()})
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key + " parameter")
	}
	return n, nil
}
