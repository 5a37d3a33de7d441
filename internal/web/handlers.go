package web

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultRunsLimit is the page size of GET /api/runs.
const DefaultRunsLimit = 20

// ValidateResponse is the body of POST /validate.
type ValidateResponse struct {
	ValidationOK bool           `json:"validation_ok"`
	RunID        string         `json:"run_id"`
	Report       *report.Report `json:"report"`
	ReportPath   string         `json:"report_path,omitempty"`
	PersistError string         `json:"persist_error,omitempty"`
	Duration     string         `json:"duration"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStaged serves the staged CSV as-is.
func (s *Server) handleStaged(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Paths.StagedPath
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONStatus(w, http.StatusNotFound, map[string]bool{"exists": false})
			return
		}
		s.respondError(w, r, fmt.Errorf("open staged file: %w", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeJSONStatus(w, http.StatusNotFound, map[string]bool{"exists": false})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// handleValidate validates the staged file. Reports are saved unless the
// request sets save=false.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Paths.StagedPath
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "no staged file"})
		return
	}

	save := true
	if v := r.URL.Query().Get("save"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid save parameter"})
			return
		}
		save = b
	}

	out, err := s.service.Run(r.Context(), path, validate.RunOptions{Save: save})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := ValidateResponse{
		ValidationOK: out.Passed(),
		RunID:        out.RunID.String(),
		Report:       out.Report,
		ReportPath:   out.ReportPath,
		Duration:     out.Duration.String(),
	}
	if out.PersistErr != nil {
		resp.PersistError = validate.FormatUserError(out.PersistErr)
	}
	writeJSON(w, resp)
}

// handleStatus reports run slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Limiter().Status())
}

// handleGetReport returns a persisted report. The name is the input stem
// ("staged") or the report file name ("staged_result.json").
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	name, ok := reportFileName(chi.URLParam(r, "name"))
	if !ok {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid report name"})
		return
	}

	rep, err := report.Read(filepath.Join(s.service.ReportDir(), name))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, rep)
}

// reportFileName normalizes a report name and rejects anything that could
// leave the report directory.
func reportFileName(name string) (string, bool) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", false
	}
	if strings.HasSuffix(name, "_result.json") {
		return name, true
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_result.json", true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, r, errRunsDisabled, 0)
		return
	}
	limit := DefaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, r, errRunsDisabled, 0)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}

	run, rep, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{"run": run, "report": rep})
}
