package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// actor identifies the caller for audit purposes.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Kensho-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType := r.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	filename := r.Header.Get("X-Kensho-Filename")
	if filename == "" {
		filename = "document"
	}

	// Cut oversize bodies off at the transport instead of buffering them.
	r.Body = http.MaxBytesReader(w, r.Body, s.pipeline.MaxUploadBytes())
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusBadRequest, "request body exceeds the upload size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", filename), zap.String("media_type", mediaType), zap.Int("bytes", len(data)))

	doc, err := s.pipeline.Upload(r.Context(), actor(r), filename, mediaType, data)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.pipeline.ListDocuments(r.Context())
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.pipeline.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

type runResponse struct {
	RunID     string            `json:"run_id"`
	TestCases []models.TestCase `json:"test_cases"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"
	s.logger.Debug("generate request", zap.String("document", docID), zap.Bool("force", force))

	run, cases, err := s.pipeline.Generate(r.Context(), actor(r), docID, force)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, runResponse{RunID: run.ID, TestCases: cases})
}

type regenerateRequest struct {
	Answers []models.ClarificationAnswer `json:"answers"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("regenerate request", zap.String("document", docID), zap.Int("answers", len(req.Answers)))

	run, cases, err := s.pipeline.Regenerate(r.Context(), actor(r), docID, req.Answers)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, runResponse{RunID: run.ID, TestCases: cases})
}

func (s *Server) handleTraceability(w http.ResponseWriter, r *http.Request) {
	rows, err := s.pipeline.Traceability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")
	data, contentType, err := s.pipeline.Export(r.Context(), actor(r), docID, format)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=kensho-"+docID+"."+format)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type statusRequest struct {
	Status         models.TestCaseStatus `json:"status"`
	ExpectedStatus models.TestCaseStatus `json:"expected_status"`
}

func (s *Server) handleSetTestCaseStatus(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.pipeline.SetTestCaseStatus(r.Context(), actor(r), caseID, req.Status, req.ExpectedStatus)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	filter := models.AuditFilter{
		Actor:    r.URL.Query().Get("actor"),
		Action:   models.AuditAction(r.URL.Query().Get("action")),
		TargetID: r.URL.Query().Get("target"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.From = ts
	}
	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.To = ts
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := s.pipeline.AuditLog(r.Context(), filter)
	if err != nil {
		s.respondFault(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForKind maps the error taxonomy to HTTP status codes.
func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation, fault.KindExport:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict, fault.KindRunLockConflict:
		return http.StatusConflict
	case fault.KindExtraction:
		return http.StatusUnprocessableEntity
	case fault.KindStorage:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) respondFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
