package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/runs"
	"github.com/joescharf/comply/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	runs           *runs.Service
	rules          *rules.Set
	citationPrefix string
	logger         *slog.Logger
}

// NewServer creates a new API server. Reviews fail with 503 when svc was
// built without a pipeline.
func NewServer(svc *runs.Service, set *rules.Set, citationPrefix string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runs: svc, rules: set, citationPrefix: citationPrefix, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/check", s.check)
	mux.HandleFunc("POST /api/v1/reviews", s.createReview)

	mux.HandleFunc("GET /api/v1/rules", s.listRules)

	mux.HandleFunc("GET /api/v1/runs", s.listRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.getRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/audit", s.getAudit)
	mux.HandleFunc("GET /api/v1/runs/{id}/audit/verify", s.verifyAudit)
	mux.HandleFunc("POST /api/v1/runs/{id}/audit/corrections", s.correctAudit)

	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps an error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case apperr.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrNoPipeline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

// contentRequest is the body of check and review requests. A channel mapped
// to null is configured without a word limit.
type contentRequest struct {
	Content string               `json:"content"`
	Limits  models.ChannelLimits `json:"limits"`
}

func decodeContent(r *http.Request) (models.ContentItem, error) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.ContentItem{}, apperr.InvalidInput("decode request", "invalid JSON")
	}
	return models.NewContentItem(req.Content, req.Limits), nil
}

// --- Check & review ---

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	item, err := decodeContent(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := runs.Check(s.rules, item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	item, err := decodeContent(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	run, _, err := s.runs.Review(r.Context(), item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// --- Rules ---

type rulesResponse struct {
	Rules  []models.RuleDefinition `json:"rules"`
	Stages []rules.StageDefinition `json:"stages"`
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rulesResponse{Rules: s.rules.Catalog.All(), Stages: s.rules.Stages})
}

// --- Runs ---

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunListFilter{State: models.PipelineState(r.URL.Query().Get("state"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	list, err := s.runs.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.runs.Audit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit.Export(entries))
}

func (s *Server) verifyAudit(w http.ResponseWriter, r *http.Request) {
	res, err := s.runs.Verify(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type correctionRequest struct {
	Supersedes       int64  `json:"supersedes"`
	ReviewerIdentity string `json:"reviewer_identity"`
	Message          string `json:"message"`
	Decision         string `json:"decision"`
}

func (s *Server) correctAudit(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	decision, ok := models.ParseDecision(req.Decision)
	if !ok {
		writeError(w, http.StatusBadRequest, "decision must be APPROVED, REJECTED or REVIEWED")
		return
	}
	if strings.TrimSpace(req.ReviewerIdentity) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "reviewer_identity and message are required")
		return
	}

	e, err := s.runs.Correct(r.Context(), r.PathValue("id"), req.Supersedes, req.ReviewerIdentity, req.Message, decision, s.citationPrefix)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, audit.Export([]models.AuditEntry{e})[0])
}
