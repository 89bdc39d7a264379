// Package server exposes the orchestration layer over HTTP for the
// browser extension: analysis, breach checks, health, and scan history.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/pageguard/pageguard/internal/analysis"
	"github.com/pageguard/pageguard/internal/config"
	"github.com/pageguard/pageguard/internal/service"
)

// Server wraps the HTTP components for PageGuard.
type Server struct {
	mux *http.ServeMux
	cfg *config.Config
	svc *service.Service
}

// New creates a new PageGuard server with all routes registered.
func New(cfg *config.Config, svc *service.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux: mux,
		cfg: cfg,
		svc: svc,
	}

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/breach", s.handleBreach)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/history", s.handleHistory)

	return s
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = withRateLimit(h, s.cfg.Server.RequestsPerSecond, s.cfg.Server.Burst)
	h = withCORS(h)
	h = withRequestLog(h)
	return h
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": config.AppName,
		"version": config.Version,
		"status":  "running",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sig analysis.PageSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "validation_error")
		return
	}
	if strings.TrimSpace(sig.URL) == "" {
		writeError(w, http.StatusBadRequest, "missing url", "validation_error")
		return
	}

	res, err := s.svc.AnalyzePage(r.Context(), clientID(r), sig)
	if err != nil {
		var qe *service.QuotaExceededError
		if errors.As(err, &qe) {
			writeError(w, http.StatusTooManyRequests, qe.Error(), "quota_error")
			return
		}
		log.Printf("analyze failed url=%s: %v", sig.URL, err)
		writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type breachRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleBreach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqBody breachRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "validation_error")
		return
	}

	res, err := s.svc.CheckEmailBreaches(r.Context(), clientID(r), reqBody.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "invalid email address", "validation_error")
		default:
			var qe *service.QuotaExceededError
			if errors.As(err, &qe) {
				writeError(w, http.StatusTooManyRequests, qe.Error(), "quota_error")
				return
			}
			log.Printf("breach check failed: %v", err)
			writeError(w, http.StatusInternalServerError, "breach check failed", "breach_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	ModelAPI string `json:"model_api"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modelAPI := "unreachable"
	if s.svc.TestConnectivity(r.Context()) {
		modelAPI = "connected"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Service:  config.AppName,
		Version:  config.Version,
		ModelAPI: modelAPI,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit", "validation_error")
			return
		}
		limit = n
	}

	entries, err := s.svc.RecentScans(r.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			writeError(w, http.StatusNotFound, "scan history is not enabled", "not_found")
			return
		}
		log.Printf("history query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "history query failed", "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// clientID resolves the quota bucket for a request. The extension sends
// X-Client-ID; absent that, all callers share the default bucket.
func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Client-ID")); id != "" {
		return id
	}
	return service.DefaultClientID
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeError writes a structured error JSON.
func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Message: message,
			Type:    typ,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
