package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodguardai/foodguard/internal/agent"
	"github.com/foodguardai/foodguard/internal/report"
	"github.com/foodguardai/foodguard/internal/stream"
)

// AnalyzeRequest is the JSON body for POST /v1/analyze.
type AnalyzeRequest struct {
	Regions   []string `json:"regions"`
	DateRange string   `json:"dateRange,omitempty"`
	ThreadID  string   `json:"threadId,omitempty"`
}

// ChatAPIRequest is the JSON body for POST /v1/chat.
type ChatAPIRequest struct {
	Message       string              `json:"message"`
	ChatHistory   []agent.ChatMessage `json:"chatHistory,omitempty"`
	ReportContext *report.Report      `json:"reportContext,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleAnalyze handles POST /v1/analyze. Validation failures are plain
// JSON errors; once the first SSE frame goes out the response is committed
// to the stream and any failure travels inside it as an error event.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Regions) == 0 {
		s.writeError(w, http.StatusBadRequest, "At least one region required")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.New().String()
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Only record the run once the stream is committed; a run row must
	// never be left running for a request that produced no stream.
	run, err := s.runs.Create(r.Context(), req.ThreadID, req.Regions, req.DateRange)
	if err != nil {
		s.logger.Error("failed to create analysis run", "error", err)
		_ = sse.Write(stream.Event{Type: stream.EventError, Error: "failed to create analysis run"})
		return
	}

	steps := s.analyzer.Stream(r.Context(), agent.AnalysisRequest{
		Regions:   req.Regions,
		DateRange: req.DateRange,
		ThreadID:  req.ThreadID,
	})
	rep, runErr := s.encoder.Run(steps, req.Regions, sse.Write)

	// The client may be gone by now; persist the outcome regardless.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if runErr != nil {
		s.logger.Error("analysis run failed", "run_id", run.ID, "error", runErr)
		if err := s.runs.Fail(persistCtx, run.ID, runErr.Error()); err != nil {
			s.logger.Error("failed to mark run failed", "run_id", run.ID, "error", err)
		}
		return
	}

	repJSON, err := json.Marshal(rep)
	if err != nil {
		s.logger.Error("failed to encode report", "run_id", run.ID, "error", err)
		return
	}
	if err := s.runs.Complete(persistCtx, run.ID, repJSON); err != nil {
		s.logger.Error("failed to mark run done", "run_id", run.ID, "error", err)
	}
}

// handleQuickAnalyze handles GET /v1/analyze?region=X.
func (s *Server) handleQuickAnalyze(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Region parameter required",
			"details": "pass ?region=<name>",
		})
		return
	}

	rep, err := s.analyzer.Quick(r.Context(), region)
	if err != nil {
		s.logger.Error("quick analysis failed", "region", region, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Analysis failed",
			"details": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"report":  rep,
		"success": true,
	})
}

// handleChat handles POST /v1/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid JSON body",
			"success": false,
		})
		return
	}
	if req.Message == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Message is required",
			"success": false,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.ChatDeadline)
	defer cancel()

	response, err := s.chat(ctx, agent.ChatRequest{
		Message:       req.Message,
		History:       req.ChatHistory,
		ReportContext: req.ReportContext,
	})
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to generate response",
			"message": err.Error(),
			"success": false,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"response": response,
		"success":  true,
	})
}

// handleListReports handles GET /v1/reports.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListRecent(r.Context(), 20)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetReport handles GET /v1/reports/{run_id}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	run, err := s.runs.GetByID(r.Context(), runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
