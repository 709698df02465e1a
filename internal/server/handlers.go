package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/exportengine/engine/internal/dispatch"
	"github.com/exportengine/engine/internal/model"
	"github.com/go-chi/chi/v5"
)

// RunDispatcher is the subset of dispatch.Dispatcher the API needs.
type RunDispatcher interface {
	RunExport(ctx context.Context, configID, runID string, trigger model.Trigger) (dispatch.Outcome, error)
}

// RunLookup serves the read side of run state for GET /api/runs/{runId}.
type RunLookup interface {
	Get(runID string) (model.RunRecord, error)
}

type createRunRequest struct {
	ConfigID string `json:"configId"`
	RunID    string `json:"runId"`
	Trigger  string `json:"trigger"`
}

type runResponse struct {
	RunID        string `json:"runId"`
	ConfigID     string `json:"configId,omitempty"`
	State        string `json:"state"`
	Cached       bool   `json:"cached,omitempty"`
	InProgress   bool   `json:"inProgress,omitempty"`
	Stale        bool   `json:"stale,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RowCount     int    `json:"rowCount,omitempty"`
}

// handleCreateRun implements POST /api/runs (spec §4.8, §6).
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConfigID == "" || req.RunID == "" {
		writeError(w, http.StatusBadRequest, "configId and runId are required")
		return
	}

	trigger := model.TriggerManual
	if req.Trigger == string(model.TriggerScheduled) {
		trigger = model.TriggerScheduled
	}

	outcome, err := s.runs.RunExport(r.Context(), req.ConfigID, req.RunID, trigger)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownConfig) {
			writeError(w, http.StatusNotFound, "unknown export configuration")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcomeToResponse(req.ConfigID, outcome))
}

// handleGetRun implements GET /api/runs/{runId} (spec §6).
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	rec, err := s.store.Get(runID)
	if err != nil {
		if errors.Is(err, dispatch.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stale := false
	inProgress := rec.State == model.RunPending || rec.State == model.RunRunning
	if inProgress && time.Since(rec.StartedAt) > s.staleThreshold {
		stale = true
	}

	writeJSON(w, http.StatusOK, runResponse{
		RunID:        rec.RunID,
		ConfigID:     rec.ConfigID,
		State:        string(rec.State),
		InProgress:   inProgress,
		Stale:        stale,
		ErrorMessage: rec.ErrorMessage,
		RowCount:     rec.RowCount,
	})
}

func outcomeToResponse(configID string, o dispatch.Outcome) runResponse {
	return runResponse{
		RunID:        o.RunID,
		ConfigID:     configID,
		State:        string(o.State),
		Cached:       o.Cached,
		InProgress:   o.InProgress,
		Stale:        o.Stale,
		ErrorMessage: o.ErrorMessage,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
