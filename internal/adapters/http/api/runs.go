package api

import (
	"net/http"

	service "github.com/okian/trialstats/internal/app"
	"github.com/okian/trialstats/internal/domain/model"
)

// runRequest is the body of POST /runs: a run plus the client's retry key.
type runRequest struct {
	SubmissionID string `json:"submission_id"`
	model.RunRecord
}

// RunsHandler handles ingestion and history requests.
type RunsHandler struct {
	deps RunDependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleRuns handles POST /runs and GET /runs?track=&character= requests.
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodPost {
		h.submit(w, r)
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	runs, err := h.deps.ListRuns(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.deps.SubmitRun(r.Context(), model.Submission{SubmissionID: req.SubmissionID, Run: req.RunRecord})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res.Status == service.StatusDuplicate {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// HandleGetRun handles GET /runs/{id} requests.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleDeleteRun handles DELETE /runs/{id} requests.
func (h *RunsHandler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteRun(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTrainingData handles GET /training-data?track=&character= requests.
func (h *RunsHandler) HandleTrainingData(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rows, err := h.deps.TrainingData(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.TrainingSample{}
	}
	writeJSON(w, http.StatusOK, rows)
}
