// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/trialstats/internal/adapters/repository"
	service "github.com/okian/trialstats/internal/app"
	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/domain/summary"
	"github.com/okian/trialstats/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RunDependencies
	AnalysisDependencies
	StatsProvider
}

// RunDependencies covers ingestion and the stored history.
type RunDependencies interface {
	SubmitRun(ctx context.Context, sub model.Submission) (service.SubmitResult, error)
	ListRuns(ctx context.Context, f repository.Filter) ([]model.RunRecord, error)
	GetRun(ctx context.Context, id string) (model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	TrainingData(ctx context.Context, f repository.Filter) ([]model.TrainingSample, error)
}

// AnalysisDependencies covers predictions, regressions and summaries.
type AnalysisDependencies interface {
	Predict(ctx context.Context, req service.PredictRequest) (service.PredictResult, error)
	PredictHistory(ctx context.Context, history []model.RunRecord, req service.PredictRequest) service.PredictResult
	ListRuns(ctx context.Context, f repository.Filter) ([]model.RunRecord, error)
	ImpactOf(ctx context.Context, f repository.Filter, variable string) (service.RegressionResult, error)
	Impact(ctx context.Context, f repository.Filter) (service.ImpactResult, error)
	Dashboard(ctx context.Context, f repository.Filter) (service.Dashboard, error)
	CharacterStats(ctx context.Context, characterID string, track model.TrackType) (service.CharacterStats, error)
	Compare(ctx context.Context, characterIDs []string, track model.TrackType) ([]summary.CharacterSummary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	runsHandler    *RunsHandler
	predictHandler *PredictHandler
	streamHandler  *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps, deps),
		runsHandler:    NewRunsHandler(deps),
		predictHandler: NewPredictHandler(deps),
		streamHandler:  NewStreamHandler(deps, log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/stats/dashboard", MetricsMiddleware(s.statsHandler.HandleDashboard, "stats_dashboard"))
	mux.HandleFunc("GET /stats/character/{id}", MetricsMiddleware(s.statsHandler.HandleCharacter, "stats_character"))
	mux.HandleFunc("/stats/compare", MetricsMiddleware(s.statsHandler.HandleCompare, "stats_compare"))

	mux.HandleFunc("/runs", MetricsMiddleware(s.runsHandler.HandleRuns, "runs"))
	mux.HandleFunc("GET /runs/{id}", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
	mux.HandleFunc("DELETE /runs/{id}", MetricsMiddleware(s.runsHandler.HandleDeleteRun, "run"))
	mux.HandleFunc("/training-data", MetricsMiddleware(s.runsHandler.HandleTrainingData, "training_data"))

	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/impact", MetricsMiddleware(s.predictHandler.HandleImpact, "impact"))

	// The websocket handler hijacks the connection; the metrics wrapper would
	// hide http.Hijacker.
	mux.HandleFunc("/ws/predict", s.streamHandler.HandlePredictStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps the service's error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind("api.decode", ErrBadRequest, err)
	}
	return nil
}

// filterFromQuery reads the track and character query parameters.
func filterFromQuery(r *http.Request) (repository.Filter, error) {
	q := r.URL.Query()
	track, err := model.ParseTrackType(q.Get("track"))
	if err != nil {
		return repository.Filter{}, WrapKind("api.filter", ErrBadRequest, err)
	}
	return repository.Filter{TrackType: track, CharacterID: strings.TrimSpace(q.Get("character"))}, nil
}

// allow reports whether r uses one of methods and writes 405 otherwise.
func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}
