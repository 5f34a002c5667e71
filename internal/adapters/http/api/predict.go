package api

import (
	"net/http"
	"strings"

	"github.com/okian/trialstats/internal/adapters/repository"
	service "github.com/okian/trialstats/internal/app"
	"github.com/okian/trialstats/internal/domain/model"
)

// predictRequest mirrors the OpenAPI schema for POST /predict.
type predictRequest struct {
	Query     model.Query `json:"query"`
	K         int         `json:"k,omitempty"`
	Extended  *bool       `json:"extended,omitempty"`
	Track     string      `json:"track,omitempty"`
	Character string      `json:"character,omitempty"`
}

func (p *predictRequest) toService() (service.PredictRequest, error) {
	if p.K < 0 {
		return service.PredictRequest{}, WrapKind("api.predict", ErrBadRequest, errNegativeK)
	}
	track, err := model.ParseTrackType(p.Track)
	if err != nil {
		return service.PredictRequest{}, WrapKind("api.predict", ErrBadRequest, err)
	}
	return service.PredictRequest{
		Query:    p.Query,
		K:        p.K,
		Extended: p.Extended,
		Filter:   repository.Filter{TrackType: track, CharacterID: strings.TrimSpace(p.Character)},
	}, nil
}

// PredictHandler handles prediction and regression requests.
type PredictHandler struct {
	deps AnalysisDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps AnalysisDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var body predictRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, err)
		return
	}
	req, err := body.toService()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.deps.Predict(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleImpact handles GET /impact?track=&character=&variable= requests.
// Without a variable it returns all three regressions.
func (h *PredictHandler) HandleImpact(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if v := r.URL.Query().Get("variable"); v != "" {
		res, err := h.deps.ImpactOf(r.Context(), f, v)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.deps.Impact(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
