package api

import (
	"net/http"
	"strings"

	"github.com/okian/trialstats/internal/domain/model"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// compareRequest mirrors the OpenAPI schema for POST /stats/compare.
type compareRequest struct {
	CharacterIDs []string `json:"character_ids"`
	Track        string   `json:"track,omitempty"`
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	deps          AnalysisDependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, deps AnalysisDependencies) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, deps: deps}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}

// HandleDashboard handles GET /stats/dashboard?track=&character= requests.
func (h *StatsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	d, err := h.deps.Dashboard(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleCharacter handles GET /stats/character/{id}?track= requests.
func (h *StatsHandler) HandleCharacter(w http.ResponseWriter, r *http.Request) {
	track, err := model.ParseTrackType(r.URL.Query().Get("track"))
	if err != nil {
		writeServiceError(w, WrapKind("api.character", ErrBadRequest, err))
		return
	}
	cs, err := h.deps.CharacterStats(r.Context(), r.PathValue("id"), track)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// HandleCompare handles POST /stats/compare requests.
func (h *StatsHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.compare"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req compareRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if len(req.CharacterIDs) == 0 {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errNoCharacterList))
		return
	}
	track, err := model.ParseTrackType(req.Track)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	ids := make([]string, len(req.CharacterIDs))
	for i, id := range req.CharacterIDs {
		ids[i] = strings.TrimSpace(id)
	}
	rows, err := h.deps.Compare(r.Context(), ids, track)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
