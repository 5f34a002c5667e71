package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/trialstats/internal/adapters/repository"
	"github.com/okian/trialstats/internal/domain/impact"
	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/domain/summary"
	"github.com/okian/trialstats/pkg/logger"
	"github.com/okian/trialstats/pkg/metrics"
)

// PredictRequest asks for a score estimate. Zero K and nil Extended fall
// back to the configured defaults.
type PredictRequest struct {
	Query    model.Query       `json:"query"`
	K        int               `json:"k,omitempty"`
	Extended *bool             `json:"extended,omitempty"`
	Filter   repository.Filter `json:"-"`
}

// PredictResult carries the estimate, or nil when there was no history, and
// the number of runs it was drawn from.
type PredictResult struct {
	Prediction *model.Prediction `json:"prediction"`
	Samples    int               `json:"samples"`
}

// RegressionResult is a single impact line, nil when fewer than two runs match.
type RegressionResult struct {
	Variable   impact.Variable   `json:"variable"`
	Regression *model.Regression `json:"regression"`
	Samples    int               `json:"samples"`
}

// ImpactResult is the regression bundle for a filtered history.
type ImpactResult struct {
	model.ImpactAnalysis
	Samples int `json:"samples"`
}

// Dashboard is the overview page of a player's history.
type Dashboard struct {
	Overview   summary.Overview           `json:"overview"`
	Tracks     []summary.TrackSummary     `json:"tracks"`
	Characters []summary.CharacterSummary `json:"characters"`
	Recent     []model.RunRecord          `json:"recent"`
	Best       []model.RunRecord          `json:"best"`
	Impact     model.ImpactAnalysis       `json:"impact"`
}

// CharacterStats is the detail page of one character.
type CharacterStats struct {
	summary.CharacterSummary
	Tracks  []summary.TrackSummary `json:"tracks"`
	History []summary.HistoryPoint `json:"history"`
	Recent  []model.RunRecord      `json:"recent"`
	Best    []model.RunRecord      `json:"best"`
}

// Predict loads the history matching req.Filter and estimates the score of
// req.Query from it.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (PredictResult, error) { //nolint:gocritic // hugeParam: request is read-only
	history, err := s.ListRuns(ctx, req.Filter)
	if err != nil {
		return PredictResult{}, err
	}
	return s.PredictHistory(ctx, history, req), nil
}

// PredictHistory estimates the score of req.Query from an already loaded
// history. req.Filter is ignored.
func (s *Service) PredictHistory(ctx context.Context, history []model.RunRecord, req PredictRequest) PredictResult { //nolint:gocritic // hugeParam: request is read-only
	start := time.Now()
	p := s.settings.Load().predictor(req.K, req.Extended)

	prediction, ok := p.Predict(history, req.Query)
	metrics.RecordPredictionLatency(float64(time.Since(start).Microseconds()) / 1000)

	result := PredictResult{Samples: len(history)}
	if !ok {
		metrics.RecordPrediction(metrics.OutcomeNoData)
		s.logger.Debug(ctx, "no history to predict from")
		return result
	}

	metrics.RecordPrediction(metrics.OutcomeOK)
	metrics.RecordNeighborsUsed(len(prediction.Neighbors))
	s.logger.Debug(ctx, "prediction served",
		logger.Int("predicted_score", prediction.PredictedScore),
		logger.Int("k", p.K()),
		logger.Int("samples", len(history)),
	)
	result.Prediction = &prediction
	return result
}

// ImpactOf fits score against one variable over the filtered history.
func (s *Service) ImpactOf(ctx context.Context, f repository.Filter, variable string) (RegressionResult, error) {
	v, err := impact.ParseVariable(variable)
	if err != nil {
		return RegressionResult{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	history, err := s.ListRuns(ctx, f)
	if err != nil {
		return RegressionResult{}, err
	}

	result := RegressionResult{Variable: v, Samples: len(history)}
	reg, ok, err := impact.AnalyzeVariable(history, v)
	if err != nil {
		return RegressionResult{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if !ok {
		metrics.RecordRegression(string(v), metrics.OutcomeNoData)
		return result, nil
	}
	metrics.RecordRegression(string(v), metrics.OutcomeOK)
	result.Regression = &reg
	return result, nil
}

// Impact fits all three regressions over the filtered history.
func (s *Service) Impact(ctx context.Context, f repository.Filter) (ImpactResult, error) {
	history, err := s.ListRuns(ctx, f)
	if err != nil {
		return ImpactResult{}, err
	}
	bundle := impact.AnalyzeAll(history)
	recordBundle(bundle)
	return ImpactResult{ImpactAnalysis: bundle, Samples: len(history)}, nil
}

func recordBundle(b model.ImpactAnalysis) {
	for v, r := range map[impact.Variable]*model.Regression{
		impact.VarRareSkills:   b.ScoreVsRareSkills,
		impact.VarNormalSkills: b.ScoreVsNormalSkills,
		impact.VarFinalPlace:   b.ScoreVsFinalPlace,
	} {
		outcome := metrics.OutcomeOK
		if r == nil {
			outcome = metrics.OutcomeNoData
		}
		metrics.RecordRegression(string(v), outcome)
	}
}

// Dashboard summarises the filtered history.
func (s *Service) Dashboard(ctx context.Context, f repository.Filter) (Dashboard, error) {
	runs, err := s.ListRuns(ctx, f)
	if err != nil {
		return Dashboard{}, err
	}
	bundle := impact.AnalyzeAll(runs)
	recordBundle(bundle)
	return Dashboard{
		Overview:   summary.Summarize(runs),
		Tracks:     summary.ByTrack(runs),
		Characters: summary.ByCharacter(runs),
		Recent:     summary.Recent(runs, s.maxRecent),
		Best:       summary.Best(runs, s.maxRecent),
		Impact:     bundle,
	}, nil
}

// CharacterStats summarises one character's runs, optionally on one track.
func (s *Service) CharacterStats(ctx context.Context, characterID string, track model.TrackType) (CharacterStats, error) {
	runs, err := s.ListRuns(ctx, repository.Filter{CharacterID: characterID, TrackType: track})
	if err != nil {
		return CharacterStats{}, err
	}
	if len(runs) == 0 {
		return CharacterStats{}, fmt.Errorf("%w: no runs for character %s", ErrNotFound, characterID)
	}

	return CharacterStats{
		CharacterSummary: summary.Character(runs, characterID),
		Tracks:           summary.ByTrack(runs),
		History:          summary.History(runs, s.maxRecent),
		Recent:           summary.Recent(runs, s.maxRecent),
		Best:             summary.Best(runs, s.maxRecent),
	}, nil
}

// Compare summarises several characters side by side.
func (s *Service) Compare(ctx context.Context, characterIDs []string, track model.TrackType) ([]summary.CharacterSummary, error) {
	runs, err := s.ListRuns(ctx, repository.Filter{TrackType: track})
	if err != nil {
		return nil, err
	}
	rows, err := summary.Compare(runs, characterIDs)
	if errors.Is(err, summary.ErrTooFewCharacters) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return rows, err
}
