// Package impact measures how a run attribute relates to score with an
// ordinary least squares line and Pearson correlation.
package impact

import (
	"fmt"
	"strings"

	"github.com/okian/trialstats/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// minSamples is the smallest dataset a line can be fitted to.
const minSamples = 2

// Extractor maps a run to the independent variable of a regression.
type Extractor func(model.RunRecord) float64

// Built-in extractors.
func RareSkillsCount(r model.RunRecord) float64   { return float64(r.RareSkillsCount) }
func NormalSkillsCount(r model.RunRecord) float64 { return float64(r.NormalSkillsCount) }
func FinalPlace(r model.RunRecord) float64        { return float64(r.FinalPlace) }

// Variable names an independent variable on the wire.
type Variable string

// Supported variables.
const (
	VarRareSkills   Variable = "rare_skills"
	VarNormalSkills Variable = "normal_skills"
	VarFinalPlace   Variable = "final_place"
)

// ParseVariable resolves a variable name, accepting a few common spellings.
func ParseVariable(s string) (Variable, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rare_skills", "rare", "rareskills", "rare_skills_count":
		return VarRareSkills, nil
	case "normal_skills", "normal", "normalskills", "normal_skills_count":
		return VarNormalSkills, nil
	case "final_place", "place", "finalplace":
		return VarFinalPlace, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariable, s)
}

// Extractor returns the extractor for v.
func (v Variable) Extractor() (Extractor, error) {
	switch v {
	case VarRareSkills:
		return RareSkillsCount, nil
	case VarNormalSkills:
		return NormalSkillsCount, nil
	case VarFinalPlace:
		return FinalPlace, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, string(v))
}

// Analyze fits score = slope*x + intercept over history. It reports false
// when fewer than two runs are available. If every x is identical the slope
// and correlation are 0 and the intercept is the mean score; if every score
// is identical the correlation is 0. Data points keep history order.
func Analyze(history []model.RunRecord, x Extractor) (model.Regression, bool) {
	if len(history) < minSamples {
		return model.Regression{}, false
	}

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	points := make([]model.DataPoint, len(history))
	for i := range history {
		xs[i] = x(history[i])
		ys[i] = float64(history[i].Score)
		points[i] = model.DataPoint{X: xs[i], Y: ys[i]}
	}

	_, varX := stat.MeanVariance(xs, nil)
	meanY, varY := stat.MeanVariance(ys, nil)
	if varX == 0 {
		return model.Regression{Intercept: meanY, DataPoints: points}, true
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	var r float64
	if varY != 0 {
		r = stat.Correlation(xs, ys, nil)
	}

	return model.Regression{
		Slope:       slope,
		Intercept:   intercept,
		Correlation: r,
		DataPoints:  points,
	}, true
}

// AnalyzeVariable is Analyze keyed by variable name.
func AnalyzeVariable(history []model.RunRecord, v Variable) (model.Regression, bool, error) {
	x, err := v.Extractor()
	if err != nil {
		return model.Regression{}, false, err
	}
	reg, ok := Analyze(history, x)
	return reg, ok, nil
}

// AnalyzeAll fits score against rare skills, normal skills and finishing place.
func AnalyzeAll(history []model.RunRecord) model.ImpactAnalysis {
	return model.ImpactAnalysis{
		ScoreVsRareSkills:   fit(history, RareSkillsCount),
		ScoreVsNormalSkills: fit(history, NormalSkillsCount),
		ScoreVsFinalPlace:   fit(history, FinalPlace),
	}
}

func fit(history []model.RunRecord, x Extractor) *model.Regression {
	reg, ok := Analyze(history, x)
	if !ok {
		return nil
	}
	return &reg
}
