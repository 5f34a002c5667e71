package model

// Neighbor is a historical run annotated with its distance to a query.
type Neighbor struct {
	RunRecord
	Distance float64 `json:"distance"`
}

// Prediction is the outcome of a neighbour-based score estimate.
type Prediction struct {
	PredictedScore int        `json:"predicted_score"`
	Neighbors      []Neighbor `json:"neighbors"`
}

// DataPoint is one (x, y) sample of a regression scatter plot.
type DataPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Regression holds a single-predictor least squares fit against score.
type Regression struct {
	Slope       float64     `json:"slope"`
	Intercept   float64     `json:"intercept"`
	Correlation float64     `json:"correlation"`
	DataPoints  []DataPoint `json:"data_points"`
}

// ImpactAnalysis bundles the three score regressions. A nil entry means the
// dataset was too small to fit that line.
type ImpactAnalysis struct {
	ScoreVsRareSkills   *Regression `json:"score_vs_rare_skills"`
	ScoreVsNormalSkills *Regression `json:"score_vs_normal_skills"`
	ScoreVsFinalPlace   *Regression `json:"score_vs_final_place"`
}

// TrainingSample is the feature row and outcome of one stored run, as fed to
// the simulator.
type TrainingSample struct {
	Features
	Score     int       `json:"score"`
	TrackType TrackType `json:"track_type"`
}
