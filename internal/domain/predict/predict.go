// Package predict estimates the score of a hypothetical run from the most
// similar runs in a player's history (weighted k-nearest neighbours).
//
// Distances are Euclidean over a configurable set of dimensions. Numeric
// dimensions are divided by a fixed domain scale so that skill counts and
// finishing place contribute comparably; boolean dimensions add 0 when the
// flags match and 1 otherwise. The estimate is the inverse-distance weighted
// mean score of the k closest runs, rounded half away from zero.
package predict

import (
	"math"
	"sort"

	"github.com/okian/trialstats/internal/domain/model"
)

// Default predictor configuration.
const (
	DefaultK = 5

	// Domain scales used to normalise numeric deltas. These match the ranges
	// a player can enter: 0..10 rare skills, 0..20 normal skills, place 1..18.
	RareSkillsScale   = 10.0
	NormalSkillsScale = 20.0
	FinalPlaceScale   = 18.0

	// Epsilon keeps the weight of an exact match finite.
	Epsilon = 0.0001
)

// Scales holds the divisor applied to each numeric dimension.
type Scales struct {
	RareSkills   float64
	NormalSkills float64
	FinalPlace   float64
}

// DefaultScales returns the domain scales for Team Trials runs.
func DefaultScales() Scales {
	return Scales{
		RareSkills:   RareSkillsScale,
		NormalSkills: NormalSkillsScale,
		FinalPlace:   FinalPlaceScale,
	}
}

func (s Scales) of(d Dimension) float64 {
	switch d {
	case RareSkills:
		return s.RareSkills
	case NormalSkills:
		return s.NormalSkills
	case FinalPlace:
		return s.FinalPlace
	default:
		return 1
	}
}

// Option applies a configuration option to the Predictor.
type Option func(*Predictor)

// WithK sets how many neighbours contribute to the estimate.
func WithK(k int) Option {
	return func(p *Predictor) {
		if k > 0 {
			p.k = k
		}
	}
}

// WithDimensions selects the features that form the distance metric.
func WithDimensions(dims DimensionSet) Option {
	return func(p *Predictor) {
		if len(dims) > 0 {
			p.dims = append(DimensionSet(nil), dims...)
		}
	}
}

// WithScales overrides the numeric scales. Non-positive entries keep their default.
func WithScales(s Scales) Option {
	return func(p *Predictor) {
		if s.RareSkills > 0 {
			p.scales.RareSkills = s.RareSkills
		}
		if s.NormalSkills > 0 {
			p.scales.NormalSkills = s.NormalSkills
		}
		if s.FinalPlace > 0 {
			p.scales.FinalPlace = s.FinalPlace
		}
	}
}

// WithEpsilon sets the additive term in the inverse-distance weight.
func WithEpsilon(eps float64) Option {
	return func(p *Predictor) {
		if eps > 0 {
			p.epsilon = eps
		}
	}
}

// Predictor is an immutable, stateless KNN score estimator. It is safe for
// concurrent use.
type Predictor struct {
	k       int
	dims    DimensionSet
	scales  Scales
	epsilon float64
}

// New creates a predictor using the core dimensions unless overridden.
func New(opts ...Option) *Predictor {
	p := &Predictor{
		k:       DefaultK,
		dims:    CoreDimensions,
		scales:  DefaultScales(),
		epsilon: Epsilon,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// K returns the configured neighbour count.
func (p *Predictor) K() int { return p.k }

// Dimensions returns a copy of the active dimension set.
func (p *Predictor) Dimensions() DimensionSet {
	return append(DimensionSet(nil), p.dims...)
}

// Distance returns the normalised Euclidean distance between a run's
// features and the query.
func (p *Predictor) Distance(run model.Features, q model.Query) float64 {
	var sum float64
	for _, d := range p.dims {
		var delta float64
		if d.Boolean() {
			if flag(d, run) != flag(d, q) {
				delta = 1
			}
		} else {
			delta = (numeric(d, run) - numeric(d, q)) / p.scales.of(d)
		}
		sum += delta * delta
	}
	return math.Sqrt(sum)
}

// Predict ranks history by distance to q and returns the weighted estimate
// from the closest min(k, len(history)) runs. It reports false when history
// is empty. Runs at equal distance keep their order in history.
// history is never modified.
func (p *Predictor) Predict(history []model.RunRecord, q model.Query) (model.Prediction, bool) {
	if len(history) == 0 {
		return model.Prediction{}, false
	}

	ranked := make([]model.Neighbor, len(history))
	for i := range history {
		ranked[i] = model.Neighbor{
			RunRecord: history[i],
			Distance:  p.Distance(history[i].Features, q),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})

	k := min(p.k, len(ranked))
	neighbors := make([]model.Neighbor, k)
	copy(neighbors, ranked[:k])

	var weighted, total float64
	for _, n := range neighbors {
		w := 1 / (n.Distance + p.epsilon)
		weighted += w * float64(n.Score)
		total += w
	}

	return model.Prediction{
		PredictedScore: int(math.Round(weighted / total)),
		Neighbors:      neighbors,
	}, true
}

// Predict is a convenience wrapper building a one-off Predictor.
func Predict(history []model.RunRecord, q model.Query, opts ...Option) (model.Prediction, bool) {
	return New(opts...).Predict(history, q)
}
