package predict

import "github.com/okian/trialstats/internal/domain/model"

// Dimension identifies one run feature that can take part in the distance metric.
type Dimension int

// Supported dimensions. Numeric dimensions come first.
const (
	RareSkills Dimension = iota
	NormalSkills
	FinalPlace
	Rushed
	GoodPositioning
	UniqueSkill
)

// Named dimension sets.
var (
	// CoreDimensions compares skill counts and finishing place only.
	CoreDimensions = DimensionSet{RareSkills, NormalSkills, FinalPlace} //nolint:gochecknoglobals // read-only preset
	// ExtendedDimensions adds the three race flags as Hamming dimensions.
	ExtendedDimensions = DimensionSet{RareSkills, NormalSkills, FinalPlace, Rushed, GoodPositioning, UniqueSkill} //nolint:gochecknoglobals // read-only preset
)

// String returns the wire name of the dimension.
func (d Dimension) String() string {
	switch d {
	case RareSkills:
		return "rare_skills"
	case NormalSkills:
		return "normal_skills"
	case FinalPlace:
		return "final_place"
	case Rushed:
		return "rushed"
	case GoodPositioning:
		return "good_positioning"
	case UniqueSkill:
		return "unique_skill"
	default:
		return "unknown"
	}
}

// Boolean reports whether the dimension is a flag compared by equality.
func (d Dimension) Boolean() bool {
	return d == Rushed || d == GoodPositioning || d == UniqueSkill
}

// DimensionSet is the ordered list of features that form the metric.
type DimensionSet []Dimension

// Contains reports whether d is part of the set.
func (s DimensionSet) Contains(d Dimension) bool {
	for _, x := range s {
		if x == d {
			return true
		}
	}
	return false
}

// numeric returns the raw value of a numeric dimension.
func numeric(d Dimension, f model.Features) float64 {
	switch d {
	case RareSkills:
		return float64(f.RareSkillsCount)
	case NormalSkills:
		return float64(f.NormalSkillsCount)
	case FinalPlace:
		return float64(f.FinalPlace)
	default:
		return 0
	}
}

// flag returns the value of a boolean dimension.
func flag(d Dimension, f model.Features) bool {
	switch d {
	case Rushed:
		return f.Rushed
	case GoodPositioning:
		return f.GoodPositioning
	case UniqueSkill:
		return f.UniqueSkillActivated
	default:
		return false
	}
}
