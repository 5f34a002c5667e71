package impact_test

import (
	"errors"
	"testing"

	"github.com/okian/trialstats/internal/domain/impact"
	"github.com/okian/trialstats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-9

func sample(rare, normal, place, score int) model.RunRecord {
	return model.RunRecord{
		Score: score,
		Features: model.Features{
			RareSkillsCount:   rare,
			NormalSkillsCount: normal,
			FinalPlace:        place,
		},
	}
}

func TestAnalyze(t *testing.T) {
	Convey("Given the impact analyzer", t, func() {
		Convey("When history has fewer than two runs", func() {
			_, okEmpty := impact.Analyze(nil, impact.RareSkillsCount)
			_, okOne := impact.Analyze([]model.RunRecord{sample(1, 1, 1, 100)}, impact.RareSkillsCount)

			Convey("Then no regression is produced", func() {
				So(okEmpty, ShouldBeFalse)
				So(okOne, ShouldBeFalse)
			})
		})

		Convey("When score grows by ten per rare skill", func() {
			history := []model.RunRecord{
				sample(1, 0, 1, 100),
				sample(2, 0, 1, 110),
				sample(3, 0, 1, 120),
			}
			reg, ok := impact.Analyze(history, impact.RareSkillsCount)

			Convey("Then slope, intercept and correlation are exact", func() {
				So(ok, ShouldBeTrue)
				So(reg.Slope, ShouldAlmostEqual, 10, tolerance)
				So(reg.Intercept, ShouldAlmostEqual, 90, tolerance)
				So(reg.Correlation, ShouldAlmostEqual, 1, tolerance)
			})

			Convey("And data points keep input order", func() {
				So(reg.DataPoints, ShouldResemble, []model.DataPoint{
					{X: 1, Y: 100}, {X: 2, Y: 110}, {X: 3, Y: 120},
				})
			})
		})

		Convey("When data follows y = 3x + 10 without noise", func() {
			history := make([]model.RunRecord, 0, 20)
			for x := 0; x < 20; x++ {
				history = append(history, sample(0, x, 1, 3*x+10))
			}
			reg, ok := impact.Analyze(history, impact.NormalSkillsCount)

			Convey("Then the line is recovered", func() {
				So(ok, ShouldBeTrue)
				So(reg.Slope, ShouldAlmostEqual, 3, tolerance)
				So(reg.Intercept, ShouldAlmostEqual, 10, tolerance)
				So(reg.Correlation, ShouldAlmostEqual, 1, tolerance)
			})
		})

		Convey("When a worse place costs points", func() {
			history := []model.RunRecord{
				sample(0, 0, 1, 500),
				sample(0, 0, 2, 450),
				sample(0, 0, 4, 350),
			}
			reg, _ := impact.Analyze(history, impact.FinalPlace)

			Convey("Then the slope and correlation are negative", func() {
				So(reg.Slope, ShouldAlmostEqual, -50, tolerance)
				So(reg.Correlation, ShouldAlmostEqual, -1, tolerance)
			})
		})

		Convey("When every x value is identical", func() {
			history := []model.RunRecord{
				sample(4, 0, 1, 100),
				sample(4, 0, 1, 300),
			}
			reg, ok := impact.Analyze(history, impact.RareSkillsCount)

			Convey("Then slope and correlation are zero instead of dividing by zero", func() {
				So(ok, ShouldBeTrue)
				So(reg.Slope, ShouldEqual, 0)
				So(reg.Correlation, ShouldEqual, 0)
				So(reg.Intercept, ShouldAlmostEqual, 200, tolerance)
			})
		})

		Convey("When every score is identical", func() {
			history := []model.RunRecord{
				sample(1, 0, 1, 250),
				sample(2, 0, 1, 250),
				sample(3, 0, 1, 250),
			}
			reg, ok := impact.Analyze(history, impact.RareSkillsCount)

			Convey("Then the line is flat and correlation is zero", func() {
				So(ok, ShouldBeTrue)
				So(reg.Slope, ShouldAlmostEqual, 0, tolerance)
				So(reg.Intercept, ShouldAlmostEqual, 250, tolerance)
				So(reg.Correlation, ShouldEqual, 0)
			})
		})
	})
}

func TestAnalyzeAll(t *testing.T) {
	Convey("Given a dataset", t, func() {
		Convey("When it is too small", func() {
			bundle := impact.AnalyzeAll([]model.RunRecord{sample(1, 1, 1, 1)})

			Convey("Then every panel is omitted", func() {
				So(bundle.ScoreVsRareSkills, ShouldBeNil)
				So(bundle.ScoreVsNormalSkills, ShouldBeNil)
				So(bundle.ScoreVsFinalPlace, ShouldBeNil)
			})
		})

		Convey("When it is large enough", func() {
			bundle := impact.AnalyzeAll([]model.RunRecord{
				sample(1, 2, 3, 100),
				sample(2, 4, 1, 200),
				sample(3, 5, 2, 250),
			})

			Convey("Then all three regressions are present", func() {
				So(bundle.ScoreVsRareSkills, ShouldNotBeNil)
				So(bundle.ScoreVsNormalSkills, ShouldNotBeNil)
				So(bundle.ScoreVsFinalPlace, ShouldNotBeNil)
				So(bundle.ScoreVsRareSkills.Slope, ShouldAlmostEqual, 75, tolerance)
			})
		})
	})
}

func TestVariables(t *testing.T) {
	Convey("Given variable names", t, func() {
		Convey("Then known spellings resolve", func() {
			v, err := impact.ParseVariable("Rare")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, impact.VarRareSkills)

			v, err = impact.ParseVariable("place")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, impact.VarFinalPlace)
		})

		Convey("Then unknown names are rejected", func() {
			_, err := impact.ParseVariable("speed")
			So(errors.Is(err, impact.ErrUnknownVariable), ShouldBeTrue)

			_, _, err = impact.AnalyzeVariable(nil, impact.Variable("speed"))
			So(errors.Is(err, impact.ErrUnknownVariable), ShouldBeTrue)
		})

		Convey("Then AnalyzeVariable matches Analyze", func() {
			history := []model.RunRecord{sample(0, 1, 1, 10), sample(0, 3, 1, 30)}
			reg, ok, err := impact.AnalyzeVariable(history, impact.VarNormalSkills)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(reg.Slope, ShouldAlmostEqual, 10, tolerance)
		})
	})
}
