package predict_test

import (
	"math"
	"testing"

	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/domain/predict"
	. "github.com/smartystreets/goconvey/convey"
)

func run(id string, rare, normal, place, score int) model.RunRecord {
	return model.RunRecord{
		ID:        id,
		TrackType: model.TrackTurfMedium,
		Score:     score,
		Features: model.Features{
			RareSkillsCount:   rare,
			NormalSkillsCount: normal,
			FinalPlace:        place,
		},
	}
}

func ids(ns []model.Neighbor) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestPredictor_Predict(t *testing.T) {
	Convey("Given a predictor with default settings", t, func() {
		p := predict.New()

		Convey("Then it uses k=5 and the core dimensions", func() {
			So(p.K(), ShouldEqual, predict.DefaultK)
			So(p.Dimensions(), ShouldResemble, predict.CoreDimensions)
		})

		Convey("When history is empty", func() {
			pred, ok := p.Predict(nil, model.Query{FinalPlace: 1})

			Convey("Then no prediction is available", func() {
				So(ok, ShouldBeFalse)
				So(pred.Neighbors, ShouldBeEmpty)
				So(pred.PredictedScore, ShouldEqual, 0)
			})
		})

		Convey("When the query matches a run exactly", func() {
			history := []model.RunRecord{
				run("a", 0, 0, 1, 100),
				run("b", 5, 10, 1, 200),
			}
			pred, ok := predict.Predict(history, model.Query{RareSkillsCount: 5, NormalSkillsCount: 10, FinalPlace: 1}, predict.WithK(2))

			Convey("Then the exact match ranks first with distance zero", func() {
				So(ok, ShouldBeTrue)
				So(pred.Neighbors, ShouldHaveLength, 2)
				So(pred.Neighbors[0].ID, ShouldEqual, "b")
				So(pred.Neighbors[0].Distance, ShouldEqual, 0)
				So(pred.Neighbors[1].Distance, ShouldAlmostEqual, math.Sqrt(0.5), 1e-12)
			})

			Convey("And the estimate leans heavily toward the exact match", func() {
				So(pred.PredictedScore, ShouldEqual, 200)
			})
		})

		Convey("When two neighbours sit at distances 0.1 and 0.2", func() {
			history := []model.RunRecord{
				run("near", 1, 0, 1, 100),
				run("far", 2, 0, 1, 200),
			}
			pred, ok := p.Predict(history, model.Query{FinalPlace: 1})

			Convey("Then the inverse-distance weighted mean is returned", func() {
				So(ok, ShouldBeTrue)
				So(pred.Neighbors[0].Distance, ShouldAlmostEqual, 0.1, 1e-12)
				So(pred.Neighbors[1].Distance, ShouldAlmostEqual, 0.2, 1e-12)
				So(pred.PredictedScore, ShouldEqual, 133)
			})
		})

		Convey("When history is larger than k", func() {
			history := make([]model.RunRecord, 0, 12)
			for i := 0; i < 12; i++ {
				history = append(history, run(string(rune('a'+i)), i%10, (i*3)%20, 1+i%18, 1000+i*50))
			}
			pred, ok := p.Predict(history, model.Query{RareSkillsCount: 4, NormalSkillsCount: 6, FinalPlace: 3})

			Convey("Then exactly k neighbours are returned in non-decreasing distance", func() {
				So(ok, ShouldBeTrue)
				So(pred.Neighbors, ShouldHaveLength, 5)
				for i := 1; i < len(pred.Neighbors); i++ {
					So(pred.Neighbors[i].Distance, ShouldBeGreaterThanOrEqualTo, pred.Neighbors[i-1].Distance)
				}
			})
		})

		Convey("When history is smaller than k", func() {
			history := []model.RunRecord{run("a", 1, 1, 1, 10), run("b", 2, 2, 2, 20)}
			pred, ok := p.Predict(history, model.Query{FinalPlace: 1})

			Convey("Then every run is used", func() {
				So(ok, ShouldBeTrue)
				So(pred.Neighbors, ShouldHaveLength, 2)
			})
		})

		Convey("When several runs tie on distance", func() {
			history := []model.RunRecord{
				run("first", 3, 3, 3, 300),
				run("second", 3, 3, 3, 310),
				run("third", 3, 3, 3, 320),
			}
			pred, _ := p.Predict(history, model.Query{RareSkillsCount: 3, NormalSkillsCount: 3, FinalPlace: 3})

			Convey("Then they keep their history order", func() {
				So(ids(pred.Neighbors), ShouldResemble, []string{"first", "second", "third"})
			})
		})

		Convey("When the same inputs are predicted twice", func() {
			history := []model.RunRecord{
				run("a", 1, 7, 4, 9000),
				run("b", 0, 12, 2, 11000),
				run("c", 6, 3, 9, 8000),
				run("d", 2, 2, 1, 15000),
			}
			q := model.Query{RareSkillsCount: 2, NormalSkillsCount: 5, FinalPlace: 3}
			first, _ := p.Predict(history, q)
			second, _ := p.Predict(history, q)

			Convey("Then the outputs are identical", func() {
				So(second, ShouldResemble, first)
			})

			Convey("And history is left untouched", func() {
				So(history[0].ID, ShouldEqual, "a")
				So(history[3].ID, ShouldEqual, "d")
			})
		})

		Convey("When query values fall outside the UI ranges", func() {
			history := []model.RunRecord{run("a", 1, 1, 1, 100)}
			pred, ok := p.Predict(history, model.Query{RareSkillsCount: 40, NormalSkillsCount: -3, FinalPlace: 99})

			Convey("Then they are computed without clamping", func() {
				So(ok, ShouldBeTrue)
				expected := math.Sqrt(math.Pow(-39.0/10, 2) + math.Pow(4.0/20, 2) + math.Pow(-98.0/18, 2))
				So(pred.Neighbors[0].Distance, ShouldAlmostEqual, expected, 1e-12)
			})
		})
	})
}

func TestPredictor_Dimensions(t *testing.T) {
	Convey("Given runs that differ only in race flags", t, func() {
		rushed := run("rushed", 2, 4, 1, 100)
		rushed.Rushed = true
		calm := run("calm", 2, 4, 1, 200)
		calm.GoodPositioning = true
		calm.UniqueSkillActivated = true
		history := []model.RunRecord{rushed, calm}
		q := model.Query{RareSkillsCount: 2, NormalSkillsCount: 4, FinalPlace: 1, GoodPositioning: true, UniqueSkillActivated: true}

		Convey("When using the core dimensions", func() {
			p := predict.New(predict.WithK(1))
			pred, _ := p.Predict(history, q)

			Convey("Then the flags are ignored and the first run wins the tie", func() {
				So(pred.Neighbors[0].ID, ShouldEqual, "rushed")
				So(pred.Neighbors[0].Distance, ShouldEqual, 0)
			})
		})

		Convey("When using the extended dimensions", func() {
			p := predict.New(predict.WithK(2), predict.WithDimensions(predict.ExtendedDimensions))
			pred, _ := p.Predict(history, q)

			Convey("Then each mismatching flag adds one unit of squared distance", func() {
				So(pred.Neighbors[0].ID, ShouldEqual, "calm")
				So(pred.Neighbors[0].Distance, ShouldEqual, 0)
				So(pred.Neighbors[1].ID, ShouldEqual, "rushed")
				So(pred.Neighbors[1].Distance, ShouldAlmostEqual, math.Sqrt(3), 1e-12)
			})
		})
	})

	Convey("Given custom scales", t, func() {
		p := predict.New(predict.WithScales(predict.Scales{RareSkills: 5}))

		Convey("Then only positive overrides apply", func() {
			d := p.Distance(model.Features{RareSkillsCount: 5, NormalSkillsCount: 20, FinalPlace: 1}, model.Query{FinalPlace: 1})
			So(d, ShouldAlmostEqual, math.Sqrt(1+1), 1e-12)
		})
	})

	Convey("Given invalid options", t, func() {
		p := predict.New(predict.WithK(0), predict.WithDimensions(nil), predict.WithEpsilon(-1))

		Convey("Then defaults are kept", func() {
			So(p.K(), ShouldEqual, predict.DefaultK)
			So(p.Dimensions(), ShouldResemble, predict.CoreDimensions)
		})
	})

	Convey("Given dimension metadata", t, func() {
		So(predict.ExtendedDimensions.Contains(predict.Rushed), ShouldBeTrue)
		So(predict.CoreDimensions.Contains(predict.Rushed), ShouldBeFalse)
		So(predict.UniqueSkill.Boolean(), ShouldBeTrue)
		So(predict.FinalPlace.Boolean(), ShouldBeFalse)
		So(predict.FinalPlace.String(), ShouldEqual, "final_place")
	})
}
