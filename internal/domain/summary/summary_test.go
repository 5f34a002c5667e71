package summary_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/internal/domain/summary"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixture() []model.RunRecord {
	return []model.RunRecord{
		{ID: "r1", CharacterID: "b", CharacterName: "Gold Ship", TrackType: model.TrackDirt, Score: 1000,
			Features: model.Features{RareSkillsCount: 1, NormalSkillsCount: 4, FinalPlace: 3, Rushed: true}, Date: day0},
		{ID: "r2", CharacterID: "a", CharacterName: "Special Week", TrackType: model.TrackTurfShort, Score: 3000,
			Features: model.Features{RareSkillsCount: 3, NormalSkillsCount: 6, FinalPlace: 1, UniqueSkillActivated: true, GoodPositioning: true}, Date: day0.AddDate(0, 0, 2)},
		{ID: "r3", CharacterID: "a", CharacterName: "Special Week", TrackType: model.TrackDirt, Score: 2000,
			Features: model.Features{RareSkillsCount: 2, NormalSkillsCount: 2, FinalPlace: 2, UniqueSkillActivated: true}, Date: day0.AddDate(0, 0, 1)},
		{ID: "r4", CharacterID: "b", CharacterName: "Gold Ship", TrackType: model.TrackDirt, Score: 500,
			Features: model.Features{RareSkillsCount: 0, NormalSkillsCount: 0, FinalPlace: 10, Rushed: true}, Date: day0.AddDate(0, 0, 3)},
	}
}

func TestSummarize(t *testing.T) {
	Convey("Given no runs", t, func() {
		Convey("Then the overview is empty", func() {
			So(summary.Summarize(nil), ShouldResemble, summary.Overview{})
		})
	})

	Convey("Given a set of runs", t, func() {
		o := summary.Summarize(fixture())

		Convey("Then totals and averages are computed", func() {
			So(o.TotalRuns, ShouldEqual, 4)
			So(o.AverageScore, ShouldAlmostEqual, 1625, 1e-9)
			So(o.AverageFinalPlace, ShouldAlmostEqual, 4, 1e-9)
			So(o.BestScore, ShouldEqual, 3000)
			So(o.WorstScore, ShouldEqual, 500)
			So(o.AverageRareSkills, ShouldAlmostEqual, 1.5, 1e-9)
			So(o.AverageNormalSkills, ShouldAlmostEqual, 3, 1e-9)
		})

		Convey("Then flag rates are percentages", func() {
			So(o.RushedRate, ShouldAlmostEqual, 50, 1e-9)
			So(o.UniqueSkillRate, ShouldAlmostEqual, 50, 1e-9)
			So(o.GoodPositioningRate, ShouldAlmostEqual, 25, 1e-9)
		})
	})
}

func TestGroupings(t *testing.T) {
	Convey("Given a set of runs", t, func() {
		runs := fixture()

		Convey("When grouping by track", func() {
			tracks := summary.ByTrack(runs)

			Convey("Then only tracks with runs appear, in display order", func() {
				So(tracks, ShouldHaveLength, 2)
				So(tracks[0].TrackType, ShouldEqual, model.TrackTurfShort)
				So(tracks[1].TrackType, ShouldEqual, model.TrackDirt)
				So(tracks[1].TotalRuns, ShouldEqual, 3)
				So(tracks[1].BestScore, ShouldEqual, 2000)
			})
		})

		Convey("When grouping by character", func() {
			chars := summary.ByCharacter(runs)

			Convey("Then characters are ordered by id and carry their name", func() {
				So(chars, ShouldHaveLength, 2)
				So(chars[0].CharacterID, ShouldEqual, "a")
				So(chars[0].CharacterName, ShouldEqual, "Special Week")
				So(chars[0].TotalRuns, ShouldEqual, 2)
				So(chars[1].WorstScore, ShouldEqual, 500)
			})
		})

		Convey("When comparing characters", func() {
			rows, err := summary.Compare(runs, []string{"b", "zzz", "a"})

			Convey("Then rows follow request order and unknown ids are empty", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[0].CharacterID, ShouldEqual, "b")
				So(rows[1].TotalRuns, ShouldEqual, 0)
				So(rows[2].BestScore, ShouldEqual, 3000)
			})
		})

		Convey("When summarising one character", func() {
			cs := summary.Character(runs, "b")

			Convey("Then only that character's runs count", func() {
				So(cs.CharacterName, ShouldEqual, "Gold Ship")
				So(cs.TotalRuns, ShouldEqual, 2)
				So(cs.AverageScore, ShouldAlmostEqual, 750, 1e-9)
			})
		})

		Convey("When comparing a single character", func() {
			_, err := summary.Compare(runs, []string{"a"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, summary.ErrTooFewCharacters), ShouldBeTrue)
			})
		})
	})
}

func TestOrderings(t *testing.T) {
	Convey("Given a set of runs", t, func() {
		runs := fixture()

		Convey("Then Recent returns newest first", func() {
			recent := summary.Recent(runs, 2)
			So(recent, ShouldHaveLength, 2)
			So(recent[0].ID, ShouldEqual, "r4")
			So(recent[1].ID, ShouldEqual, "r2")
		})

		Convey("Then Best returns highest score first", func() {
			best := summary.Best(runs, 10)
			So(best, ShouldHaveLength, 4)
			So(best[0].ID, ShouldEqual, "r2")
			So(best[3].ID, ShouldEqual, "r4")
		})

		Convey("Then History is chronological", func() {
			h := summary.History(runs, 3)
			So(h, ShouldHaveLength, 3)
			So(h[0].Date, ShouldEqual, "2025-03-02")
			So(h[2].Date, ShouldEqual, "2025-03-04")
			So(h[2].FinalPlace, ShouldEqual, 10)
		})

		Convey("Then the input slice is not reordered", func() {
			_ = summary.Best(runs, 1)
			So(runs[0].ID, ShouldEqual, "r1")
		})
	})
}
