// Package summary computes the descriptive statistics shown on the dashboard,
// character and comparison pages.
package summary

import (
	"fmt"
	"sort"

	"github.com/okian/trialstats/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// minCompare is the smallest number of characters a comparison accepts.
const minCompare = 2

// percent scales a ratio to 0..100.
const percent = 100

// Overview aggregates a set of runs.
type Overview struct {
	TotalRuns           int     `json:"total_runs"`
	AverageScore        float64 `json:"average_score"`
	AverageFinalPlace   float64 `json:"average_final_place"`
	BestScore           int     `json:"best_score"`
	WorstScore          int     `json:"worst_score"`
	RushedRate          float64 `json:"rushed_rate"`
	UniqueSkillRate     float64 `json:"unique_skill_rate"`
	GoodPositioningRate float64 `json:"good_positioning_rate"`
	AverageRareSkills   float64 `json:"average_rare_skills"`
	AverageNormalSkills float64 `json:"average_normal_skills"`
}

// TrackSummary aggregates the runs of one track type.
type TrackSummary struct {
	TrackType         model.TrackType `json:"track_type"`
	TotalRuns         int             `json:"total_runs"`
	AverageScore      float64         `json:"average_score"`
	AverageFinalPlace float64         `json:"average_final_place"`
	RushedRate        float64         `json:"rushed_rate"`
	BestScore         int             `json:"best_score"`
}

// CharacterSummary aggregates the runs of one character.
type CharacterSummary struct {
	CharacterID   string `json:"character_id"`
	CharacterName string `json:"character_name"`
	Overview
}

// HistoryPoint is one entry of a character's score-over-time chart.
type HistoryPoint struct {
	Date         string `json:"date"`
	Score        int    `json:"score"`
	FinalPlace   int    `json:"final_place"`
	RareSkills   int    `json:"rare_skills"`
	NormalSkills int    `json:"normal_skills"`
}

// Summarize computes the Overview of runs. An empty slice yields the zero value.
func Summarize(runs []model.RunRecord) Overview {
	n := len(runs)
	if n == 0 {
		return Overview{}
	}

	scores := make([]float64, n)
	places := make([]float64, n)
	rare := make([]float64, n)
	normal := make([]float64, n)
	var rushed, unique, goodPos int
	best, worst := runs[0].Score, runs[0].Score
	for i := range runs {
		r := &runs[i]
		scores[i] = float64(r.Score)
		places[i] = float64(r.FinalPlace)
		rare[i] = float64(r.RareSkillsCount)
		normal[i] = float64(r.NormalSkillsCount)
		if r.Rushed {
			rushed++
		}
		if r.UniqueSkillActivated {
			unique++
		}
		if r.GoodPositioning {
			goodPos++
		}
		best = max(best, r.Score)
		worst = min(worst, r.Score)
	}

	return Overview{
		TotalRuns:           n,
		AverageScore:        stat.Mean(scores, nil),
		AverageFinalPlace:   stat.Mean(places, nil),
		BestScore:           best,
		WorstScore:          worst,
		RushedRate:          rate(rushed, n),
		UniqueSkillRate:     rate(unique, n),
		GoodPositioningRate: rate(goodPos, n),
		AverageRareSkills:   stat.Mean(rare, nil),
		AverageNormalSkills: stat.Mean(normal, nil),
	}
}

// ByTrack summarises runs per track type in display order. Tracks without
// runs are omitted.
func ByTrack(runs []model.RunRecord) []TrackSummary {
	groups := make(map[model.TrackType][]model.RunRecord)
	for _, r := range runs {
		groups[r.TrackType] = append(groups[r.TrackType], r)
	}

	out := make([]TrackSummary, 0, len(groups))
	for _, tt := range model.TrackTypes {
		g, ok := groups[tt]
		if !ok {
			continue
		}
		o := Summarize(g)
		out = append(out, TrackSummary{
			TrackType:         tt,
			TotalRuns:         o.TotalRuns,
			AverageScore:      o.AverageScore,
			AverageFinalPlace: o.AverageFinalPlace,
			RushedRate:        o.RushedRate,
			BestScore:         o.BestScore,
		})
	}
	return out
}

// ByCharacter summarises runs per character ordered by character id.
func ByCharacter(runs []model.RunRecord) []CharacterSummary {
	groups := make(map[string][]model.RunRecord)
	for _, r := range runs {
		groups[r.CharacterID] = append(groups[r.CharacterID], r)
	}

	keys := make([]string, 0, len(groups))
	for id := range groups {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	out := make([]CharacterSummary, 0, len(keys))
	for _, id := range keys {
		out = append(out, character(id, groups[id]))
	}
	return out
}

// Compare summarises each requested character in request order. Unknown ids
// produce a row with zero runs.
func Compare(runs []model.RunRecord, characterIDs []string) ([]CharacterSummary, error) {
	if len(characterIDs) < minCompare {
		return nil, fmt.Errorf("%w: need at least %d characters, got %d", ErrTooFewCharacters, minCompare, len(characterIDs))
	}

	groups := make(map[string][]model.RunRecord, len(characterIDs))
	for _, r := range runs {
		groups[r.CharacterID] = append(groups[r.CharacterID], r)
	}

	out := make([]CharacterSummary, 0, len(characterIDs))
	for _, id := range characterIDs {
		out = append(out, character(id, groups[id]))
	}
	return out, nil
}

// Recent returns up to n runs, newest first.
func Recent(runs []model.RunRecord, n int) []model.RunRecord {
	out := append([]model.RunRecord(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return head(out, n)
}

// Best returns up to n runs, highest score first.
func Best(runs []model.RunRecord, n int) []model.RunRecord {
	out := append([]model.RunRecord(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return head(out, n)
}

// History returns the n most recent runs as chart points, oldest first.
func History(runs []model.RunRecord, n int) []HistoryPoint {
	recent := Recent(runs, n)
	out := make([]HistoryPoint, len(recent))
	for i := range recent {
		r := recent[len(recent)-1-i]
		out[i] = HistoryPoint{
			Date:         r.Date.UTC().Format("2006-01-02"),
			Score:        r.Score,
			FinalPlace:   r.FinalPlace,
			RareSkills:   r.RareSkillsCount,
			NormalSkills: r.NormalSkillsCount,
		}
	}
	return out
}

// Character summarises the runs of one character. Runs of other characters
// are ignored.
func Character(runs []model.RunRecord, id string) CharacterSummary {
	own := make([]model.RunRecord, 0, len(runs))
	for _, r := range runs {
		if r.CharacterID == id {
			own = append(own, r)
		}
	}
	return character(id, own)
}

func character(id string, runs []model.RunRecord) CharacterSummary {
	cs := CharacterSummary{CharacterID: id, Overview: Summarize(runs)}
	for _, r := range runs {
		if r.CharacterName != "" {
			cs.CharacterName = r.CharacterName
			break
		}
	}
	return cs
}

func rate(count, total int) float64 {
	return float64(count) / float64(total) * percent
}

func head(runs []model.RunRecord, n int) []model.RunRecord {
	if n >= 0 && n < len(runs) {
		return runs[:n]
	}
	return runs
}
