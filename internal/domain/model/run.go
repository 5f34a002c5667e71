// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Finishing place bounds for a Team Trials race.
const (
	MinFinalPlace = 1
	MaxFinalPlace = 18
)

// TrackType is the surface/distance class a race was run on.
type TrackType string

// Known track types.
const (
	TrackTurfShort  TrackType = "TURF_SHORT"
	TrackTurfMile   TrackType = "TURF_MILE"
	TrackTurfMedium TrackType = "TURF_MEDIUM"
	TrackTurfLong   TrackType = "TURF_LONG"
	TrackDirt       TrackType = "DIRT"
)

// TrackTypes lists every track type in display order.
var TrackTypes = []TrackType{ //nolint:gochecknoglobals // read-only enumeration
	TrackTurfShort,
	TrackTurfMile,
	TrackTurfMedium,
	TrackTurfLong,
	TrackDirt,
}

// Valid reports whether t is one of the known track types.
func (t TrackType) Valid() bool {
	for _, known := range TrackTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTrackType parses a track filter. An empty string or "ALL" means no
// filter and yields the zero TrackType.
func ParseTrackType(s string) (TrackType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "ALL" {
		return "", nil
	}
	t := TrackType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown track type %q", ErrInvalidRun, s)
	}
	return t, nil
}

// Features are the run attributes compared by the neighbour predictor.
type Features struct {
	RareSkillsCount      int  `json:"rare_skills_count"`
	NormalSkillsCount    int  `json:"normal_skills_count"`
	FinalPlace           int  `json:"final_place"`
	Rushed               bool `json:"rushed"`
	GoodPositioning      bool `json:"good_positioning"`
	UniqueSkillActivated bool `json:"unique_skill_activated"`
}

// Query is a user-chosen point to predict a score for. Values outside the
// UI ranges are accepted as-is.
type Query = Features

// RunRecord is one logged race attempt.
type RunRecord struct {
	ID            string    `json:"id"`
	CharacterID   string    `json:"character_id"`
	CharacterName string    `json:"character_name,omitempty"`
	TrackType     TrackType `json:"track_type"`
	Score         int       `json:"score"`
	Features
	Date time.Time `json:"date"`
}

// Validate checks the field ranges a stored run must satisfy.
func (r *RunRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.CharacterID) == "":
		return fmt.Errorf("%w: missing character_id", ErrInvalidRun)
	case !r.TrackType.Valid():
		return fmt.Errorf("%w: unknown track_type %q", ErrInvalidRun, r.TrackType)
	case r.Score < 0:
		return fmt.Errorf("%w: score must not be negative", ErrInvalidRun)
	case r.FinalPlace < MinFinalPlace || r.FinalPlace > MaxFinalPlace:
		return fmt.Errorf("%w: final_place must be in [%d,%d]", ErrInvalidRun, MinFinalPlace, MaxFinalPlace)
	case r.RareSkillsCount < 0:
		return fmt.Errorf("%w: rare_skills_count must not be negative", ErrInvalidRun)
	case r.NormalSkillsCount < 0:
		return fmt.Errorf("%w: normal_skills_count must not be negative", ErrInvalidRun)
	}
	return nil
}

// NormalizeName folds a character name to NFKC and collapses whitespace so
// names typed on different devices group together.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(name)), " ")
}
