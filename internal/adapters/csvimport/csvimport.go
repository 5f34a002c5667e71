// Package csvimport reads historical runs from CSV exports.
//
// The header must name every feature column. id, character_name and date are
// optional; date accepts RFC 3339 or YYYY-MM-DD.
package csvimport

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/okian/trialstats/internal/domain/model"
)

// Column names.
const (
	ColID            = "id"
	ColCharacterID   = "character_id"
	ColCharacterName = "character_name"
	ColTrackType     = "track_type"
	ColScore         = "score"
	ColRareSkills    = "rare_skills_count"
	ColNormalSkills  = "normal_skills_count"
	ColFinalPlace    = "final_place"
	ColRushed        = "rushed"
	ColGoodPosition  = "good_positioning"
	ColUniqueSkill   = "unique_skill_activated"
	ColDate          = "date"
)

var requiredColumns = []string{ //nolint:gochecknoglobals // read-only column list
	ColCharacterID, ColTrackType, ColScore, ColRareSkills, ColNormalSkills,
	ColFinalPlace, ColRushed, ColGoodPosition, ColUniqueSkill,
}

var columnTypes = map[string]series.Type{ //nolint:gochecknoglobals // read-only column types
	ColID:            series.String,
	ColCharacterID:   series.String,
	ColCharacterName: series.String,
	ColTrackType:     series.String,
	ColScore:         series.Int,
	ColRareSkills:    series.Int,
	ColNormalSkills:  series.Int,
	ColFinalPlace:    series.Int,
	ColRushed:        series.Bool,
	ColGoodPosition:  series.Bool,
	ColUniqueSkill:   series.Bool,
	ColDate:          series.String,
}

type options struct {
	track model.TrackType
}

// Option configures Read.
type Option func(*options)

// WithTrack keeps only rows for the given track type.
func WithTrack(t model.TrackType) Option {
	return func(o *options) {
		o.track = t
	}
}

// Read parses r into run records. Every row is validated; the first invalid
// row fails the whole import.
func Read(r io.Reader, opts ...Option) ([]model.RunRecord, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(columnTypes),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, df.Err)
	}

	names := df.Names()
	for _, col := range requiredColumns {
		if !slices.Contains(names, col) {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCSV, col)
		}
	}

	if o.track != "" {
		// Unparseable tracks are kept so the row loop reports them.
		keep := func(el series.Element) bool {
			t, err := model.ParseTrackType(el.String())
			return err != nil || t == "" || t == o.track
		}
		df = df.Filter(dataframe.F{Colname: ColTrackType, Comparator: series.CompFunc, Comparando: keep})
		if df.Err != nil {
			return nil, fmt.Errorf("%w: filter: %w", ErrInvalidCSV, df.Err)
		}
	}
	if df.Nrow() == 0 {
		return nil, nil
	}

	ints := make(map[string][]int, 4)
	for _, col := range []string{ColScore, ColRareSkills, ColNormalSkills, ColFinalPlace} {
		v, err := df.Col(col).Int()
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidCSV, col, err)
		}
		ints[col] = v
	}
	bools := make(map[string][]bool, 3)
	for _, col := range []string{ColRushed, ColGoodPosition, ColUniqueSkill} {
		v, err := df.Col(col).Bool()
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidCSV, col, err)
		}
		bools[col] = v
	}
	strs := func(col string) []string {
		if !slices.Contains(names, col) {
			return make([]string, df.Nrow())
		}
		return df.Col(col).Records()
	}
	ids, chars, charNames, tracks, dates := strs(ColID), strs(ColCharacterID), strs(ColCharacterName), strs(ColTrackType), strs(ColDate)

	runs := make([]model.RunRecord, df.Nrow())
	for i := range runs {
		date, err := parseDate(dates[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidCSV, i+1, err)
		}
		track, err := model.ParseTrackType(tracks[i])
		if err != nil || track == "" {
			return nil, fmt.Errorf("%w: row %d: unknown track_type %q", ErrInvalidCSV, i+1, tracks[i])
		}

		runs[i] = model.RunRecord{
			ID:            clean(ids[i]),
			CharacterID:   clean(chars[i]),
			CharacterName: model.NormalizeName(clean(charNames[i])),
			TrackType:     track,
			Score:         ints[ColScore][i],
			Features: model.Features{
				RareSkillsCount:      ints[ColRareSkills][i],
				NormalSkillsCount:    ints[ColNormalSkills][i],
				FinalPlace:           ints[ColFinalPlace][i],
				Rushed:               bools[ColRushed][i],
				GoodPositioning:      bools[ColGoodPosition][i],
				UniqueSkillActivated: bools[ColUniqueSkill][i],
			},
			Date: date,
		}
		if err := runs[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidCSV, i+1, err)
		}
	}
	return runs, nil
}

// clean maps gota's missing-value marker back to an empty string.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "NaN" {
		return ""
	}
	return s
}

func parseDate(s string) (time.Time, error) {
	s = clean(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return t, nil
}
