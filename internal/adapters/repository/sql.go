package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/pkg/logger"
	"github.com/okian/trialstats/pkg/metrics"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Only the key column differs between dialects.
var seqColumn = map[string]string{ //nolint:gochecknoglobals // read-only dialect table
	DriverSQLite:   "seq INTEGER PRIMARY KEY AUTOINCREMENT",
	DriverPostgres: "seq BIGSERIAL PRIMARY KEY",
}

const createTable = `CREATE TABLE IF NOT EXISTS runs (
	%s,
	id               TEXT    NOT NULL UNIQUE,
	character_id     TEXT    NOT NULL,
	character_name   TEXT    NOT NULL DEFAULT '',
	track_type       TEXT    NOT NULL,
	score            INTEGER NOT NULL,
	rare_skills      INTEGER NOT NULL,
	normal_skills    INTEGER NOT NULL,
	final_place      INTEGER NOT NULL,
	rushed           BOOLEAN NOT NULL,
	good_positioning BOOLEAN NOT NULL,
	unique_skill     BOOLEAN NOT NULL,
	run_date         BIGINT  NOT NULL
)`

const createIndexes = `CREATE INDEX IF NOT EXISTS runs_filter_idx ON runs (track_type, character_id, run_date)`

const selectColumns = `id, character_id, character_name, track_type, score, rare_skills,
	normal_skills, final_place, rushed, good_positioning, unique_skill, run_date`

const insertRun = `INSERT INTO runs (` + selectColumns + `) VALUES (
	:id, :character_id, :character_name, :track_type, :score, :rare_skills,
	:normal_skills, :final_place, :rushed, :good_positioning, :unique_skill, :run_date)`

// runRow is the column layout of the runs table. Dates are unix milliseconds
// so both dialects store them the same way.
type runRow struct {
	ID              string `db:"id"`
	CharacterID     string `db:"character_id"`
	CharacterName   string `db:"character_name"`
	TrackType       string `db:"track_type"`
	Score           int    `db:"score"`
	RareSkills      int    `db:"rare_skills"`
	NormalSkills    int    `db:"normal_skills"`
	FinalPlace      int    `db:"final_place"`
	Rushed          bool   `db:"rushed"`
	GoodPositioning bool   `db:"good_positioning"`
	UniqueSkill     bool   `db:"unique_skill"`
	RunDate         int64  `db:"run_date"`
}

func toRow(r model.RunRecord) runRow {
	return runRow{
		ID:              r.ID,
		CharacterID:     r.CharacterID,
		CharacterName:   r.CharacterName,
		TrackType:       string(r.TrackType),
		Score:           r.Score,
		RareSkills:      r.RareSkillsCount,
		NormalSkills:    r.NormalSkillsCount,
		FinalPlace:      r.FinalPlace,
		Rushed:          r.Rushed,
		GoodPositioning: r.GoodPositioning,
		UniqueSkill:     r.UniqueSkillActivated,
		RunDate:         r.Date.UnixMilli(),
	}
}

func (row runRow) record() model.RunRecord {
	return model.RunRecord{
		ID:            row.ID,
		CharacterID:   row.CharacterID,
		CharacterName: row.CharacterName,
		TrackType:     model.TrackType(row.TrackType),
		Score:         row.Score,
		Features: model.Features{
			RareSkillsCount:      row.RareSkills,
			NormalSkillsCount:    row.NormalSkills,
			FinalPlace:           row.FinalPlace,
			Rushed:               row.Rushed,
			GoodPositioning:      row.GoodPositioning,
			UniqueSkillActivated: row.UniqueSkill,
		},
		Date: time.UnixMilli(row.RunDate).UTC(),
	}
}

// SQLStore is a Store backed by sqlite or postgres through sqlx.
type SQLStore struct {
	db           *sqlx.DB
	driver       string
	maxOpenConns int
	log          logger.Logger
	closed       atomic.Bool
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database, applies pool settings and creates the
// schema if it does not exist yet.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	column, ok := seqColumn[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if driver == DriverSQLite {
		sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
	}

	s := &SQLStore{
		driver: driver,
		log:    logger.Get().Named("store"),
	}
	// A single connection keeps sqlite writers from tripping over file locks.
	if driver == DriverSQLite {
		s.maxOpenConns = 1
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	s.db = db

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createTable, column)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createIndexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs indexes: %w", err)
	}

	s.log.Info(ctx, "run store opened", logger.String("driver", driver))
	return s, nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

func (s *SQLStore) observe(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, run model.RunRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	defer s.observe("save", time.Now())

	// The unique id column decides races between concurrent savers.
	res, err := s.db.NamedExecContext(ctx, insertRun+` ON CONFLICT (id) DO NOTHING`, toRow(run))
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save run %s: %w", run.ID, ErrAlreadyExists)
	}
	return nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (model.RunRecord, error) {
	if s.closed.Load() {
		return model.RunRecord{}, ErrStoreClosed
	}
	defer s.observe("get", time.Now())

	var row runRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+selectColumns+` FROM runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.record(), nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, f Filter) ([]model.RunRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	defer s.observe("list", time.Now())

	var (
		where []string
		args  []any
	)
	if f.TrackType != "" {
		where = append(where, "track_type = ?")
		args = append(args, string(f.TrackType))
	}
	if f.CharacterID != "" {
		where = append(where, "character_id = ?")
		args = append(args, f.CharacterID)
	}

	query := `SELECT ` + selectColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY run_date ASC, seq ASC`

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]model.RunRecord, len(rows))
	for i, row := range rows {
		runs[i] = row.record()
	}
	return runs, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	defer s.observe("delete", time.Now())

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM runs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	defer s.observe("count", time.Now())

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM runs`); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Close implements Store. Closing twice is a no-op.
func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
