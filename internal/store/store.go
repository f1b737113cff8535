// Package store keeps digest history in SQLite: one row per run, one row
// per boost the bot has made. Bot mode leans on the boost history to avoid
// re-boosting statuses and to rest authors it amplified recently.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/RichardMN/mastodon-digest/internal/migrations"
)

const (
	runNamespace   = "run"
	boostNamespace = "boost"
)

type (
	// Run is one digest build, whatever the output type.
	Run struct {
		ID         string    `db:"id" json:"id"`
		Timeline   string    `db:"timeline" json:"timeline"`
		Scorer     string    `db:"scorer" json:"scorer"`
		Threshold  string    `db:"threshold" json:"threshold"`
		Hours      int       `db:"hours" json:"hours"`
		OutputType string    `db:"output_type" json:"output_type"`
		PostCount  int       `db:"post_count" json:"post_count"`
		BoostCount int       `db:"boost_count" json:"boost_count"`
		CreatedAt  time.Time `db:"created_at" json:"created_at"`
	}

	// Boost records a status the bot amplified.
	Boost struct {
		ID        string    `db:"id" json:"id"`
		StatusID  string    `db:"status_id" json:"status_id"`
		Acct      string    `db:"acct" json:"acct"`
		URL       string    `db:"url" json:"url"`
		RunID     string    `db:"run_id" json:"run_id"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}

	Store struct {
		db *sqlx.DB
	}
)

// Open connects to the SQLite database at path, creating and migrating it
// as needed.
func Open(path string) (*Store, error) {
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}
	if err := migrations.Run(dbx); err != nil {
		return nil, fmt.Errorf("error migrating: %s", err)
	}

	return &Store{db: dbx}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a finished run and returns it with its generated ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	const q = `INSERT INTO digest_runs (id, timeline, scorer, threshold, hours, output_type, post_count, boost_count, created_at)
	VALUES (:id, :timeline, :scorer, :threshold, :hours, :output_type, :post_count, :boost_count, :created_at);`

	run.ID = fmt.Sprintf("%s-%s", uuid.NewString(), runNamespace)
	run.CreatedAt = time.Now().UTC()
	if _, err := s.db.NamedExecContext(ctx, q, run); err != nil {
		return Run{}, fmt.Errorf("error inserting run: %s", err)
	}

	return run, nil
}

// RecordBoost inserts one boost made during the given run.
func (s *Store) RecordBoost(ctx context.Context, runID, statusID, acct, url string) error {
	const q = `INSERT OR IGNORE INTO boosts (id, status_id, acct, url, run_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?);`

	id := fmt.Sprintf("%s-%s", uuid.NewString(), boostNamespace)
	if _, err := s.db.ExecContext(ctx, q, id, statusID, acct, url, runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("error inserting boost: %s", err)
	}

	return nil
}

// HasBoosted reports whether the status has ever been boosted.
func (s *Store) HasBoosted(ctx context.Context, statusID string) (bool, error) {
	const q = `SELECT id FROM boosts WHERE status_id = ?;`

	var id string
	err := s.db.GetContext(ctx, &id, q, statusID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking boost: %s", err)
	}

	return true, nil
}

// RecentBoostAccts returns the distinct authors among the most recent n
// boosts.
func (s *Store) RecentBoostAccts(ctx context.Context, n int) ([]string, error) {
	const q = `SELECT DISTINCT acct FROM (
		SELECT acct FROM boosts ORDER BY created_at DESC, rowid DESC LIMIT ?
	);`

	var accts []string
	if err := s.db.SelectContext(ctx, &accts, q, n); err != nil {
		return nil, fmt.Errorf("error selecting recent boost accounts: %s", err)
	}

	return accts, nil
}

// RunArgs narrows what Runs returns.
type RunArgs struct {
	OutputType string
	Limit      uint64
}

// Runs lists recent digest runs, newest first.
func (s *Store) Runs(ctx context.Context, args RunArgs) ([]Run, error) {
	q := sq.Select("*").From("digest_runs").OrderBy("created_at DESC, rowid DESC")
	if args.OutputType != "" {
		q = q.Where(sq.Eq{"output_type": args.OutputType})
	}
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}

	query, queryArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error generating SQL query: %s", err)
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("error selecting runs: %s", err)
	}

	return runs, nil
}

// BoostArgs narrows what Boosts returns.
type BoostArgs struct {
	Acct  string
	Limit uint64
}

// Boosts lists recent boosts, newest first.
func (s *Store) Boosts(ctx context.Context, args BoostArgs) ([]Boost, error) {
	q := sq.Select("*").From("boosts").OrderBy("created_at DESC, rowid DESC")
	if args.Acct != "" {
		q = q.Where(sq.Eq{"acct": args.Acct})
	}
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}

	query, queryArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error generating SQL query: %s", err)
	}

	var boosts []Boost
	if err := s.db.SelectContext(ctx, &boosts, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("error selecting boosts: %s", err)
	}

	return boosts, nil
}
