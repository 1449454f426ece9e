package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	created_at      DATETIME NOT NULL,
	config          TEXT NOT NULL,
	n_sites         INTEGER NOT NULL,
	min_distance_mi REAL NOT NULL,
	total           INTEGER NOT NULL,
	feasible        INTEGER NOT NULL,
	selected        INTEGER NOT NULL,
	avg_composite   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_sites (
	run_id                   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank                     INTEGER NOT NULL,
	geoid                    TEXT NOT NULL,
	name                     TEXT NOT NULL DEFAULT '',
	composite_score          REAL NOT NULL,
	demand_score             REAL NOT NULL,
	infrastructure_score     REAL NOT NULL,
	accessibility_score      REAL NOT NULL,
	equity_feasibility_score REAL NOT NULL,
	charging_type            TEXT NOT NULL,
	urban_rural_context      TEXT NOT NULL,
	lon                      REAL NOT NULL,
	lat                      REAL NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the run tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run and its sites in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, sites []SiteRecord) error {
	prepare(run, sites)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, string(run.Config), run.NSites, run.MinDistanceMi,
		run.Total, run.Feasible, run.Selected, run.AvgComposite,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_sites (run_id, rank, geoid, name, composite_score, demand_score, infrastructure_score,
		 accessibility_score, equity_feasibility_score, charging_type, urban_rural_context, lon, lat)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare site insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, site := range sites {
		if _, err := stmt.ExecContext(ctx, append([]any{run.ID}, siteValues(site)...)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert site %s", site.GEOID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// GetRun returns a run with its sites.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siteColumnList+` FROM run_sites WHERE run_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sites %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site")
		}
		run.Sites = append(run.Sites, site)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: iterate sites")
}

// ListRuns returns the most recent runs, newest first, without sites.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var cfgJSON string
	var created time.Time
	if err := row.Scan(&r.ID, &created, &cfgJSON, &r.NSites, &r.MinDistanceMi,
		&r.Total, &r.Feasible, &r.Selected, &r.AvgComposite); err != nil {
		return nil, err
	}
	r.CreatedAt = created.UTC()
	r.Config = []byte(cfgJSON)
	return &r, nil
}
