package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siteselect/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := db.Retry(ctx, db.DefaultRetryConfig(), "postgres ping", func(ctx context.Context) error {
		return pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	config          JSONB NOT NULL,
	n_sites         INTEGER NOT NULL,
	min_distance_mi DOUBLE PRECISION NOT NULL,
	total           INTEGER NOT NULL,
	feasible        INTEGER NOT NULL,
	selected        INTEGER NOT NULL,
	avg_composite   DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS run_sites (
	run_id                   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank                     INTEGER NOT NULL,
	geoid                    TEXT NOT NULL,
	name                     TEXT NOT NULL DEFAULT '',
	composite_score          DOUBLE PRECISION NOT NULL,
	demand_score             DOUBLE PRECISION NOT NULL,
	infrastructure_score     DOUBLE PRECISION NOT NULL,
	accessibility_score      DOUBLE PRECISION NOT NULL,
	equity_feasibility_score DOUBLE PRECISION NOT NULL,
	charging_type            TEXT NOT NULL,
	urban_rural_context      TEXT NOT NULL,
	lon                      DOUBLE PRECISION NOT NULL,
	lat                      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_sites_geoid ON run_sites(geoid);
`

// Migrate creates the run tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts the run row and bulk-copies its sites in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *Run, sites []SiteRecord) error {
	prepare(run, sites)

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO runs (id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, run.CreatedAt, []byte(run.Config), run.NSites, run.MinDistanceMi,
			run.Total, run.Feasible, run.Selected, run.AvgComposite,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert run")
		}

		rows := make([][]any, len(sites))
		for i, site := range sites {
			rows[i] = append([]any{run.ID}, siteValues(site)...)
		}
		columns := append([]string{"run_id"}, siteColumns...)
		if _, err := db.CopyFrom(ctx, tx, "run_sites", columns, rows); err != nil {
			return eris.Wrap(err, "postgres: copy sites")
		}
		return nil
	})
}

// GetRun returns a run with its sites.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var cfgJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite
		 FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.CreatedAt, &cfgJSON, &r.NSites, &r.MinDistanceMi, &r.Total, &r.Feasible, &r.Selected, &r.AvgComposite)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	r.Config = cfgJSON

	rows, err := s.pool.Query(ctx,
		`SELECT `+siteColumnList+` FROM run_sites WHERE run_id = $1 ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sites %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan site")
		}
		r.Sites = append(r.Sites, site)
	}
	return &r, eris.Wrap(rows.Err(), "postgres: iterate sites")
}

// ListRuns returns the most recent runs, newest first, without sites.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, config, n_sites, min_distance_mi, total, feasible, selected, avg_composite
		 FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var cfgJSON []byte
		if err := rows.Scan(&r.ID, &r.CreatedAt, &cfgJSON, &r.NSites, &r.MinDistanceMi,
			&r.Total, &r.Feasible, &r.Selected, &r.AvgComposite); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Config = cfgJSON
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
