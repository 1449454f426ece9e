package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumns = []string{"id", "created_at", "config", "n_sites", "min_distance_mi", "total", "feasible", "selected", "avg_composite"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 4, 10.0, 100, 60, 2, 47.25).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"run_sites"}, append([]string{"run_id"}, siteColumns...)).
		WillReturnResult(2)
	mock.ExpectCommit()

	run := &Run{NSites: 4, MinDistanceMi: 10, Total: 100, Feasible: 60, AvgComposite: 47.25}
	require.NoError(t, s.SaveRun(context.Background(), run, sampleSites()))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"run_sites"}, append([]string{"run_id"}, siteColumns...)).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), &Run{}, sampleSites())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: copy sites")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, created_at, config, .* FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", created, []byte(`{}`), 4, 10.0, 100, 60, 1, 47.25))
	mock.ExpectQuery(`FROM run_sites WHERE run_id = \$1 ORDER BY rank`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(siteColumns).
			AddRow(1, "25027000100", "Tract 1", 81.5, 90.0, 0.0, 0.0, 0.0, "other", "rural", -71.8, 42.3))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, created, run.CreatedAt)
	assert.Equal(t, 4, run.NSites)
	require.Len(t, run.Sites, 1)
	assert.Equal(t, "25027000100", run.Sites[0].GEOID)
	assert.InDelta(t, 42.3, run.Sites[0].Lat, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-2", created.Add(time.Hour), []byte(`{}`), 4, 0.0, 10, 5, 4, 50.0).
			AddRow("run-1", created, []byte(`{}`), 2, 5.0, 10, 5, 2, 40.0))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 2, runs[1].NSites)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs`).WithArgs(5).WillReturnError(fmt.Errorf("conn reset"))

	_, err := s.ListRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list runs")
}
