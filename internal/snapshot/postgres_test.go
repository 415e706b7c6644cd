package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profiler-cli/internal/model"
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

func TestPostgres_SearchNames(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name FROM facilities WHERE name ILIKE \$1 ORDER BY name LIMIT \$2`).
		WithArgs("%mercy%", 20).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).
			AddRow("MERCY GENERAL HOSPITAL").
			AddRow("MERCY SAN JUAN MEDICAL CENTER"))

	names, err := s.SearchNames(context.Background(), "mercy", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MERCY GENERAL HOSPITAL", "MERCY SAN JUAN MEDICAL CENTER"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchNamesEscapesWildcards(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name FROM facilities WHERE name ILIKE`).
		WithArgs(`%100\%%`, 10).
		WillReturnRows(pgxmock.NewRows([]string{"name"}))

	_, err := s.SearchNames(context.Background(), "100%", 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AllNames(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name FROM facilities ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).
			AddRow("MERCY GENERAL HOSPITAL").
			AddRow("UCSF MEDICAL CENTER"))

	names, err := s.AllNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MERCY GENERAL HOSPITAL", "UCSF MEDICAL CENTER"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertFacilities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_facilities"}, facilityColumns).WillReturnResult(3)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	n, err := s.UpsertFacilities(context.Background(), testFacilities())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertFacilitiesEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertFacilities(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupFacilities(t *testing.T) {
	first := Facility{ProviderID: "050077", Name: "OLD NAME"}
	second := Facility{ProviderID: "050017", Name: "MERCY SAN JUAN MEDICAL CENTER"}
	replacement := Facility{ProviderID: "050077", Name: "NEW NAME"}

	out := dedupFacilities([]Facility{first, second, replacement})
	assert.Equal(t, []Facility{replacement, second}, out)
}

func TestPostgres_SaveProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(pgxmock.AnyArg(), "mercy general", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.SaveProfile(context.Background(), &model.Profile{Query: "mercy general"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM profiles WHERE id = \$1`).
		WithArgs("profile-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"query":"mercy general"}`)))

	data, err := s.GetProfile(context.Background(), "profile-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"mercy general"}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProfileNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM profiles WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordSync(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC().Add(-time.Minute)
	finished := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO sync_runs`).
		WithArgs("run-1", 5300, `"v1"`, started, finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordSync(context.Background(), SyncStatus{
		ID:         "run-1",
		RowCount:   5300,
		ETag:       `"v1"`,
		StartedAt:  started,
		FinishedAt: finished,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Status(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC().Add(-time.Minute)
	finished := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, row_count, etag, started_at, finished_at FROM sync_runs`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "row_count", "etag", "started_at", "finished_at"}).
			AddRow("run-1", 5300, `"v1"`, started, finished))

	got, err := s.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 5300, got.RowCount)
	assert.Equal(t, `"v1"`, got.ETag)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, finished, got.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StatusEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, row_count, etag, started_at, finished_at FROM sync_runs`).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}
