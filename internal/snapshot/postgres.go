package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profiler-cli/internal/db"
	"github.com/sells-group/profiler-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"search_names":    `SELECT name FROM facilities WHERE name ILIKE $1 ORDER BY name LIMIT $2`,
	"all_names":       `SELECT name FROM facilities ORDER BY name`,
	"insert_profile":  `INSERT INTO profiles (id, query, resolved_name, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_profile":     `SELECT data FROM profiles WHERE id = $1`,
	"insert_sync_run": `INSERT INTO sync_runs (id, row_count, etag, started_at, finished_at) VALUES ($1, $2, $3, $4, $5)`,
	"last_sync_run":   `SELECT id, row_count, etag, started_at, finished_at FROM sync_runs ORDER BY finished_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	provider_id        TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	hospital_type      TEXT,
	ownership          TEXT,
	address            TEXT,
	city               TEXT,
	state              TEXT,
	zip_code           TEXT,
	phone              TEXT,
	overall_rating     TEXT,
	emergency_services TEXT,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query         TEXT NOT NULL,
	resolved_name TEXT,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	row_count   INTEGER NOT NULL,
	etag        TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facilities_name ON facilities(name);
CREATE INDEX IF NOT EXISTS idx_profiles_query ON profiles(query);
CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sync_runs_finished_at ON sync_runs(finished_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// facilityColumns is the column order used for bulk upserts.
var facilityColumns = []string{
	"provider_id", "name", "hospital_type", "ownership", "address", "city",
	"state", "zip_code", "phone", "overall_rating", "emergency_services",
	"updated_at",
}

func (s *PostgresStore) UpsertFacilities(ctx context.Context, facilities []Facility) (int, error) {
	facilities = dedupFacilities(facilities)
	if len(facilities) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(facilities))
	for _, f := range facilities {
		rows = append(rows, []any{
			f.ProviderID, f.Name, f.HospitalType, f.Ownership, f.Address,
			f.City, f.State, f.ZipCode, f.Phone, f.OverallRating,
			f.EmergencyServices, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "facilities",
		Columns:      facilityColumns,
		ConflictKeys: []string{"provider_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert facilities")
	}
	return int(n), nil
}

// dedupFacilities keeps the last occurrence per provider ID; ON CONFLICT
// DO UPDATE rejects batches that touch the same row twice.
func dedupFacilities(facilities []Facility) []Facility {
	seen := make(map[string]int, len(facilities))
	out := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		if i, ok := seen[f.ProviderID]; ok {
			out[i] = f
			continue
		}
		seen[f.ProviderID] = len(out)
		out = append(out, f)
	}
	return out
}

func (s *PostgresStore) SearchNames(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name FROM facilities WHERE name ILIKE $1 ORDER BY name LIMIT $2`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search names")
	}
	defer rows.Close()

	return collectNames(rows, "postgres")
}

func (s *PostgresStore) AllNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM facilities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all names")
	}
	defer rows.Close()

	return collectNames(rows, "postgres")
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p *model.Profile) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal profile")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (id, query, resolved_name, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, p.Query, p.ResolvedName, data, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert profile")
	}
	return id, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("profile not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", id)
	}
	return data, nil
}

func (s *PostgresStore) RecordSync(ctx context.Context, status SyncStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, row_count, etag, started_at, finished_at) VALUES ($1, $2, $3, $4, $5)`,
		status.ID, status.RowCount, status.ETag, status.StartedAt, status.FinishedAt,
	)
	return eris.Wrap(err, "postgres: record sync run")
}

func (s *PostgresStore) Status(ctx context.Context) (*SyncStatus, error) {
	var st SyncStatus
	err := s.pool.QueryRow(ctx,
		`SELECT id, row_count, etag, started_at, finished_at FROM sync_runs ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&st.ID, &st.RowCount, &st.ETag, &st.StartedAt, &st.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: last sync run")
	}
	return &st, nil
}
