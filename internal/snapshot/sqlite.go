package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/profiler-cli/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	query         TEXT NOT NULL,
	resolved_name TEXT,
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	row_count   INTEGER NOT NULL,
	etag        TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facilities_name ON facilities(name);
CREATE INDEX IF NOT EXISTS idx_profiles_query ON profiles(query);
CREATE INDEX IF NOT EXISTS idx_sync_runs_finished_at ON sync_runs(finished_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertFacility = `
INSERT INTO facilities (
	provider_id, name, hospital_type, ownership, address, city, state,
	zip_code, phone, overall_rating, emergency_services, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider_id) DO UPDATE SET
	name = excluded.name,
	hospital_type = excluded.hospital_type,
	ownership = excluded.ownership,
	address = excluded.address,
	city = excluded.city,
	state = excluded.state,
	zip_code = excluded.zip_code,
	phone = excluded.phone,
	overall_rating = excluded.overall_rating,
	emergency_services = excluded.emergency_services,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) UpsertFacilities(ctx context.Context, facilities []Facility) (int, error) {
	if len(facilities) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertFacility)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range facilities {
		_, err := stmt.ExecContext(ctx,
			f.ProviderID, f.Name, f.HospitalType, f.Ownership, f.Address,
			f.City, f.State, f.ZipCode, f.Phone, f.OverallRating,
			f.EmergencyServices, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert facility %s", f.ProviderID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return len(facilities), nil
}

func (s *SQLiteStore) SearchNames(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM facilities WHERE name LIKE ? ESCAPE '\' ORDER BY name LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search names")
	}
	defer rows.Close()

	return collectNames(rows, "sqlite")
}

func (s *SQLiteStore) AllNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM facilities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all names")
	}
	defer rows.Close()

	return collectNames(rows, "sqlite")
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *model.Profile) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal profile")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, query, resolved_name, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, p.Query, p.ResolvedName, string(data), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert profile")
	}
	return id, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("profile not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", id)
	}
	return []byte(data), nil
}

func (s *SQLiteStore) RecordSync(ctx context.Context, status SyncStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, row_count, etag, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		status.ID, status.RowCount, status.ETag, status.StartedAt, status.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: record sync run")
}

func (s *SQLiteStore) Status(ctx context.Context) (*SyncStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, row_count, etag, started_at, finished_at FROM sync_runs ORDER BY finished_at DESC LIMIT 1`,
	)

	var st SyncStatus
	err := row.Scan(&st.ID, &st.RowCount, &st.ETag, &st.StartedAt, &st.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last sync run")
	}
	return &st, nil
}

type nameRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectNames(rows nameRows, backend string) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "%s: scan name", backend)
		}
		names = append(names, name)
	}
	return names, eris.Wrapf(rows.Err(), "%s: iterate names", backend)
}
