// Package snapshot keeps a local copy of the CMS Hospital General
// Information dataset and persists generated profiles. SQLite is the
// default backend; Postgres is available for shared deployments.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profiler-cli/internal/config"
	"github.com/sells-group/profiler-cli/internal/model"
)

// Facility is one row of the Hospital General Information dataset,
// stored with the dataset's native string values.
type Facility struct {
	ProviderID        string `json:"provider_id"`
	Name              string `json:"name"`
	HospitalType      string `json:"hospital_type"`
	Ownership         string `json:"ownership"`
	Address           string `json:"address"`
	City              string `json:"city"`
	State             string `json:"state"`
	ZipCode           string `json:"zip_code"`
	Phone             string `json:"phone"`
	OverallRating     string `json:"overall_rating"`
	EmergencyServices string `json:"emergency_services"`
}

// SyncStatus records one completed dataset sync. ETag holds the dataset's
// entity tag from the run's download; the next sync sends it back as
// If-None-Match to skip re-ingesting an unchanged file.
type SyncStatus struct {
	ID         string    `json:"id"`
	RowCount   int       `json:"row_count"`
	ETag       string    `json:"etag,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists the facility snapshot, generated profiles, and sync runs.
type Store interface {
	// UpsertFacilities inserts or updates facilities by provider ID and
	// returns the number of rows written.
	UpsertFacilities(ctx context.Context, facilities []Facility) (int, error)

	// SearchNames returns facility names containing query, case-insensitive,
	// sorted ascending. A limit <= 0 applies the default of 20.
	SearchNames(ctx context.Context, query string, limit int) ([]string, error)

	// AllNames returns every facility name, sorted ascending.
	AllNames(ctx context.Context) ([]string, error)

	// SaveProfile stores the profile JSON and returns its generated ID.
	SaveProfile(ctx context.Context, p *model.Profile) (string, error)

	// GetProfile returns the stored profile JSON by ID.
	GetProfile(ctx context.Context, id string) ([]byte, error)

	// RecordSync appends a sync run record.
	RecordSync(ctx context.Context, status SyncStatus) error

	// Status returns the most recent sync run, or nil if none has run.
	Status(ctx context.Context) (*SyncStatus, error)

	Close() error
}

const defaultSearchLimit = 20

// Open constructs and migrates the store selected by config: SQLite by
// default, Postgres when store.driver=postgres.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		s, err := NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("snapshot: unknown store driver %q", cfg.Store.Driver)
	}
}

// escapeLike escapes LIKE wildcards so user queries match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
