/*
Package postgres provides the PostgreSQL-backed implementation of the
storage contract, used when the service runs against a managed database
(DATABASE_URL deployments).

Same schema and semantics as store/sqlite: unique constraints enforce
the one-target-per-(kam, month) and one-snapshot-per-(project, month)
invariants, surfaced as scoring.ErrDuplicateTarget and
scoring.ErrDuplicateSnapshot. Months are DATE columns holding the first
of the month. Concurrency is handled by the database; no mutex here.

SEE ALSO:
  - store/sqlite: Default implementation and schema reference
  - scoring/types.go: Interface definitions and records
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/athenalabo/kam-rewards/scoring"
)

// Store implements the storage contract using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at the given URL and migrates the schema.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kams (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		region TEXT NOT NULL DEFAULT 'EU'
	);

	CREATE TABLE IF NOT EXISTS monthly_targets (
		id BIGSERIAL PRIMARY KEY,
		kam_id BIGINT NOT NULL REFERENCES kams(id) ON DELETE CASCADE,
		month DATE NOT NULL,
		target_pp DOUBLE PRECISION NOT NULL,
		target_lvp DOUBLE PRECISION NOT NULL,
		CONSTRAINT monthly_targets_kam_month_key UNIQUE (kam_id, month)
	);

	CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		kam_id BIGINT NOT NULL REFERENCES kams(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_kam ON projects(kam_id);

	CREATE TABLE IF NOT EXISTS project_months (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		month DATE NOT NULL,
		pp DOUBLE PRECISION NOT NULL,
		lvp DOUBLE PRECISION NOT NULL,
		sop_ym TEXT NOT NULL,
		foc2026_pp DOUBLE PRECISION NOT NULL,
		foc2026_sec DOUBLE PRECISION NOT NULL,
		CONSTRAINT project_months_project_month_key UNIQUE (project_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_month ON project_months(month);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// KAMS
// =============================================================================

// CreateKAM inserts a KAM and returns it with its assigned id.
func (s *Store) CreateKAM(ctx context.Context, name, region string) (scoring.KAM, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		"INSERT INTO kams (name, region) VALUES ($1, $2) RETURNING id",
		name, region,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "kams_name_key") {
			return scoring.KAM{}, fmt.Errorf("kam %q already exists", name)
		}
		return scoring.KAM{}, fmt.Errorf("failed to create kam: %w", err)
	}
	return scoring.KAM{ID: id, Name: name, Region: region}, nil
}

// GetKAMByName retrieves a KAM by its unique name, or nil when absent.
func (s *Store) GetKAMByName(ctx context.Context, name string) (*scoring.KAM, error) {
	var k scoring.KAM
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, region FROM kams WHERE name = $1", name,
	).Scan(&k.ID, &k.Name, &k.Region)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// AllKAMs returns all KAMs in insertion order.
func (s *Store) AllKAMs(ctx context.Context) ([]scoring.KAM, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, region FROM kams ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kams []scoring.KAM
	for rows.Next() {
		var k scoring.KAM
		if err := rows.Scan(&k.ID, &k.Name, &k.Region); err != nil {
			return nil, err
		}
		kams = append(kams, k)
	}
	return kams, rows.Err()
}

// =============================================================================
// TARGETS
// =============================================================================

// SaveTarget inserts the target for (kam, month). A second write for the
// same key fails with scoring.ErrDuplicateTarget.
func (s *Store) SaveTarget(ctx context.Context, kamID int64, m scoring.Month, t scoring.Target) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO monthly_targets (kam_id, month, target_pp, target_lvp) VALUES ($1, $2, $3, $4)",
		kamID, m.Date(), t.PP, t.LVP)
	if err != nil {
		if isUniqueViolation(err, "monthly_targets_kam_month_key") {
			return fmt.Errorf("kam %d month %s: %w", kamID, m, scoring.ErrDuplicateTarget)
		}
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// TargetFor returns the target for (kam, month), or nil when none exists.
func (s *Store) TargetFor(ctx context.Context, kamID int64, m scoring.Month) (*scoring.Target, error) {
	var t scoring.Target
	err := s.pool.QueryRow(ctx,
		"SELECT target_pp, target_lvp FROM monthly_targets WHERE kam_id = $1 AND month = $2",
		kamID, m.Date(),
	).Scan(&t.PP, &t.LVP)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LatestTarget returns the KAM's most recent target by month, or nil.
func (s *Store) LatestTarget(ctx context.Context, kamID int64) (*scoring.Target, error) {
	var t scoring.Target
	err := s.pool.QueryRow(ctx,
		"SELECT target_pp, target_lvp FROM monthly_targets WHERE kam_id = $1 ORDER BY month DESC LIMIT 1",
		kamID,
	).Scan(&t.PP, &t.LVP)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// PROJECTS AND SNAPSHOTS
// =============================================================================

// CreateProject inserts a project for a KAM and returns its id.
func (s *Store) CreateProject(ctx context.Context, kamID int64, code, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		"INSERT INTO projects (kam_id, code, name) VALUES ($1, $2, $3) RETURNING id",
		kamID, code, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create project: %w", err)
	}
	return id, nil
}

// SaveSnapshot inserts a project's snapshot for a month. A second write
// for the same (project, month) fails with scoring.ErrDuplicateSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, m scoring.Month, snap scoring.Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_months (project_id, month, pp, lvp, sop_ym, foc2026_pp, foc2026_sec)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ProjectID, m.Date(), snap.PP, snap.LVP, snap.SOP, snap.ForecastPP, snap.ForecastSec)
	if err != nil {
		if isUniqueViolation(err, "project_months_project_month_key") {
			return fmt.Errorf("project %d month %s: %w", snap.ProjectID, m, scoring.ErrDuplicateSnapshot)
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SnapshotsFor returns all snapshots of the KAM's projects in a month.
func (s *Store) SnapshotsFor(ctx context.Context, kamID int64, m scoring.Month) ([]scoring.Snapshot, error) {
	query := `
		SELECT pm.project_id, pm.pp, pm.lvp, pm.sop_ym, pm.foc2026_pp, pm.foc2026_sec
		FROM project_months pm
		JOIN projects p ON p.id = pm.project_id
		WHERE p.kam_id = $1 AND pm.month = $2
		ORDER BY pm.project_id
	`

	rows, err := s.pool.Query(ctx, query, kamID, m.Date())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []scoring.Snapshot
	for rows.Next() {
		var snap scoring.Snapshot
		if err := rows.Scan(&snap.ProjectID, &snap.PP, &snap.LVP, &snap.SOP, &snap.ForecastPP, &snap.ForecastSec); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// DistinctMonths returns every month with at least one snapshot, ascending.
func (s *Store) DistinctMonths(ctx context.Context) ([]scoring.Month, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT month FROM project_months ORDER BY month ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []scoring.Month
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		months = append(months, scoring.MonthOf(t))
	}
	return months, rows.Err()
}

// DatasetRows returns every snapshot joined with its project and owning
// KAM, ordered by (month, kam, project code).
func (s *Store) DatasetRows(ctx context.Context) ([]scoring.DatasetRow, error) {
	query := `
		SELECT k.name, p.code, p.name, pm.month, pm.pp, pm.lvp, pm.sop_ym, pm.foc2026_pp, pm.foc2026_sec
		FROM project_months pm
		JOIN projects p ON p.id = pm.project_id
		JOIN kams k ON k.id = p.kam_id
		ORDER BY pm.month, k.name, p.code
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	defer rows.Close()

	var dataset []scoring.DatasetRow
	for rows.Next() {
		var row scoring.DatasetRow
		var t time.Time
		if err := rows.Scan(&row.KAM, &row.ProjectCode, &row.ProjectName, &t,
			&row.PP, &row.LVP, &row.SOP, &row.ForecastPP, &row.ForecastSec); err != nil {
			return nil, err
		}
		row.Month = scoring.MonthOf(t)
		dataset = append(dataset, row)
	}
	return dataset, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data. Deletion order respects foreign keys.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"project_months", "projects", "monthly_targets", "kams"}
	for _, table := range tables {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
