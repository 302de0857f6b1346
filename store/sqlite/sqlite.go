/*
Package sqlite provides the SQLite-backed implementation of the storage
contract.

PURPOSE:
  Default persistence for KAMs, monthly targets, projects and monthly
  snapshots. Implements the scoring.Source read interfaces plus the
  write operations used by seeding and manual input.

KEY TABLES:
  kams:            KAM identities (unique name, region tag)
  monthly_targets: per-(kam, month) gain thresholds
  projects:        project code/name, owned by one KAM
  project_months:  per-(project, month) snapshot figures

UNIQUENESS:
  The scoring engine assumes at most one target per (kam, month) and
  one snapshot per (project, month). Both are enforced with unique
  indexes; violations surface as scoring.ErrDuplicateTarget and
  scoring.ErrDuplicateSnapshot rather than last-write-wins.

MONTH ENCODING:
  Months are stored as first-of-month date strings ("YYYY-MM-01"), so
  lexicographic ORDER BY is chronological.

WAL MODE:
  The database is opened with WAL and foreign keys on. A single
  connection is used so ":memory:" databases behave under the
  database/sql pool.

SEE ALSO:
  - scoring/types.go: Interface definitions and records
  - store/postgres: The PostgreSQL implementation of the same contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/athenalabo/kam-rewards/scoring"
)

// Store implements the storage contract using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection, so in-memory databases survive the pool.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		region TEXT NOT NULL DEFAULT 'EU'
	);

	CREATE TABLE IF NOT EXISTS monthly_targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kam_id INTEGER NOT NULL REFERENCES kams(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		target_pp REAL NOT NULL,
		target_lvp REAL NOT NULL
	);

	-- At most one target per (kam, month)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_targets_kam_month
		ON monthly_targets(kam_id, month);

	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kam_id INTEGER NOT NULL REFERENCES kams(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_kam
		ON projects(kam_id);

	CREATE TABLE IF NOT EXISTS project_months (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		pp REAL NOT NULL,
		lvp REAL NOT NULL,
		sop_ym TEXT NOT NULL,
		foc2026_pp REAL NOT NULL,
		foc2026_sec REAL NOT NULL
	);

	-- At most one snapshot per (project, month)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_project_month
		ON project_months(project_id, month);

	-- Month-wide scans (scoring hot path)
	CREATE INDEX IF NOT EXISTS idx_snapshots_month
		ON project_months(month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// KAMS
// =============================================================================

// CreateKAM inserts a KAM and returns it with its assigned id.
func (s *Store) CreateKAM(ctx context.Context, name, region string) (scoring.KAM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO kams (name, region) VALUES (?, ?)", name, region)
	if err != nil {
		if isUniqueConstraintError(err) {
			return scoring.KAM{}, fmt.Errorf("kam %q already exists", name)
		}
		return scoring.KAM{}, fmt.Errorf("failed to create kam: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return scoring.KAM{}, err
	}
	return scoring.KAM{ID: id, Name: name, Region: region}, nil
}

// GetKAMByName retrieves a KAM by its unique name, or nil when absent.
func (s *Store) GetKAMByName(ctx context.Context, name string) (*scoring.KAM, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var k scoring.KAM
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, region FROM kams WHERE name = ?", name,
	).Scan(&k.ID, &k.Name, &k.Region)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// AllKAMs returns all KAMs in insertion order.
func (s *Store) AllKAMs(ctx context.Context) ([]scoring.KAM, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, region FROM kams ORDER BY id")
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
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO monthly_targets (kam_id, month, target_pp, target_lvp) VALUES (?, ?, ?, ?)",
		kamID, monthValue(m), t.PP, t.LVP)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("kam %d month %s: %w", kamID, m, scoring.ErrDuplicateTarget)
		}
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// TargetFor returns the target for (kam, month), or nil when none exists.
func (s *Store) TargetFor(ctx context.Context, kamID int64, m scoring.Month) (*scoring.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t scoring.Target
	err := s.db.QueryRowContext(ctx,
		"SELECT target_pp, target_lvp FROM monthly_targets WHERE kam_id = ? AND month = ?",
		kamID, monthValue(m),
	).Scan(&t.PP, &t.LVP)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LatestTarget returns the KAM's most recent target by month, or nil.
// Manual input copies this forward when the entered month has no target.
func (s *Store) LatestTarget(ctx context.Context, kamID int64) (*scoring.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t scoring.Target
	err := s.db.QueryRowContext(ctx,
		"SELECT target_pp, target_lvp FROM monthly_targets WHERE kam_id = ? ORDER BY month DESC LIMIT 1",
		kamID,
	).Scan(&t.PP, &t.LVP)

	if err == sql.ErrNoRows {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (kam_id, code, name) VALUES (?, ?, ?)", kamID, code, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create project: %w", err)
	}
	return res.LastInsertId()
}

// SaveSnapshot inserts a project's snapshot for a month. A second write
// for the same (project, month) fails with scoring.ErrDuplicateSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, m scoring.Month, snap scoring.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_months (project_id, month, pp, lvp, sop_ym, foc2026_pp, foc2026_sec)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ProjectID, monthValue(m), snap.PP, snap.LVP, snap.SOP, snap.ForecastPP, snap.ForecastSec)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("project %d month %s: %w", snap.ProjectID, m, scoring.ErrDuplicateSnapshot)
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SnapshotsFor returns all snapshots of the KAM's projects in a month.
func (s *Store) SnapshotsFor(ctx context.Context, kamID int64, m scoring.Month) ([]scoring.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT pm.project_id, pm.pp, pm.lvp, pm.sop_ym, pm.foc2026_pp, pm.foc2026_sec
		FROM project_months pm
		JOIN projects p ON p.id = pm.project_id
		WHERE p.kam_id = ? AND pm.month = ?
		ORDER BY pm.project_id
	`

	rows, err := s.db.QueryContext(ctx, query, kamID, monthValue(m))
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
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT month FROM project_months ORDER BY month ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []scoring.Month
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		m, err := scanMonth(value)
		if err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// DatasetRows returns every snapshot joined with its project and owning
// KAM, ordered by (month, kam, project code).
func (s *Store) DatasetRows(ctx context.Context) ([]scoring.DatasetRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT k.name, p.code, p.name, pm.month, pm.pp, pm.lvp, pm.sop_ym, pm.foc2026_pp, pm.foc2026_sec
		FROM project_months pm
		JOIN projects p ON p.id = pm.project_id
		JOIN kams k ON k.id = p.kam_id
		ORDER BY pm.month, k.name, p.code
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	defer rows.Close()

	var dataset []scoring.DatasetRow
	for rows.Next() {
		var row scoring.DatasetRow
		var value string
		if err := rows.Scan(&row.KAM, &row.ProjectCode, &row.ProjectName, &value,
			&row.PP, &row.LVP, &row.SOP, &row.ForecastPP, &row.ForecastSec); err != nil {
			return nil, err
		}
		row.Month, err = scanMonth(value)
		if err != nil {
			return nil, err
		}
		dataset = append(dataset, row)
	}
	return dataset, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data. Deletion order respects foreign keys; this is
// the explicit collaborator-side cascade used by reseeding.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"project_months", "projects", "monthly_targets", "kams"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func monthValue(m scoring.Month) string {
	return m.Date().Format("2006-01-02")
}

func scanMonth(value string) (scoring.Month, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return scoring.Month{}, fmt.Errorf("failed to scan month %q: %w", value, err)
	}
	return scoring.MonthOf(t), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
