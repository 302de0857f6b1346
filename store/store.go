/*
Package store defines the full storage contract and selects a backend
from a database URL.

PURPOSE:
  The scoring engine only needs the read-side scoring.Source; seeding
  and manual input also write. Store is the union both backends
  implement. Open picks PostgreSQL for postgres:// / postgresql:// URLs
  (managed deployments) and SQLite for anything else, treating the
  value as a file path with an optional sqlite:// prefix.

SEE ALSO:
  - store/sqlite: Default implementation
  - store/postgres: pgx implementation for DATABASE_URL deployments
  - config: URL resolution precedence
*/
package store

import (
	"context"
	"strings"

	"github.com/athenalabo/kam-rewards/scoring"
	"github.com/athenalabo/kam-rewards/store/postgres"
	"github.com/athenalabo/kam-rewards/store/sqlite"
)

// Store is the full persistence contract: the engine's read interfaces
// plus the write operations used by seeding and manual input.
type Store interface {
	scoring.Source

	CreateKAM(ctx context.Context, name, region string) (scoring.KAM, error)
	GetKAMByName(ctx context.Context, name string) (*scoring.KAM, error)

	SaveTarget(ctx context.Context, kamID int64, m scoring.Month, t scoring.Target) error
	LatestTarget(ctx context.Context, kamID int64) (*scoring.Target, error)

	CreateProject(ctx context.Context, kamID int64, code, name string) (int64, error)
	SaveSnapshot(ctx context.Context, m scoring.Month, snap scoring.Snapshot) error

	DatasetRows(ctx context.Context) ([]scoring.DatasetRow, error)

	Reset(ctx context.Context) error
	Close() error
}

// Compile-time checks that both backends satisfy the contract.
var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open selects and initializes a backend from the database URL.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.New(ctx, url)
	default:
		path := strings.TrimPrefix(url, "sqlite://")
		return sqlite.New(path)
	}
}
