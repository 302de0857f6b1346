/*
Package scoring computes monthly reward scores for key account managers.

PURPOSE:
  The core of the KAM rewards service. Given per-project monthly
  snapshots (progress points, lift volume, expected delivery month,
  forecast figures) and per-KAM monthly targets, it produces one score
  record per (KAM, month) and a cumulative running total per KAM.

MODEL:
  KAM          the entity being scored (unique name, region tag)
  Target       per-(KAM, month) thresholds for pp and lvp gains
  Snapshot     per-(project, month) record of pp, lvp, sop_ym, forecasts
  ScoreRecord  the decomposed result for one (KAM, month)

SIGNALS:
  pp   point-equivalent progress quantity
  lvp  lift volume quantity
  sop  "YYYY-MM" token for the expected start-of-production month
  foc  forecast figures, used only as weights in loss rules

DESIGN:
  The engine is a pure fold over the sorted distinct-month list; it holds
  no state between calls and performs no I/O of its own. Persistence is
  behind the Source interfaces, implemented by store/sqlite and
  store/postgres.

SEE ALSO:
  - engine.go: The scoring fold
  - month.go: Year-month token handling
*/
package scoring

import "context"

// =============================================================================
// DOMAIN RECORDS
// =============================================================================

// KAM is a key account manager.
type KAM struct {
	ID     int64
	Name   string
	Region string
}

// Target holds the monthly gain thresholds for one KAM. Absence of a
// target is a valid state: it yields zero gain points, never an error.
type Target struct {
	PP  float64
	LVP float64
}

// Snapshot is one project's figures for one month. At most one snapshot
// exists per (project, month); the stores enforce this at write time.
type Snapshot struct {
	ProjectID   int64
	PP          float64
	LVP         float64
	SOP         string // expected delivery month, "YYYY-MM"
	ForecastPP  float64
	ForecastSec float64
}

// DatasetRow is one snapshot joined with its project and owning KAM,
// as exported by the dataset endpoints.
type DatasetRow struct {
	KAM         string
	ProjectCode string
	ProjectName string
	Month       Month
	PP          float64
	LVP         float64
	SOP         string
	ForecastPP  float64
	ForecastSec float64
}

// ScoreRecord is the decomposed score for one (KAM, month).
// Total = GainedPP + GainedLVP - (LostSOPDelay + LostVolumeDec +
// LostPPDec + LostInactivity). Loss components are always >= 0.
type ScoreRecord struct {
	KAM            string
	Month          Month
	GainedPP       float64
	GainedLVP      float64
	LostSOPDelay   float64
	LostVolumeDec  float64
	LostPPDec      float64
	LostInactivity float64
	Total          float64
}

// =============================================================================
// SCORING PARAMETERS
// =============================================================================

const (
	// Gain tiers. Per signal the highest qualifying tier wins; the two
	// signals are scored independently and summed.
	PointsPPAtTarget  = 10.0
	PointsPPStretch   = 20.0
	PointsLVPAtTarget = 20.0
	PointsLVPStretch  = 40.0
	StretchFactor     = 1.3

	// Every loss rule weighs its shortfall by the same factor.
	LossWeight = 2.0

	// Flat penalty for a month in which a KAM started no new project.
	InactivityPenalty = 100.0
)

// =============================================================================
// STORE INTERFACES (the engine's view of persistence)
// =============================================================================

// SnapshotSource provides read access to project snapshots.
type SnapshotSource interface {
	// SnapshotsFor returns all snapshots of the KAM's projects in the
	// given month. Empty when the KAM has no activity that month.
	SnapshotsFor(ctx context.Context, kamID int64, m Month) ([]Snapshot, error)

	// DistinctMonths returns every month with at least one snapshot,
	// across all KAMs, ascending.
	DistinctMonths(ctx context.Context) ([]Month, error)
}

// TargetSource provides read access to monthly targets.
type TargetSource interface {
	// TargetFor returns the target for (kam, month), or nil when none
	// exists.
	TargetFor(ctx context.Context, kamID int64, m Month) (*Target, error)
}

// KAMSource lists the KAMs to score.
type KAMSource interface {
	AllKAMs(ctx context.Context) ([]KAM, error)
}

// Source is the full read contract the engine scores from.
type Source interface {
	SnapshotSource
	TargetSource
	KAMSource
}
