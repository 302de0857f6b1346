/*
engine.go - The month-over-month scoring fold

PURPOSE:
  Computes, for every (KAM, month) pair with activity, points gained for
  hitting targets and points lost for delivery-date slippage, volume
  shrinkage, progress-point shrinkage, and inactivity, plus a running
  cumulative total per KAM.

SEQUENCING:
  The distinct-month list is global and positional: "previous month"
  means the prior entry in the sorted list, not calendar month minus
  one. Gaps in the sequence collapse silently. A KAM with no snapshots
  in a month is simply absent from that month; its cumulative total
  carries over unchanged.

RULES (per KAM, per month m, prev = positional predecessor):
  gains      added_pp/lvp = max(0, sum(m) - sum(prev)); tiered against
             the month's target, independently per signal
  sop delay  for projects present in both months, 2 * prev_foc_sec *
             months_slipped when the delivery date moved later
  volume     2 * decrease of total foc_sec vs prev
  pp dec     2 * shortfall after crediting lvp-to-pp promotions, each
             promotion capped by the project's previous pp
  inactivity flat 100 when no brand-new project appeared vs prev

  All delta-based rules are disabled for a KAM's first scored month.

ERROR HANDLING:
  A malformed sop_ym token aborts the computation with
  MalformedDateTokenError; silently skipping the record would corrupt
  the delay-loss sums. Missing targets and missing predecessors are
  valid states, not errors.

SEE ALSO:
  - types.go: Records, tier constants, Source interfaces
  - month.go: Token parsing and month indexing
*/
package scoring

import (
	"context"
	"fmt"
	"math"
)

// Engine scores KAM activity read from a Source. It is stateless: every
// call recomputes from the store's current contents, so concurrent
// read-only invocations are independent.
type Engine struct {
	Source Source
}

// NewEngine creates an engine over the given source.
func NewEngine(src Source) *Engine {
	return &Engine{Source: src}
}

// ScoreAll scores every KAM across every month present in the store.
func (e *Engine) ScoreAll(ctx context.Context) ([]ScoreRecord, map[string]float64, error) {
	kams, err := e.Source.AllKAMs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load kams: %w", err)
	}
	months, err := e.Source.DistinctMonths(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load months: %w", err)
	}
	return e.Score(ctx, kams, months)
}

// Score computes one record per (KAM, month) with activity, in ascending
// month order, and the final cumulative total per KAM name. The month
// list is sorted internally; callers may pass it in any order.
func (e *Engine) Score(ctx context.Context, kams []KAM, months []Month) ([]ScoreRecord, map[string]float64, error) {
	sorted := make([]Month, len(months))
	copy(sorted, months)
	SortMonths(sorted)

	records := []ScoreRecord{}
	cumulative := make(map[string]float64, len(kams))
	for _, k := range kams {
		cumulative[k.Name] = 0
	}

	for i, m := range sorted {
		var prev *Month
		if i > 0 {
			prev = &sorted[i-1]
		}

		for _, kam := range kams {
			snaps, err := e.Source.SnapshotsFor(ctx, kam.ID, m)
			if err != nil {
				return nil, nil, fmt.Errorf("load snapshots for %s %s: %w", kam.Name, m, err)
			}
			if len(snaps) == 0 {
				// A KAM is only scored in months where it has activity.
				continue
			}

			var prevSnaps []Snapshot
			if prev != nil {
				prevSnaps, err = e.Source.SnapshotsFor(ctx, kam.ID, *prev)
				if err != nil {
					return nil, nil, fmt.Errorf("load snapshots for %s %s: %w", kam.Name, *prev, err)
				}
			}

			target, err := e.Source.TargetFor(ctx, kam.ID, m)
			if err != nil {
				return nil, nil, fmt.Errorf("load target for %s %s: %w", kam.Name, m, err)
			}

			rec, err := scoreMonth(kam, m, snaps, prevSnaps, prev != nil, target)
			if err != nil {
				return nil, nil, err
			}

			cumulative[kam.Name] += rec.Total
			records = append(records, rec)
		}
	}

	return records, cumulative, nil
}

// scoreMonth applies the point rules for a single (KAM, month).
func scoreMonth(kam KAM, m Month, snaps, prevSnaps []Snapshot, hasPrev bool, target *Target) (ScoreRecord, error) {
	sumPP, sumLVP := sumSignals(snaps)
	prevPP, prevLVP := sumSignals(prevSnaps)

	// Only net increases count toward gains; decreases are handled by
	// the loss rules below.
	addedPP := math.Max(0, sumPP-prevPP)
	addedLVP := math.Max(0, sumLVP-prevLVP)

	rec := ScoreRecord{KAM: kam.Name, Month: m}

	if target != nil {
		switch {
		case addedPP >= target.PP*StretchFactor:
			rec.GainedPP = PointsPPStretch
		case addedPP >= target.PP:
			rec.GainedPP = PointsPPAtTarget
		}
		switch {
		case addedLVP >= target.LVP*StretchFactor:
			rec.GainedLVP = PointsLVPStretch
		case addedLVP >= target.LVP:
			rec.GainedLVP = PointsLVPAtTarget
		}
	}

	if hasPrev {
		prevByProject := make(map[int64]Snapshot, len(prevSnaps))
		for _, s := range prevSnaps {
			prevByProject[s.ProjectID] = s
		}

		// Delivery-date slippage. Projects without a previous snapshot
		// are new and carry no delay penalty. Pulling a date earlier is
		// free; only slipping later costs.
		for _, s := range snaps {
			p, ok := prevByProject[s.ProjectID]
			if !ok {
				continue
			}
			cur, err := ParseMonth(s.SOP)
			if err != nil {
				return ScoreRecord{}, &MalformedDateTokenError{Token: s.SOP, ProjectID: s.ProjectID}
			}
			was, err := ParseMonth(p.SOP)
			if err != nil {
				return ScoreRecord{}, &MalformedDateTokenError{Token: p.SOP, ProjectID: p.ProjectID}
			}
			diff := cur.Index() - was.Index()
			if diff > 0 && p.ForecastSec > 0 {
				rec.LostSOPDelay += LossWeight * p.ForecastSec * float64(diff)
			}
		}

		// Secured-volume decrease, tracked on the forecast-secondary
		// figure rather than lvp itself.
		prevFoc := sumForecastSec(prevSnaps)
		currFoc := sumForecastSec(snaps)
		if currFoc < prevFoc {
			rec.LostVolumeDec = LossWeight * (prevFoc - currFoc)
		}

		// Progress-point decrease, offset by volume promoted into
		// progress points. A project cannot promote more than it
		// previously carried as pp.
		promotions := 0.0
		for _, s := range snaps {
			p, ok := prevByProject[s.ProjectID]
			if !ok {
				continue
			}
			liftIncrease := math.Max(0, s.LVP-p.LVP)
			promotions += math.Min(liftIncrease, p.PP)
		}
		left := prevPP + addedPP
		right := sumPP + promotions
		if right < left {
			rec.LostPPDec = LossWeight * (left - right)
		}

		// Inactivity: a flat penalty unless at least one brand-new
		// project appeared this month.
		newProjects := 0
		for _, s := range snaps {
			if _, ok := prevByProject[s.ProjectID]; !ok {
				newProjects++
			}
		}
		if newProjects == 0 {
			rec.LostInactivity = InactivityPenalty
		}
	}

	rec.Total = rec.GainedPP + rec.GainedLVP -
		(rec.LostSOPDelay + rec.LostVolumeDec + rec.LostPPDec + rec.LostInactivity)

	return rec, nil
}

func sumSignals(snaps []Snapshot) (pp, lvp float64) {
	for _, s := range snaps {
		pp += s.PP
		lvp += s.LVP
	}
	return pp, lvp
}

func sumForecastSec(snaps []Snapshot) float64 {
	total := 0.0
	for _, s := range snaps {
		total += s.ForecastSec
	}
	return total
}
