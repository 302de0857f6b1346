/*
Package seed generates the deterministic demo dataset.

PURPOSE:
  Wipes the store and rebuilds a realistic history: a handful of KAMs
  with rotating region tags, monthly targets, a few base projects each,
  and per-month snapshots where existing projects drift and new
  projects appear. The generator is driven by a seeded RNG so the same
  parameters always produce the same dataset.

AUTHORING PRECISION:
  Forecast figures are rounded to two decimals here, at authoring time.
  The scoring engine never rounds.

SEE ALSO:
  - api/handlers.go: POST /api/seed
  - store: The write contract this feeds
*/
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/athenalabo/kam-rewards/scoring"
	"github.com/athenalabo/kam-rewards/store"
)

// Params controls the generated dataset.
type Params struct {
	StartMonth scoring.Month
	Months     int
	KAMNames   []string
	Regions    []string
	RandomSeed int64
}

// DefaultParams returns the standard demo dataset parameters.
func DefaultParams() Params {
	return Params{
		StartMonth: scoring.NewMonth(2025, time.September),
		Months:     4,
		KAMNames:   []string{"Alice", "Bob", "Carla", "Dario"},
		Regions:    []string{"China Consumer", "China Industry", "JP", "TW"},
		RandomSeed: 42,
	}
}

// Run wipes the store and generates the dataset described by p.
func Run(ctx context.Context, st store.Store, p Params) error {
	rng := rand.New(rand.NewSource(p.RandomSeed))

	if err := st.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}

	// KAMs and their monthly targets.
	kams := make([]scoring.KAM, 0, len(p.KAMNames))
	for i, name := range p.KAMNames {
		region := p.Regions[i%len(p.Regions)]
		kam, err := st.CreateKAM(ctx, name, region)
		if err != nil {
			return err
		}
		kams = append(kams, kam)

		for mi := 0; mi < p.Months; mi++ {
			m := p.StartMonth.AddMonths(mi)
			target := scoring.Target{
				PP:  float64(randInt(rng, 40, 120)),
				LVP: float64(randInt(rng, 20, 80)),
			}
			if err := st.SaveTarget(ctx, kam.ID, m, target); err != nil {
				return err
			}
		}
	}

	// Projects and snapshots. Existing projects drift every month; a
	// few brand-new projects appear on top.
	for _, kam := range kams {
		prefix := codePrefix(kam.Name)

		projects := []int64{}
		for i := 0; i < randInt(rng, 2, 3); i++ {
			code := fmt.Sprintf("%s-P%d", prefix, i+1)
			id, err := st.CreateProject(ctx, kam.ID, code, "Proj "+code)
			if err != nil {
				return err
			}
			projects = append(projects, id)
		}

		for mi := 0; mi < p.Months; mi++ {
			m := p.StartMonth.AddMonths(mi)

			for _, projectID := range projects {
				pp := float64(maxInt(0, randInt(rng, 30, 100)+randInt(rng, -20, 20)))
				lvp := float64(maxInt(0, randInt(rng, 10, 60)+randInt(rng, -10, 20)))
				sop := scoring.NewMonth(2026, time.Month(randInt(rng, 1, 9))).AddMonths(randInt(rng, -1, 1))
				if err := st.SaveSnapshot(ctx, m, scoring.Snapshot{
					ProjectID:   projectID,
					PP:          pp,
					LVP:         lvp,
					SOP:         sop.String(),
					ForecastPP:  round2(pp * uniform(rng, 0.2, 0.8)),
					ForecastSec: round2(lvp * uniform(rng, 0.3, 1.0)),
				}); err != nil {
					return err
				}
			}

			for i := 0; i < randInt(rng, 2, 4); i++ {
				code := fmt.Sprintf("%s-P%d", prefix, len(projects)+1)
				projectID, err := st.CreateProject(ctx, kam.ID, code, "Proj "+code)
				if err != nil {
					return err
				}
				projects = append(projects, projectID)

				pp := float64(randInt(rng, 20, 80))
				lvp := float64(randInt(rng, 5, 40))
				sop := scoring.NewMonth(2026, time.Month(randInt(rng, 1, 12)))
				if err := st.SaveSnapshot(ctx, m, scoring.Snapshot{
					ProjectID:   projectID,
					PP:          pp,
					LVP:         lvp,
					SOP:         sop.String(),
					ForecastPP:  round2(pp * uniform(rng, 0.2, 0.8)),
					ForecastSec: round2(lvp * uniform(rng, 0.3, 1.0)),
				}); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// codePrefix derives the two-letter project code prefix for a KAM name.
func codePrefix(name string) string {
	upper := strings.ToUpper(name)
	if len(upper) < 2 {
		return upper
	}
	return upper[:2]
}

// randInt returns a uniform integer in [lo, hi].
func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// uniform returns a uniform float in [lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
