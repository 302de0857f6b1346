/*
handlers.go - HTTP API handlers for the KAM rewards service

PURPOSE:
  Exposes the reward scoring engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Scoring:
    GET  /api/scores                Monthly scores + cumulative totals
    GET  /api/scores_csv            Monthly scores as CSV attachment
    GET  /api/scores_cumulative_csv Cumulative totals as CSV attachment

  Data:
    POST /api/seed                  Wipe and reseed demo data
    GET  /api/state                 Loaded KAMs and months
    GET  /api/dataset               All snapshot rows (+ CSV variant)
    GET  /api/inputs                Manual rows in the input window (+ CSV)
    POST /api/input_month           Manual monthly entry for one KAM

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (scoring engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown KAM
  - 409: Duplicate target/snapshot writes
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - csv.go: CSV renderings
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/athenalabo/kam-rewards/scoring"
	"github.com/athenalabo/kam-rewards/seed"
	"github.com/athenalabo/kam-rewards/store"
)

// Manual input is only accepted inside this window.
var (
	inputWindowStart = scoring.NewMonth(2026, time.January)
	inputWindowEnd   = scoring.NewMonth(2026, time.April)
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  store.Store
	Engine *scoring.Engine
}

// NewHandler creates a new handler with the given store.
func NewHandler(st store.Store) *Handler {
	return &Handler{
		Store:  st,
		Engine: scoring.NewEngine(st),
	}
}

// =============================================================================
// SEED
// =============================================================================

// Seed wipes the database and regenerates demo data.
// POST /api/seed
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	params := seed.DefaultParams()

	if r.Body != nil && r.ContentLength != 0 {
		var req SeedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if req.StartMonth != nil {
			m, err := parseMonthParam(*req.StartMonth)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid start_month", err)
				return
			}
			params.StartMonth = m
		}
		if req.Months != nil {
			params.Months = *req.Months
		}
		if len(req.KAMNames) > 0 {
			params.KAMNames = req.KAMNames
		}
		if len(req.Regions) > 0 {
			params.Regions = req.Regions
		}
		if req.RandomSeed != nil {
			params.RandomSeed = *req.RandomSeed
		}
	}

	if params.Months < 1 {
		writeError(w, http.StatusBadRequest, "months must be >= 1", nil)
		return
	}

	if err := seed.Run(r.Context(), h.Store, params); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed data", err)
		return
	}
	writeJSON(w, http.StatusOK, SeedResponse{Status: "ok"})
}

// =============================================================================
// SCORES
// =============================================================================

// Scores computes and returns all monthly scores and cumulative totals.
// GET /api/scores
func (h *Handler) Scores(w http.ResponseWriter, r *http.Request) {
	records, cumulative, err := h.Engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute scores", err)
		return
	}

	monthly := make([]ScoreItemDTO, len(records))
	for i, rec := range records {
		monthly[i] = toScoreItemDTO(rec)
	}
	writeJSON(w, http.StatusOK, ScoreSummaryDTO{
		Monthly:         monthly,
		CumulativeByKAM: cumulative,
	})
}

// State returns the loaded KAMs and the months with snapshots.
// GET /api/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kams, err := h.Store.AllKAMs(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list KAMs", err)
		return
	}
	months, err := h.Store.DistinctMonths(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list months", err)
		return
	}

	state := StateDTO{
		KAMs:   make([]KAMDTO, len(kams)),
		Months: make([]string, len(months)),
	}
	for i, k := range kams {
		state.KAMs[i] = KAMDTO{ID: k.ID, Name: k.Name, Region: k.Region}
	}
	for i, m := range months {
		state.Months[i] = monthISO(m)
	}
	writeJSON(w, http.StatusOK, state)
}

// =============================================================================
// DATASET AND INPUTS
// =============================================================================

// rowSource tags a row by how it was authored. Manual entries are
// recognized by their project name prefix.
func rowSource(projectName string) string {
	if strings.HasPrefix(projectName, "Manual ") {
		return "manual"
	}
	return "seed"
}

func (h *Handler) datasetRows(r *http.Request) ([]DatasetRowDTO, error) {
	rows, err := h.Store.DatasetRows(r.Context())
	if err != nil {
		return nil, err
	}
	dtos := make([]DatasetRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toDatasetRowDTO(row)
	}
	return dtos, nil
}

// inputRows filters the dataset down to manual rows inside the input window.
func (h *Handler) inputRows(r *http.Request) ([]DatasetRowDTO, error) {
	all, err := h.datasetRows(r)
	if err != nil {
		return nil, err
	}
	filtered := make([]DatasetRowDTO, 0, len(all))
	for _, row := range all {
		if row.Source != "manual" {
			continue
		}
		if row.Month < monthISO(inputWindowStart) || row.Month > monthISO(inputWindowEnd) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered, nil
}

// Dataset returns every snapshot row joined with its project and KAM.
// GET /api/dataset
func (h *Handler) Dataset(w http.ResponseWriter, r *http.Request) {
	rows, err := h.datasetRows(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load dataset", err)
		return
	}
	writeJSON(w, http.StatusOK, DatasetResponse{Rows: rows, Count: len(rows)})
}

// Inputs returns the manual rows inside the input window.
// GET /api/inputs
func (h *Handler) Inputs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.inputRows(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inputs", err)
		return
	}
	writeJSON(w, http.StatusOK, DatasetResponse{Rows: rows, Count: len(rows)})
}

// =============================================================================
// MANUAL INPUT
// =============================================================================

// InputMonth records a manual monthly entry for one KAM: the added pp/lvp
// is split evenly across freshly created projects for that month.
// POST /api/input_month
func (h *Handler) InputMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InputMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := parseMonthParam(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	if m.Before(inputWindowStart) || m.After(inputWindowEnd) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Month must be %s to %s", inputWindowStart, inputWindowEnd), nil)
		return
	}

	newProjects := 2
	if req.NewProjects != nil {
		newProjects = *req.NewProjects
	}
	if newProjects < 1 {
		writeError(w, http.StatusBadRequest, "new_projects must be >= 1", nil)
		return
	}

	kam, err := h.Store.GetKAMByName(ctx, req.KAMName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up KAM", err)
		return
	}
	if kam == nil {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("KAM %q not found", req.KAMName), scoring.ErrKAMNotFound)
		return
	}

	if err := h.ensureTarget(ctx, kam.ID, m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve target", err)
		return
	}

	avgSOPMonth := 6
	if req.AvgSOPMonth != nil {
		avgSOPMonth = *req.AvgSOPMonth
	}
	focRatioPP := 0.5
	if req.FocRatioPP != nil {
		focRatioPP = *req.FocRatioPP
	}
	focRatioLVP := 0.7
	if req.FocRatioLVP != nil {
		focRatioLVP = *req.FocRatioLVP
	}

	splitPP := round2(req.AddedPP / float64(newProjects))
	splitLVP := round2(req.AddedLVP / float64(newProjects))
	sop := fmt.Sprintf("2026-%02d", clampInt(avgSOPMonth, 1, 12))

	created := 0
	for i := 0; i < newProjects; i++ {
		code := fmt.Sprintf("%s-M%02d-%d", codePrefix(kam.Name), int(m.Month), 1000+rand.Intn(9000))
		projectID, err := h.Store.CreateProject(ctx, kam.ID, code, "Manual "+code)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create project", err)
			return
		}

		snap := scoring.Snapshot{
			ProjectID:   projectID,
			PP:          splitPP,
			LVP:         splitLVP,
			SOP:         sop,
			ForecastPP:  round2(splitPP * clampFloat(focRatioPP, 0, 1)),
			ForecastSec: round2(splitLVP * clampFloat(focRatioLVP, 0, 1)),
		}
		if err := h.Store.SaveSnapshot(ctx, m, snap); err != nil {
			status := http.StatusInternalServerError
			if scoring.IsClientError(err) {
				status = http.StatusConflict
			}
			writeError(w, status, "Failed to save snapshot", err)
			return
		}
		created++
	}

	writeJSON(w, http.StatusOK, InputMonthResponse{
		Status:          "ok",
		KAM:             kam.Name,
		Month:           monthISO(m),
		ProjectsCreated: created,
		AddedPP:         req.AddedPP,
		AddedLVP:        req.AddedLVP,
	})
}

// ensureTarget guarantees a target exists for (kam, month): the month's
// own target wins, otherwise the latest earlier target is copied forward,
// otherwise the 80/40 default is written.
func (h *Handler) ensureTarget(ctx context.Context, kamID int64, m scoring.Month) error {
	existing, err := h.Store.TargetFor(ctx, kamID, m)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	target := scoring.Target{PP: 80, LVP: 40}
	latest, err := h.Store.LatestTarget(ctx, kamID)
	if err != nil {
		return err
	}
	if latest != nil {
		target = *latest
	}

	if err := h.Store.SaveTarget(ctx, kamID, m, target); err != nil {
		// A concurrent write got there first; the target exists either way.
		if errors.Is(err, scoring.ErrDuplicateTarget) {
			return nil
		}
		return err
	}
	return nil
}

// Root is the service banner.
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{OK: true, Service: "KAM Rewards API"})
}

// =============================================================================
// HELPERS
// =============================================================================

// parseMonthParam accepts "2026-01" or "2026-01-01".
func parseMonthParam(token string) (scoring.Month, error) {
	if m, err := scoring.ParseMonth(token); err == nil {
		return m, nil
	}
	t, err := time.Parse("2006-01-02", token)
	if err != nil {
		return scoring.Month{}, fmt.Errorf("malformed month %q", token)
	}
	return scoring.MonthOf(t), nil
}

// codePrefix derives the two-letter project code prefix from a KAM name.
func codePrefix(name string) string {
	prefix := strings.ToUpper(name)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return prefix
}

// round2 rounds to two decimals for authoring-side figures.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sortedKeys returns map keys in ascending order, for stable CSV output.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
