/*
handlers_test.go - Tests for the HTTP API

Tests run against the real router and an in-memory SQLite store, so the
middleware stack, JSON contracts and store wiring are all exercised.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athenalabo/kam-rewards/scoring"
	"github.com/athenalabo/kam-rewards/store/sqlite"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewHandler(st)
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

// seedAliceTwoMonths loads the worked two-month example: one project with
// pp 50 / lvp 30 against a 40/20 target in September, declining to
// pp 40 / lvp 35 with no new project and no target in October.
func seedAliceTwoMonths(t *testing.T, h *Handler) {
	t.Helper()
	ctx := context.Background()

	alice, err := h.Store.CreateKAM(ctx, "Alice", "China Consumer")
	if err != nil {
		t.Fatalf("Failed to create KAM: %v", err)
	}
	projectID, err := h.Store.CreateProject(ctx, alice.ID, "AL-P1", "Proj AL-P1")
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}

	sep := scoring.NewMonth(2025, time.September)
	oct := scoring.NewMonth(2025, time.October)
	if err := h.Store.SaveTarget(ctx, alice.ID, sep, scoring.Target{PP: 40, LVP: 20}); err != nil {
		t.Fatalf("Failed to save target: %v", err)
	}
	if err := h.Store.SaveSnapshot(ctx, sep, scoring.Snapshot{ProjectID: projectID, PP: 50, LVP: 30, SOP: "2026-03"}); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := h.Store.SaveSnapshot(ctx, oct, scoring.Snapshot{ProjectID: projectID, PP: 40, LVP: 35, SOP: "2026-03"}); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
}

// =============================================================================
// SCORES
// =============================================================================

func TestScoresEndpoint(t *testing.T) {
	// GIVEN: Alice's two-month example data
	// WHEN: GET /api/scores
	// THEN: +30 in September, -110 in October, cumulative -80

	h := newTestHandler(t)
	seedAliceTwoMonths(t, h)

	rr := doRequest(t, h, http.MethodGet, "/api/scores", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	summary := decodeBody[ScoreSummaryDTO](t, rr)
	if len(summary.Monthly) != 2 {
		t.Fatalf("Expected 2 monthly rows, got %d", len(summary.Monthly))
	}

	first := summary.Monthly[0]
	if first.Month != "2025-09-01" {
		t.Errorf("Expected month 2025-09-01, got %s", first.Month)
	}
	if first.PointsGainedPP != 10 || first.PointsGainedLVP != 20 || first.Total != 30 {
		t.Errorf("Unexpected first month scores: %+v", first)
	}

	second := summary.Monthly[1]
	if second.PointsLostPPDec != 10 {
		t.Errorf("Expected pp decrease loss 10, got %v", second.PointsLostPPDec)
	}
	if second.PointsLostInactive != 100 {
		t.Errorf("Expected inactivity loss 100, got %v", second.PointsLostInactive)
	}
	if second.Total != -110 {
		t.Errorf("Expected total -110, got %v", second.Total)
	}

	if summary.CumulativeByKAM["Alice"] != -80 {
		t.Errorf("Expected cumulative -80, got %v", summary.CumulativeByKAM["Alice"])
	}
}

func TestScoresCSVEndpoint(t *testing.T) {
	// GIVEN: scored data
	// WHEN: GET /api/scores_csv
	// THEN: CSV attachment with the expected header row

	h := newTestHandler(t)
	seedAliceTwoMonths(t, h)

	rr := doRequest(t, h, http.MethodGet, "/api/scores_csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "monthly_scores.csv") {
		t.Errorf("Unexpected Content-Disposition: %s", got)
	}

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	wantHeader := "kam,month,points_gained_pp,points_gained_lvp,points_lost_sop_delay,points_lost_volume_dec,points_lost_pp_dec,total"
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != wantHeader {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Alice,2025-09-01,10,20,") {
		t.Errorf("Unexpected first row: %s", lines[1])
	}
}

func TestCumulativeScoresCSVEndpoint(t *testing.T) {
	h := newTestHandler(t)
	seedAliceTwoMonths(t, h)

	rr := doRequest(t, h, http.MethodGet, "/api/scores_cumulative_csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "kam,cumulative_total" || lines[1] != "Alice,-80" {
		t.Errorf("Unexpected CSV body: %q", rr.Body.String())
	}
}

// =============================================================================
// STATE AND SEED
// =============================================================================

func TestStateEndpoint(t *testing.T) {
	h := newTestHandler(t)
	seedAliceTwoMonths(t, h)

	rr := doRequest(t, h, http.MethodGet, "/api/state", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	state := decodeBody[StateDTO](t, rr)
	if len(state.KAMs) != 1 || state.KAMs[0].Name != "Alice" {
		t.Errorf("Unexpected KAMs: %+v", state.KAMs)
	}
	if len(state.Months) != 2 || state.Months[0] != "2025-09-01" || state.Months[1] != "2025-10-01" {
		t.Errorf("Unexpected months: %v", state.Months)
	}
}

func TestSeedEndpoint(t *testing.T) {
	// GIVEN: an empty store
	// WHEN: POST /api/seed with one KAM over one month
	// THEN: state reflects the generated data

	h := newTestHandler(t)

	rr := doRequest(t, h, http.MethodPost, "/api/seed", map[string]any{
		"months":      1,
		"kam_names":   []string{"Zoe"},
		"random_seed": 7,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	state := decodeBody[StateDTO](t, doRequest(t, h, http.MethodGet, "/api/state", nil))
	if len(state.KAMs) != 1 || state.KAMs[0].Name != "Zoe" {
		t.Errorf("Unexpected KAMs: %+v", state.KAMs)
	}
	if len(state.Months) != 1 || state.Months[0] != "2025-09-01" {
		t.Errorf("Unexpected months: %v", state.Months)
	}
}

func TestSeedEndpoint_RejectsZeroMonths(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(t, h, http.MethodPost, "/api/seed", map[string]any{"months": 0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

// =============================================================================
// MANUAL INPUT
// =============================================================================

func TestInputMonth_CreatesManualRows(t *testing.T) {
	// GIVEN: Alice with a 60/30 target in September 2025
	// WHEN: entering 100 pp / 50 lvp for February 2026 across two projects
	// THEN: two manual rows with even splits, default forecast ratios, and
	//       the September target copied forward

	h := newTestHandler(t)
	ctx := context.Background()

	alice, err := h.Store.CreateKAM(ctx, "Alice", "China Consumer")
	if err != nil {
		t.Fatalf("Failed to create KAM: %v", err)
	}
	sep := scoring.NewMonth(2025, time.September)
	if err := h.Store.SaveTarget(ctx, alice.ID, sep, scoring.Target{PP: 60, LVP: 30}); err != nil {
		t.Fatalf("Failed to save target: %v", err)
	}

	rr := doRequest(t, h, http.MethodPost, "/api/input_month", map[string]any{
		"kam_name":  "Alice",
		"month":     "2026-02",
		"added_pp":  100,
		"added_lvp": 50,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeBody[InputMonthResponse](t, rr)
	if resp.Status != "ok" || resp.ProjectsCreated != 2 || resp.Month != "2026-02-01" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	inputs := decodeBody[DatasetResponse](t, doRequest(t, h, http.MethodGet, "/api/inputs", nil))
	if inputs.Count != 2 {
		t.Fatalf("Expected 2 input rows, got %d", inputs.Count)
	}
	for _, row := range inputs.Rows {
		if row.Source != "manual" {
			t.Errorf("Expected manual source, got %s", row.Source)
		}
		if !strings.HasPrefix(row.ProjectCode, "AL-M02-") {
			t.Errorf("Unexpected project code: %s", row.ProjectCode)
		}
		if !strings.HasPrefix(row.ProjectName, "Manual AL-M02-") {
			t.Errorf("Unexpected project name: %s", row.ProjectName)
		}
		if row.PP != 50 || row.LVP != 25 {
			t.Errorf("Expected even 50/25 split, got %v/%v", row.PP, row.LVP)
		}
		if row.SOPYM != "2026-06" {
			t.Errorf("Expected default SOP 2026-06, got %s", row.SOPYM)
		}
		if row.ForecastPP != 25 || row.ForecastSec != 17.5 {
			t.Errorf("Unexpected forecasts: %v/%v", row.ForecastPP, row.ForecastSec)
		}
	}

	// The entered month had no target; the latest one is copied forward.
	target, err := h.Store.TargetFor(ctx, alice.ID, scoring.NewMonth(2026, time.February))
	if err != nil {
		t.Fatalf("Failed to load target: %v", err)
	}
	if target == nil || target.PP != 60 || target.LVP != 30 {
		t.Errorf("Expected copied-forward 60/30 target, got %+v", target)
	}
}

func TestInputMonth_DefaultTargetWhenNoneExists(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	alice, err := h.Store.CreateKAM(ctx, "Alice", "EU")
	if err != nil {
		t.Fatalf("Failed to create KAM: %v", err)
	}

	rr := doRequest(t, h, http.MethodPost, "/api/input_month", map[string]any{
		"kam_name": "Alice", "month": "2026-01", "added_pp": 10, "added_lvp": 5,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	target, err := h.Store.TargetFor(ctx, alice.ID, scoring.NewMonth(2026, time.January))
	if err != nil {
		t.Fatalf("Failed to load target: %v", err)
	}
	if target == nil || target.PP != 80 || target.LVP != 40 {
		t.Errorf("Expected default 80/40 target, got %+v", target)
	}
}

func TestInputMonth_Validation(t *testing.T) {
	h := newTestHandler(t)
	if _, err := h.Store.CreateKAM(context.Background(), "Alice", "EU"); err != nil {
		t.Fatalf("Failed to create KAM: %v", err)
	}

	cases := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{
			name:     "month after window",
			body:     map[string]any{"kam_name": "Alice", "month": "2026-05", "added_pp": 10, "added_lvp": 5},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "month before window",
			body:     map[string]any{"kam_name": "Alice", "month": "2025-12", "added_pp": 10, "added_lvp": 5},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed month",
			body:     map[string]any{"kam_name": "Alice", "month": "soon", "added_pp": 10, "added_lvp": 5},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "zero new projects",
			body:     map[string]any{"kam_name": "Alice", "month": "2026-02", "new_projects": 0, "added_pp": 10, "added_lvp": 5},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown kam",
			body:     map[string]any{"kam_name": "Nobody", "month": "2026-02", "added_pp": 10, "added_lvp": 5},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, h, http.MethodPost, "/api/input_month", tc.body)
			if rr.Code != tc.wantCode {
				t.Errorf("Expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

// =============================================================================
// DATASET AND INPUT WINDOW
// =============================================================================

func TestInputsExcludeSeededRows(t *testing.T) {
	// GIVEN: one seeded row inside the input window and one manual entry
	// WHEN: GET /api/inputs
	// THEN: only the manual rows are listed, while /api/dataset has both

	h := newTestHandler(t)
	ctx := context.Background()

	alice, err := h.Store.CreateKAM(ctx, "Alice", "EU")
	if err != nil {
		t.Fatalf("Failed to create KAM: %v", err)
	}
	projectID, err := h.Store.CreateProject(ctx, alice.ID, "AL-P1", "Proj AL-P1")
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	feb := scoring.NewMonth(2026, time.February)
	if err := h.Store.SaveSnapshot(ctx, feb, scoring.Snapshot{ProjectID: projectID, PP: 30, LVP: 10, SOP: "2026-05"}); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	rr := doRequest(t, h, http.MethodPost, "/api/input_month", map[string]any{
		"kam_name": "Alice", "month": "2026-02", "new_projects": 1, "added_pp": 40, "added_lvp": 20,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	dataset := decodeBody[DatasetResponse](t, doRequest(t, h, http.MethodGet, "/api/dataset", nil))
	if dataset.Count != 2 {
		t.Fatalf("Expected 2 dataset rows, got %d", dataset.Count)
	}

	inputs := decodeBody[DatasetResponse](t, doRequest(t, h, http.MethodGet, "/api/inputs", nil))
	if inputs.Count != 1 {
		t.Fatalf("Expected 1 input row, got %d", inputs.Count)
	}
	if inputs.Rows[0].Source != "manual" || inputs.Rows[0].PP != 40 {
		t.Errorf("Unexpected input row: %+v", inputs.Rows[0])
	}
}

func TestRootBanner(t *testing.T) {
	h := newTestHandler(t)

	rr := doRequest(t, h, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	banner := decodeBody[RootResponse](t, rr)
	if !banner.OK || banner.Service != "KAM Rewards API" {
		t.Errorf("Unexpected banner: %+v", banner)
	}
}
