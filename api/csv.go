/*
csv.go - CSV renderings of scores, dataset and manual inputs

PURPOSE:
  Serves the same data as the JSON endpoints as downloadable CSV
  attachments for spreadsheet consumers.

COLUMNS:
  monthly_scores.csv     kam, month, points_gained_pp, points_gained_lvp,
                         points_lost_sop_delay, points_lost_volume_dec,
                         points_lost_pp_dec, total
  cumulative_scores.csv  kam, cumulative_total
  dataset_all_rows.csv   kam, project_code, project_name, month, pp, lvp,
                         sop_ym, foc2026_pp, foc2026_sec, source
  inputs_manual_rows.csv same minus the source column

NUMBER FORMATTING:
  Floats are rendered with strconv.FormatFloat('g') so whole numbers
  stay whole and authored two-decimal figures keep their decimals.

SEE ALSO:
  - handlers.go: JSON variants of the same endpoints
*/
package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
)

// =============================================================================
// CSV ENDPOINTS
// =============================================================================

// ScoresCSV returns the monthly scores as a CSV attachment.
// GET /api/scores_csv
func (h *Handler) ScoresCSV(w http.ResponseWriter, r *http.Request) {
	records, _, err := h.Engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute scores", err)
		return
	}

	rows := [][]string{{
		"kam", "month", "points_gained_pp", "points_gained_lvp",
		"points_lost_sop_delay", "points_lost_volume_dec", "points_lost_pp_dec", "total",
	}}
	for _, rec := range records {
		item := toScoreItemDTO(rec)
		rows = append(rows, []string{
			item.KAM, item.Month,
			formatFloat(item.PointsGainedPP), formatFloat(item.PointsGainedLVP),
			formatFloat(item.PointsLostSOPDelay), formatFloat(item.PointsLostVolumeDec),
			formatFloat(item.PointsLostPPDec), formatFloat(item.Total),
		})
	}
	writeCSV(w, "monthly_scores.csv", rows)
}

// CumulativeScoresCSV returns per-KAM cumulative totals as a CSV attachment.
// GET /api/scores_cumulative_csv
func (h *Handler) CumulativeScoresCSV(w http.ResponseWriter, r *http.Request) {
	_, cumulative, err := h.Engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute scores", err)
		return
	}

	rows := [][]string{{"kam", "cumulative_total"}}
	for _, kam := range sortedKeys(cumulative) {
		rows = append(rows, []string{kam, formatFloat(cumulative[kam])})
	}
	writeCSV(w, "cumulative_scores.csv", rows)
}

// DatasetCSV returns every snapshot row as a CSV attachment.
// GET /api/dataset_csv
func (h *Handler) DatasetCSV(w http.ResponseWriter, r *http.Request) {
	dtos, err := h.datasetRows(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load dataset", err)
		return
	}

	rows := [][]string{{
		"kam", "project_code", "project_name", "month",
		"pp", "lvp", "sop_ym", "foc2026_pp", "foc2026_sec", "source",
	}}
	for _, row := range dtos {
		rows = append(rows, append(datasetFields(row), row.Source))
	}
	writeCSV(w, "dataset_all_rows.csv", rows)
}

// InputsCSV returns the manual input rows as a CSV attachment.
// GET /api/inputs_csv
func (h *Handler) InputsCSV(w http.ResponseWriter, r *http.Request) {
	dtos, err := h.inputRows(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inputs", err)
		return
	}

	rows := [][]string{{
		"kam", "project_code", "project_name", "month",
		"pp", "lvp", "sop_ym", "foc2026_pp", "foc2026_sec",
	}}
	for _, row := range dtos {
		rows = append(rows, datasetFields(row))
	}
	writeCSV(w, "inputs_manual_rows.csv", rows)
}

// =============================================================================
// HELPERS
// =============================================================================

func datasetFields(row DatasetRowDTO) []string {
	return []string{
		row.KAM, row.ProjectCode, row.ProjectName, row.Month,
		formatFloat(row.PP), formatFloat(row.LVP), row.SOPYM,
		formatFloat(row.ForecastPP), formatFloat(row.ForecastSec),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(w http.ResponseWriter, filename string, rows [][]string) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render CSV", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
