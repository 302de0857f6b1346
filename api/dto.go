/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the scoring domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONTH RENDERING:
  Months are rendered as first-of-month ISO dates ("2025-09-01") in every
  response, matching what the dashboard and the CSV consumers expect.
  Requests accept either "2026-01" or "2026-01-01".

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
  Optional request fields are pointers so absent and zero can be told apart.

SEE ALSO:
  - handlers.go: Uses these types
  - csv.go: CSV renderings of the same data
*/
package api

import (
	"github.com/athenalabo/kam-rewards/scoring"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SeedRequest overrides the default seeding parameters. Absent fields
// keep their defaults.
type SeedRequest struct {
	StartMonth *string  `json:"start_month,omitempty"`
	Months     *int     `json:"months,omitempty"`
	KAMNames   []string `json:"kam_names,omitempty"`
	Regions    []string `json:"regions,omitempty"`
	RandomSeed *int64   `json:"random_seed,omitempty"`
}

// SeedResponse reports the outcome of a reseed.
type SeedResponse struct {
	Status string `json:"status"`
}

// ScoreItemDTO is one KAM-month score row.
type ScoreItemDTO struct {
	KAM                 string  `json:"kam"`
	Month               string  `json:"month"`
	PointsGainedPP      float64 `json:"points_gained_pp"`
	PointsGainedLVP     float64 `json:"points_gained_lvp"`
	PointsLostSOPDelay  float64 `json:"points_lost_sop_delay"`
	PointsLostVolumeDec float64 `json:"points_lost_volume_dec"`
	PointsLostPPDec     float64 `json:"points_lost_pp_dec"`
	PointsLostInactive  float64 `json:"points_lost_inactivity"`
	Total               float64 `json:"total"`
}

// ScoreSummaryDTO is the full scoring response.
type ScoreSummaryDTO struct {
	Monthly         []ScoreItemDTO     `json:"monthly"`
	CumulativeByKAM map[string]float64 `json:"cumulative_by_kam"`
}

// KAMDTO represents a KAM in API responses.
type KAMDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// StateDTO describes what data is currently loaded.
type StateDTO struct {
	KAMs   []KAMDTO `json:"kams"`
	Months []string `json:"months"`
}

// DatasetRowDTO is one snapshot row joined with its project and KAM.
type DatasetRowDTO struct {
	KAM         string  `json:"kam"`
	ProjectCode string  `json:"project_code"`
	ProjectName string  `json:"project_name"`
	Month       string  `json:"month"`
	PP          float64 `json:"pp"`
	LVP         float64 `json:"lvp"`
	SOPYM       string  `json:"sop_ym"`
	ForecastPP  float64 `json:"foc2026_pp"`
	ForecastSec float64 `json:"foc2026_sec"`
	Source      string  `json:"source"`
}

// DatasetResponse wraps dataset rows with a count.
type DatasetResponse struct {
	Rows  []DatasetRowDTO `json:"rows"`
	Count int             `json:"count"`
}

// InputMonthRequest is a manual monthly entry for one KAM.
type InputMonthRequest struct {
	KAMName     string   `json:"kam_name"`
	Month       string   `json:"month"`
	NewProjects *int     `json:"new_projects,omitempty"`
	AddedPP     float64  `json:"added_pp"`
	AddedLVP    float64  `json:"added_lvp"`
	AvgSOPMonth *int     `json:"avg_sop_month,omitempty"`
	FocRatioPP  *float64 `json:"foc_ratio_pp,omitempty"`
	FocRatioLVP *float64 `json:"foc_ratio_lvp,omitempty"`
}

// InputMonthResponse reports what a manual entry created.
type InputMonthResponse struct {
	Status          string  `json:"status"`
	KAM             string  `json:"kam"`
	Month           string  `json:"month"`
	ProjectsCreated int     `json:"projects_created"`
	AddedPP         float64 `json:"added_pp"`
	AddedLVP        float64 `json:"added_lvp"`
}

// RootResponse is the service banner.
type RootResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toScoreItemDTO(r scoring.ScoreRecord) ScoreItemDTO {
	return ScoreItemDTO{
		KAM:                 r.KAM,
		Month:               monthISO(r.Month),
		PointsGainedPP:      r.GainedPP,
		PointsGainedLVP:     r.GainedLVP,
		PointsLostSOPDelay:  r.LostSOPDelay,
		PointsLostVolumeDec: r.LostVolumeDec,
		PointsLostPPDec:     r.LostPPDec,
		PointsLostInactive:  r.LostInactivity,
		Total:               r.Total,
	}
}

func toDatasetRowDTO(row scoring.DatasetRow) DatasetRowDTO {
	return DatasetRowDTO{
		KAM:         row.KAM,
		ProjectCode: row.ProjectCode,
		ProjectName: row.ProjectName,
		Month:       monthISO(row.Month),
		PP:          row.PP,
		LVP:         row.LVP,
		SOPYM:       row.SOP,
		ForecastPP:  row.ForecastPP,
		ForecastSec: row.ForecastSec,
		Source:      rowSource(row.ProjectName),
	}
}

// monthISO renders a month as its first-of-month ISO date.
func monthISO(m scoring.Month) string {
	return m.Date().Format("2006-01-02")
}
