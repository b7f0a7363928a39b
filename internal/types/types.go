package types

import (
	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
)

// Evaluation modes accepted by the batch endpoint
const (
	ModeReport      = "report"
	ModeDirectional = "directional"
)

// PairRequest is the body of the report and directional endpoints
type PairRequest = synastry.Input

// Candidate is one scored counterpart in a batch
type Candidate struct {
	ID    string         `json:"id" binding:"required"`
	Party synastry.Party `json:"party"`
}

// BatchRequest scores one subject against many candidates. Mode defaults
// to report.
type BatchRequest struct {
	Subject    synastry.Party `json:"subject"`
	Candidates []Candidate    `json:"candidates" binding:"required,min=1,dive"`
	Mode       string         `json:"mode,omitempty" binding:"omitempty,oneof=report directional"`
}

// ReportResponse wraps a symmetric report. Pair responses are cached, so
// the request id travels only in the X-Request-ID header.
type ReportResponse struct {
	RulesetVersion string          `json:"ruleset_version"`
	Report         synastry.Report `json:"report"`
}

// DirectionalResponse wraps a directional score
type DirectionalResponse struct {
	RulesetVersion string                     `json:"ruleset_version"`
	Result         synastry.DirectionalResult `json:"result"`
}

// BatchItem is the outcome for one candidate. Exactly one of Report,
// Directional and Error is set.
type BatchItem struct {
	ID          string                      `json:"id"`
	Percent     int                         `json:"percent"`
	Report      *synastry.Report            `json:"report,omitempty"`
	Directional *synastry.DirectionalResult `json:"directional,omitempty"`
	Error       *apperrors.ErrorBody        `json:"error,omitempty"`
}

// BatchResponse lists candidates by descending percent; failed candidates
// come last in request order
type BatchResponse struct {
	RulesetVersion string      `json:"ruleset_version"`
	RequestID      string      `json:"request_id,omitempty"`
	Mode           string      `json:"mode"`
	Count          int         `json:"count"`
	Failed         int         `json:"failed"`
	DurationMs     int64       `json:"duration_ms"`
	Results        []BatchItem `json:"results"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string                 `json:"status"`
	Version        string                 `json:"version"`
	RulesetVersion string                 `json:"ruleset_version"`
	Timestamp      string                 `json:"timestamp"`
	UptimeSeconds  float64                `json:"uptime_seconds"`
	Backends       map[string]interface{} `json:"backends"`
}

// TablesResponse describes the loaded rule set
type TablesResponse struct {
	Version      string                 `json:"version"`
	Weights      map[string]float64     `json:"weights"`
	Overlays     int                    `json:"overlay_rules"`
	Mitigations  int                    `json:"mitigations"`
	Expression   []string               `json:"expression_pairs"`
	AffinityRing []float64              `json:"affinity_by_distance"`
	Penalty      synastry.PenaltyConfig `json:"penalty"`
	Bonus        int                    `json:"bonus"`
}

// NewTablesResponse summarizes rs
func NewTablesResponse(rs *synastry.RuleSet) TablesResponse {
	ring := make([]float64, 12)
	for d := range ring {
		ring[d] = synastry.Affinity(d)
	}
	weights := make(map[string]float64, len(rs.Weights))
	for k, v := range rs.Weights {
		weights[k] = v
	}
	return TablesResponse{
		Version:      rs.Version,
		Weights:      weights,
		Overlays:     rs.Overlays.Len(),
		Mitigations:  len(rs.Mitigations),
		Expression:   rs.Expression.Keys(),
		AffinityRing: ring,
		Penalty:      rs.Penalty,
		Bonus:        rs.Bonus,
	}
}
