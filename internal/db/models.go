package db

import (
	"time"

	"github.com/lurewatch/lurewatch/internal/classify"
)

// Scan is one persisted URL check.
type Scan struct {
	ID             string    `json:"id"`
	CheckedAt      time.Time `json:"checked_at"`
	URL            string    `json:"url"`
	Domain         string    `json:"domain"`
	Result         string    `json:"result"`
	Final          string    `json:"final"`
	PhishingPct    float32   `json:"phishing"`
	LegitimatePct  float32   `json:"legitimate"`
	RiskFactors    []string  `json:"risk_factors"`
	TrustFactors   []string  `json:"trust_factors"`
	ModelResult    string    `json:"model_result,omitempty"`
	ReviewResult   string    `json:"review_result,omitempty"`
	ResponseTimeMs float32   `json:"response_time_ms"`
}

// Stats summarises the scan history by final verdict.
type Stats struct {
	TotalScans    int64      `json:"total_scans"`
	Phishing      int64      `json:"phishing"`
	Legitimate    int64      `json:"legitimate"`
	Suspicious    int64      `json:"suspicious"`
	Reviewed      int64      `json:"reviewed"`
	AvgResponseMs float64    `json:"avg_response_ms"`
	LastScanAt    *time.Time `json:"last_scan_at,omitempty"`
}

// NewScan flattens a pipeline result into a history row.
func NewScan(r *classify.Result) *Scan {
	s := &Scan{
		ID:             r.ID,
		CheckedAt:      r.CheckedAt,
		URL:            r.URL,
		Domain:         r.Features.Domain,
		Result:         string(r.Result),
		Final:          string(r.Final),
		PhishingPct:    float32(r.Confidence.Phishing),
		LegitimatePct:  float32(r.Confidence.Legitimate),
		RiskFactors:    r.RiskFactors,
		TrustFactors:   r.TrustFactors,
		ResponseTimeMs: float32(r.ResponseTimeMs),
	}
	if r.Model != nil {
		s.ModelResult = string(r.Model.Result)
	}
	if r.Review != nil {
		s.ReviewResult = string(r.Review.Result)
	}
	return s
}
