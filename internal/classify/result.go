package classify

import (
	"time"

	"github.com/lurewatch/lurewatch/internal/heuristics"
)

// Result is the full outcome of one URL check: the heuristic report plus
// whatever the optional model and review stages contributed.
type Result struct {
	ID string `json:"id"`
	*heuristics.Report
	Prediction     int                `json:"prediction"`
	Model          *ModelVerdict      `json:"model,omitempty"`
	Review         *Review            `json:"review,omitempty"`
	Final          heuristics.Verdict `json:"final"`
	ResponseTimeMs float64            `json:"response_time_ms"`
	CheckedAt      time.Time          `json:"checked_at"`
}

// ModelVerdict is the statistical model's opinion, in percent.
type ModelVerdict struct {
	Result         heuristics.Verdict `json:"result"`
	Prediction     int                `json:"prediction"`
	LegitimateProb float64            `json:"legitimate_prob"`
	PhishingProb   float64            `json:"phishing_prob"`
}

// Review is the deep-review stage's opinion.
type Review struct {
	Result         heuristics.Verdict `json:"result"`
	Confidence     float64            `json:"confidence"`
	Reason         string             `json:"reason"`
	ResponseTimeMs float64            `json:"response_time_ms,omitempty"`
}

// definitive reports whether the review is allowed to override the heuristics.
func (r *Review) definitive() bool {
	if r == nil || r.Confidence <= reviewOverrideConfidence {
		return false
	}
	return r.Result == heuristics.Phishing || r.Result == heuristics.Legitimate
}
