package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/heuristics"
)

// A review may replace the heuristic verdict only above this confidence.
const reviewOverrideConfidence = 0.6

// Heuristic phishing scores in [reviewBandLow, reviewBandHigh) are borderline
// and get reviewed even when the verdict is not Suspicious.
const (
	reviewBandLow  = 40.0
	reviewBandHigh = 60.0
)

// Pipeline orchestrates one URL check:
// heuristics → statistical model → deep review.
// Model and reviewer are optional.
type Pipeline struct {
	model    Model
	reviewer Reviewer
	logger   *slog.Logger
}

// NewPipeline creates a new classification pipeline. model and reviewer may be nil.
func NewPipeline(model Model, reviewer Reviewer, logger *slog.Logger) *Pipeline {
	return &Pipeline{model: model, reviewer: reviewer, logger: logger}
}

// HasModel reports whether a statistical model is configured.
func (p *Pipeline) HasModel() bool { return p.model != nil }

// NormalizeURL trims raw and prefixes https:// unless it already starts with
// http://, https:// or ftp://.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	for _, prefix := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(u, prefix) {
			return u
		}
	}
	return "https://" + u
}

// Check runs the full pipeline on a user-supplied URL. Only a blank URL is
// an error; model failures are logged and the model section is omitted.
func (p *Pipeline) Check(ctx context.Context, raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, heuristics.ErrInvalidURL
	}
	start := time.Now()
	target := NormalizeURL(raw)

	report, err := heuristics.Evaluate(target)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", target, err)
	}

	res := &Result{
		ID:        uuid.NewString(),
		Report:    report,
		Final:     report.Result,
		CheckedAt: start.UTC(),
	}
	if report.Result == heuristics.Phishing {
		res.Prediction = 1
	}

	if p.model != nil {
		pred, err := p.model.Predict(ctx, features.Extract(target).Vector())
		if err != nil {
			p.logger.Warn("model prediction failed", "url", target, "err", err)
		} else {
			res.Model = pred.Verdict()
		}
	}

	if p.reviewer != nil && needsReview(report) {
		res.Review = p.reviewer.Review(ctx, report)
		if res.Review.definitive() {
			res.Final = res.Review.Result
		}
	}

	res.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
	p.logger.Info("url checked",
		"id", res.ID,
		"url", target,
		"result", report.Result,
		"final", res.Final,
		"phishing", report.Confidence.Phishing,
		"elapsed_ms", res.ResponseTimeMs,
	)
	return res, nil
}

// Predict runs the model on a caller-supplied feature map.
func (p *Pipeline) Predict(ctx context.Context, m features.Map) (*ModelVerdict, error) {
	if p.model == nil {
		return nil, ErrNoModel
	}
	pred, err := p.model.Predict(ctx, m.Vector())
	if err != nil {
		return nil, err
	}
	return pred.Verdict(), nil
}

func needsReview(r *heuristics.Report) bool {
	if r.Result == heuristics.Suspicious {
		return true
	}
	ph := r.Confidence.Phishing
	return ph >= reviewBandLow && ph < reviewBandHigh
}
