package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/lurewatch/lurewatch/internal/config"
	"github.com/lurewatch/lurewatch/internal/heuristics"
)

// Reviewer gives a second opinion on a URL the heuristics could not settle.
type Reviewer interface {
	Review(ctx context.Context, report *heuristics.Report) *Review
}

// ClaudeReviewer asks Claude via AWS Bedrock.
type ClaudeReviewer struct {
	region string
	model  string
}

// NewClaudeReviewer creates a reviewer from cfg.
func NewClaudeReviewer(cfg config.Review) *ClaudeReviewer {
	return &ClaudeReviewer{region: cfg.Region, model: cfg.Model}
}

// Review never fails: missing credentials and API errors come back as a
// Suspicious review with confidence 0.5.
func (c *ClaudeReviewer) Review(ctx context.Context, report *heuristics.Report) *Review {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" && os.Getenv("AWS_PROFILE") == "" {
		return undecided("AWS credentials not configured", 0)
	}

	start := time.Now()

	client := anthropic.NewClient(
		bedrock.WithLoadDefaultConfig(ctx, awsconfig.WithRegion(c.region)),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 300,
		System: []anthropic.TextBlockParam{
			{Text: reviewPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(reviewInput(report))),
		},
	})

	elapsed := float64(time.Since(start).Milliseconds())

	if err != nil {
		return undecided(fmt.Sprintf("Claude API error: %v", err), elapsed)
	}
	if len(message.Content) == 0 {
		return undecided("Empty Claude response", elapsed)
	}

	review := parseReview(strings.TrimSpace(message.Content[0].Text))
	review.ResponseTimeMs = elapsed
	return review
}

// reviewInput is the user message: the URL followed by the evidence the
// heuristics already collected.
func reviewInput(report *heuristics.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", report.URL)
	fmt.Fprintf(&b, "Heuristic verdict: %s (phishing %.2f%%, legitimate %.2f%%)\n",
		report.Result, report.Confidence.Phishing, report.Confidence.Legitimate)
	if len(report.RiskFactors) > 0 {
		fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(report.RiskFactors, "; "))
	}
	if len(report.TrustFactors) > 0 {
		fmt.Fprintf(&b, "Trust factors: %s\n", strings.Join(report.TrustFactors, "; "))
	}
	return b.String()
}

// parseReview extracts a Review from model output that may wrap the JSON in
// extra text. Unknown verdicts are treated as Suspicious.
func parseReview(content string) *Review {
	var r Review
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return undecided("Failed to parse review response", 0)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
			return undecided("Failed to parse review response", 0)
		}
	}
	switch r.Result {
	case heuristics.Phishing, heuristics.Legitimate, heuristics.Suspicious:
	default:
		r.Result = heuristics.Suspicious
	}
	r.Confidence = min(max(r.Confidence, 0), 1)
	return &r
}

func undecided(reason string, elapsed float64) *Review {
	return &Review{
		Result:         heuristics.Suspicious,
		Confidence:     0.5,
		Reason:         reason,
		ResponseTimeMs: elapsed,
	}
}

const reviewPrompt = `You are a phishing analyst. A URL has been scored by lexical heuristics that could not reach a clear verdict. Judge whether the URL is a phishing lure and respond with a JSON object:
{"result": "Phishing" | "Legitimate" | "Suspicious", "confidence": 0.0-1.0, "reason": "brief explanation"}

Consider brand impersonation, lookalike characters, deceptive subdomains and credential-harvesting paths. Only respond with the JSON object.`
