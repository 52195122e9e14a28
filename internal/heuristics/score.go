package heuristics

import "math"

// Confidence is the phishing/legitimate split in percent, each rounded to two
// decimals on its own, so the sum may drift from 100 by a rounding step.
type Confidence struct {
	Phishing   float64 `json:"phishing"`
	Legitimate float64 `json:"legitimate"`
}

// Confidence used when no rule contributed any weight at all.
const (
	defaultPhishingPercent   = 60
	defaultLegitimatePercent = 40
)

// Score converts a ledger into a verdict and confidence pair.
func Score(l Ledger) (Verdict, Confidence) {
	risk := l.RiskScore()
	trust := l.TrustScore()
	total := risk + trust

	var phishing, legitimate float64
	if total == 0 {
		phishing, legitimate = defaultPhishingPercent, defaultLegitimatePercent
	} else {
		phishing = float64(risk) / float64(total) * 100
		legitimate = float64(trust) / float64(total) * 100
	}

	conf := Confidence{
		Phishing:   round2(phishing),
		Legitimate: round2(legitimate),
	}
	return verdictFor(phishing, legitimate), conf
}

// verdictFor applies the policy in order: phishing at or above half wins,
// then a legitimate majority, otherwise the conservative middle verdict.
func verdictFor(phishing, legitimate float64) Verdict {
	switch {
	case phishing >= 50:
		return Phishing
	case legitimate > phishing:
		return Legitimate
	default:
		return Suspicious
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
