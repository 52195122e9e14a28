package heuristics

// Verdict is the three-way outcome of an evaluation.
type Verdict string

const (
	Phishing   Verdict = "Phishing"
	Legitimate Verdict = "Legitimate"
	Suspicious Verdict = "Suspicious"
)

// Factor is one rule's contribution to the score. Weight is always one of the
// rule constants below, never derived from the input.
type Factor struct {
	Label  string `json:"label"`
	Weight int    `json:"weight"`
}

// Ledger holds risk and trust factors in the order the rules fired.
type Ledger struct {
	Risk  []Factor `json:"risk"`
	Trust []Factor `json:"trust"`
}

func (l *Ledger) addRisk(label string, weight int) {
	l.Risk = append(l.Risk, Factor{Label: label, Weight: weight})
}

func (l *Ledger) addTrust(label string, weight int) {
	l.Trust = append(l.Trust, Factor{Label: label, Weight: weight})
}

// RiskScore sums the weights of all risk factors.
func (l Ledger) RiskScore() int { return sum(l.Risk) }

// TrustScore sums the weights of all trust factors.
func (l Ledger) TrustScore() int { return sum(l.Trust) }

// RiskLabels returns the risk factor labels in evaluation order.
func (l Ledger) RiskLabels() []string { return labels(l.Risk) }

// TrustLabels returns the trust factor labels in evaluation order.
func (l Ledger) TrustLabels() []string { return labels(l.Trust) }

func sum(factors []Factor) int {
	total := 0
	for _, f := range factors {
		total += f.Weight
	}
	return total
}

func labels(factors []Factor) []string {
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		out = append(out, f.Label)
	}
	return out
}
