package heuristics

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		ledger         Ledger
		wantVerdict    Verdict
		wantPhishing   float64
		wantLegitimate float64
	}{
		{
			name:           "no evidence falls back to mild suspicion",
			ledger:         Ledger{},
			wantVerdict:    Phishing,
			wantPhishing:   60,
			wantLegitimate: 40,
		},
		{
			name: "exact half is phishing",
			ledger: Ledger{
				Risk:  []Factor{{"a", 10}},
				Trust: []Factor{{"b", 10}},
			},
			wantVerdict:    Phishing,
			wantPhishing:   50,
			wantLegitimate: 50,
		},
		{
			name: "trust majority is legitimate",
			ledger: Ledger{
				Risk:  []Factor{{"a", 15}},
				Trust: []Factor{{"b", 40}, {"c", 10}, {"d", 5}},
			},
			wantVerdict:    Legitimate,
			wantPhishing:   21.43,
			wantLegitimate: 78.57,
		},
		{
			name: "thirds round independently",
			ledger: Ledger{
				Risk:  []Factor{{"a", 10}},
				Trust: []Factor{{"b", 10}, {"c", 10}},
			},
			wantVerdict:    Legitimate,
			wantPhishing:   33.33,
			wantLegitimate: 66.67,
		},
		{
			name:           "risk only",
			ledger:         Ledger{Risk: []Factor{{"a", 15}}},
			wantVerdict:    Phishing,
			wantPhishing:   100,
			wantLegitimate: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := Score(tt.ledger)
			if v != tt.wantVerdict {
				t.Errorf("verdict = %s, want %s", v, tt.wantVerdict)
			}
			if c.Phishing != tt.wantPhishing || c.Legitimate != tt.wantLegitimate {
				t.Errorf("confidence = %+v, want %v/%v", c, tt.wantPhishing, tt.wantLegitimate)
			}
		})
	}
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		phishing, legitimate float64
		want                 Verdict
	}{
		{50, 50, Phishing},
		{49.99, 50.01, Legitimate},
		{30, 30, Suspicious},
		{40, 20, Suspicious},
		{0, 0, Suspicious},
	}
	for _, tt := range tests {
		if got := verdictFor(tt.phishing, tt.legitimate); got != tt.want {
			t.Errorf("verdictFor(%v, %v) = %s, want %s", tt.phishing, tt.legitimate, got, tt.want)
		}
	}
}

func TestLedgerScores(t *testing.T) {
	var l Ledger
	l.addRisk("x", 20)
	l.addRisk("y", 12)
	l.addTrust("z", 5)
	if l.RiskScore() != 32 || l.TrustScore() != 5 {
		t.Errorf("scores = %d/%d, want 32/5", l.RiskScore(), l.TrustScore())
	}
	if got := l.RiskLabels(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("risk labels out of order: %v", got)
	}
	if got := (Ledger{}).TrustLabels(); got == nil || len(got) != 0 {
		t.Errorf("empty ledger should yield an empty, non-nil label slice, got %#v", got)
	}
}
