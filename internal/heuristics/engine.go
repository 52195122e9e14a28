// Package heuristics scores URLs for phishing using only their lexical
// structure. It performs no I/O and keeps no state between calls, so Evaluate
// is safe for concurrent use.
package heuristics

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// ErrInvalidURL is returned for an empty or blank URL argument.
var ErrInvalidURL = errors.New("heuristics: url is required")

// Features is the transparency report built alongside the score. Only the
// rules read the parsed URL; nothing here feeds back into scoring.
type Features struct {
	Domain               string   `json:"Domain"`
	TLD                  string   `json:"TLD"`
	RegistrableDomain    string   `json:"RegistrableDomain"`
	UnicodeDomain        string   `json:"UnicodeDomain,omitempty"`
	HasPunycode          bool     `json:"HasPunycode"`
	IsKnownLegitimate    bool     `json:"IsKnownLegitimate"`
	KnownPhishingPattern *string  `json:"KnownPhishingPattern"`
	ImpersonationAttempt *string  `json:"ImpersonationAttempt"`
	IsIPAddress          bool     `json:"IsIPAddress"`
	HasHTTPS             bool     `json:"HasHTTPS"`
	SuspiciousTLD        bool     `json:"SuspiciousTLD"`
	SuspiciousKeywords   []string `json:"SuspiciousKeywords"`
	HasHexEncoding       bool     `json:"HasHexEncoding"`
	HasAtSymbol          bool     `json:"HasAtSymbol"`
	URLLength            int      `json:"URLLength"`
	DomainLength         int      `json:"DomainLength"`
	DigitsInDomain       int      `json:"DigitsInDomain"`
	HasHyphenInDomain    bool     `json:"HasHyphenInDomain"`
	TooManySubdomains    bool     `json:"TooManySubdomains"`
}

// Report is the full outcome of one evaluation. The JSON form exposes factor
// labels only; weights stay available to Go callers through Evidence.
type Report struct {
	URL          string     `json:"url"`
	Result       Verdict    `json:"result"`
	Confidence   Confidence `json:"confidence"`
	Features     Features   `json:"features"`
	RiskFactors  []string   `json:"risk_factors"`
	TrustFactors []string   `json:"trust_factors"`
	Evidence     Ledger     `json:"-"`
}

// Evaluate runs every rule against raw and scores the result. raw must
// already carry a scheme; see ParseURL.
func Evaluate(raw string) (*Report, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrInvalidURL
	}

	e := &evaluation{raw: raw, url: ParseURL(raw)}
	e.features.Domain = e.url.Domain
	e.features.TLD = e.url.TLD

	e.checkKnownLegitimate()
	e.checkKnownPhishing()
	unlisted := !e.features.IsKnownLegitimate && e.features.KnownPhishingPattern == nil
	if unlisted {
		e.checkImpersonation()
	}
	e.checkIPAddress()
	e.checkTransport()
	e.checkTLD()
	e.checkKeywords()
	e.checkHexEncoding()
	e.checkAtSymbol()
	e.checkLength()
	e.checkSubdomains()
	e.checkDigits()
	e.checkHyphens()
	if unlisted {
		e.checkUnknownDomain()
	}

	describeDomain(&e.features, e.url.Domain)

	verdict, conf := Score(e.ledger)
	return &Report{
		URL:          raw,
		Result:       verdict,
		Confidence:   conf,
		Features:     e.features,
		RiskFactors:  e.ledger.RiskLabels(),
		TrustFactors: e.ledger.TrustLabels(),
		Evidence:     e.ledger,
	}, nil
}

// describeDomain fills the report-only domain attributes.
func describeDomain(f *Features, domain string) {
	if domain == "" || f.IsIPAddress {
		return
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		f.RegistrableDomain = etld1
	}
	for _, label := range strings.Split(domain, ".") {
		if strings.HasPrefix(label, "xn--") {
			f.HasPunycode = true
			break
		}
	}
	if f.HasPunycode {
		if u, err := idna.Lookup.ToUnicode(domain); err == nil && u != domain {
			f.UnicodeDomain = u
		}
	}
}
