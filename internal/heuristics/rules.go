package heuristics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule weights. Each rule contributes at most one factor per evaluation.
const (
	weightKnownLegitimate  = 40
	weightKnownPhishing    = 50
	weightImpersonation    = 35
	weightIPAddress        = 40
	weightHTTPS            = 10
	weightNoHTTPS          = 15
	weightSuspiciousTLD    = 25
	weightCommonTLD        = 5
	weightManyKeywords     = 20
	weightOneKeyword       = 15
	weightHexEncoding      = 20
	weightAtSymbol         = 30
	weightLongURL          = 10
	weightManySubdomains   = 15
	weightDigitsInDomain   = 10
	weightHyphenInDomain   = 12
	weightUnusualTLD       = 20
	weightUnverifiedDomain = 15
)

// Structural thresholds.
const (
	maxURLLength       = 120
	maxDomainParts     = 4
	minDomainDigits    = 3
	minExemptDomainLen = 5
	maxExemptDomainLen = 60
)

var (
	ipv4RE = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	hexRE  = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
)

// evaluation carries the per-call state of one Evaluate run.
type evaluation struct {
	raw      string
	url      ParsedURL
	ledger   Ledger
	features Features
}

// Rule 1.
func (e *evaluation) checkKnownLegitimate() {
	for _, legit := range knownLegitimate {
		if strings.Contains(e.url.DomainWithoutWWW, legit) {
			e.features.IsKnownLegitimate = true
			e.ledger.addTrust("Known legitimate domain", weightKnownLegitimate)
			return
		}
	}
}

// Rule 2. Runs regardless of the whitelist result.
func (e *evaluation) checkKnownPhishing() {
	if m, ok := firstMatch(knownPhishing, e.url.DomainWithoutWWW); ok {
		desc := m.Description
		e.features.KnownPhishingPattern = &desc
		e.ledger.addRisk("Known phishing: "+desc, weightKnownPhishing)
	}
}

// Rule 3. The caller gates it on rules 1 and 2 both missing.
func (e *evaluation) checkImpersonation() {
	if m, ok := firstMatch(impersonations, e.url.DomainWithoutWWW); ok {
		service := m.Description
		e.features.ImpersonationAttempt = &service
		e.ledger.addRisk("Impersonating "+service, weightImpersonation)
	}
}

// Rule 4. Octets are not range checked: 999.999.999.999 counts.
func (e *evaluation) checkIPAddress() {
	e.features.IsIPAddress = ipv4RE.MatchString(e.url.Domain)
	if e.features.IsIPAddress {
		e.ledger.addRisk("IP address used (no domain)", weightIPAddress)
	}
}

// Rule 5. Always produces exactly one factor.
func (e *evaluation) checkTransport() {
	e.features.HasHTTPS = e.url.Scheme == "https"
	if e.features.HasHTTPS {
		e.ledger.addTrust("Uses HTTPS", weightHTTPS)
	} else {
		e.ledger.addRisk("No HTTPS (uses HTTP)", weightNoHTTPS)
	}
}

// Rule 6.
func (e *evaluation) checkTLD() {
	tld := e.url.TLD
	e.features.SuspiciousTLD = inSet(suspiciousTLDs, tld)
	switch {
	case e.features.SuspiciousTLD:
		e.ledger.addRisk("Suspicious TLD (."+tld+")", weightSuspiciousTLD)
	case inSet(commonTLDs, tld):
		e.ledger.addTrust("Common TLD (."+tld+")", weightCommonTLD)
	}
}

// Rule 7. Every keyword is recorded, but at most one factor is added.
func (e *evaluation) checkKeywords() {
	lower := strings.ToLower(e.raw)
	found := []string{}
	for _, kw := range suspiciousTokens {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	e.features.SuspiciousKeywords = found

	switch {
	case len(found) >= 2:
		e.ledger.addRisk("Multiple suspicious keywords", weightManyKeywords)
	case len(found) == 1:
		e.ledger.addRisk("Suspicious keyword: "+found[0], weightOneKeyword)
	}
}

// Rule 8.
func (e *evaluation) checkHexEncoding() {
	e.features.HasHexEncoding = hexRE.MatchString(e.raw)
	if e.features.HasHexEncoding {
		e.ledger.addRisk("Hex-encoded characters (obfuscation)", weightHexEncoding)
	}
}

// Rule 9. Only the authority is inspected; "@" in a path or query is fine.
func (e *evaluation) checkAtSymbol() {
	e.features.HasAtSymbol = strings.Contains(e.url.Netloc, "@")
	if e.features.HasAtSymbol {
		e.ledger.addRisk("@ symbol in domain (credential hiding)", weightAtSymbol)
	}
}

// Rule 10.
func (e *evaluation) checkLength() {
	e.features.URLLength = utf8.RuneCountInString(e.raw)
	e.features.DomainLength = utf8.RuneCountInString(e.url.Domain)
	if e.features.URLLength > maxURLLength {
		e.ledger.addRisk("Very long URL", weightLongURL)
	}
}

// Rule 11.
func (e *evaluation) checkSubdomains() {
	e.features.TooManySubdomains = len(strings.Split(e.url.Domain, ".")) > maxDomainParts
	if e.features.TooManySubdomains {
		e.ledger.addRisk("Too many subdomains", weightManySubdomains)
	}
}

// Rule 12.
func (e *evaluation) checkDigits() {
	digits := 0
	for _, r := range e.url.Domain {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	e.features.DigitsInDomain = digits
	if digits >= minDomainDigits {
		e.ledger.addRisk("Too many digits in domain", weightDigitsInDomain)
	}
}

// Rule 13.
func (e *evaluation) checkHyphens() {
	e.features.HasHyphenInDomain = strings.Contains(e.url.DomainWithoutWWW, "-")
	if e.features.HasHyphenInDomain {
		e.ledger.addRisk("Hyphens in domain (typosquatting)", weightHyphenInDomain)
	}
}

// Rule 14. The caller gates it on rules 1 and 2 both missing. A missing TLD is
// no signal. Common-TLD domains shorter than 5 or longer than 60 characters
// fall through without a factor.
func (e *evaluation) checkUnknownDomain() {
	tld := e.url.TLD
	if tld == "" {
		return
	}
	n := utf8.RuneCountInString(e.url.Domain)
	switch {
	case !inSet(establishedTLDs, tld):
		e.ledger.addRisk("Unknown domain with unusual TLD", weightUnusualTLD)
	case n > maxExemptDomainLen || n < minExemptDomainLen:
		// exempt
	default:
		e.ledger.addRisk("Unknown/unverified domain", weightUnverifiedDomain)
	}
}
