// Package features computes the fixed numeric feature vector the statistical
// model was trained on. Only URL-derived features are computed; features that
// need page content are always zero.
package features

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lurewatch/lurewatch/internal/heuristics"
)

// Names is the model's feature order. Vector values follow it exactly.
var Names = []string{
	"URLLength",
	"DomainLength",
	"IsDomainIP",
	"URLSimilarityIndex",
	"CharContinuationRate",
	"TLDLegitimateProb",
	"URLCharProb",
	"TLDLength",
	"NoOfSubDomain",
	"HasObfuscation",
	"NoOfObfuscatedChar",
	"ObfuscationRatio",
	"NoOfLettersInURL",
	"LetterRatioInURL",
	"NoOfDegitsInURL",
	"DegitRatioInURL",
	"NoOfEqualsInURL",
	"NoOfQMarkInURL",
	"NoOfAmpersandInURL",
	"NoOfOtherSpecialCharsInURL",
	"SpacialCharRatioInURL",
	"IsHTTPS",
	"LineOfCode",
	"LargestLineLength",
	"HasTitle",
	"DomainTitleMatchScore",
	"URLTitleMatchScore",
	"HasFavicon",
	"Robots",
	"IsResponsive",
	"NoOfURLRedirect",
	"NoOfSelfRedirect",
	"HasDescription",
	"NoOfPopup",
	"NoOfiFrame",
	"HasExternalFormSubmit",
	"HasSocialNet",
	"HasSubmitButton",
	"HasHiddenFields",
	"HasPasswordField",
	"Bank",
	"Pay",
	"Crypto",
	"HasCopyrightInfo",
	"NoOfImage",
	"NoOfCSS",
	"NoOfJS",
	"NoOfSelfRef",
	"NoOfEmptyRef",
	"NoOfExternalRef",
}

// Dataset placeholders for features that cannot be derived from the URL alone.
const (
	placeholderSimilarity  = 0.5
	placeholderSpecialRate = 0.1
	unknownTLDProb         = 0.5
)

var (
	ipv4RE = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	hexRE  = regexp.MustCompile(`%[0-9a-fA-F]{2}`)

	tldLegitimateProb = map[string]float64{
		"com": 0.95,
		"org": 0.90,
		"net": 0.85,
		"edu": 0.99,
		"gov": 0.99,
	}

	obfuscationMarkers = []string{"%", "javascript:", "data:", "&#", "&lt;", "&gt;"}
	socialMarkers      = []string{"facebook", "twitter", "instagram", "linkedin"}
	bankMarkers        = []string{"bank", "banking", "finance"}
	payMarkers         = []string{"pay", "paypal", "payment", "checkout"}
	cryptoMarkers      = []string{"bitcoin", "crypto", "ethereum", "wallet"}
)

const otherSpecialChars = "!@#$%^*()_+-[]{}|;:,.<>~/"

// Map holds one value per feature name.
type Map map[string]float64

// Extract computes every feature in Names for raw. It never fails; page
// content features are zero.
func Extract(raw string) Map {
	u := heuristics.ParseURL(raw)
	lower := strings.ToLower(raw)
	length := utf8.RuneCountInString(raw)
	tld := netlocTLD(u.Netloc)

	letters, digits, special := 0, 0, 0
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
		if strings.ContainsRune(otherSpecialChars, r) {
			special++
		}
	}

	m := make(Map, len(Names))
	for _, name := range Names {
		m[name] = 0
	}

	host, _, _ := strings.Cut(u.Netloc, ":")
	m["URLLength"] = float64(length)
	m["DomainLength"] = float64(utf8.RuneCountInString(u.Netloc))
	m["IsDomainIP"] = boolf(ipv4RE.MatchString(host))
	m["URLSimilarityIndex"] = placeholderSimilarity
	m["CharContinuationRate"] = charContinuationRate(raw)
	m["TLDLegitimateProb"] = tldProb(tld)
	m["URLCharProb"] = charProb(raw)
	m["TLDLength"] = float64(utf8.RuneCountInString(tld))
	m["NoOfSubDomain"] = float64(max(0, strings.Count(u.Netloc, ".")-1))
	m["HasObfuscation"] = boolf(containsAny(lower, obfuscationMarkers))
	m["NoOfObfuscatedChar"] = float64(len(hexRE.FindAllStringIndex(raw, -1)))
	m["NoOfLettersInURL"] = float64(letters)
	m["LetterRatioInURL"] = float64(letters) / float64(max(length, 1))
	m["NoOfDegitsInURL"] = float64(digits)
	m["DegitRatioInURL"] = float64(digits) / float64(max(length, 1))
	m["NoOfEqualsInURL"] = float64(strings.Count(raw, "="))
	m["NoOfQMarkInURL"] = float64(strings.Count(raw, "?"))
	m["NoOfAmpersandInURL"] = float64(strings.Count(raw, "&"))
	m["NoOfOtherSpecialCharsInURL"] = float64(special)
	m["SpacialCharRatioInURL"] = placeholderSpecialRate
	m["IsHTTPS"] = boolf(u.Scheme == "https")
	m["NoOfURLRedirect"] = boolf(strings.Contains(u.Path, "//"))
	m["HasSocialNet"] = boolf(containsAny(lower, socialMarkers))
	m["Bank"] = boolf(containsAny(lower, bankMarkers))
	m["Pay"] = boolf(containsAny(lower, payMarkers))
	m["Crypto"] = boolf(containsAny(lower, cryptoMarkers))
	return m
}

// Vector returns the values in Names order.
func (m Map) Vector() []float64 {
	out := make([]float64, len(Names))
	for i, name := range Names {
		out[i] = m[name]
	}
	return out
}

// FromValues builds a complete Map from caller-supplied values. Names the
// model does not know are dropped and missing ones default to zero.
func FromValues(values map[string]float64) Map {
	m := make(Map, len(Names))
	for _, name := range Names {
		m[name] = values[name]
	}
	return m
}

// netlocTLD is the text after the last "." of the raw authority, port
// included. The model was trained on this exact definition.
func netlocTLD(netloc string) string {
	if i := strings.LastIndexByte(netloc, '.'); i >= 0 {
		return netloc[i+1:]
	}
	return netloc
}

func tldProb(tld string) float64 {
	if p, ok := tldLegitimateProb[strings.ToLower(tld)]; ok {
		return p
	}
	return unknownTLDProb
}

// charContinuationRate is the share of positions whose next character repeats.
func charContinuationRate(s string) float64 {
	runes := []rune(s)
	if len(runes) < 2 {
		return 0
	}
	repeats := 0
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] == runes[i+1] {
			repeats++
		}
	}
	return math.Min(float64(repeats)/float64(len(runes)), 1)
}

// charProb is the dataset's character-distribution score: the negated sum of
// p^1.5 over character frequencies, scaled down by ten and capped at one.
func charProb(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	order := make([]rune, 0)
	for _, r := range runes {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	score := 0.0
	for _, r := range order {
		p := float64(counts[r]) / float64(len(runes))
		score -= p * math.Sqrt(p)
	}
	return math.Min(score/10, 1)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
