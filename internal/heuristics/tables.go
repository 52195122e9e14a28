package heuristics

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
)

//go:embed tables/*.txt
var tableData embed.FS

// entry is one row of an ordered lookup table: a lower-case needle and the
// human description reported when it matches.
type entry struct {
	Needle      string
	Description string
}

// Rule tables, loaded once at init and never mutated afterwards.
var (
	knownLegitimate  []string
	knownPhishing    []entry
	impersonations   []entry
	suspiciousTLDs   map[string]struct{}
	commonTLDs       map[string]struct{}
	establishedTLDs  map[string]struct{}
	suspiciousTokens []string
)

func init() {
	knownLegitimate = mustLoadList("tables/known_legitimate.txt")
	knownPhishing = mustLoadEntries("tables/known_phishing.txt")
	impersonations = mustLoadEntries("tables/impersonation.txt")
	suspiciousTLDs = toSet(mustLoadList("tables/suspicious_tlds.txt"))
	commonTLDs = toSet(mustLoadList("tables/common_tlds.txt"))
	establishedTLDs = toSet(mustLoadList("tables/established_tlds.txt"))
	suspiciousTokens = mustLoadList("tables/keywords.txt")
}

// mustLoadList reads one lower-cased value per line, skipping blanks and
// # comments.
func mustLoadList(name string) []string {
	lines := mustLoadRaw(name)
	for i, line := range lines {
		lines[i] = strings.ToLower(line)
	}
	return lines
}

// mustLoadEntries reads "needle = description" rows in file order.
func mustLoadEntries(name string) []entry {
	lines := mustLoadRaw(name)
	out := make([]entry, 0, len(lines))
	for _, line := range lines {
		needle, desc, ok := strings.Cut(line, "=")
		if !ok {
			panic(fmt.Sprintf("heuristics: malformed row in %s: %q", name, line))
		}
		out = append(out, entry{
			Needle:      strings.ToLower(strings.TrimSpace(needle)),
			Description: strings.TrimSpace(desc),
		})
	}
	return out
}

// mustLoadRaw reads the non-comment lines of an embedded table. The files are
// compiled into the binary, so a read failure is a build defect.
func mustLoadRaw(name string) []string {
	f, err := tableData.Open(name)
	if err != nil {
		panic(fmt.Sprintf("heuristics: open %s: %v", name, err))
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		panic(fmt.Sprintf("heuristics: read %s: %v", name, err))
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

// firstMatch returns the first table entry whose needle occurs in s.
func firstMatch(table []entry, s string) (entry, bool) {
	for _, e := range table {
		if strings.Contains(s, e.Needle) {
			return e, true
		}
	}
	return entry{}, false
}

// TableSizes returns the number of loaded rows per table for logging.
func TableSizes() map[string]int {
	return map[string]int{
		"known_legitimate": len(knownLegitimate),
		"known_phishing":   len(knownPhishing),
		"impersonation":    len(impersonations),
		"suspicious_tlds":  len(suspiciousTLDs),
		"common_tlds":      len(commonTLDs),
		"established_tlds": len(establishedTLDs),
		"keywords":         len(suspiciousTokens),
	}
}
