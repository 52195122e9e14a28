package heuristics

import "strings"

// ParsedURL is the lexical breakdown every rule reads from. It is derived once
// per evaluation and never cached.
type ParsedURL struct {
	Scheme           string // lower-cased, "" when absent
	Netloc           string // authority as written, userinfo and port included
	Domain           string // lower-cased host with the port stripped
	DomainWithoutWWW string // Domain minus one leading "www."
	TLD              string // label after the last "." in Domain
	Path             string
}

// ParseURL splits raw into its lexical parts. It never fails: anything it
// cannot recognise is left as an empty field.
//
// The caller must supply the scheme. Input without one ("example.com/login")
// yields an empty Domain, so normalisation such as prepending "https://"
// belongs to the caller.
func ParseURL(raw string) ParsedURL {
	var p ParsedURL

	rest := raw
	if i := strings.IndexByte(rest, ':'); i > 0 && isScheme(rest[:i]) {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		p.Netloc = rest[:end]
		rest = rest[end:]
	}

	if end := strings.IndexAny(rest, "?#"); end >= 0 {
		rest = rest[:end]
	}
	p.Path = rest

	host, _, _ := strings.Cut(p.Netloc, ":")
	p.Domain = strings.ToLower(host)
	p.DomainWithoutWWW = strings.TrimPrefix(p.Domain, "www.")
	if i := strings.LastIndexByte(p.Domain, '.'); i >= 0 {
		p.TLD = p.Domain[i+1:]
	}
	return p
}

// isScheme reports whether s is a syntactically valid URL scheme:
// a letter followed by letters, digits, "+", "-" or ".".
func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}
