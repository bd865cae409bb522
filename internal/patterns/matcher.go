// Package patterns implements the multi-pattern byte scanners used to
// fingerprint challenge and forbidden pages. Every matcher here is built
// once, at process init, via regexp.MustCompile over a fixed literal
// set, generalized from a single pattern to named multi-literal sets.
package patterns

import (
	"bytes"
	"regexp"
	"strings"
)

// Matcher scans a byte slice for one or more fixed literals.
type Matcher struct {
	name          string
	literals      []string
	caseSensitive bool
	requireAll    bool // AND semantics (RC-Enterprise-Guard): every literal must appear
	maxScanBytes  int  // 0 = scan the whole body; >0 = only the first N bytes

	re *regexp.Regexp // leftmost-first/leftmost-longest alternation, nil when requireAll
}

// Option configures a Matcher at construction time.
type Option func(*Matcher)

// CaseSensitive makes literal matching byte-exact instead of ASCII-fold.
func CaseSensitive() Option { return func(m *Matcher) { m.caseSensitive = true } }

// RequireAll switches the matcher to AND semantics: IsMatch only
// succeeds when every literal in the set is present (RC-Enterprise-Guard).
func RequireAll() Option { return func(m *Matcher) { m.requireAll = true } }

// MaxScanBytes restricts scanning to the first n bytes of the body
// (CF-JustAMoment only looks at the first 120 bytes of a response).
func MaxScanBytes(n int) Option { return func(m *Matcher) { m.maxScanBytes = n } }

// New builds a named matcher over a fixed literal set. Literals are
// escaped and joined into a single alternation so the regexp engine's
// leftmost-first semantics do the scanning; this mirrors how the
// teacher already builds ad-hoc regexp.MustCompile scanners rather
// than hand-rolling a string search, and needs no extra dependency
// since the corpus has no dedicated multi-pattern-match library.
func New(name string, literals []string, opts ...Option) *Matcher {
	m := &Matcher{name: name, literals: append([]string(nil), literals...)}
	for _, o := range opts {
		o(m)
	}
	if !m.requireAll {
		parts := make([]string, len(literals))
		for i, lit := range literals {
			parts[i] = regexp.QuoteMeta(lit)
		}
		pattern := strings.Join(parts, "|")
		if !m.caseSensitive {
			pattern = "(?i)" + pattern
		}
		m.re = regexp.MustCompile(pattern)
	}
	return m
}

// Name returns the matcher's identifier.
func (m *Matcher) Name() string { return m.name }

func (m *Matcher) window(body []byte) []byte {
	if m.maxScanBytes > 0 && len(body) > m.maxScanBytes {
		return body[:m.maxScanBytes]
	}
	return body
}

// IsMatch reports whether the body satisfies the matcher's semantics
// (any literal for OR matchers, every literal for RequireAll matchers).
func (m *Matcher) IsMatch(body []byte) bool {
	w := m.window(body)
	if m.requireAll {
		return len(m.Hits(body)) == len(m.literals)
	}
	return m.re.Match(w)
}

// Hits returns the subset of literals present in the body. Only used
// by the RC-Enterprise-Guard matcher, which needs to know which of its
// four literals actually fired, not merely whether any did.
func (m *Matcher) Hits(body []byte) []string {
	w := m.window(body)
	haystack := w
	if !m.caseSensitive {
		haystack = bytes.ToLower(w)
	}
	var hits []string
	for _, lit := range m.literals {
		needle := lit
		if !m.caseSensitive {
			needle = strings.ToLower(lit)
		}
		if bytes.Contains(haystack, []byte(needle)) {
			hits = append(hits, lit)
		}
	}
	return hits
}
