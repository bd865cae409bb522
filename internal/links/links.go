// Package links implements link extraction: given a fetched body and
// its base URL, produce the absolute, policy-filtered set of URLs
// reachable from its anchor tags.
//
// goquery is used here instead of colly's OnHTML callbacks because
// OnHTML only ever fires from colly's own Visit() call — it cannot
// parse an arbitrary already-in-memory byte buffer, which is exactly
// what this package receives after a browser-escalated fetch rewrites
// the body. goquery already rides along as an indirect dependency of
// gocolly/colly/v2, so promoting it to direct use costs nothing new.
package links

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/talonweb/talon/internal/urlnorm"
)

// HostPolicy controls which extracted links are kept. AllowSubdomains
// permits any host sharing the base URL's registrable domain (eTLD+1);
// when false only an exact host match is kept. AllowedTLDs, when
// non-empty, additionally restricts matches to hosts ending in one of
// the listed TLDs (e.g. "com", "org") regardless of origin.
type HostPolicy struct {
	AllowSubdomains bool
	AllowedTLDs     []string
}

// InScope reports whether candidate's host is allowed by the policy
// relative to base.
func (p HostPolicy) InScope(base, candidate *url.URL) bool {
	if len(p.AllowedTLDs) > 0 && !hasAllowedTLD(candidate.Hostname(), p.AllowedTLDs) {
		return false
	}
	if strings.EqualFold(base.Hostname(), candidate.Hostname()) {
		return true
	}
	if !p.AllowSubdomains {
		return false
	}
	baseRoot, err1 := publicsuffix.EffectiveTLDPlusOne(base.Hostname())
	candRoot, err2 := publicsuffix.EffectiveTLDPlusOne(candidate.Hostname())
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(baseRoot, candRoot)
}

func hasAllowedTLD(host string, tlds []string) bool {
	for _, tld := range tlds {
		if strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(tld)) {
			return true
		}
	}
	return false
}

// Extract parses body as HTML rooted at base, resolves every anchor
// href through urlnorm.Normalize, and returns the deduplicated,
// policy-filtered set of absolute URLs. Parse errors yield an empty
// result rather than a Go error, matching C9's "best effort" contract.
func Extract(base *url.URL, body []byte, policy HostPolicy) []*url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []*url.URL

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved := urlnorm.Normalize(base, href)
		if resolved == nil || resolved.Host == "" {
			return
		}
		if !policy.InScope(base, resolved) {
			return
		}
		key := strings.ToLower(resolved.Host) + resolved.Path + resolved.RawQuery
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, resolved)
	})

	return out
}
