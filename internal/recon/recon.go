// Package recon implements an optional passive-recon pass: scanning a
// fetched body for subdomain mentions and exposed AWS S3 bucket
// endpoints. It is off by default, purely informational, and its
// output never feeds the Frontier — recon targets are not crawled.
//
// The subdomain regex is built from a fixed prefix plus the escaped
// root domain; S3 endpoints are matched with a single alternation
// regexp. No dedicated recon library fits this narrowly, so both stay
// on regexp.MustCompile.
package recon

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const subdomainPrefix = `(?i)(([a-zA-Z0-9]{1}|[_a-zA-Z0-9]{1}[_a-zA-Z0-9-]{0,61}[a-zA-Z0-9]{1})[.]{1})+`

var awsS3Pattern = regexp.MustCompile(
	`(?i)[a-z0-9.-]+\.s3\.amazonaws\.com|[a-z0-9.-]+\.s3-[a-z0-9-]\.amazonaws\.com|` +
		`[a-z0-9.-]+\.s3-website[.-](eu|ap|us|ca|sa|cn)|//s3\.amazonaws\.com/[a-z0-9._-]+|` +
		`//s3-[a-z0-9-]+\.amazonaws\.com/[a-z0-9._-]+`,
)

var leadingJunkRE = regexp.MustCompile(`^[^a-zA-Z0-9]+`)

// Report is one body's passive-recon findings.
type Report struct {
	Subdomains []string
	S3Buckets  []string
}

// domainRegex builds a subdomain-matching regexp scoped to root.
func domainRegex(root string) *regexp.Regexp {
	escaped := strings.ReplaceAll(root, ".", `[.]`)
	return regexp.MustCompile(subdomainPrefix + escaped)
}

// Scan finds subdomain mentions (scoped to site's registrable domain)
// and S3 bucket references in body. Returns a zero-value Report on any
// public-suffix lookup failure rather than erroring — recon is always
// best-effort.
func Scan(site *url.URL, body []byte) Report {
	root, err := publicsuffix.EffectiveTLDPlusOne(site.Hostname())
	if err != nil {
		return Report{}
	}
	source := string(body)

	re := domainRegex(root)
	rawSubs := re.FindAllString(source, -1)
	subs := dedupe(mapClean(rawSubs))

	rawBuckets := awsS3Pattern.FindAllString(source, -1)
	buckets := dedupe(rawBuckets)

	return Report{Subdomains: subs, S3Buckets: buckets}
}

func mapClean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, cleanSubdomain(s))
	}
	return out
}

func cleanSubdomain(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "*.")
	for {
		if loc := leadingJunkRE.FindStringIndex(s); loc != nil {
			s = s[loc[1]:]
		} else {
			break
		}
	}
	s = strings.Trim(s, "-")
	if len(s) > 1 && s[0] == '.' {
		s = s[1:]
	}
	return s
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
