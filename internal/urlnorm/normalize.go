// Package urlnorm resolves relative hrefs against a base URL, including
// the deliberate quirk of treating bare "domain.tld/path" strings as
// off-site absolutes.
package urlnorm

import (
	"net/url"
	"strings"
)

// protocols is the fixed prefix set checked before falling back to
// relative resolution.
var protocols = []string{"http://", "https://", "ftp://", "ws://"}

// resourceExtensions is the project's resource-extension set, so a
// bare "name.ext" tail is recognized as a static asset rather than a
// domain-like string.
var resourceExtensions = buildExtensionSet([]string{
	"png", "apng", "bmp", "gif", "ico", "cur", "jpg", "jpeg", "jfif", "pjp", "pjpeg",
	"svg", "tif", "tiff", "webp", "xbm", "3gp", "aac", "flac", "mpg", "mpeg", "mp3",
	"mp4", "m4a", "m4v", "m4p", "oga", "ogg", "ogv", "mov", "wav", "webm", "eot",
	"woff", "woff2", "ttf", "otf", "css",
})

func buildExtensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}

func hasProtocolPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range protocols {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// resourceTail returns the substring after the last '.' in href when
// it is at least 2 characters long, mirroring the original's
// rfind('.') + has_asset>=3 check (tail length including the dot).
func resourceTail(href string) (string, bool) {
	i := strings.LastIndex(href, ".")
	if i < 0 {
		return "", false
	}
	tail := href[i+1:]
	if len(tail) < 2 {
		return "", false
	}
	return tail, true
}

func isResourceExtension(tail string) bool {
	_, ok := resourceExtensions[strings.ToLower(tail)]
	return ok
}

// Normalize resolves href against base, rule by rule:
//  1. empty href -> base unchanged.
//  2. a recognized protocol prefix -> parsed as absolute, fragment stripped.
//  3. no leading slash, dotted tail that ISN'T a resource extension ->
//     treated as an off-site absolute ("example.org/x" -> "http://example.org/x").
//     This is intentional, not a bug: bare strings that look like a
//     domain are deliberately NOT resolved as site-relative paths, even
//     though this can misclassify a relative path that happens to
//     contain a dot.
//  4. otherwise: standard RFC 3986 relative resolution against base,
//     fragment stripped.
//  5. any parse failure yields base unchanged.
func Normalize(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return base
	}

	if !strings.HasPrefix(href, "/") {
		if hasProtocolPrefix(href) {
			if u, err := url.Parse(href); err == nil {
				u.Fragment = ""
				return u
			}
			return base
		}

		if tail, ok := resourceTail(href); ok && !isResourceExtension(tail) {
			if u, err := url.Parse("http://" + href); err == nil {
				return u
			}
			return base
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved
}

// Idempotent reports whether re-normalizing the output of a previous
// normalization against the same base reproduces the same string,
// modulo a trailing slash.
func Idempotent(base *url.URL, href string) bool {
	first := Normalize(base, href).String()
	second := Normalize(base, first).String()
	return strings.TrimSuffix(first, "/") == strings.TrimSuffix(second, "/")
}
