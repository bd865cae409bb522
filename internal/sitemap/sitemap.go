// Package sitemap implements sitemap discovery: probe a fixed set of
// conventional sitemap paths and return every <loc> entry (including
// those of nested sitemapindex files) to the caller.
//
// Uses oxffaa/gopher-parse-sitemap, a streaming sitemap parser that
// handles both document kinds and XML edge cases (CDATA, namespaced
// locs, trailing garbage) that a hand-rolled encoding/xml struct would
// miss.
package sitemap

import (
	"bytes"
	"fmt"
	"strings"

	sitemapparse "github.com/oxffaa/gopher-parse-sitemap"
	"github.com/sirupsen/logrus"
)

// conventionalPaths is the fixed set of paths probed before giving up.
var conventionalPaths = []string{
	"/sitemap.xml", "/sitemap_news.xml", "/sitemap_index.xml", "/sitemap-index.xml", "/sitemapindex.xml",
	"/sitemap-news.xml", "/post-sitemap.xml", "/page-sitemap.xml", "/portfolio-sitemap.xml", "/home_slider-sitemap.xml",
	"/category-sitemap.xml", "/author-sitemap.xml",
}

// Fetcher is the minimal one-shot GET capability sitemap discovery
// needs; NewFuncFetcher adapts any get function to it.
type Fetcher interface {
	FetchBody(url string) (body []byte, status int, err error)
}

// Discover probes the conventional sitemap paths under siteRoot and
// returns every discovered <loc> URL, recursing one level into any
// sitemapindex documents it finds. Individual probe/parse failures are
// logged and skipped, never fatal to the crawl.
func Discover(siteRoot string, f Fetcher, log *logrus.Logger) []string {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var found []string
	seen := make(map[string]struct{})

	add := func(loc string) {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			return
		}
		if _, dup := seen[loc]; dup {
			return
		}
		seen[loc] = struct{}{}
		found = append(found, loc)
	}

	for _, p := range conventionalPaths {
		target := strings.TrimRight(siteRoot, "/") + p
		body, status, err := f.FetchBody(target)
		if err != nil || status != 200 || len(body) == 0 {
			continue
		}
		parseOne(body, add, f, log)
	}
	return found
}

func parseOne(body []byte, add func(string), f Fetcher, log *logrus.Logger) {
	var nestedMaps []string
	if err := sitemapparse.ParseFromReader(bytes.NewReader(body), func(e sitemapparse.Entry) error {
		add(e.GetLocation())
		return nil
	}); err != nil {
		log.Debugf("sitemap: urlset parse failed: %v", err)
	}
	// ParseFromReader's Entry callback only fires for <url> entries, so a
	// <sitemapindex> document needs its own pass.
	_ = sitemapparse.ParseIndexFromReader(bytes.NewReader(body), func(e sitemapparse.IndexEntry) error {
		nestedMaps = append(nestedMaps, e.GetLocation())
		return nil
	})

	for _, nested := range nestedMaps {
		body, status, err := f.FetchBody(nested)
		if err != nil || status != 200 || len(body) == 0 {
			log.Debugf("sitemap: nested fetch failed for %s", nested)
			continue
		}
		if perr := sitemapparse.ParseFromReader(bytes.NewReader(body), func(e sitemapparse.Entry) error {
			add(e.GetLocation())
			return nil
		}); perr != nil {
			log.Debugf("sitemap: nested parse failed for %s: %v", nested, perr)
		}
	}
}

// httpFetcher is the thinnest possible Fetcher over net/http, so the
// CLI can pass something real without depending on internal/fetch's
// heavier streaming semantics for a small XML document.
type httpFetcher struct {
	get func(string) ([]byte, int, error)
}

// NewFuncFetcher adapts a plain get function to the Fetcher interface.
func NewFuncFetcher(get func(string) ([]byte, int, error)) Fetcher {
	return &httpFetcher{get: get}
}

func (h *httpFetcher) FetchBody(url string) ([]byte, int, error) {
	if h.get == nil {
		return nil, 0, fmt.Errorf("sitemap: no fetch function configured")
	}
	return h.get(url)
}
