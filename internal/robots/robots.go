// Package robots fetches each host's robots.txt once, answers
// can-fetch/crawl-delay queries, and fails open (allow-all) when the
// fetch itself fails.
//
// The one-shot fetch clones a colly collector, registers transient
// OnResponse/OnError handlers, Visits, and waits. Parsing is handed to
// temoto/robotstxt (already pulled in transitively by gocolly/colly/v2)
// rather than a hand-rolled Allow/Disallow line scan.
package robots

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// Policy answers can-fetch/crawl-delay queries, caching one parsed
// robots.txt per host for the lifetime of the cache entry.
type Policy struct {
	client  *colly.Collector
	cache   *cache.Cache
	log     *logrus.Logger
	mu      sync.Mutex
	enabled bool
}

// New builds a Policy. enabled controls whether can_fetch actually
// consults robots.txt; when false, every query is permissive (used by
// the --respect-robots=false CLI flag).
func New(enabled bool, log *logrus.Logger) *Policy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Policy{
		client:  colly.NewCollector(),
		cache:   cache.New(1*time.Hour, 10*time.Minute),
		log:     log,
		enabled: enabled,
	}
}

type entry struct {
	data *robotstxt.RobotsData
	err  error
}

// fetchOnce clones the collector, registers transient handlers, Visits,
// and waits for exactly one response or error.
func (p *Policy) fetchOnce(robotsURL string) ([]byte, int, error) {
	ch := make(chan struct{}, 1)
	var body []byte
	var status int
	var fetchErr error

	child := p.client.Clone()
	child.OnResponse(func(r *colly.Response) {
		body = append(body, r.Body...)
		status = r.StatusCode
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	child.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		fetchErr = err
		select {
		case ch <- struct{}{}:
		default:
		}
	})

	if err := child.Visit(robotsURL); err != nil {
		return nil, 0, err
	}
	child.Wait()
	<-ch
	return body, status, fetchErr
}

func (p *Policy) groupFor(site *url.URL) *entry {
	key := site.Scheme + "://" + site.Host
	if cached, ok := p.cache.Get(key); ok {
		return cached.(*entry)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache.Get(key); ok {
		return cached.(*entry)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", site.Scheme, site.Host)
	body, status, err := p.fetchOnce(robotsURL)
	e := &entry{}
	if err != nil || status != 200 || len(body) == 0 {
		if err != nil {
			p.log.Debugf("robots: fetch failed for %s: %v", robotsURL, err)
		}
		e.err = fmt.Errorf("robots.txt unavailable for %s", key)
	} else if data, perr := robotstxt.FromBytes(body); perr == nil {
		e.data = data
	} else {
		e.err = perr
	}

	p.cache.Set(key, e, cache.DefaultExpiration)
	return e
}

// CanFetch reports whether userAgent may fetch path on site's host.
// A failed or missing robots.txt is permissive (allow-all).
func (p *Policy) CanFetch(site *url.URL, userAgent, path string) bool {
	if !p.enabled {
		return true
	}
	e := p.groupFor(site)
	if e.err != nil || e.data == nil {
		return true
	}
	group := e.data.FindGroup(userAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// CrawlDelay returns the UA-specific Crawl-delay directive, if any.
func (p *Policy) CrawlDelay(site *url.URL, userAgent string) (time.Duration, bool) {
	if !p.enabled {
		return 0, false
	}
	e := p.groupFor(site)
	if e.err != nil || e.data == nil {
		return 0, false
	}
	group := e.data.FindGroup(userAgent)
	if group == nil || group.CrawlDelay <= 0 {
		return 0, false
	}
	return group.CrawlDelay, true
}
