// Package frontier implements the deduplicated pending/visited URL set
// the orchestrator drains workers from.
//
// A plain "already seen" boolean set, tracked behind a sync.Map in
// simpler crawlers, is generalized here into a pending/visited pair: a
// URL is marked seen exactly once, at the point it is committed.
package frontier

import (
	"container/list"
	"net/url"
	"strings"
	"sync"

	"github.com/talonweb/talon/internal/crawlmodel"
)

// Frontier holds the pending queue and visited set. Safe for
// concurrent use by multiple workers.
type Frontier struct {
	mu      sync.Mutex
	pending *list.List
	queued  map[string]*list.Element
	visited map[string]struct{}
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{
		pending: list.New(),
		queued:  make(map[string]*list.Element),
		visited: make(map[string]struct{}),
	}
}

func key(u *url.URL) string {
	return strings.ToLower(u.Host) + u.Path + "?" + u.RawQuery
}

// Key exposes the frontier's own dedup key for callers (the crawl
// orchestrator's depth tracker) that need to correlate a URL with
// frontier membership without duplicating the host/path/query rule.
func Key(u *url.URL) string { return key(u) }

// Offer adds u to the pending set. A no-op if u is already pending or
// already visited.
func (f *Frontier) Offer(u *url.URL) {
	k := key(u)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[k]; ok {
		return
	}
	if _, ok := f.queued[k]; ok {
		return
	}
	el := f.pending.PushBack(u)
	f.queued[k] = el
}

// Take removes and returns one pending URL, or nil if the frontier is
// empty. No ordering guarantee beyond FIFO-ish insertion order is made.
func (f *Frontier) Take() *url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	front := f.pending.Front()
	if front == nil {
		return nil
	}
	f.pending.Remove(front)
	u := front.Value.(*url.URL)
	delete(f.queued, key(u))
	return u
}

// Commit moves u from pending/in-flight into visited. record is
// accepted for interface symmetry but the Frontier itself only tracks
// membership; callers persist FetchRecords elsewhere (crawl
// orchestrator result channel).
func (f *Frontier) Commit(u *url.URL, _ *crawlmodel.FetchRecord) {
	k := key(u)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[k] = struct{}{}
}

// Visited reports whether u has already been committed.
func (f *Frontier) Visited(u *url.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key(u)]
	return ok
}

// Len returns the current pending-queue length, mainly for shutdown
// draining and metrics.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

// VisitedCount returns how many URLs have been committed.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
