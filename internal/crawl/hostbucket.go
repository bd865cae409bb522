package crawl

import (
	"sync"
	"time"
)

// HostBucket tracks one host's rate-limit state: the last time a
// request was dispatched, the configured delay between requests, and
// how many requests are currently in flight. The invariant
// now - last_fetch_time >= delay_ms when a worker begins a request is
// enforced by Reserve blocking until that inequality holds.
type HostBucket struct {
	mu            sync.Mutex
	lastFetch     time.Time
	delay         time.Duration
	inFlight      int
}

// Buckets is the orchestrator-owned map of per-host rate-limit state.
// Only the orchestrator mutates it; workers only call Reserve/Release
// through it, never touch the map directly.
type Buckets struct {
	mu           sync.Mutex
	perHost      map[string]*HostBucket
	defaultDelay time.Duration
}

// NewBuckets builds a Buckets map with defaultDelay applied to any
// host seen for the first time.
func NewBuckets(defaultDelay time.Duration) *Buckets {
	return &Buckets{perHost: make(map[string]*HostBucket), defaultDelay: defaultDelay}
}

func (b *Buckets) bucketFor(host string) *HostBucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	hb, ok := b.perHost[host]
	if !ok {
		hb = &HostBucket{delay: b.defaultDelay}
		b.perHost[host] = hb
	}
	return hb
}

// SetDelay overrides a specific host's delay (used when robots.txt
// supplies a Crawl-delay for the active user agent).
func (b *Buckets) SetDelay(host string, delay time.Duration) {
	hb := b.bucketFor(host)
	hb.mu.Lock()
	hb.delay = delay
	hb.mu.Unlock()
}

// Reserve blocks until host's inter-request delay has elapsed, then
// marks a request as starting (incrementing in_flight). Returns a
// release func the caller must call when the request completes.
func (b *Buckets) Reserve(host string) func() {
	hb := b.bucketFor(host)
	hb.mu.Lock()
	start := hb.lastFetch.Add(hb.delay)
	if now := time.Now(); start.Before(now) {
		start = now
	}
	// claim the start slot before sleeping so concurrent callers queue
	// behind it instead of reading the same lastFetch.
	hb.lastFetch = start
	hb.mu.Unlock()
	if wait := time.Until(start); wait > 0 {
		time.Sleep(wait)
	}

	hb.mu.Lock()
	hb.inFlight++
	hb.mu.Unlock()

	return func() {
		hb.mu.Lock()
		hb.inFlight--
		hb.mu.Unlock()
	}
}
