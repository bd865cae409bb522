// Package crawl implements the crawl orchestrator: a worker pool pulling
// from the Frontier, serialized per host via HostBucket, with a
// Start/Pause/Resume/Shutdown control channel and a CPU-pressure
// semaphore swap.
//
// The worker loop is explicit rather than relying on a library's
// built-in goroutine pool, so the Pause/Resume/Shutdown control surface
// has somewhere to hook in.
package crawl

import (
	"context"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/acquire"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/frontier"
	"github.com/talonweb/talon/internal/links"
	"github.com/talonweb/talon/internal/robots"
)

// Command is one control-channel instruction: a target id paired with
// a Start/Pause/Resume/Shutdown kind.
type Command struct {
	TargetID string
	Kind     CommandKind
}

type CommandKind int

const (
	Start CommandKind = iota
	Pause
	Resume
	Shutdown
)

// Result is what a worker posts back after one acquisition attempt.
type Result struct {
	URL    *url.URL
	Record *crawlmodel.FetchRecord
}

// Config bundles the orchestrator's tunables.
type Config struct {
	Concurrency   int
	DefaultDelay  time.Duration
	UserAgent     string
	HostPolicy    links.HostPolicy
	RespectRobots bool
	CPUThreshold  float64 // fraction, e.g. 0.70
	MaxDepth      int     // 0 = unbounded
}

// Orchestrator owns the Frontier and the per-host bucket map
// exclusively; workers only ever hold a short-lived borrow of one URL.
type Orchestrator struct {
	cfg       Config
	frontier  *frontier.Frontier
	buckets   *Buckets
	acquirer  *acquire.Acquirer
	robots    *robots.Policy
	log       *logrus.Logger

	cmds    chan Command
	results chan Result

	pauseMu sync.RWMutex
	paused  bool

	globalSem chan struct{} // CPU-pressure fallback permit pool

	depthMu sync.Mutex
	depth   map[string]int // frontier.Key(u) -> depth, first-seen wins
}

// New builds an Orchestrator around an already-constructed Acquirer
// and Robots policy.
func New(cfg Config, acquirer *acquire.Acquirer, robotsPolicy *robots.Policy, log *logrus.Logger) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		cfg:       cfg,
		frontier:  frontier.New(),
		buckets:   NewBuckets(cfg.DefaultDelay),
		acquirer:  acquirer,
		robots:    robotsPolicy,
		log:       log,
		cmds:      make(chan Command, 16),
		results:   make(chan Result, 256),
		globalSem: make(chan struct{}, runtime.NumCPU()),
		depth:     make(map[string]int),
	}
}

// Commands returns the channel the control-plane API posts commands to.
func (o *Orchestrator) Commands() chan<- Command { return o.cmds }

// Results returns the channel workers post completed acquisitions to.
func (o *Orchestrator) Results() <-chan Result { return o.results }

// Seed offers the crawl's starting URL(s) to the frontier at depth 0.
func (o *Orchestrator) Seed(urls ...*url.URL) {
	o.depthMu.Lock()
	for _, u := range urls {
		o.depth[frontier.Key(u)] = 0
	}
	o.depthMu.Unlock()
	for _, u := range urls {
		o.frontier.Offer(u)
	}
}

// depthOf returns the recorded depth for u, defaulting to 0 for a URL
// the orchestrator never assigned a depth to (shouldn't happen outside
// tests that poke the frontier directly).
func (o *Orchestrator) depthOf(u *url.URL) int {
	o.depthMu.Lock()
	defer o.depthMu.Unlock()
	return o.depth[frontier.Key(u)]
}

// offerAtDepth records childDepth for link (first-seen wins) and offers
// it, unless cfg.MaxDepth is set and childDepth would exceed it.
func (o *Orchestrator) offerAtDepth(link *url.URL, childDepth int) {
	if o.cfg.MaxDepth > 0 && childDepth > o.cfg.MaxDepth {
		return
	}
	k := frontier.Key(link)
	o.depthMu.Lock()
	if _, seen := o.depth[k]; !seen {
		o.depth[k] = childDepth
	}
	o.depthMu.Unlock()
	o.frontier.Offer(link)
}

// Run starts cfg.Concurrency workers and the control-channel listener,
// blocking until ctx is cancelled or a Shutdown command arrives.
func (o *Orchestrator) Run(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.workerLoop(workerCtx)
		}()
	}

	go o.controlLoop(cancel)

	<-workerCtx.Done()
	wg.Wait()
	close(o.results)
}

func (o *Orchestrator) controlLoop(shutdown context.CancelFunc) {
	for cmd := range o.cmds {
		switch cmd.Kind {
		case Pause:
			o.pauseMu.Lock()
			o.paused = true
			o.pauseMu.Unlock()
		case Resume:
			o.pauseMu.Lock()
			o.paused = false
			o.pauseMu.Unlock()
		case Shutdown:
			shutdown()
			return
		case Start:
			// Start is a no-op at the orchestrator level once Run has
			// been called; it exists for the control API's symmetry
			// with Pause/Resume/Shutdown.
		}
	}
}

func (o *Orchestrator) isPaused() bool {
	o.pauseMu.RLock()
	defer o.pauseMu.RUnlock()
	return o.paused
}

// cpuPermit acquires either the per-crawl concurrency slot implicit in
// the worker loop, or — when CPU load looks high — this Orchestrator's
// globalSem (runtime.NumCPU() permits) instead, so at most that many of
// its workers proceed at once while CPU load is over the configured
// threshold. The semaphore is not shared with other Orchestrators.
func (o *Orchestrator) cpuPermit(ctx context.Context) (func(), bool) {
	if !cpuUnderPressure(o.cfg.CPUThreshold) {
		return func() {}, true
	}
	select {
	case o.globalSem <- struct{}{}:
		return func() { <-o.globalSem }, true
	case <-ctx.Done():
		return func() {}, false
	}
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if o.isPaused() {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		target := o.frontier.Take()
		if target == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		release, ok := o.cpuPermit(ctx)
		if !ok {
			o.frontier.Offer(target)
			return
		}

		o.processOne(ctx, target)
		release()
	}
}

func (o *Orchestrator) processOne(ctx context.Context, target *url.URL) {
	host := target.Host

	if o.cfg.RespectRobots {
		if !o.robots.CanFetch(target, o.cfg.UserAgent, target.Path) {
			o.frontier.Commit(target, &crawlmodel.FetchRecord{Status: 0, NoRetry: true})
			return
		}
		if delay, ok := o.robots.CrawlDelay(target, o.cfg.UserAgent); ok {
			o.buckets.SetDelay(host, delay)
		}
	}

	releaseBucket := o.buckets.Reserve(host)
	defer releaseBucket()

	rec := o.acquirer.Acquire(ctx, target)
	o.frontier.Commit(target, rec)

	if rec.HasBody() {
		childDepth := o.depthOf(target) + 1
		for _, link := range links.Extract(target, rec.Body, o.cfg.HostPolicy) {
			o.offerAtDepth(link, childDepth)
		}
	}

	select {
	case o.results <- Result{URL: target, Record: rec}:
	case <-ctx.Done():
	}
}
