// Package browser implements a pooled, chromedp-driven headless page
// with stealth injection and mouse-jitter helpers, used when the
// fetcher/detector hand a challenge page off for solving.
//
// Built on chromedp.NewContext and ListenTarget (observing network
// response events; requests are not intercepted), generalized from a
// one-shot SPA-render heuristic into a full navigate/evaluate/click/drag
// surface, with a webdriver/plugin/permissions stealth script
// registered via page.AddScriptToEvaluateOnNewDocument so it survives
// every subsequent navigation on the tab, not just the document loaded
// when it was installed.
package browser

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the common headless-Chrome tells: navigator.webdriver,
// an empty plugins array, a too-small deviceMemory, and the Selenium/CDP
// markers some anti-bot scripts probe for. Registered once per Session via
// AddScriptToEvaluateOnNewDocument, which re-runs it on every navigation
// automatically; registration failure is non-fatal to navigation.
const stealthScript = `
(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
  Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
  Object.defineProperty(navigator, 'deviceMemory', { get: () => 8 });
  window.chrome = window.chrome || { runtime: {} };
  const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
  if (originalQuery) {
    window.navigator.permissions.query = (parameters) => (
      parameters.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission })
        : originalQuery(parameters)
    );
  }
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
  delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
})();
`

// HttpMeta is what navigate returns: an HTTP-level summary of the
// navigation plus the WAF detection heuristic.
type HttpMeta struct {
	Method          string
	Status          int64
	Protocol        string
	ResponseHeaders map[string]string
	RequestHeaders  map[string]string
	WAFFlag         bool
}

// Pool hands out Sessions backed by tabs of one shared browser
// instance. Acquisition is scoped: Release must be called on every
// exit path (success, error, timeout) so the underlying tab returns to
// the pool.
type Pool struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	sem      chan struct{}
}

// NewPool starts one shared headless browser allocator with capacity
// concurrent pages.
func NewPool(ctx context.Context, capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = 1
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return &Pool{
		allocCtx: allocCtx,
		cancel:   cancel,
		sem:      make(chan struct{}, capacity),
	}, nil
}

// Close releases the allocator and every tab spawned from it.
func (p *Pool) Close() {
	p.cancel()
}

// Acquire borrows one page. The caller MUST call the returned release
// func exactly once, on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*Session, func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(p.allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		<-p.sem
		return nil, func() {}, fmt.Errorf("browser: spawn tab: %w", err)
	}

	sess := &Session{ctx: tabCtx}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		tabCancel()
		<-p.sem
	}
	return sess, release, nil
}

// Session wraps one chromedp tab context with the composite navigate,
// evaluate, click, and drag operations a solver needs.
type Session struct {
	ctx           context.Context
	stealthDone   bool
}

// Navigate loads url within timeout, installs the stealth script on
// first use, and computes the WAF heuristic: the final document URL
// differs from the requested URL AND (the final URL contains
// challenges.cloudflare.com OR it contains /cdn-cgi/challenge-platform
// OR the response protocol is blob). The TLS certificate subject is not
// inspected.
func (s *Session) Navigate(url string, timeout time.Duration) (HttpMeta, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if !s.stealthDone {
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		})); err != nil {
			// non-fatal: navigation proceeds without the stealth patch
		}
		s.stealthDone = true
	}

	var meta HttpMeta
	var finalURL string
	var statusCode int64
	var protocol string

	listenCtx, stopListen := context.WithCancel(ctx)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == "Document" {
			finalURL = e.Response.URL
			statusCode = e.Response.Status
			protocol = e.Response.Protocol
		}
	})

	err := chromedp.Run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	stopListen()
	if err != nil {
		return meta, fmt.Errorf("browser: navigate %s: %w", url, err)
	}

	meta.Method = "GET"
	meta.Status = statusCode
	meta.Protocol = protocol
	meta.WAFFlag = wafFlag(url, finalURL, protocol)
	return meta, nil
}

func wafFlag(requested, final, protocol string) bool {
	if final == "" || final == requested {
		return strings.HasPrefix(protocol, "blob")
	}
	if strings.Contains(final, "challenges.cloudflare.com") {
		return true
	}
	if strings.Contains(final, "/cdn-cgi/challenge-platform") {
		return true
	}
	return strings.HasPrefix(protocol, "blob")
}

// ContentBytes returns the current rendered document's text content.
func (s *Session) ContentBytes() ([]byte, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.Text("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// OuterHTMLBytes returns the current document's serialized outer HTML.
func (s *Session) OuterHTMLBytes() ([]byte, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// FindElements locates every element matching selector with chromedp's
// ByQueryAll (a document-level querySelectorAll); elements inside shadow
// roots are not searched.
func (s *Session) FindElements(selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll))
	return nodes, err
}

// Point is a viewport coordinate.
type Point struct{ X, Y float64 }

// Click dispatches a real mouse click at a computed point.
func (s *Session) Click(p Point) error {
	return chromedp.Run(s.ctx, chromedp.MouseClickXY(p.X, p.Y))
}

// ClickSelector clicks the first element matching selector, falling
// back to an element-handle click when point computation is unavailable.
func (s *Session) ClickSelector(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// MoveMouse moves the mouse to p without clicking.
func (s *Session) MoveMouse(p Point) error {
	return chromedp.Run(s.ctx, chromedp.MouseEvent("mouseMoved", p.X, p.Y))
}

// ClickAndDrag performs a real mousedown-move-mouseup drag from from to to.
func (s *Session) ClickAndDrag(from, to Point) error {
	steps := interpolate(from, to, 18)
	var actions []chromedp.Action
	actions = append(actions, chromedp.MouseEvent("mousePressed", from.X, from.Y, chromedp.Button("left")))
	for _, pt := range steps {
		actions = append(actions, chromedp.MouseEvent("mouseMoved", pt.X, pt.Y))
	}
	actions = append(actions, chromedp.MouseEvent("mouseReleased", to.X, to.Y, chromedp.Button("left")))
	return chromedp.Run(s.ctx, actions...)
}

func interpolate(from, to Point, n int) []Point {
	pts := make([]Point, 0, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		pts = append(pts, Point{
			X: from.X + (to.X-from.X)*t,
			Y: from.Y + (to.Y-from.Y)*t,
		})
	}
	return pts
}

// Evaluate runs js in the page and discards the result.
func (s *Session) Evaluate(js string) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(js, nil))
}

// EvaluateInto runs js and unmarshals its result into out.
func (s *Session) EvaluateInto(js string, out interface{}) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(js, out))
}

// WaitSpec configures WaitFor's concurrent sub-waiters; any zero/empty
// field is skipped.
type WaitSpec struct {
	Delay        time.Duration
	IdleNetwork  time.Duration
	Selector     string
	DOMReady     bool
	Navigations  bool
}

// WaitFor runs the Delay, IdleNetwork, Selector and DOMReady sub-waiters
// that are set, concurrently, and returns once all of them complete.
func (s *Session) WaitFor(spec WaitSpec) error {
	var wg waitGroup
	errs := make(chan error, 4)

	if spec.Delay > 0 {
		wg.add(func() { time.Sleep(spec.Delay) })
	}
	if spec.IdleNetwork > 0 {
		wg.add(func() {
			ctx, cancel := context.WithTimeout(s.ctx, spec.IdleNetwork)
			defer cancel()
			chromedp.Run(ctx, chromedp.Sleep(spec.IdleNetwork))
		})
	}
	if spec.Selector != "" {
		wg.add(func() {
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			if err := chromedp.Run(ctx, chromedp.WaitVisible(spec.Selector, chromedp.ByQuery)); err != nil {
				errs <- err
			}
		})
	}
	if spec.DOMReady {
		wg.add(func() {
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			defer cancel()
			if err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
				errs <- err
			}
		})
	}
	wg.wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// waitGroup is a tiny fire-and-join helper so WaitFor's sub-waiters can
// run concurrently without pulling in sync.WaitGroup boilerplate at
// every call site.
type waitGroup struct {
	fns []func()
}

func (w *waitGroup) add(fn func()) { w.fns = append(w.fns, fn) }

func (w *waitGroup) wait() {
	done := make(chan struct{}, len(w.fns))
	for _, fn := range w.fns {
		go func(f func()) {
			f()
			done <- struct{}{}
		}(fn)
	}
	for range w.fns {
		<-done
	}
}

// JitterMouse issues a small series of Gaussian-perturbed mouse moves
// before a real interaction, mimicking human movement noise.
func (s *Session) JitterMouse(center Point) {
	for i := 0; i < 4; i++ {
		dx := gaussian(0, 6)
		dy := gaussian(0, 6)
		_ = s.MoveMouse(Point{X: center.X + dx, Y: center.Y + dy})
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// gaussian returns a sample from N(mean, stddev) via Box-Muller.
func gaussian(mean, stddev float64) float64 {
	u1, u2 := rand.Float64(), rand.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + z*stddev
}
