// Package solve implements the challenge solvers: one bounded state
// machine per challenge vendor, all sharing a common iteration/deadline
// skeleton (≤10 iterations, 30s overall deadline, per-iteration HTML
// refresh, never panics on element-not-found).
package solve

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/detect"
	"github.com/talonweb/talon/internal/vision"
)

// Solver drives one vendor's substates against a borrowed browser
// page until the detector stops firing, the iteration budget is
// exhausted, or the overall deadline elapses.
type Solver interface {
	Kind() crawlmodel.ChallengeKind
	Solve(ctx context.Context, page *browser.Session, targetURL string) (solved bool, html []byte, err error)
}

// ErrTimeout is returned when the 30s overall deadline elapses before
// the detector clears.
type ErrTimeout struct{ Kind crawlmodel.ChallengeKind }

func (e *ErrTimeout) Error() string { return e.Kind.String() + ": solve timeout" }

// runLoop is the shared skeleton every solver's Solve method calls
// into: per iteration it refreshes the HTML, asks step to attempt one
// substate transition (swallowing step's error — per-iteration
// failures are non-fatal), then checks whether the vendor's own
// detector has cleared.
func runLoop(ctx context.Context, page *browser.Session, kind crawlmodel.ChallengeKind, log *logrus.Logger, step func(html []byte) error) (bool, []byte, error) {
	sess := crawlmodel.NewSolverSession("")
	var lastHTML []byte

	for !sess.Expired() {
		select {
		case <-ctx.Done():
			return false, lastHTML, ctx.Err()
		default:
		}

		html, err := page.OuterHTMLBytes()
		if err != nil {
			log.WithError(err).Debug("solve: html refresh failed")
		} else {
			lastHTML = html
		}

		if lastHTML != nil && !stillChallenged(detect.Classify(lastHTML, "text/html"), kind) {
			return true, lastHTML, nil
		}

		if err := step(lastHTML); err != nil {
			log.WithError(err).Debug("solve: iteration step failed, continuing")
		}

		sess.IterationCount++
		time.Sleep(50 * time.Millisecond)
	}

	if time.Since(sess.StartTime) >= sess.OverallDeadline {
		return false, lastHTML, &ErrTimeout{Kind: kind}
	}
	return false, lastHTML, nil
}

// stillChallenged reports whether got is a page state the solver for
// kind still handles: the Imperva solver covers its wait, iframe/slider
// and hCaptcha substates, the GeeTest solver its loading and visible ones.
func stillChallenged(got, kind crawlmodel.ChallengeKind) bool {
	switch kind {
	case crawlmodel.ChallengeImpervaWait, crawlmodel.ChallengeImpervaIframe:
		return got == crawlmodel.ChallengeImpervaWait || got == crawlmodel.ChallengeImpervaIframe || got == crawlmodel.ChallengeHCaptchaEmbedded
	case crawlmodel.ChallengeGeeTestLoading, crawlmodel.ChallengeGeeTestVisible:
		return got == crawlmodel.ChallengeGeeTestLoading || got == crawlmodel.ChallengeGeeTestVisible
	}
	return got == kind
}

func htmlContains(html []byte, needle string) bool {
	return strings.Contains(strings.ToLower(string(html)), strings.ToLower(needle))
}

// Registry dispatches a FetchRecord's ChallengeKind to the matching Solver.
type Registry struct {
	solvers map[crawlmodel.ChallengeKind]Solver
}

// NewRegistry builds the standard set of five vendor solvers.
func NewRegistry(oracle vision.Oracle, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{solvers: make(map[crawlmodel.ChallengeKind]Solver)}
	reg := func(s Solver, kinds ...crawlmodel.ChallengeKind) {
		if len(kinds) == 0 {
			kinds = []crawlmodel.ChallengeKind{s.Kind()}
		}
		for _, k := range kinds {
			r.solvers[k] = s
		}
	}
	reg(&TurnstileSolver{log: log})
	// ImpervaSolver's own substate dispatch (imperva.go) handles both the
	// wait-page and the iframe/slider page, so both detector kinds route here.
	reg(&ImpervaSolver{log: log}, crawlmodel.ChallengeImpervaWait, crawlmodel.ChallengeImpervaIframe)
	reg(&RecaptchaV2Solver{log: log})
	reg(&RecaptchaEnterpriseSolver{oracle: oracle, log: log})
	// GeeTestSolver dispatches on both the loading and visible substates
	// (geetest.go), so both detector kinds route to the same solver.
	reg(&GeeTestSolver{oracle: oracle, log: log}, crawlmodel.ChallengeGeeTestVisible, crawlmodel.ChallengeGeeTestLoading)
	return r
}

// For returns the solver registered for kind, or nil if none applies
// (ChallengeNone / ChallengeHardForbidden never get a solver).
func (r *Registry) For(kind crawlmodel.ChallengeKind) Solver {
	return r.solvers[kind]
}
