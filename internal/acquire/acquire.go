// Package acquire implements page acquisition: the single "get me a
// usable body" call the orchestrator's workers make, composing a raw
// fetch -> classify -> browser escalation -> challenge solve pipeline.
package acquire

import (
	"context"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/detect"
	"github.com/talonweb/talon/internal/fetch"
	"github.com/talonweb/talon/internal/solve"
)

// Acquirer composes the fetch/detect/browser/solve pipeline.
type Acquirer struct {
	Fetcher  *fetch.Fetcher
	Pool     *browser.Pool // nil disables browser escalation entirely
	Solvers  *solve.Registry
	Log      *logrus.Logger
	NavTimeout time.Duration
}

// New builds an Acquirer. A nil pool means step 6 (browser unavailable)
// always applies.
func New(fetcher *fetch.Fetcher, pool *browser.Pool, solvers *solve.Registry, log *logrus.Logger) *Acquirer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Acquirer{Fetcher: fetcher, Pool: pool, Solvers: solvers, Log: log, NavTimeout: 20 * time.Second}
}

// Acquire runs the fetch/classify/escalate/solve pipeline and returns
// the resulting FetchRecord, with body/headers/cookies/bytes_transferred
// preserved across any browser escalation.
func (a *Acquirer) Acquire(ctx context.Context, target *url.URL) *crawlmodel.FetchRecord {
	rec := a.Fetcher.Fetch(ctx, target)

	kind := crawlmodel.ChallengeNone
	if rec.HasBody() {
		kind = detect.Classify(rec.Body, contentTypeOf(rec))
	}
	rec.ChallengeKind = kind

	if kind == crawlmodel.ChallengeNone && rec.HasBody() {
		return rec
	}
	if kind == crawlmodel.ChallengeHardForbidden {
		rec.NoRetry = true
		return rec
	}

	if a.Pool == nil || a.Solvers == nil {
		rec.WAFFlag = true
		return rec
	}

	solver := a.Solvers.For(kind)
	if solver == nil {
		rec.WAFFlag = true
		return rec
	}

	page, release, err := a.Pool.Acquire(ctx)
	if err != nil {
		a.Log.WithError(err).Debug("acquire: browser pool acquisition failed")
		rec.WAFFlag = true
		return rec
	}
	defer release()

	meta, err := page.Navigate(target.String(), a.NavTimeout)
	if err != nil {
		a.Log.WithError(err).Debug("acquire: browser navigate failed")
		rec.WAFFlag = true
		return rec
	}
	if meta.WAFFlag {
		rec.WAFFlag = true
	}

	solved, html, err := solver.Solve(ctx, page, target.String())
	if err != nil {
		a.Log.WithError(err).Debug("acquire: solver returned error")
	}
	rec.Solved = solved
	if html != nil {
		rec.Body = html
		rec.BytesTransferred += int64(len(html))
	}
	return rec
}

func contentTypeOf(rec *crawlmodel.FetchRecord) string {
	if rec.Headers == nil {
		return ""
	}
	if v, ok := rec.Headers["Content-Type"]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
