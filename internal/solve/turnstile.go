package solve

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
)

// turnstileTargets is the fixed selector list, tried in order.
var turnstileTargets = []string{
	`div[id*="turnstile"]`,
	`iframe[src*="challenges.cloudflare.com"]`,
	`iframe[src*="turnstile"]`,
	`iframe[title*="widget"]`,
	`input[type="checkbox"]`,
}

const turnstileFallbackJS = `document.querySelectorAll("iframe,input").forEach(el => el.click()); document.querySelector('.cf-turnstile')?.click();`

// TurnstileSolver solves the Cloudflare Turnstile widget.
type TurnstileSolver struct {
	log *logrus.Logger
}

func (s *TurnstileSolver) Kind() crawlmodel.ChallengeKind { return crawlmodel.ChallengeCloudflareTurnstile }

func (s *TurnstileSolver) Solve(ctx context.Context, page *browser.Session, targetURL string) (bool, []byte, error) {
	var currentURL string
	if err := page.EvaluateInto("location.href", &currentURL); err == nil && currentURL == "about:blank" {
		upgraded := targetURL
		if strings.HasPrefix(upgraded, "http://") {
			upgraded = "https://" + strings.TrimPrefix(upgraded, "http://")
		}
		if _, err := page.Navigate(upgraded, 15_000_000_000); err != nil {
			s.log.WithError(err).Debug("turnstile: upgrade navigate failed")
		}
	}

	solved, html, err := runLoop(ctx, page, s.Kind(), s.log, func(_ []byte) error {
		clicked := false
		for _, sel := range turnstileTargets {
			nodes, ferr := page.FindElements(sel)
			if ferr != nil || len(nodes) == 0 {
				continue
			}
			if cerr := page.ClickSelector(sel); cerr == nil {
				clicked = true
			}
		}
		if !clicked {
			if werr := page.WaitFor(browser.WaitSpec{IdleNetwork: 2_000_000_000}); werr != nil {
				s.log.WithError(werr).Debug("turnstile: idle wait failed")
			}
			if eerr := page.Evaluate(turnstileFallbackJS); eerr != nil {
				return eerr
			}
		}
		return page.WaitFor(browser.WaitSpec{Navigations: true, IdleNetwork: 1_000_000_000})
	})
	if solved {
		page.WaitFor(browser.WaitSpec{Delay: 4_000_000_000})
		if refreshed, rerr := page.OuterHTMLBytes(); rerr == nil {
			html = refreshed
		}
	}
	return solved, html, err
}
