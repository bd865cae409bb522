package solve

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
)

// RecaptchaV2Solver clicks the anchor checkbox of a plain reCAPTCHA v2 widget.
type RecaptchaV2Solver struct {
	log *logrus.Logger
}

func (s *RecaptchaV2Solver) Kind() crawlmodel.ChallengeKind { return crawlmodel.ChallengeRecaptcha }

func (s *RecaptchaV2Solver) Solve(ctx context.Context, page *browser.Session, targetURL string) (bool, []byte, error) {
	return runLoop(ctx, page, s.Kind(), s.log, func(_ []byte) error {
		if err := page.WaitFor(browser.WaitSpec{Selector: `iframe[src*="/recaptcha/api2/anchor"]`}); err != nil {
			s.log.WithError(err).Debug("recaptcha: anchor iframe not ready")
		}
		if err := page.ClickSelector("#recaptcha-anchor"); err != nil {
			if err2 := page.ClickSelector(".recaptcha-checkbox-checkmark"); err2 != nil {
				return err2
			}
		}
		return page.WaitFor(browser.WaitSpec{Delay: 1_100_000_000, IdleNetwork: 7_000_000_000, Navigations: true})
	})
}
