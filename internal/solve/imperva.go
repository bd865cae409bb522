package solve

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/patterns"
)

const impervaDragJS = `
(() => {
  const handle = document.querySelector('.slider') || document.querySelector('[class*="sliderHandle"]');
  const container = document.querySelector('.sliderContainer') || document.querySelector('[class*="sliderContainer"]');
  if (!handle || !container) return false;
  const hr = handle.getBoundingClientRect();
  const cr = container.getBoundingClientRect();
  const fromX = hr.left + hr.width / 2, fromY = hr.top + hr.height / 2;
  const toX = Math.max(cr.left + 2, cr.right - 8), toY = fromY;
  const steps = 18;
  const fire = (type, x, y) => {
    const el = document.elementFromPoint(x, y) || handle;
    const opts = { clientX: x, clientY: y, bubbles: true, cancelable: true };
    el.dispatchEvent(new MouseEvent(type, opts));
    el.dispatchEvent(new PointerEvent(type.replace('mouse', 'pointer'), opts));
  };
  fire('mousedown', fromX, fromY);
  for (let i = 1; i <= steps; i++) {
    const t = i / steps;
    fire('mousemove', fromX + (toX - fromX) * t, fromY + (toY - fromY) * t);
  }
  fire('mouseup', toX, toY);
  return true;
})()
`

// ImpervaSolver drives the Imperva/DataDome wait-screen, hCaptcha
// checkbox, and slider substates.
type ImpervaSolver struct {
	log *logrus.Logger
}

func (s *ImpervaSolver) Kind() crawlmodel.ChallengeKind { return crawlmodel.ChallengeImpervaWait }

func (s *ImpervaSolver) Solve(ctx context.Context, page *browser.Session, targetURL string) (bool, []byte, error) {
	return runLoop(ctx, page, s.Kind(), s.log, func(html []byte) error {
		switch {
		case patterns.ImpervaWait.IsMatch(html):
			return page.WaitFor(browser.WaitSpec{Delay: 1_100_000_000, IdleNetwork: 7_000_000_000, Navigations: true})

		case patterns.HCaptchaIframe.IsMatch(html):
			if err := page.ClickSelector("#checkbox"); err != nil {
				return err
			}
			return page.WaitFor(browser.WaitSpec{Delay: 900_000_000})

		case patterns.ImpervaIframe.IsMatch(html):
			return s.solveSlider(page)

		default:
			return page.WaitFor(browser.WaitSpec{Delay: 1_000_000_000, Navigations: true})
		}
	})
}

// slideGeometry mirrors impervaGeometryJS's return shape.
type slideGeometry struct {
	FromX, FromY float64
	ToX, ToY     float64
	Found        bool
}

const impervaGeometryJS = `
(() => {
  const handle = document.querySelector('.slider') || document.querySelector('[class*="sliderHandle"]');
  const container = document.querySelector('.sliderContainer') || document.querySelector('[class*="sliderContainer"]');
  if (!handle || !container) return { Found: false };
  const hr = handle.getBoundingClientRect();
  const cr = container.getBoundingClientRect();
  return {
    FromX: hr.left + hr.width / 2, FromY: hr.top + hr.height / 2,
    ToX: Math.max(cr.left + 2, cr.right - 8), ToY: hr.top + hr.height / 2,
    Found: true,
  };
})()
`

func (s *ImpervaSolver) solveSlider(page *browser.Session) error {
	var geom slideGeometry
	if err := page.EvaluateInto(impervaGeometryJS, &geom); err == nil && geom.Found {
		return page.ClickAndDrag(
			browser.Point{X: geom.FromX, Y: geom.FromY},
			browser.Point{X: geom.ToX, Y: geom.ToY},
		)
	}

	var ok bool
	if evalErr := page.EvaluateInto(impervaDragJS, &ok); evalErr != nil {
		return fmt.Errorf("imperva: slider drag failed: %w", evalErr)
	}
	if !ok {
		return fmt.Errorf("imperva: slider elements not found")
	}
	return nil
}
