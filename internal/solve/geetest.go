package solve

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/browser"
	"github.com/talonweb/talon/internal/crawlmodel"
	"github.com/talonweb/talon/internal/patterns"
	"github.com/talonweb/talon/internal/vision"
)

// GeeTestSolver drives the slider-puzzle variant of GeeTest.
type GeeTestSolver struct {
	oracle vision.Oracle
	log    *logrus.Logger
}

func (s *GeeTestSolver) Kind() crawlmodel.ChallengeKind { return crawlmodel.ChallengeGeeTestVisible }

const geetestCanvasJS = `
(() => {
  const canvas = document.querySelector('.geetest_canvas_slice.geetest_absolute');
  if (!canvas) return { Found: false };
  return { Found: true, DataURL: canvas.toDataURL(), Width: canvas.width };
})()
`

const geetestTrackJS = `
(() => {
  const track = document.querySelector('.geetest_slicebg') || document.querySelector('.geetest_wrap');
  const button = document.querySelector('.geetest_slider_button') || document.querySelector('.geetest_btn');
  if (!track || !button) return { Found: false };
  const tr = track.getBoundingClientRect();
  const br = button.getBoundingClientRect();
  return {
    Found: true,
    TrackX: tr.left, TrackWidth: tr.width, TrackCenterY: tr.top + tr.height / 2,
    ButtonX: br.left + br.width / 2, ButtonY: br.top + br.height / 2,
  };
})()
`

type canvasSnapshot struct {
	Found   bool
	DataURL string
	Width   float64
}

type trackGeometry struct {
	Found        bool
	TrackX       float64
	TrackWidth   float64
	TrackCenterY float64
	ButtonX      float64
	ButtonY      float64
}

func (s *GeeTestSolver) Solve(ctx context.Context, page *browser.Session, targetURL string) (bool, []byte, error) {
	return runLoop(ctx, page, s.Kind(), s.log, func(html []byte) error {
		if patterns.GeeTestLoading.IsMatch(html) {
			return page.WaitFor(browser.WaitSpec{Delay: 1_000_000_000})
		}
		if !patterns.GeeTestVisible.IsMatch(html) {
			if err := page.ClickSelector(".geetest_radar"); err != nil {
				if err2 := page.ClickSelector(".geetest_radar_tip_content"); err2 != nil {
					return err2
				}
			}
			return page.WaitFor(browser.WaitSpec{Delay: 500_000_000})
		}
		return s.dragSlider(ctx, page)
	})
}

func (s *GeeTestSolver) dragSlider(ctx context.Context, page *browser.Session) error {
	var snap canvasSnapshot
	if err := page.EvaluateInto(geetestCanvasJS, &snap); err != nil || !snap.Found {
		return fmt.Errorf("geetest: canvas not found")
	}
	png, err := decodeDataURL(snap.DataURL)
	if err != nil {
		return fmt.Errorf("geetest: decode canvas: %w", err)
	}
	gapX, gapErr := s.oracle.LocateGap(ctx, png)

	var geom trackGeometry
	if err := page.EvaluateInto(geetestTrackJS, &geom); err != nil || !geom.Found {
		return fmt.Errorf("geetest: track/button not found")
	}

	var targetX float64
	if gapErr != nil {
		s.log.WithError(gapErr).Debug("geetest: oracle unavailable, falling back to track centre")
		targetX = geom.TrackX + geom.TrackWidth/2
	} else {
		frac := gapX / snap.Width
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		targetX = geom.TrackX + frac*geom.TrackWidth
	}

	if err := page.ClickAndDrag(
		browser.Point{X: geom.ButtonX, Y: geom.ButtonY},
		browser.Point{X: targetX, Y: geom.TrackCenterY},
	); err != nil {
		return err
	}
	return page.WaitFor(browser.WaitSpec{Delay: 1_100_000_000, IdleNetwork: 7_000_000_000, Navigations: true})
}

func decodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, ",")
	if idx < 0 {
		return nil, fmt.Errorf("geetest: malformed data URL")
	}
	return base64.StdEncoding.DecodeString(dataURL[idx+1:])
}
